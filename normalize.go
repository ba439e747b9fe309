package enrollment

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion is used for numbers given without a country prefix.
const DefaultPhoneRegion = "IN"

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone parses number and formats it as E.164. Numbers without a
// leading + are read in region.
func NormalizePhone(number, region string) (string, error) {
	number = strings.TrimSpace(number)
	if region == "" {
		region = DefaultPhoneRegion
	}

	parsed, err := phonenumbers.Parse(number, strings.ToUpper(region))
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryValidation, "invalid mobile number").
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"mobilenumber": number})
	}

	if !phonenumbers.IsValidNumber(parsed) {
		return "", goerrors.New("invalid mobile number", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"mobilenumber": number})
	}

	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}

// normalizeProfile applies the email and phone policy to the unique fields.
func normalizeProfile(acc *Account, region string) error {
	acc.Username = strings.TrimSpace(acc.Username)
	acc.FullName = strings.TrimSpace(acc.FullName)
	acc.PersonalEmail = NormalizeEmail(acc.PersonalEmail)
	acc.GSuite = NormalizeEmail(acc.GSuite)
	if acc.MobileNumber == "" {
		return nil
	}
	phone, err := NormalizePhone(acc.MobileNumber, region)
	if err != nil {
		return err
	}
	acc.MobileNumber = phone
	return nil
}
