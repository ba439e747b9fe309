package enrollment

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// LoginRequest payload
type LoginRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Password, validation.Required, validation.Length(1, MaxPasswordBytes)),
	)
}

// RegistrationPayload is the sign up form
type RegistrationPayload struct {
	FullName        string  `form:"fullname" json:"fullname"`
	Username        string  `form:"username" json:"username"`
	Semester        string  `form:"semester" json:"semester"`
	PersonalEmail   string  `form:"personalemail" json:"personalemail"`
	GSuite          string  `form:"gsuite" json:"gsuite"`
	MobileNumber    string  `form:"mobilenumber" json:"mobilenumber"`
	Password        string  `form:"password" json:"password"`
	ConfirmPassword string  `form:"confirm_password" json:"confirm_password"`
	Images          []Image `json:"image"`
}

// Validate will validate the payload
func (r RegistrationPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Username, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Semester, validation.Required, validation.Length(1, 20)),
		validation.Field(&r.PersonalEmail, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.GSuite, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.MobileNumber, validation.Required, validation.Length(7, 20)),
		validation.Field(&r.Password, validation.Required, validation.Length(DefaultMinPasswordLength, MaxPasswordBytes)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
		validation.Field(&r.Images, validation.By(validateImages)),
	)
}

// ProfilePayload is used by resubmission and profile edits. Blank fields are kept.
type ProfilePayload struct {
	FullName      string  `form:"fullname" json:"fullname"`
	Semester      string  `form:"semester" json:"semester"`
	PersonalEmail string  `form:"personalemail" json:"personalemail"`
	GSuite        string  `form:"gsuite" json:"gsuite"`
	MobileNumber  string  `form:"mobilenumber" json:"mobilenumber"`
	Images        []Image `json:"image"`
}

func (r ProfilePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.Length(1, 200)),
		validation.Field(&r.Semester, validation.Length(1, 20)),
		validation.Field(&r.PersonalEmail, validation.Length(6, 100), is.Email),
		validation.Field(&r.GSuite, validation.Length(6, 100), is.Email),
		validation.Field(&r.MobileNumber, validation.Length(7, 20)),
		validation.Field(&r.Images, validation.By(validateImages)),
	)
}

func (r ProfilePayload) message() ProfileMessage {
	return ProfileMessage{
		FullName:      r.FullName,
		Semester:      r.Semester,
		PersonalEmail: r.PersonalEmail,
		GSuite:        r.GSuite,
		MobileNumber:  r.MobileNumber,
		Images:        r.Images,
	}
}

// DeclinePayload carries the admin's reason
type DeclinePayload struct {
	Reason string `form:"reason" json:"reason"`
}

func (r DeclinePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Reason, validation.Required, validation.Length(1, 500)),
	)
}

// ForgotPasswordPayload starts a reset
type ForgotPasswordPayload struct {
	Username string `form:"username" json:"username"`
}

func (r ForgotPasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(1, 100)),
	)
}

// VerifyCodePayload holds the six single digit fields of the code form.
type VerifyCodePayload struct {
	X1 string `form:"x1" json:"x1"`
	X2 string `form:"x2" json:"x2"`
	X3 string `form:"x3" json:"x3"`
	X4 string `form:"x4" json:"x4"`
	X5 string `form:"x5" json:"x5"`
	X6 string `form:"x6" json:"x6"`
}

func (r VerifyCodePayload) Code() string {
	return AssembleCode(r.X1, r.X2, r.X3, r.X4, r.X5, r.X6)
}

func (r VerifyCodePayload) Validate() error {
	digit := []validation.Rule{validation.Required, validation.Length(1, 1), is.Digit}
	return validation.ValidateStruct(&r,
		validation.Field(&r.X1, digit...),
		validation.Field(&r.X2, digit...),
		validation.Field(&r.X3, digit...),
		validation.Field(&r.X4, digit...),
		validation.Field(&r.X5, digit...),
		validation.Field(&r.X6, digit...),
	)
}

// NewPasswordPayload sets a new password
type NewPasswordPayload struct {
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

func (r NewPasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Password, validation.Required),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

// EmotionPayload is one detector submission
type EmotionPayload struct {
	Happy     int64 `json:"happy"`
	Neutral   int64 `json:"neutral"`
	Sad       int64 `json:"sad"`
	Angry     int64 `json:"angry"`
	Fearful   int64 `json:"fearful"`
	Disgusted int64 `json:"disgusted"`
	Surprised int64 `json:"surprised"`
	Total     int64 `json:"total"`
}

func (r EmotionPayload) Validate() error {
	nonNegative := validation.Min(int64(0))
	return validation.ValidateStruct(&r,
		validation.Field(&r.Happy, nonNegative),
		validation.Field(&r.Neutral, nonNegative),
		validation.Field(&r.Sad, nonNegative),
		validation.Field(&r.Angry, nonNegative),
		validation.Field(&r.Fearful, nonNegative),
		validation.Field(&r.Disgusted, nonNegative),
		validation.Field(&r.Surprised, nonNegative),
		validation.Field(&r.Total, nonNegative),
	)
}

// AdminFilterPayload validates the dashboard filter
type AdminFilterPayload struct {
	Filter string
}

func (r AdminFilterPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Filter,
			validation.Required,
			validation.In(string(FilterVerified), string(FilterActive), string(FilterDeactivated)),
		),
	)
}

func validateImages(value any) error {
	images, _ := value.([]Image)
	for _, img := range images {
		if img.URL == "" || img.Filename == "" {
			return errors.New("every image needs a url and a filename")
		}
	}
	return nil
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

// FormatValidationErrorToMap flattens ozzo validation errors per field.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}
	if err != nil {
		out["form"] = err.Error()
	}
	return out
}

// newPayloadValidationError wraps validation failures for the error handler.
func newPayloadValidationError(err error) *goerrors.Error {
	fields := FormatValidationErrorToMap(err)
	md := make(map[string]any, len(fields))
	for k, v := range fields {
		md[k] = v
	}
	return goerrors.New("invalid payload", goerrors.CategoryValidation).
		WithTextCode("VALIDATION_FAILED").
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(md)
}
