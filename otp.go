package enrollment

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	// OTPDigits is the length of a reset code.
	OTPDigits = 6
	// DefaultOTPTTL bounds how long an issued code and the grant it yields stay valid.
	DefaultOTPTTL = 10 * time.Minute

	sessionKeyOTPCode      = "otp_code"
	sessionKeyOTPAccount   = "otp_account_id"
	sessionKeyOTPIssuedAt  = "otp_issued_at"
	sessionKeyResetAccount = "reset_account_id"
	sessionKeyResetGranted = "reset_granted_at"
)

var otpDigitRange = big.NewInt(9)

// Challenge is an issued one time code.
type Challenge struct {
	AccountID   uuid.UUID `json:"account_id"`
	Destination string    `json:"destination"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Code        string    `json:"-"`
}

// AccountFieldFinder looks accounts up by a unique field.
type AccountFieldFinder interface {
	FindByField(ctx context.Context, field AccountField, value string) (*Account, error)
}

// OTPManager issues and verifies password reset codes kept in the session.
type OTPManager struct {
	accounts     AccountFieldFinder
	mailer       Mailer
	ttl          time.Duration
	random       io.Reader
	now          func() time.Time
	logger       Logger
	activitySink ActivitySink
}

// NewOTPManager returns a manager; ttl <= 0 uses DefaultOTPTTL.
func NewOTPManager(accounts AccountFieldFinder, mailer Mailer, ttl time.Duration) *OTPManager {
	if ttl <= 0 {
		ttl = DefaultOTPTTL
	}
	if mailer == nil {
		mailer = MailerFunc(nil)
	}
	return &OTPManager{
		accounts:     accounts,
		mailer:       mailer,
		ttl:          ttl,
		random:       rand.Reader,
		now:          time.Now,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (m *OTPManager) WithLogger(l Logger) *OTPManager {
	m.logger = normalizeLogger(l)
	return m
}

func (m *OTPManager) WithActivitySink(sink ActivitySink) *OTPManager {
	m.activitySink = normalizeActivitySink(sink)
	return m
}

func (m *OTPManager) WithClock(now func() time.Time) *OTPManager {
	if now != nil {
		m.now = now
	}
	return m
}

// WithRandom replaces the entropy source, tests only.
func (m *OTPManager) WithRandom(r io.Reader) *OTPManager {
	if r != nil {
		m.random = r
	}
	return m
}

// TTL returns how long codes and grants remain valid.
func (m *OTPManager) TTL() time.Duration {
	return m.ttl
}

// Issue creates a code for the account behind identifier, stores it in the
// bag replacing any previous one and mails it to the organizational address.
func (m *OTPManager) Issue(ctx context.Context, bag SessionBag, identifier string) (*Challenge, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, newAddressUnresolvableError(identifier)
	}

	account, err := m.accounts.FindByField(ctx, FieldUsername, identifier)
	if err != nil {
		if IsNotFound(err) {
			return nil, newAddressUnresolvableError(identifier)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve reset address")
	}

	if strings.TrimSpace(account.GSuite) == "" {
		return nil, newAddressUnresolvableError(identifier)
	}

	code, err := m.generateCode()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate code")
	}

	now := m.now()
	challenge := &Challenge{
		AccountID:   account.ID,
		Destination: account.GSuite,
		IssuedAt:    now,
		ExpiresAt:   now.Add(m.ttl),
		Code:        code,
	}

	bag.Set(sessionKeyOTPCode, code)
	bag.Set(sessionKeyOTPAccount, account.ID.String())
	bag.Set(sessionKeyOTPIssuedAt, now.UTC().Format(time.RFC3339Nano))

	subject := "Password reset code"
	body := fmt.Sprintf("Your password reset code is %s. It expires in %d minutes.", code, int(m.ttl.Minutes()))
	if err := m.mailer.Send(ctx, account.GSuite, subject, body); err != nil {
		m.logger.Error("failed to send reset code", "account", account.ID, "error", err)
	}

	recordActivity(ctx, m.activitySink, m.logger, m.now, ActivityEvent{
		EventType: ActivityEventOTPIssued,
		AccountID: account.ID.String(),
	})

	return challenge, nil
}

// Verify consumes the stored challenge and compares it with submitted. A
// matching, unexpired code puts a reset grant in the bag.
func (m *OTPManager) Verify(ctx context.Context, bag SessionBag, submitted string) (uuid.UUID, error) {
	code, hasCode := bag.Get(sessionKeyOTPCode)
	rawID, _ := bag.Get(sessionKeyOTPAccount)
	rawIssued, _ := bag.Get(sessionKeyOTPIssuedAt)

	bag.Delete(sessionKeyOTPCode)
	bag.Delete(sessionKeyOTPAccount)
	bag.Delete(sessionKeyOTPIssuedAt)

	reject := func(why string) (uuid.UUID, error) {
		recordActivity(ctx, m.activitySink, m.logger, m.now, ActivityEvent{
			EventType: ActivityEventOTPRejected,
			AccountID: rawID,
			Metadata:  map[string]any{"reason": why},
		})
		return uuid.Nil, newIncorrectCodeError()
	}

	if !hasCode || code == "" {
		return reject("missing")
	}

	accountID, err := uuid.Parse(rawID)
	if err != nil {
		return reject("corrupt")
	}

	issuedAt, err := time.Parse(time.RFC3339Nano, rawIssued)
	if err != nil || !m.now().Before(issuedAt.Add(m.ttl)) {
		return reject("expired")
	}

	if strings.TrimSpace(submitted) != code {
		return reject("mismatch")
	}

	bag.Set(sessionKeyResetAccount, accountID.String())
	bag.Set(sessionKeyResetGranted, m.now().UTC().Format(time.RFC3339Nano))

	recordActivity(ctx, m.activitySink, m.logger, m.now, ActivityEvent{
		EventType: ActivityEventOTPVerified,
		AccountID: accountID.String(),
	})

	return accountID, nil
}

// ConsumeGrant removes the reset grant from the bag and returns its account.
func (m *OTPManager) ConsumeGrant(bag SessionBag) (uuid.UUID, error) {
	rawID, ok := bag.Get(sessionKeyResetAccount)
	rawAt, _ := bag.Get(sessionKeyResetGranted)
	bag.Delete(sessionKeyResetAccount)
	bag.Delete(sessionKeyResetGranted)

	if !ok {
		return uuid.Nil, newNoResetGrantError()
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		return uuid.Nil, newNoResetGrantError()
	}

	grantedAt, err := time.Parse(time.RFC3339Nano, rawAt)
	if err != nil || !m.now().Before(grantedAt.Add(m.ttl)) {
		return uuid.Nil, newNoResetGrantError()
	}

	return id, nil
}

func (m *OTPManager) generateCode() (string, error) {
	var b strings.Builder
	b.Grow(OTPDigits)
	for range OTPDigits {
		n, err := rand.Int(m.random, otpDigitRange)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('1' + n.Int64()))
	}
	return b.String(), nil
}

// AssembleCode joins the single digit form fields x1..x6 into one code.
func AssembleCode(digits ...string) string {
	var b strings.Builder
	for _, d := range digits {
		b.WriteString(strings.TrimSpace(d))
	}
	return b.String()
}
