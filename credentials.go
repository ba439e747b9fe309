package enrollment

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// MaxLoginAttempts is the maximun number of failed attempts an account gets
// in a cool down period
var MaxLoginAttempts = 5

// CoolDownPeriod is the period in which we enforce a cool down
var CoolDownPeriod = "24h"

// DefaultMinPasswordLength applies when the config does not set one.
const DefaultMinPasswordLength = 8

// LoginTracker is the part of the account store the verifier needs.
type LoginTracker interface {
	FindByField(ctx context.Context, field AccountField, value string) (*Account, error)
	TrackAttemptedLogin(ctx context.Context, record *Account) error
	TrackSuccessfulLogin(ctx context.Context, record *Account) error
}

// CredentialVerifier checks a username and password pair.
type CredentialVerifier struct {
	store        LoginTracker
	hasher       PasswordAuthenticator
	logger       Logger
	activitySink ActivitySink
	now          func() time.Time
}

// NewCredentialVerifier will create a new CredentialVerifier
func NewCredentialVerifier(store LoginTracker) *CredentialVerifier {
	return &CredentialVerifier{
		store:        store,
		hasher:       NewPasswordHasher(),
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		now:          time.Now,
	}
}

func (c *CredentialVerifier) WithLogger(l Logger) *CredentialVerifier {
	c.logger = normalizeLogger(l)
	return c
}

func (c *CredentialVerifier) WithActivitySink(sink ActivitySink) *CredentialVerifier {
	c.activitySink = normalizeActivitySink(sink)
	return c
}

func (c *CredentialVerifier) WithHasher(h PasswordAuthenticator) *CredentialVerifier {
	if h != nil {
		c.hasher = h
	}
	return c
}

func (c *CredentialVerifier) WithClock(now func() time.Time) *CredentialVerifier {
	if now != nil {
		c.now = now
	}
	return c
}

// Verify finds the account, compares the password and returns the account.
// Unknown usernames and wrong passwords both yield ErrInvalidCredentials.
// The account's access status is not consulted, the gate does that.
func (c *CredentialVerifier) Verify(ctx context.Context, username, password string) (*Account, error) {
	username = strings.TrimSpace(username)

	account, err := c.store.FindByField(ctx, FieldUsername, username)
	if err != nil {
		if IsNotFound(err) {
			c.loginFailed(ctx, "", username, ErrInvalidCredentials)
			return nil, ErrInvalidCredentials
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account during verification")
	}

	if account.LoginAttemptAt != nil {
		within, err := isWithinThreshold(c.now(), *account.LoginAttemptAt, CoolDownPeriod)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to calculate login attempt cooldown")
		}

		if !within {
			account.LoginAttempts = 0
		}
	}

	if account.LoginAttempts >= MaxLoginAttempts {
		c.loginFailed(ctx, account.ID.String(), username, ErrTooManyLoginAttempts)
		return nil, ErrTooManyLoginAttempts
	}

	if err := c.hasher.ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		if err2 := c.store.TrackAttemptedLogin(ctx, account); err2 != nil {
			return nil, goerrors.Wrap(err2, goerrors.CategoryInternal, "failed to track login attempt")
		}
		c.loginFailed(ctx, account.ID.String(), username, ErrInvalidCredentials)
		return nil, ErrInvalidCredentials
	}

	if err := c.store.TrackSuccessfulLogin(ctx, account); err != nil {
		c.logger.Error("failed to track successful login", "error", err)
	}

	recordActivity(ctx, c.activitySink, c.logger, c.now, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Actor:     ActorRef{ID: account.ID.String(), Type: "account"},
		AccountID: account.ID.String(),
		Metadata:  map[string]any{"username": username},
	})

	return account, nil
}

func (c *CredentialVerifier) loginFailed(ctx context.Context, accountID, username string, err error) {
	recordActivity(ctx, c.activitySink, c.logger, c.now, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		Actor:     ActorRef{Type: "unknown"},
		AccountID: accountID,
		Metadata: map[string]any{
			"username": username,
			"error":    err.Error(),
		},
	})
}

// PasswordSetter replaces a stored credential.
type PasswordSetter interface {
	SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

// PasswordRotator replaces an account's credential in place.
type PasswordRotator struct {
	store        PasswordSetter
	hasher       PasswordAuthenticator
	minLength    int
	logger       Logger
	activitySink ActivitySink
	now          func() time.Time
}

// NewPasswordRotator returns a rotator enforcing minLength (DefaultMinPasswordLength when <= 0).
func NewPasswordRotator(store PasswordSetter, minLength int) *PasswordRotator {
	if minLength <= 0 {
		minLength = DefaultMinPasswordLength
	}
	return &PasswordRotator{
		store:        store,
		hasher:       NewPasswordHasher(),
		minLength:    minLength,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		now:          time.Now,
	}
}

func (p *PasswordRotator) WithLogger(l Logger) *PasswordRotator {
	p.logger = normalizeLogger(l)
	return p
}

func (p *PasswordRotator) WithActivitySink(sink ActivitySink) *PasswordRotator {
	p.activitySink = normalizeActivitySink(sink)
	return p
}

func (p *PasswordRotator) WithHasher(h PasswordAuthenticator) *PasswordRotator {
	if h != nil {
		p.hasher = h
	}
	return p
}

// CheckStrength returns WeakPassword when password cannot be stored.
func (p *PasswordRotator) CheckStrength(password string) error {
	if utf8.RuneCountInString(password) < p.minLength {
		return newWeakPasswordError("password is too short").
			WithMetadata(map[string]any{"min_length": p.minLength})
	}
	if len(password) > MaxPasswordBytes {
		return newWeakPasswordError("password is too long").
			WithMetadata(map[string]any{"max_bytes": MaxPasswordBytes})
	}
	return nil
}

// ResetPassword hashes newPassword and swaps it in with a single update.
func (p *PasswordRotator) ResetPassword(ctx context.Context, id uuid.UUID, newPassword string) error {
	if err := p.CheckStrength(newPassword); err != nil {
		return err
	}

	hash, err := p.hasher.HashPassword(newPassword)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	if err := p.store.SetPassword(ctx, id, hash); err != nil {
		return err
	}

	recordActivity(ctx, p.activitySink, p.logger, p.now, ActivityEvent{
		EventType: ActivityEventPasswordReset,
		Actor:     ActorRef{ID: id.String(), Type: "account"},
		AccountID: id.String(),
	})

	return nil
}
