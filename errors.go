package enrollment

import (
	"errors"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	TextCodeDuplicateIdentity    = "DUPLICATE_IDENTITY"
	TextCodeInvalidReason        = "INVALID_REASON"
	TextCodeInvalidTransition    = "INVALID_LIFECYCLE_TRANSITION"
	TextCodeIncorrectCode        = "INCORRECT_CODE"
	TextCodeAddressUnresolvable  = "ADDRESS_UNRESOLVABLE"
	TextCodeUnauthorized         = "UNAUTHORIZED"
	TextCodeNotFound             = "NOT_FOUND"
	TextCodeWeakPassword         = "WEAK_PASSWORD"
	TextCodeEmptySample          = "EMPTY_SAMPLE"
	TextCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	TextCodeTooManyLoginAttempts = "TOO_MANY_LOGIN_ATTEMPTS"
	TextCodeNoResetGrant         = "NO_PASSWORD_RESET_GRANT"
)

// ErrInvalidCredentials is returned for unknown usernames and wrong passwords alike.
var ErrInvalidCredentials = goerrors.New("invalid username or password", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrTooManyLoginAttempts is returned while an account is cooling down.
var ErrTooManyLoginAttempts = goerrors.New("too many login attempts, try again later", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyLoginAttempts)

// ErrNoEmptyString is returned when hashing an empty password.
var ErrNoEmptyString = errors.New("password must not be empty")

// ErrMismatchedHashAndPassword is returned by ComparePasswordAndHash.
var ErrMismatchedHashAndPassword = errors.New("password does not match hash")

func newDuplicateIdentityError(field string) *goerrors.Error {
	return goerrors.New(fmt.Sprintf("an account with this %s already exists", field), goerrors.CategoryConflict).
		WithTextCode(TextCodeDuplicateIdentity).
		WithCode(goerrors.CodeConflict).
		WithMetadata(map[string]any{
			"field": field,
		})
}

func newInvalidReasonError(msg string) *goerrors.Error {
	return goerrors.New(msg, goerrors.CategoryValidation).
		WithTextCode(TextCodeInvalidReason).
		WithCode(goerrors.CodeBadRequest)
}

func newInvalidTransitionError(op string, from LifecycleState) *goerrors.Error {
	return goerrors.New(fmt.Sprintf("cannot %s an account in %s state", op, from), goerrors.CategoryConflict).
		WithTextCode(TextCodeInvalidTransition).
		WithCode(goerrors.CodeConflict).
		WithMetadata(map[string]any{
			"operation": op,
			"from":      from,
		})
}

func newIncorrectCodeError() *goerrors.Error {
	return goerrors.New("the code is incorrect or has expired", goerrors.CategoryAuth).
		WithTextCode(TextCodeIncorrectCode).
		WithCode(goerrors.CodeUnauthorized)
}

func newAddressUnresolvableError(identifier string) *goerrors.Error {
	return goerrors.New("no account matches the given identity", goerrors.CategoryNotFound).
		WithTextCode(TextCodeAddressUnresolvable).
		WithCode(goerrors.CodeNotFound).
		WithMetadata(map[string]any{
			"identifier": identifier,
		})
}

func newUnauthorizedError(msg string) *goerrors.Error {
	return goerrors.New(msg, goerrors.CategoryAuthz).
		WithTextCode(TextCodeUnauthorized).
		WithCode(goerrors.CodeForbidden)
}

func newNotFoundError(entity, id string) *goerrors.Error {
	return goerrors.New(entity+" not found", goerrors.CategoryNotFound).
		WithTextCode(TextCodeNotFound).
		WithCode(goerrors.CodeNotFound).
		WithMetadata(map[string]any{
			"id": id,
		})
}

func newWeakPasswordError(msg string) *goerrors.Error {
	return goerrors.New(msg, goerrors.CategoryValidation).
		WithTextCode(TextCodeWeakPassword).
		WithCode(goerrors.CodeBadRequest)
}

func newEmptySampleError() *goerrors.Error {
	return goerrors.New("emotion sample has no recorded duration", goerrors.CategoryValidation).
		WithTextCode(TextCodeEmptySample).
		WithCode(goerrors.CodeBadRequest)
}

func newNoResetGrantError() *goerrors.Error {
	return goerrors.New("password reset was not verified for this session", goerrors.CategoryAuth).
		WithTextCode(TextCodeNoResetGrant).
		WithCode(goerrors.CodeUnauthorized)
}

// TextCode returns the text code of a rich error, or empty.
func TextCode(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode
	}
	return ""
}

func hasTextCode(err error, code string) bool {
	return err != nil && TextCode(err) == code
}

func IsDuplicateIdentity(err error) bool   { return hasTextCode(err, TextCodeDuplicateIdentity) }
func IsInvalidReason(err error) bool       { return hasTextCode(err, TextCodeInvalidReason) }
func IsInvalidTransition(err error) bool   { return hasTextCode(err, TextCodeInvalidTransition) }
func IsIncorrectCode(err error) bool       { return hasTextCode(err, TextCodeIncorrectCode) }
func IsAddressUnresolvable(err error) bool { return hasTextCode(err, TextCodeAddressUnresolvable) }
func IsUnauthorized(err error) bool        { return hasTextCode(err, TextCodeUnauthorized) }
func IsWeakPassword(err error) bool        { return hasTextCode(err, TextCodeWeakPassword) }
func IsEmptySample(err error) bool         { return hasTextCode(err, TextCodeEmptySample) }

// IsNotFound matches our own not found errors and the repository's.
func IsNotFound(err error) bool {
	return hasTextCode(err, TextCodeNotFound) || goerrors.IsNotFound(err)
}

const pgUniqueViolation = "23505"

// uniqueViolationColumn reports the column behind a unique constraint
// failure from either sqlite or postgres.
func uniqueViolationColumn(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return columnFromConstraint(pgErr.ConstraintName), true
	}

	// sqlite: "UNIQUE constraint failed: accounts.personalemail"
	msg := err.Error()
	const marker = "UNIQUE constraint failed: "
	if idx := strings.Index(msg, marker); idx >= 0 {
		target := msg[idx+len(marker):]
		if comma := strings.IndexByte(target, ','); comma >= 0 {
			target = target[:comma]
		}
		if dot := strings.LastIndexByte(target, '.'); dot >= 0 {
			target = target[dot+1:]
		}
		return strings.TrimSpace(target), true
	}

	return "", false
}

// columnFromConstraint maps "accounts_personalemail_key" style names back to
// the column name.
func columnFromConstraint(name string) string {
	for _, column := range uniqueAccountColumns {
		if strings.Contains(name, string(column)) {
			return string(column)
		}
	}
	return name
}
