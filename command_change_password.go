package enrollment

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// ChangePasswordMessage rotates the credential of a signed in account.
type ChangePasswordMessage struct {
	AccountID uuid.UUID `json:"-"`
	Password  string    `json:"password"`
}

func (p ChangePasswordMessage) Type() string { return "account.password.change" }

type ChangePasswordHandler struct {
	rotator *PasswordRotator
}

func NewChangePasswordHandler(rotator *PasswordRotator) *ChangePasswordHandler {
	return &ChangePasswordHandler{rotator: rotator}
}

func (h *ChangePasswordHandler) Execute(ctx context.Context, event ChangePasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password change",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ChangePasswordHandler) execute(ctx context.Context, event ChangePasswordMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.AccountID == uuid.Nil {
		return newUnauthorizedError("password change requires a signed in account")
	}

	return h.rotator.ResetPassword(ctx, event.AccountID, event.Password)
}
