package enrollment

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

type VerifyPasswordResetMessage struct {
	Code       string     `json:"code" example:"482915" doc:"Six digit reset code"`
	Session    SessionBag `json:"-"`
	OnResponse func(accountID uuid.UUID)
}

func (p VerifyPasswordResetMessage) Type() string { return "account.password_reset.verify" }

type VerifyPasswordResetHandler struct {
	otp *OTPManager
}

func NewVerifyPasswordResetHandler(otp *OTPManager) *VerifyPasswordResetHandler {
	return &VerifyPasswordResetHandler{otp: otp}
}

func (h *VerifyPasswordResetHandler) Execute(ctx context.Context, event VerifyPasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyPasswordResetHandler) execute(ctx context.Context, event VerifyPasswordResetMessage) error {
	if event.Session == nil {
		return newIncorrectCodeError()
	}

	id, err := h.otp.Verify(ctx, event.Session, event.Code)
	if err != nil {
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(id)
	}
	return nil
}
