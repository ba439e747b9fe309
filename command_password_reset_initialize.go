package enrollment

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type InitializePasswordResetMessage struct {
	Username   string     `json:"username" example:"1RV21CS001" doc:"Enrollment number"`
	Session    SessionBag `json:"-"`
	OnResponse func(challenge *Challenge)
}

func (p InitializePasswordResetMessage) Type() string { return "account.password_reset.initialize" }

type InitializePasswordResetHandler struct {
	otp *OTPManager
}

func NewInitializePasswordResetHandler(otp *OTPManager) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{otp: otp}
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.Session == nil {
		return goerrors.New("password reset requires a session", goerrors.CategoryBadInput)
	}

	challenge, err := h.otp.Issue(ctx, event.Session, event.Username)
	if err != nil {
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(challenge)
	}
	return nil
}
