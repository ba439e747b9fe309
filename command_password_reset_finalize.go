package enrollment

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type FinalizePasswordResetMessage struct {
	Password string     `json:"password" example:"some_secret_word" doc:"New password"`
	Session  SessionBag `json:"-"`
}

func (p FinalizePasswordResetMessage) Type() string { return "account.password_reset.finalize" }

type FinalizePasswordResetHandler struct {
	otp     *OTPManager
	rotator *PasswordRotator
	logger  Logger
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(otp *OTPManager, rotator *PasswordRotator) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		otp:     otp,
		rotator: rotator,
		logger:  defLogger{},
	}
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.Session == nil {
		return newNoResetGrantError()
	}

	// A weak password keeps the grant so the user can retry.
	if err := h.rotator.CheckStrength(event.Password); err != nil {
		return err
	}

	id, err := h.otp.ConsumeGrant(event.Session)
	if err != nil {
		return err
	}

	if err := h.rotator.ResetPassword(ctx, id, event.Password); err != nil {
		h.logger.Error("password reset failed", "account", id, "error", err)
		return passRichError(err, "failed to finalize password reset")
	}

	return nil
}
