package enrollment

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// ReviewAction is an admin decision on an account.
type ReviewAction string

const (
	ReviewApprove    ReviewAction = "approve"
	ReviewDecline    ReviewAction = "decline"
	ReviewActivate   ReviewAction = "activate"
	ReviewDeactivate ReviewAction = "deactivate"
)

type ReviewAccountMessage struct {
	Actor      ActorRef
	AccountID  uuid.UUID
	Action     ReviewAction
	Reason     string `json:"reason"`
	OnResponse func(account *Account)
}

func (e ReviewAccountMessage) Type() string { return "account.review" }

type ReviewAccountHandler struct {
	machine LifecycleMachine
}

func NewReviewAccountHandler(machine LifecycleMachine) *ReviewAccountHandler {
	return &ReviewAccountHandler{machine: machine}
}

func (h *ReviewAccountHandler) Execute(ctx context.Context, event ReviewAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account review",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ReviewAccountHandler) execute(ctx context.Context, event ReviewAccountMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var (
		account *Account
		err     error
	)

	switch event.Action {
	case ReviewApprove:
		account, err = h.machine.Approve(ctx, event.Actor, event.AccountID)
	case ReviewDecline:
		account, err = h.machine.Decline(ctx, event.Actor, event.AccountID, event.Reason)
	case ReviewActivate:
		account, err = h.machine.Activate(ctx, event.Actor, event.AccountID)
	case ReviewDeactivate:
		account, err = h.machine.Deactivate(ctx, event.Actor, event.AccountID)
	default:
		return goerrors.New("unknown review action", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"action": event.Action})
	}

	if err != nil {
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(account)
	}
	return nil
}
