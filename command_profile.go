package enrollment

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// ProfileMessage carries the user editable profile fields.
type ProfileMessage struct {
	AccountID     uuid.UUID `json:"-"`
	FullName      string    `json:"fullname"`
	Semester      string    `json:"semester"`
	PersonalEmail string    `json:"personalemail"`
	GSuite        string    `json:"gsuite"`
	MobileNumber  string    `json:"mobilenumber"`
	Images        []Image   `json:"image"`
	OnResponse    func(account *Account)
}

func (p ProfileMessage) update(region string) (ProfileUpdate, error) {
	update := ProfileUpdate{
		FullName:      p.FullName,
		Semester:      p.Semester,
		PersonalEmail: NormalizeEmail(p.PersonalEmail),
		GSuite:        NormalizeEmail(p.GSuite),
		Images:        p.Images,
	}
	if p.MobileNumber != "" {
		phone, err := NormalizePhone(p.MobileNumber, region)
		if err != nil {
			return ProfileUpdate{}, err
		}
		update.MobileNumber = phone
	}
	return update, nil
}

// ResubmitAccountMessage sends a declined account back to review.
type ResubmitAccountMessage struct {
	ProfileMessage
}

func (e ResubmitAccountMessage) Type() string { return "account.resubmit" }

// UpdateProfileMessage edits an approved account's profile.
type UpdateProfileMessage struct {
	ProfileMessage
}

func (e UpdateProfileMessage) Type() string { return "account.update_profile" }

type ResubmitAccountHandler struct {
	machine     LifecycleMachine
	phoneRegion string
}

func NewResubmitAccountHandler(machine LifecycleMachine, phoneRegion string) *ResubmitAccountHandler {
	return &ResubmitAccountHandler{machine: machine, phoneRegion: phoneRegion}
}

func (h *ResubmitAccountHandler) Execute(ctx context.Context, event ResubmitAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account resubmission",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ResubmitAccountHandler) execute(ctx context.Context, event ResubmitAccountMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	update, err := event.update(h.phoneRegion)
	if err != nil {
		return err
	}

	actor := ActorRef{ID: event.AccountID.String(), Type: "account"}
	account, err := h.machine.Resubmit(ctx, actor, event.AccountID, update)
	if err != nil {
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(account)
	}
	return nil
}

type UpdateProfileHandler struct {
	machine     LifecycleMachine
	phoneRegion string
}

func NewUpdateProfileHandler(machine LifecycleMachine, phoneRegion string) *UpdateProfileHandler {
	return &UpdateProfileHandler{machine: machine, phoneRegion: phoneRegion}
}

func (h *UpdateProfileHandler) Execute(ctx context.Context, event UpdateProfileMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during profile update",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateProfileHandler) execute(ctx context.Context, event UpdateProfileMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	update, err := event.update(h.phoneRegion)
	if err != nil {
		return err
	}

	actor := ActorRef{ID: event.AccountID.String(), Type: "account"}
	account, err := h.machine.UpdateProfile(ctx, actor, event.AccountID, update)
	if err != nil {
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(account)
	}
	return nil
}
