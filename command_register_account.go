package enrollment

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type RegisterAccountMessage struct {
	FullName      string  `json:"fullname"`
	Username      string  `json:"username"`
	Semester      string  `json:"semester"`
	PersonalEmail string  `json:"personalemail"`
	GSuite        string  `json:"gsuite"`
	MobileNumber  string  `json:"mobilenumber"`
	Password      string  `json:"password"`
	Images        []Image `json:"image"`
	OnResponse    func(account *Account)
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

type RegisterAccountHandler struct {
	machine     LifecycleMachine
	rotator     *PasswordRotator
	hasher      PasswordAuthenticator
	phoneRegion string
}

func NewRegisterAccountHandler(machine LifecycleMachine, rotator *PasswordRotator, phoneRegion string) *RegisterAccountHandler {
	return &RegisterAccountHandler{
		machine:     machine,
		rotator:     rotator,
		hasher:      NewPasswordHasher(),
		phoneRegion: phoneRegion,
	}
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := h.rotator.CheckStrength(event.Password); err != nil {
		return err
	}

	account := &Account{
		FullName:      event.FullName,
		Username:      event.Username,
		Semester:      event.Semester,
		PersonalEmail: event.PersonalEmail,
		GSuite:        event.GSuite,
		MobileNumber:  event.MobileNumber,
		Images:        event.Images,
	}

	if err := normalizeProfile(account, h.phoneRegion); err != nil {
		return err
	}

	hash, err := h.hasher.HashPassword(event.Password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}
	account.PasswordHash = hash

	account, err = h.machine.Register(ctx, ActorRef{Type: "account"}, account)
	if err != nil {
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(account)
	}

	return nil
}
