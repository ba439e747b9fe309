package enrollment

import (
	"context"
	"slices"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TransitionOp names a lifecycle operation.
type TransitionOp string

const (
	OpRegister   TransitionOp = "register"
	OpApprove    TransitionOp = "approve"
	OpDecline    TransitionOp = "decline"
	OpResubmit   TransitionOp = "resubmit"
	OpActivate   TransitionOp = "activate"
	OpDeactivate TransitionOp = "deactivate"
)

// TransitionMetadata captures extra context for a transition.
type TransitionMetadata struct {
	Reason   string
	Metadata map[string]any
}

// TransitionContext is passed into hooks for additional processing.
type TransitionContext struct {
	Actor     ActorRef
	Operation TransitionOp
	Account   *Account
	From      LifecycleState
	To        LifecycleState
	Meta      TransitionMetadata
}

// TransitionHook is executed before or after a transition.
type TransitionHook func(ctx context.Context, tc TransitionContext) error

// TransitionHookPhase identifies whether a hook ran before or after persistence.
type TransitionHookPhase string

const (
	HookPhaseBefore TransitionHookPhase = "before_transition"
	HookPhaseAfter  TransitionHookPhase = "after_transition"
)

// HookErrorHandler handles errors surfaced by transition hooks.
type HookErrorHandler func(ctx context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error

// TransitionOption customizes a single transition.
type TransitionOption func(*transitionOptions)

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*lifecycleMachine)

// ProfileUpdate carries the fields a user may change on resubmission or
// profile edit. Empty strings keep the stored value, a nil Images slice keeps
// the stored images.
type ProfileUpdate struct {
	FullName      string
	Semester      string
	PersonalEmail string
	GSuite        string
	MobileNumber  string
	Images        []Image
}

func (p ProfileUpdate) applyTo(acc *Account) {
	if p.FullName != "" {
		acc.FullName = p.FullName
	}
	if p.Semester != "" {
		acc.Semester = p.Semester
	}
	if p.PersonalEmail != "" {
		acc.PersonalEmail = p.PersonalEmail
	}
	if p.GSuite != "" {
		acc.GSuite = p.GSuite
	}
	if p.MobileNumber != "" {
		acc.MobileNumber = p.MobileNumber
	}
	if len(p.Images) > 0 {
		acc.Images = slices.Clone(p.Images)
	}
}

// LifecycleMachine owns every legal change to verified, active and remark.
type LifecycleMachine interface {
	Register(ctx context.Context, actor ActorRef, account *Account) (*Account, error)
	Approve(ctx context.Context, actor ActorRef, id uuid.UUID, opts ...TransitionOption) (*Account, error)
	Decline(ctx context.Context, actor ActorRef, id uuid.UUID, reason string, opts ...TransitionOption) (*Account, error)
	Resubmit(ctx context.Context, actor ActorRef, id uuid.UUID, profile ProfileUpdate, opts ...TransitionOption) (*Account, error)
	UpdateProfile(ctx context.Context, actor ActorRef, id uuid.UUID, profile ProfileUpdate) (*Account, error)
	Activate(ctx context.Context, actor ActorRef, id uuid.UUID, opts ...TransitionOption) (*Account, error)
	Deactivate(ctx context.Context, actor ActorRef, id uuid.UUID, opts ...TransitionOption) (*Account, error)
	PendingCount(ctx context.Context) (int, error)
}

// WithStateMachineClock injects a custom clock (useful for tests).
func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *lifecycleMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineActivitySink sets the ActivitySink used to publish lifecycle events.
func WithStateMachineActivitySink(sink ActivitySink) StateMachineOption {
	return func(sm *lifecycleMachine) {
		sm.activitySink = normalizeActivitySink(sink)
	}
}

// WithStateMachineHookErrorHandler overrides how hook failures are propagated.
func WithStateMachineHookErrorHandler(handler HookErrorHandler) StateMachineOption {
	return func(sm *lifecycleMachine) {
		if handler != nil {
			sm.hookErrorHandler = handler
		}
	}
}

// WithStateMachineLogger overrides the logger used for sink failures.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *lifecycleMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// WithStateMachineHooks registers hooks that run on every transition.
func WithStateMachineHooks(before, after TransitionHook) StateMachineOption {
	return func(sm *lifecycleMachine) {
		if before != nil {
			sm.beforeHooks = append(sm.beforeHooks, before)
		}
		if after != nil {
			sm.afterHooks = append(sm.afterHooks, after)
		}
	}
}

// WithTransitionReason sets the human-readable reason for the transition.
func WithTransitionReason(reason string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.metadata.Reason = reason
	}
}

// WithTransitionMetadata merges metadata into the transition context.
func WithTransitionMetadata(metadata map[string]any) TransitionOption {
	return func(opts *transitionOptions) {
		if len(metadata) == 0 {
			return
		}
		if opts.metadata.Metadata == nil {
			opts.metadata.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			opts.metadata.Metadata[k] = v
		}
	}
}

// WithForceTransition bypasses the source state check (use sparingly).
func WithForceTransition() TransitionOption {
	return func(opts *transitionOptions) {
		opts.force = true
	}
}

// WithBeforeTransitionHook adds a hook executed before the update.
func WithBeforeTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.beforeHooks = append(opts.beforeHooks, h)
		}
	}
}

// WithAfterTransitionHook adds a hook executed after the update is committed.
func WithAfterTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.afterHooks = append(opts.afterHooks, h)
		}
	}
}

// NewLifecycleMachine returns the default implementation backed by the repository manager.
func NewLifecycleMachine(repo RepositoryManager, opts ...StateMachineOption) LifecycleMachine {
	sm := &lifecycleMachine{
		repo:         repo,
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
		hookErrorHandler: func(_ context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error {
			return goerrors.Wrap(err, goerrors.CategoryOperation, string(phase)+" hook failed").
				WithMetadata(map[string]any{
					"operation": tc.Operation,
					"from":      tc.From,
					"to":        tc.To,
				})
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

type lifecycleMachine struct {
	repo             RepositoryManager
	now              func() time.Time
	activitySink     ActivitySink
	logger           Logger
	hookErrorHandler HookErrorHandler
	beforeHooks      []TransitionHook
	afterHooks       []TransitionHook
}

type transitionOptions struct {
	metadata    TransitionMetadata
	force       bool
	beforeHooks []TransitionHook
	afterHooks  []TransitionHook
}

func (o *transitionOptions) cloneMetadata() TransitionMetadata {
	var cloned map[string]any
	if len(o.metadata.Metadata) > 0 {
		cloned = make(map[string]any, len(o.metadata.Metadata))
		for k, v := range o.metadata.Metadata {
			cloned[k] = v
		}
	}

	return TransitionMetadata{
		Reason:   o.metadata.Reason,
		Metadata: cloned,
	}
}

// transitionSpec describes one lifecycle operation.
type transitionSpec struct {
	op      TransitionOp
	event   ActivityEventType
	from    []LifecycleState
	columns []string
	// done reports that the account already is where the operation leads.
	done  func(acc *Account) bool
	apply func(ctx context.Context, tx bun.IDB, acc *Account) error
}

func (sm *lifecycleMachine) Register(ctx context.Context, actor ActorRef, account *Account) (*Account, error) {
	if account == nil {
		return nil, goerrors.New("account is required", goerrors.CategoryBadInput)
	}

	account.Verified = false
	account.Active = true
	account.Remark = PendingRemark()
	account.EmotionCount = 0

	tc := TransitionContext{
		Actor:     actor,
		Operation: OpRegister,
		Account:   account,
		To:        StatePending,
	}

	if err := sm.runHooks(ctx, sm.beforeHooks, tc, HookPhaseBefore); err != nil {
		return nil, err
	}

	err := sm.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := ensureUniqueIdentityTx(ctx, tx, sm.repo.Accounts(), account, uuid.Nil); err != nil {
			return err
		}
		created, err := sm.repo.Accounts().CreateTx(ctx, tx, account)
		if err != nil {
			return err
		}
		account = created
		return nil
	})
	if err != nil {
		return nil, passRichError(err, "account registration failed")
	}

	tc.Account = account
	if err := sm.runHooks(ctx, sm.afterHooks, tc, HookPhaseAfter); err != nil {
		return nil, err
	}

	sm.record(ctx, ActivityEventAccountRegistered, tc)

	return account, nil
}

func (sm *lifecycleMachine) Approve(ctx context.Context, actor ActorRef, id uuid.UUID, opts ...TransitionOption) (*Account, error) {
	return sm.transition(ctx, actor, id, transitionSpec{
		op:      OpApprove,
		event:   ActivityEventAccountApproved,
		from:    []LifecycleState{StatePending, StateDeclined},
		columns: reviewColumns,
		done: func(acc *Account) bool {
			return acc.State() == StateApproved
		},
		apply: func(_ context.Context, _ bun.IDB, acc *Account) error {
			acc.Verified = true
			acc.Remark = ApprovedRemark()
			return nil
		},
	}, opts...)
}

func (sm *lifecycleMachine) Decline(ctx context.Context, actor ActorRef, id uuid.UUID, reason string, opts ...TransitionOption) (*Account, error) {
	remark, err := DeclinedRemark(reason)
	if err != nil {
		return nil, err
	}

	opts = append([]TransitionOption{WithTransitionReason(reason)}, opts...)

	return sm.transition(ctx, actor, id, transitionSpec{
		op:      OpDecline,
		event:   ActivityEventAccountDeclined,
		from:    []LifecycleState{StatePending},
		columns: reviewColumns,
		apply: func(_ context.Context, _ bun.IDB, acc *Account) error {
			acc.Verified = false
			acc.Remark = remark
			return nil
		},
	}, opts...)
}

func (sm *lifecycleMachine) Resubmit(ctx context.Context, actor ActorRef, id uuid.UUID, profile ProfileUpdate, opts ...TransitionOption) (*Account, error) {
	return sm.transition(ctx, actor, id, transitionSpec{
		op:      OpResubmit,
		event:   ActivityEventAccountResubmitted,
		from:    []LifecycleState{StateDeclined},
		columns: append(slices.Clone(profileColumns), "verified", "remark"),
		apply: func(ctx context.Context, tx bun.IDB, acc *Account) error {
			profile.applyTo(acc)
			acc.Verified = false
			acc.Remark = PendingRemark()
			return ensureUniqueIdentityTx(ctx, tx, sm.repo.Accounts(), acc, acc.ID)
		},
	}, opts...)
}

// UpdateProfile edits profile fields without touching the review state.
func (sm *lifecycleMachine) UpdateProfile(ctx context.Context, actor ActorRef, id uuid.UUID, profile ProfileUpdate) (*Account, error) {
	var account *Account
	err := sm.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		acc, err := sm.repo.Accounts().FindByIDTx(ctx, tx, id)
		if err != nil {
			return err
		}
		profile.applyTo(acc)
		if err := ensureUniqueIdentityTx(ctx, tx, sm.repo.Accounts(), acc, acc.ID); err != nil {
			return err
		}
		ok, err := sm.repo.Accounts().UpdateColumnsTx(ctx, tx, acc, profileColumns)
		if err != nil {
			return err
		}
		if !ok {
			return newNotFoundError("account", id.String())
		}
		account = acc
		return nil
	})
	if err != nil {
		return nil, passRichError(err, "profile update failed")
	}
	return account, nil
}

func (sm *lifecycleMachine) Activate(ctx context.Context, actor ActorRef, id uuid.UUID, opts ...TransitionOption) (*Account, error) {
	return sm.transition(ctx, actor, id, transitionSpec{
		op:      OpActivate,
		event:   ActivityEventAccountActivated,
		columns: activeColumns,
		done: func(acc *Account) bool {
			return acc.Active
		},
		apply: func(_ context.Context, _ bun.IDB, acc *Account) error {
			acc.Active = true
			return nil
		},
	}, opts...)
}

func (sm *lifecycleMachine) Deactivate(ctx context.Context, actor ActorRef, id uuid.UUID, opts ...TransitionOption) (*Account, error) {
	return sm.transition(ctx, actor, id, transitionSpec{
		op:      OpDeactivate,
		event:   ActivityEventAccountDeactivated,
		columns: activeColumns,
		done: func(acc *Account) bool {
			return !acc.Active
		},
		apply: func(_ context.Context, _ bun.IDB, acc *Account) error {
			acc.Active = false
			return nil
		},
	}, opts...)
}

func (sm *lifecycleMachine) PendingCount(ctx context.Context) (int, error) {
	return sm.repo.Accounts().CountPending(ctx)
}

func (sm *lifecycleMachine) transition(ctx context.Context, actor ActorRef, id uuid.UUID, spec transitionSpec, opts ...TransitionOption) (*Account, error) {
	options := sm.buildTransitionOptions(opts...)

	var (
		result  *Account
		changed bool
		tc      TransitionContext
	)

	err := sm.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		current, err := sm.repo.Accounts().FindByIDTx(ctx, tx, id)
		if err != nil {
			return err
		}

		if spec.done != nil && spec.done(current) {
			result = current
			return nil
		}

		from := current.State()
		if !options.force && len(spec.from) > 0 && !slices.Contains(spec.from, from) {
			return newInvalidTransitionError(string(spec.op), from)
		}

		next := *current
		if err := spec.apply(ctx, tx, &next); err != nil {
			return err
		}

		tc = TransitionContext{
			Actor:     actor,
			Operation: spec.op,
			Account:   current,
			From:      from,
			To:        next.State(),
			Meta:      options.cloneMetadata(),
		}

		hooks := append(slices.Clone(sm.beforeHooks), options.beforeHooks...)
		if err := sm.runHooks(ctx, hooks, tc, HookPhaseBefore); err != nil {
			return err
		}

		guard := spec.from
		if options.force {
			guard = nil
		}

		ok, err := sm.repo.Accounts().UpdateColumnsTx(ctx, tx, &next, spec.columns, guard...)
		if err != nil {
			return err
		}

		if !ok {
			// Lost a race: re-read and decide from the committed state.
			latest, err := sm.repo.Accounts().FindByIDTx(ctx, tx, id)
			if err != nil {
				return err
			}
			if spec.done != nil && spec.done(latest) {
				result = latest
				return nil
			}
			return newInvalidTransitionError(string(spec.op), latest.State())
		}

		result = &next
		changed = true
		return nil
	})
	if err != nil {
		return nil, passRichError(err, "lifecycle transition failed")
	}

	if !changed {
		return result, nil
	}

	tc.Account = result
	hooks := append(slices.Clone(sm.afterHooks), options.afterHooks...)
	if err := sm.runHooks(ctx, hooks, tc, HookPhaseAfter); err != nil {
		return nil, err
	}

	sm.record(ctx, spec.event, tc)

	return result, nil
}

func (sm *lifecycleMachine) runHooks(ctx context.Context, hooks []TransitionHook, data TransitionContext, phase TransitionHookPhase) error {
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, data); err != nil {
			if sm.hookErrorHandler == nil {
				return err
			}
			return sm.hookErrorHandler(ctx, phase, err, data)
		}
	}
	return nil
}

func (sm *lifecycleMachine) buildTransitionOptions(opts ...TransitionOption) *transitionOptions {
	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}
	return options
}

func (sm *lifecycleMachine) record(ctx context.Context, eventType ActivityEventType, tc TransitionContext) {
	event := ActivityEvent{
		EventType: eventType,
		Actor:     tc.Actor,
		FromState: tc.From,
		ToState:   tc.To,
		Metadata:  sm.transitionMetadata(tc),
	}
	if tc.Account != nil {
		event.AccountID = tc.Account.ID.String()
	}
	recordActivity(ctx, sm.activitySink, sm.logger, sm.now, event)
}

func (sm *lifecycleMachine) transitionMetadata(tc TransitionContext) map[string]any {
	result := map[string]any{
		"operation": tc.Operation,
	}
	if tc.Account != nil {
		result["active"] = tc.Account.Active
	}
	if tc.Meta.Reason != "" {
		result["reason"] = tc.Meta.Reason
	}
	for k, v := range tc.Meta.Metadata {
		result[k] = v
	}
	return result
}

// ensureUniqueIdentityTx fails with DuplicateIdentity when another account
// holds any of the unique fields of account. exclude skips the account itself.
func ensureUniqueIdentityTx(ctx context.Context, tx bun.IDB, accounts Accounts, account *Account, exclude uuid.UUID) error {
	values := map[AccountField]string{
		FieldUsername:      account.Username,
		FieldPersonalEmail: account.PersonalEmail,
		FieldGSuite:        account.GSuite,
		FieldMobileNumber:  account.MobileNumber,
	}

	for _, field := range uniqueAccountColumns {
		value := strings.TrimSpace(values[field])
		if value == "" {
			continue
		}

		existing, err := accounts.FindByFieldTx(ctx, tx, field, value)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return err
		}

		if existing.ID != exclude {
			return newDuplicateIdentityError(field.Label())
		}
	}

	return nil
}

// passRichError keeps rich errors raised inside a transaction intact.
func passRichError(err error, msg string) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}
