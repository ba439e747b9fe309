package enrollment

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventAccountRegistered   ActivityEventType = "account.registered"
	ActivityEventAccountApproved     ActivityEventType = "account.approved"
	ActivityEventAccountDeclined     ActivityEventType = "account.declined"
	ActivityEventAccountResubmitted  ActivityEventType = "account.resubmitted"
	ActivityEventAccountActivated    ActivityEventType = "account.activated"
	ActivityEventAccountDeactivated  ActivityEventType = "account.deactivated"
	ActivityEventLoginSuccess        ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure        ActivityEventType = "auth.login.failure"
	ActivityEventOTPIssued           ActivityEventType = "auth.otp.issued"
	ActivityEventOTPRejected         ActivityEventType = "auth.otp.rejected"
	ActivityEventOTPVerified         ActivityEventType = "auth.otp.verified"
	ActivityEventPasswordReset       ActivityEventType = "auth.password.reset"
)

// ActorRef identifies who/what triggered an action.
type ActorRef struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type,omitempty"`
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType `json:"event_type"`
	Actor      ActorRef          `json:"actor"`
	AccountID  string            `json:"account_id,omitempty"`
	FromState  LifecycleState    `json:"from_state,omitempty"`
	ToState    LifecycleState    `json:"to_state,omitempty"`
	Metadata   map[string]any    `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// NewLoggerActivitySink writes every event to the logger at info level.
func NewLoggerActivitySink(logger Logger) ActivitySink {
	logger = normalizeLogger(logger)
	return ActivitySinkFunc(func(_ context.Context, event ActivityEvent) error {
		logger.Info("activity",
			"event", event.EventType,
			"actor", event.Actor.ID,
			"account", event.AccountID,
			"from", event.FromState,
			"to", event.ToState,
		)
		return nil
	})
}

// MultiActivitySink fans an event out to every sink and returns the first error.
func MultiActivitySink(sinks ...ActivitySink) ActivitySink {
	return ActivitySinkFunc(func(ctx context.Context, event ActivityEvent) error {
		var first error
		for _, s := range sinks {
			if s == nil {
				continue
			}
			if err := s.Record(ctx, event); err != nil && first == nil {
				first = err
			}
		}
		return first
	})
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// recordActivity stamps and publishes an event. Sink failures are logged only.
func recordActivity(ctx context.Context, sink ActivitySink, logger Logger, now func() time.Time, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}

	if event.OccurredAt.IsZero() {
		if now == nil {
			now = time.Now
		}
		event.OccurredAt = now()
	}

	if err := normalizeActivitySink(sink).Record(ctx, event); err != nil {
		normalizeLogger(logger).Warn("activity sink error", "event", event.EventType, "error", err)
	}
}
