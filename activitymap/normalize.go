package activitymap

import (
	"maps"
	"strings"
	"time"

	enrollment "github.com/emotionlab/go-enrollment"
)

const (
	MetadataKeyActorType = "actor_type"
	MetadataKeyFromState = "from_state"
	MetadataKeyToState   = "to_state"
)

const (
	defaultChannel    = "enrollment"
	defaultObjectType = "account"
	defaultActorID    = "system"
)

// Record is the flat shape published to downstream consumers.
type Record struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type Option func(*options)

type options struct {
	channel       string
	objectType    string
	actorFallback string
	now           func() time.Time
}

// Normalize flattens an activity event. Actions taken by an account on
// itself carry no actor id, so the account id stands in for it.
func Normalize(event enrollment.ActivityEvent, opts ...Option) Record {
	o := options{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = o.now()
	}

	return Record{
		ActorID: firstNonEmpty(
			strings.TrimSpace(event.Actor.ID),
			strings.TrimSpace(event.AccountID),
			o.actorFallback,
		),
		Verb:       string(event.EventType),
		ObjectType: o.objectType,
		ObjectID:   strings.TrimSpace(event.AccountID),
		Channel:    o.channel,
		Metadata:   metadataOf(event),
		OccurredAt: occurredAt.UTC(),
	}
}

func WithChannel(channel string) Option {
	return func(o *options) {
		o.channel = strings.TrimSpace(channel)
	}
}

func WithObjectType(objectType string) Option {
	return func(o *options) {
		o.objectType = strings.TrimSpace(objectType)
	}
}

// WithActorFallback sets the actor id used when neither actor nor account is known.
func WithActorFallback(actorID string) Option {
	return func(o *options) {
		if actorID = strings.TrimSpace(actorID); actorID != "" {
			o.actorFallback = actorID
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func metadataOf(event enrollment.ActivityEvent) map[string]any {
	var md map[string]any
	if len(event.Metadata) > 0 {
		md = maps.Clone(event.Metadata)
	}

	set := func(key string, value string) {
		if value == "" {
			return
		}
		if md == nil {
			md = map[string]any{}
		}
		if _, exists := md[key]; !exists {
			md[key] = value
		}
	}

	set(MetadataKeyActorType, strings.TrimSpace(event.Actor.Type))
	set(MetadataKeyFromState, string(event.FromState))
	set(MetadataKeyToState, string(event.ToState))

	return md
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
