package activitymap_test

import (
	"testing"
	"time"

	enrollment "github.com/emotionlab/go-enrollment"
	"github.com/emotionlab/go-enrollment/activitymap"
)

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := enrollment.ActivityEvent{
		EventType: enrollment.ActivityEventAccountDeclined,
		Actor:     enrollment.ActorRef{ID: "admin-42", Type: "admin"},
		AccountID: "acc-100",
		FromState: enrollment.StatePending,
		ToState:   enrollment.StateDeclined,
		Metadata: map[string]any{
			"reason": "blurry photo",
		},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	if out.ActorID != "admin-42" {
		t.Fatalf("expected actor_id admin-42, got %q", out.ActorID)
	}
	if out.Verb != string(enrollment.ActivityEventAccountDeclined) {
		t.Fatalf("expected verb %q, got %q", enrollment.ActivityEventAccountDeclined, out.Verb)
	}
	if out.ObjectType != "account" {
		t.Fatalf("expected object_type account, got %q", out.ObjectType)
	}
	if out.ObjectID != "acc-100" {
		t.Fatalf("expected object_id acc-100, got %q", out.ObjectID)
	}
	if out.Channel != "enrollment" {
		t.Fatalf("expected channel enrollment, got %q", out.Channel)
	}
	if !out.OccurredAt.Equal(ts) {
		t.Fatalf("expected occurred_at %v, got %v", ts, out.OccurredAt)
	}
	if out.Metadata["reason"] != "blurry photo" {
		t.Fatalf("expected metadata reason, got %#v", out.Metadata["reason"])
	}
	if out.Metadata[activitymap.MetadataKeyActorType] != "admin" {
		t.Fatalf("expected actor_type admin, got %#v", out.Metadata[activitymap.MetadataKeyActorType])
	}
	if out.Metadata[activitymap.MetadataKeyFromState] != "pending" {
		t.Fatalf("expected from_state pending, got %#v", out.Metadata[activitymap.MetadataKeyFromState])
	}
	if out.Metadata[activitymap.MetadataKeyToState] != "declined" {
		t.Fatalf("expected to_state declined, got %#v", out.Metadata[activitymap.MetadataKeyToState])
	}
}

func TestNormalizeSelfServiceUsesAccountAsActor(t *testing.T) {
	t.Parallel()

	out := activitymap.Normalize(enrollment.ActivityEvent{
		EventType: enrollment.ActivityEventOTPIssued,
		AccountID: "acc-7",
	})

	if out.ActorID != "acc-7" {
		t.Fatalf("expected actor_id acc-7, got %q", out.ActorID)
	}
	if out.OccurredAt.IsZero() {
		t.Fatal("expected occurred_at to be stamped")
	}
	if out.Metadata != nil {
		t.Fatalf("expected no metadata, got %#v", out.Metadata)
	}
}

func TestNormalizeOptions(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	out := activitymap.Normalize(enrollment.ActivityEvent{
		EventType: enrollment.ActivityEventPasswordReset,
	},
		activitymap.WithChannel("audit"),
		activitymap.WithObjectType("student"),
		activitymap.WithActorFallback("cron"),
		activitymap.WithClock(func() time.Time { return fixed }),
	)

	if out.ActorID != "cron" {
		t.Fatalf("expected actor_id cron, got %q", out.ActorID)
	}
	if out.Channel != "audit" || out.ObjectType != "student" {
		t.Fatalf("unexpected channel/object type %q/%q", out.Channel, out.ObjectType)
	}
	if !out.OccurredAt.Equal(fixed) {
		t.Fatalf("expected occurred_at %v, got %v", fixed, out.OccurredAt)
	}
}
