package enrollment

// LifecycleState is the review state of an account.
type LifecycleState string

const (
	StatePending  LifecycleState = "pending"
	StateDeclined LifecycleState = "declined"
	StateApproved LifecycleState = "approved"
)

func lifecycleStateOf(verified bool, remark Remark) LifecycleState {
	switch {
	case remark.IsDeclined():
		return StateDeclined
	case verified && remark.IsApproved():
		return StateApproved
	default:
		return StatePending
	}
}

// AccessStatusKind enumerates the access gate classifications.
type AccessStatusKind string

const (
	AccessGranted       AccessStatusKind = "granted"
	AccessPendingReview AccessStatusKind = "pending_review"
	AccessDeclined      AccessStatusKind = "declined_awaiting_resubmission"
	AccessDeactivated   AccessStatusKind = "deactivated"
)

// AccessStatus is the classification of an account for VerifiedAndActive checks.
// Reason is only set for AccessDeclined.
type AccessStatus struct {
	Kind   AccessStatusKind `json:"kind"`
	Reason string           `json:"reason,omitempty"`
}

func (s AccessStatus) Granted() bool { return s.Kind == AccessGranted }

// Message is the user facing explanation shown on the approval page.
func (s AccessStatus) Message() string {
	switch s.Kind {
	case AccessGranted:
		return "Your account has been approved."
	case AccessPendingReview:
		return "Your approval request is pending. Please wait for the admin to review it."
	case AccessDeactivated:
		return "Your account has been deactivated. Please contact the admin."
	default:
		return "Your approval request was declined: " + s.Reason
	}
}

// ComputeAccessStatus classifies an account from its lifecycle fields.
// Deactivation overrides everything else. An approved remark that is not yet
// verified is still treated as under review.
func ComputeAccessStatus(verified, active bool, remark Remark) AccessStatus {
	switch {
	case !active:
		return AccessStatus{Kind: AccessDeactivated}
	case verified && remark.IsApproved():
		return AccessStatus{Kind: AccessGranted}
	case remark.IsPending(), remark.IsApproved():
		return AccessStatus{Kind: AccessPendingReview}
	default:
		return AccessStatus{Kind: AccessDeclined, Reason: remark.Reason()}
	}
}
