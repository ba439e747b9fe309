package enrollment

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// RemarkPendingSentinel is the stored value for accounts waiting on review.
	RemarkPendingSentinel = "!ok"
	// RemarkApprovedSentinel is the stored value for approved accounts.
	RemarkApprovedSentinel = "ok"
)

// RemarkKind enumerates the review outcomes.
type RemarkKind int

const (
	RemarkPending RemarkKind = iota
	RemarkApproved
	RemarkDeclined
)

func (k RemarkKind) String() string {
	switch k {
	case RemarkApproved:
		return "approved"
	case RemarkDeclined:
		return "declined"
	default:
		return "pending"
	}
}

// Remark is the admin review outcome for an account. The zero value is pending.
type Remark struct {
	kind   RemarkKind
	reason string
}

// PendingRemark returns the remark assigned at registration and resubmission.
func PendingRemark() Remark {
	return Remark{kind: RemarkPending}
}

// ApprovedRemark returns the remark assigned on approval.
func ApprovedRemark() Remark {
	return Remark{kind: RemarkApproved}
}

// DeclinedRemark builds a decline carrying the admin supplied reason.
// Blank reasons and reasons equal to either sentinel fail with InvalidReason.
func DeclinedRemark(reason string) (Remark, error) {
	if err := ValidateDeclineReason(reason); err != nil {
		return Remark{}, err
	}
	return Remark{kind: RemarkDeclined, reason: reason}, nil
}

// ValidateDeclineReason checks that reason can be stored without being read
// back as a different review state.
func ValidateDeclineReason(reason string) error {
	trimmed := strings.TrimSpace(reason)
	switch {
	case trimmed == "":
		return newInvalidReasonError("decline reason is required")
	case reason == RemarkPendingSentinel, reason == RemarkApprovedSentinel:
		return newInvalidReasonError(fmt.Sprintf("decline reason %q is reserved", reason))
	}
	return nil
}

// ParseRemark decodes a stored remark value. Any value other than the two
// sentinels is a decline reason. An empty column reads as pending, which is
// the column default.
func ParseRemark(value string) Remark {
	switch value {
	case RemarkPendingSentinel, "":
		return PendingRemark()
	case RemarkApprovedSentinel:
		return ApprovedRemark()
	default:
		return Remark{kind: RemarkDeclined, reason: value}
	}
}

func (r Remark) Kind() RemarkKind { return r.kind }

// Reason returns the decline reason, empty unless the remark is a decline.
func (r Remark) Reason() string { return r.reason }

func (r Remark) IsPending() bool  { return r.kind == RemarkPending }
func (r Remark) IsApproved() bool { return r.kind == RemarkApproved }
func (r Remark) IsDeclined() bool { return r.kind == RemarkDeclined }

// String returns the storage form of the remark.
func (r Remark) String() string {
	switch r.kind {
	case RemarkApproved:
		return RemarkApprovedSentinel
	case RemarkDeclined:
		return r.reason
	default:
		return RemarkPendingSentinel
	}
}

// Value implements driver.Valuer.
func (r Remark) Value() (driver.Value, error) {
	return r.String(), nil
}

// Scan implements sql.Scanner.
func (r *Remark) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*r = PendingRemark()
	case string:
		*r = ParseRemark(v)
	case []byte:
		*r = ParseRemark(string(v))
	default:
		return fmt.Errorf("remark: unsupported scan type %T", src)
	}
	return nil
}

func (r Remark) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Remark) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = ParseRemark(s)
	return nil
}
