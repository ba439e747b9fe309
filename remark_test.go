package enrollment_test

import (
	"encoding/json"
	"testing"

	enrollment "github.com/emotionlab/go-enrollment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRemark(t *testing.T) {
	tests := []struct {
		stored string
		kind   enrollment.RemarkKind
		reason string
	}{
		{stored: "!ok", kind: enrollment.RemarkPending},
		{stored: "", kind: enrollment.RemarkPending},
		{stored: "ok", kind: enrollment.RemarkApproved},
		{stored: "OK", kind: enrollment.RemarkDeclined, reason: "OK"},
		{stored: "photo unclear", kind: enrollment.RemarkDeclined, reason: "photo unclear"},
	}

	for _, tt := range tests {
		t.Run(tt.stored, func(t *testing.T) {
			r := enrollment.ParseRemark(tt.stored)
			assert.Equal(t, tt.kind, r.Kind())
			assert.Equal(t, tt.reason, r.Reason())
		})
	}
}

func TestRemarkStorageRoundTrip(t *testing.T) {
	declined, err := enrollment.DeclinedRemark("wrong semester")
	require.NoError(t, err)

	for _, r := range []enrollment.Remark{enrollment.PendingRemark(), enrollment.ApprovedRemark(), declined} {
		v, err := r.Value()
		require.NoError(t, err)

		var scanned enrollment.Remark
		require.NoError(t, scanned.Scan(v))
		assert.Equal(t, r, scanned)

		var fromBytes enrollment.Remark
		require.NoError(t, fromBytes.Scan([]byte(v.(string))))
		assert.Equal(t, r, fromBytes)
	}

	var fromNil enrollment.Remark
	require.NoError(t, fromNil.Scan(nil))
	assert.True(t, fromNil.IsPending())

	assert.Error(t, fromNil.Scan(42))
}

func TestRemarkJSON(t *testing.T) {
	raw, err := json.Marshal(map[string]enrollment.Remark{"remark": enrollment.ApprovedRemark()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"remark":"ok"}`, string(raw))

	var out struct {
		Remark enrollment.Remark `json:"remark"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"remark":"blurry"}`), &out))
	assert.True(t, out.Remark.IsDeclined())
	assert.Equal(t, "blurry", out.Remark.Reason())
}

func TestValidateDeclineReason(t *testing.T) {
	assert.NoError(t, enrollment.ValidateDeclineReason("missing documents"))
	assert.NoError(t, enrollment.ValidateDeclineReason(" ok "), "only exact sentinels are reserved")

	for _, reason := range []string{"", "  \t", "ok", "!ok"} {
		err := enrollment.ValidateDeclineReason(reason)
		require.Error(t, err, "reason %q", reason)
		assert.True(t, enrollment.IsInvalidReason(err))
	}
}

func TestComputeAccessStatus(t *testing.T) {
	declined, err := enrollment.DeclinedRemark("no photo")
	require.NoError(t, err)

	tests := []struct {
		name     string
		verified bool
		active   bool
		remark   enrollment.Remark
		kind     enrollment.AccessStatusKind
	}{
		{"granted", true, true, enrollment.ApprovedRemark(), enrollment.AccessGranted},
		{"pending", false, true, enrollment.PendingRemark(), enrollment.AccessPendingReview},
		{"approved remark but unverified", false, true, enrollment.ApprovedRemark(), enrollment.AccessPendingReview},
		{"declined", false, true, declined, enrollment.AccessDeclined},
		{"deactivated approved", true, false, enrollment.ApprovedRemark(), enrollment.AccessDeactivated},
		{"deactivated declined", false, false, declined, enrollment.AccessDeactivated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := enrollment.ComputeAccessStatus(tt.verified, tt.active, tt.remark)
			assert.Equal(t, tt.kind, status.Kind)
			assert.Equal(t, tt.kind == enrollment.AccessGranted, status.Granted())
			assert.NotEmpty(t, status.Message())
		})
	}

	status := enrollment.ComputeAccessStatus(false, true, declined)
	assert.Equal(t, "no photo", status.Reason)
	assert.Contains(t, status.Message(), "no photo")
}

func TestImageThumbnail(t *testing.T) {
	img := enrollment.Image{URL: "https://res.cloudinary.com/demo/image/upload/v1/students/a.png"}
	assert.Equal(t, "https://res.cloudinary.com/demo/image/upload/w_270,h_270/v1/students/a.png", img.Thumbnail())

	local := enrollment.Image{URL: "/uploads/2026/01/01/a.png"}
	assert.Equal(t, "/uploads/2026/01/01/a.png", local.Thumbnail())
}
