package enrollment_test

import (
	"testing"

	enrollment "github.com/emotionlab/go-enrollment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "asha@mail.test", enrollment.NormalizeEmail("  Asha@Mail.TEST\t"))
	assert.Equal(t, "", enrollment.NormalizeEmail("   "))
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		input  string
		region string
		want   string
	}{
		{"9876543210", "IN", "+919876543210"},
		{"098765 43210", "IN", "+919876543210"},
		{"+91 98765-43210", "US", "+919876543210"},
		{" 9876543210 ", "", "+919876543210"},
		{"(650) 253-0000", "us", "+16502530000"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := enrollment.NormalizePhone(tt.input, tt.region)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "12", "not a number", "+91 12345"} {
		_, err := enrollment.NormalizePhone(bad, "IN")
		assert.Error(t, err, bad)
	}
}
