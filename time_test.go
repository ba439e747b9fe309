package enrollment_test

import (
	"testing"
	"time"

	enrollment "github.com/emotionlab/go-enrollment"
	"github.com/stretchr/testify/assert"
)

func TestThresholdPeriods(t *testing.T) {
	tests := []struct {
		name      string
		inputTime time.Time
		pattern   string
		within    bool
		expectErr bool
	}{
		{
			name:      "inside a day long cool down",
			inputTime: time.Now().Add(-2 * time.Hour),
			pattern:   "24h",
			within:    true,
		},
		{
			name:      "past a day long cool down",
			inputTime: time.Now().Add(-25 * time.Hour),
			pattern:   "24h",
			within:    false,
		},
		{
			name:      "code issued in the future",
			inputTime: time.Now().Add(time.Hour),
			pattern:   "10m",
			within:    true,
		},
		{
			name:      "invalid pattern",
			inputTime: time.Now(),
			pattern:   "tomorrow",
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			within, err := enrollment.IsWithinThresholdPeriod(tt.inputTime, tt.pattern)
			outside, outErr := enrollment.IsOutsideThresholdPeriod(tt.inputTime, tt.pattern)

			if tt.expectErr {
				assert.Error(t, err)
				assert.Error(t, outErr)
				return
			}

			assert.NoError(t, err)
			assert.NoError(t, outErr)
			assert.Equal(t, tt.within, within)
			assert.Equal(t, !tt.within, outside)
		})
	}
}
