package enrollment

import (
	"context"

	"github.com/google/uuid"
)

// EmotionLabels is the display order of chart series.
var EmotionLabels = []string{"Happy", "Neutral", "Sad", "Angry", "Fearful", "Disgusted", "Surprised"}

// ChartSeries is the numeric data behind an emotion chart. Values are in
// seconds, the client reports milliseconds.
type ChartSeries struct {
	SampleID  uuid.UUID `json:"sample_id"`
	Labels    []string  `json:"labels"`
	Values    []float64 `json:"values"`
	Total     float64   `json:"total"`
	CreatedAt string    `json:"created_at,omitempty"`
}

// NewChartSeries converts a sample into chart data.
func NewChartSeries(sample *EmotionSample) ChartSeries {
	counters := sample.Counters()
	values := make([]float64, len(counters))
	for i, c := range counters {
		values[i] = float64(c) / 1000
	}

	series := ChartSeries{
		SampleID: sample.ID,
		Labels:   append([]string(nil), EmotionLabels...),
		Values:   values,
		Total:    float64(sample.Total) / 1000,
	}
	if sample.CreatedAt != nil {
		series.CreatedAt = sample.CreatedAt.UTC().Format("2006-01-02 15:04:05")
	}
	return series
}

// ChartFor returns the series for sampleID, or for the latest sample of the
// account when sampleID is nil. Samples of other accounts are Unauthorized.
func ChartFor(ctx context.Context, samples EmotionSamples, accountID, sampleID uuid.UUID) (ChartSeries, error) {
	var (
		sample *EmotionSample
		err    error
	)

	if sampleID == uuid.Nil {
		sample, err = samples.LatestByAccount(ctx, accountID)
	} else {
		sample, err = samples.FindByID(ctx, sampleID)
		if err == nil && !sample.OwnedBy(accountID) {
			err = newUnauthorizedError("emotion sample belongs to another account")
		}
	}
	if err != nil {
		return ChartSeries{}, err
	}

	return NewChartSeries(sample), nil
}
