package enrollment_test

import (
	"context"
	"testing"
	"time"

	enrollment "github.com/emotionlab/go-enrollment"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func storeSample(t *testing.T, repo enrollment.RepositoryManager, db *bun.DB, owner uuid.UUID, at time.Time, happy int64) *enrollment.EmotionSample {
	t.Helper()
	sample, err := repo.EmotionSamples().CreateTx(context.Background(), db, &enrollment.EmotionSample{
		UserID:    owner,
		Happy:     happy,
		Sad:       500,
		Total:     happy + 500,
		CreatedAt: &at,
	})
	require.NoError(t, err)
	return sample
}

func TestNewChartSeries(t *testing.T) {
	at := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)
	series := enrollment.NewChartSeries(&enrollment.EmotionSample{
		ID:        uuid.New(),
		Happy:     1500,
		Neutral:   250,
		Surprised: 1,
		Total:     1751,
		CreatedAt: &at,
	})

	assert.Equal(t, enrollment.EmotionLabels, series.Labels)
	assert.Equal(t, []float64{1.5, 0.25, 0, 0, 0, 0, 0.001}, series.Values)
	assert.Equal(t, 1.751, series.Total)
	assert.Equal(t, "2026-03-02 10:30:00", series.CreatedAt)
}

func TestChartFor(t *testing.T) {
	repo, db := setupRepo(t)
	machine := enrollment.NewLifecycleMachine(repo)
	ctx := context.Background()

	owner := registerStudent(t, machine, 1)
	other := registerStudent(t, machine, 2)

	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	older := storeSample(t, repo, db, owner.ID, base, 1000)
	newer := storeSample(t, repo, db, owner.ID, base.Add(time.Hour), 3000)

	t.Run("latest sample by default", func(t *testing.T) {
		series, err := enrollment.ChartFor(ctx, repo.EmotionSamples(), owner.ID, uuid.Nil)
		require.NoError(t, err)
		assert.Equal(t, newer.ID, series.SampleID)
		assert.Equal(t, 3.0, series.Values[0])
	})

	t.Run("specific sample", func(t *testing.T) {
		series, err := enrollment.ChartFor(ctx, repo.EmotionSamples(), owner.ID, older.ID)
		require.NoError(t, err)
		assert.Equal(t, older.ID, series.SampleID)
		assert.Equal(t, 1.0, series.Values[0])
	})

	t.Run("another account's sample", func(t *testing.T) {
		_, err := enrollment.ChartFor(ctx, repo.EmotionSamples(), other.ID, older.ID)
		require.Error(t, err)
		assert.True(t, enrollment.IsUnauthorized(err))
	})

	t.Run("no samples yet", func(t *testing.T) {
		_, err := enrollment.ChartFor(ctx, repo.EmotionSamples(), other.ID, uuid.Nil)
		require.Error(t, err)
		assert.True(t, enrollment.IsNotFound(err))
	})
}
