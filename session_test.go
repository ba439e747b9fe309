package enrollment_test

import (
	"context"
	"testing"
	"time"

	enrollment "github.com/emotionlab/go-enrollment"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionValues(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	sess, err := enrollment.NewSession(time.Hour, now)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.True(t, sess.Dirty())
	assert.False(t, sess.Expired(now))
	assert.True(t, sess.Expired(now.Add(time.Hour)))

	_, ok := sess.Principal()
	assert.False(t, ok)

	id := uuid.New()
	sess.SetPrincipal(enrollment.Principal{AccountID: id, Username: "1RV21CS001"})
	p, ok := sess.Principal()
	require.True(t, ok)
	assert.Equal(t, id, p.AccountID)
	assert.Equal(t, "1RV21CS001", p.Username)

	old := sess.ID
	prev, err := sess.Regenerate()
	require.NoError(t, err)
	assert.Equal(t, old, prev)
	assert.NotEqual(t, old, sess.ID)
	_, ok = sess.Principal()
	assert.True(t, ok, "regenerate keeps values")

	sess.Set("principal_id", "not-a-uuid")
	_, ok = sess.Principal()
	assert.False(t, ok)

	sess.Invalidate()
	assert.True(t, sess.Destroyed())
	_, ok = sess.Get("principal_id")
	assert.False(t, ok)
}

func TestMemorySessionStore(t *testing.T) {
	clock := newFixedClock()
	store := enrollment.NewMemorySessionStore().WithClock(clock.Now)
	ctx := context.Background()

	sess, err := enrollment.NewSession(time.Minute, clock.Now())
	require.NoError(t, err)
	sess.Set("k", "v")
	require.NoError(t, store.Save(ctx, sess))
	assert.False(t, sess.Dirty())

	loaded, err := store.Load(ctx, sess.ID)
	require.NoError(t, err)
	v, _ := loaded.Get("k")
	assert.Equal(t, "v", v)

	// loaded sessions are copies
	loaded.Set("k", "changed")
	again, err := store.Load(ctx, sess.ID)
	require.NoError(t, err)
	v, _ = again.Get("k")
	assert.Equal(t, "v", v)

	clock.Advance(time.Minute)
	_, err = store.Load(ctx, sess.ID)
	assert.True(t, enrollment.IsNotFound(err))

	_, err = store.Load(ctx, "missing")
	assert.True(t, enrollment.IsNotFound(err))
}

func TestSessionsRepository(t *testing.T) {
	repo, _ := setupRepo(t)
	store := repo.Sessions()
	ctx := context.Background()
	now := time.Now()

	live, err := enrollment.NewSession(time.Hour, now)
	require.NoError(t, err)
	live.SetPrincipal(enrollment.Principal{AccountID: uuid.New(), Username: "1RV21CS001"})
	require.NoError(t, store.Save(ctx, live))

	stale, err := enrollment.NewSession(-time.Hour, now)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, stale))

	loaded, err := store.Load(ctx, live.ID)
	require.NoError(t, err)
	p, ok := loaded.Principal()
	require.True(t, ok)
	assert.Equal(t, "1RV21CS001", p.Username)

	_, err = store.Load(ctx, stale.ID)
	assert.True(t, enrollment.IsNotFound(err), "expired sessions do not load")

	live.Set("k", "v")
	require.NoError(t, store.Save(ctx, live))
	loaded, err = store.Load(ctx, live.ID)
	require.NoError(t, err)
	v, _ := loaded.Get("k")
	assert.Equal(t, "v", v)

	n, err := store.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, store.Destroy(ctx, live.ID))
	_, err = store.Load(ctx, live.ID)
	assert.True(t, enrollment.IsNotFound(err))
}
