package enrollment_test

import (
	"context"
	"testing"

	enrollment "github.com/emotionlab/go-enrollment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureAdmin(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	legacy := studentAccount(7)
	legacy.Username = enrollment.LegacyAdminUsername
	legacy.PasswordHash = enrollment.RandomPasswordHash()
	_, err := repo.Accounts().Create(ctx, legacy)
	require.NoError(t, err)

	admin, err := enrollment.EnsureAdmin(ctx, repo, enrollment.AdminSeed{Password: "admin-secret"}, nil)
	require.NoError(t, err)
	assert.Equal(t, enrollment.DefaultAdminUsername, admin.Username)
	assert.True(t, admin.AccessStatus().Granted())
	assert.NoError(t, enrollment.ComparePasswordAndHash("admin-secret", admin.PasswordHash))

	_, err = repo.Accounts().FindByField(ctx, enrollment.FieldUsername, enrollment.LegacyAdminUsername)
	assert.True(t, enrollment.IsNotFound(err), "legacy administrator is removed")

	t.Run("idempotent", func(t *testing.T) {
		again, err := enrollment.EnsureAdmin(ctx, repo, enrollment.AdminSeed{Password: "other-secret"}, nil)
		require.NoError(t, err)
		assert.Equal(t, admin.ID, again.ID)
		assert.NoError(t, enrollment.ComparePasswordAndHash("admin-secret", again.PasswordHash), "existing password is kept")
	})

	t.Run("gate recognises the seeded admin", func(t *testing.T) {
		gate := enrollment.NewAccessGate(repo.Accounts(), enrollment.DefaultAdminUsername)
		d, err := gate.Check(ctx, &enrollment.Principal{AccountID: admin.ID}, enrollment.CapabilityAdmin)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	})
}

func TestEnsureAdminWithoutPassword(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	admin, err := enrollment.EnsureAdmin(ctx, repo, enrollment.AdminSeed{Username: "root"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "root", admin.Username)

	_, err = enrollment.NewCredentialVerifier(repo.Accounts()).Verify(ctx, "root", "")
	assert.Error(t, err, "an unset password never matches")
}
