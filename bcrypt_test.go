package enrollment_test

import (
	"strings"
	"testing"

	enrollment "github.com/emotionlab/go-enrollment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{
			name:     "Valid password",
			password: "securePassword123!",
		},
		{
			name:     "Empty password",
			password: "",
			wantErr:  true,
		},
		{
			name:     "Longer than bcrypt accepts",
			password: strings.Repeat("a", enrollment.MaxPasswordBytes+1),
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := enrollment.HashPassword(tt.password)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, hash)
			assert.NoError(t, enrollment.ComparePasswordAndHash(tt.password, hash))
		})
	}
}

func TestComparePasswordAndHash(t *testing.T) {
	hasher := enrollment.NewPasswordHasher()
	hash, err := hasher.HashPassword("testPassword123!")
	require.NoError(t, err)

	t.Run("wrong password", func(t *testing.T) {
		err := hasher.ComparePasswordAndHash("wrongPassword", hash)
		assert.ErrorIs(t, err, enrollment.ErrMismatchedHashAndPassword)
	})

	t.Run("invalid hash", func(t *testing.T) {
		assert.Error(t, hasher.ComparePasswordAndHash("testPassword123!", "invalidhash"))
	})
}

func TestRandomPasswordHash(t *testing.T) {
	assert.NotEqual(t, enrollment.RandomPasswordHash(), enrollment.RandomPasswordHash())
}
