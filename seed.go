package enrollment

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

const (
	// DefaultAdminUsername is the reserved administrator username.
	DefaultAdminUsername = "admin"
	// LegacyAdminUsername is an obsolete administrator record removed on seed.
	LegacyAdminUsername = "Admin"

	adminEmail = "admin@system.local"
	adminPhone = "0000000000"
)

// AdminSeed configures the administrator account.
type AdminSeed struct {
	Username string
	Password string
}

// EnsureAdmin creates the administrator when missing and removes the legacy
// record. It returns the administrator account.
func EnsureAdmin(ctx context.Context, repo RepositoryManager, seed AdminSeed, logger Logger) (*Account, error) {
	logger = normalizeLogger(logger)

	username := strings.TrimSpace(seed.Username)
	if username == "" {
		username = DefaultAdminUsername
	}

	var admin *Account
	err := repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := repo.Accounts().FindByFieldTx(ctx, tx, FieldUsername, username)
		if err == nil {
			admin = existing
		} else if !IsNotFound(err) {
			return err
		} else {
			admin, err = newAdminAccount(username, seed.Password)
			if err != nil {
				return err
			}
			if admin, err = repo.Accounts().CreateTx(ctx, tx, admin); err != nil {
				return err
			}
			logger.Info("administrator account created", "username", username)
		}

		if username == LegacyAdminUsername {
			return nil
		}

		legacy, err := repo.Accounts().FindByFieldTx(ctx, tx, FieldUsername, LegacyAdminUsername)
		if err != nil {
			if IsNotFound(err) {
				return nil
			}
			return err
		}

		if err := repo.Accounts().DeleteByIDTx(ctx, tx, legacy.ID); err != nil {
			return err
		}
		logger.Info("legacy administrator account removed", "id", legacy.ID)
		return nil
	})
	if err != nil {
		return nil, passRichError(err, "failed to seed administrator")
	}

	return admin, nil
}

func newAdminAccount(username, password string) (*Account, error) {
	id, err := hashid.NewUUID(username)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to derive administrator id")
	}

	hash := RandomPasswordHash()
	if password != "" {
		if hash, err = HashPassword(password); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash administrator password")
		}
	}

	return &Account{
		ID:            id,
		FullName:      "Administrator",
		Username:      username,
		PersonalEmail: adminEmail,
		GSuite:        adminEmail,
		MobileNumber:  adminPhone,
		Images:        []Image{},
		Verified:      true,
		Active:        true,
		Remark:        ApprovedRemark(),
		PasswordHash:  hash,
	}, nil
}
