package enrollment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SetPasswordSQL rotates the credential of a single account in one statement.
var SetPasswordSQL = `UPDATE "accounts"
SET
	"password_hash" = ?,
	"login_attempts" = 0,
	"login_attempt_at" = NULL,
	"updated_at" = ?
WHERE
	"id" = ?
RETURNING *;`

// AccountField names a unique lookup column.
type AccountField string

const (
	FieldUsername      AccountField = "username"
	FieldPersonalEmail AccountField = "personalemail"
	FieldGSuite        AccountField = "gsuite"
	FieldMobileNumber  AccountField = "mobilenumber"
)

var uniqueAccountColumns = []AccountField{
	FieldUsername,
	FieldPersonalEmail,
	FieldGSuite,
	FieldMobileNumber,
}

// Label is the human name of the field used in duplicate messages.
func (f AccountField) Label() string {
	switch f {
	case FieldUsername:
		return "enrollment number"
	case FieldPersonalEmail:
		return "personal email"
	case FieldGSuite:
		return "organizational email"
	case FieldMobileNumber:
		return "mobile number"
	}
	return string(f)
}

func (f AccountField) valid() bool {
	for _, c := range uniqueAccountColumns {
		if c == f {
			return true
		}
	}
	return false
}

// AccountFilter selects admin listings.
type AccountFilter string

const (
	// FilterVerified lists every verified account ("all" in the admin dashboard).
	FilterVerified    AccountFilter = "all"
	FilterActive      AccountFilter = "active"
	FilterDeactivated AccountFilter = "deactive"
	FilterPending     AccountFilter = "pending"
	FilterDeclined    AccountFilter = "declined"
)

var (
	profileColumns   = []string{"fullname", "semester", "personalemail", "gsuite", "mobilenumber", "image", "updated_at"}
	reviewColumns    = []string{"verified", "remark", "updated_at"}
	activeColumns    = []string{"active", "updated_at"}
	lifecycleColumns = append(append([]string{}, profileColumns[:len(profileColumns)-1]...), "verified", "active", "remark", "emotion", "updated_at")
)

// Accounts is the account store
type Accounts interface {
	FindByField(ctx context.Context, field AccountField, value string) (*Account, error)
	FindByFieldTx(ctx context.Context, tx bun.IDB, field AccountField, value string) (*Account, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
	FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Account, error)

	Create(ctx context.Context, record *Account) (*Account, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error)
	Save(ctx context.Context, record *Account) (*Account, error)
	SaveTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error)
	UpdateColumnsTx(ctx context.Context, tx bun.IDB, record *Account, columns []string, states ...LifecycleState) (bool, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error
	DeleteByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error

	SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
	IncrementEmotionTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error

	TrackAttemptedLogin(ctx context.Context, record *Account) error
	TrackSuccessfulLogin(ctx context.Context, record *Account) error

	List(ctx context.Context, filter AccountFilter) ([]*Account, error)
	CountPending(ctx context.Context) (int, error)
}

type accounts struct {
	repository.Repository[*Account]
	db  *bun.DB
	now func() time.Time
}

var _ Accounts = (*accounts)(nil)

// AccountsOption customizes the account store.
type AccountsOption func(*accounts)

// WithAccountsClock injects the clock used for timestamps.
func WithAccountsClock(now func() time.Time) AccountsOption {
	return func(a *accounts) {
		if now != nil {
			a.now = now
		}
	}
}

func NewAccountsRepository(db *bun.DB, opts ...AccountsOption) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return string(FieldUsername)
		},
	})

	store := &accounts{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}

	return store
}

func (a *accounts) FindByField(ctx context.Context, field AccountField, value string) (*Account, error) {
	return a.FindByFieldTx(ctx, a.db, field, value)
}

func (a *accounts) FindByFieldTx(ctx context.Context, tx bun.IDB, field AccountField, value string) (*Account, error) {
	if !field.valid() {
		return nil, goerrors.New("unsupported lookup field", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"field": field})
	}

	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where(fmt.Sprintf("?TableAlias.%s = ?", field), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, newNotFoundError("account", value)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account")
	}

	return record, nil
}

func (a *accounts) FindByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return a.FindByIDTx(ctx, a.db, id)
}

func (a *accounts) FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, newNotFoundError("account", id.String())
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account")
	}
	return record, nil
}

func (a *accounts) Create(ctx context.Context, record *Account) (*Account, error) {
	return a.CreateTx(ctx, a.db, record)
}

func (a *accounts) CreateTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error) {
	prepareAccountDefaults(record)
	now := a.now()
	record.CreatedAt = &now
	record.UpdatedAt = &now

	// Insert through bun directly so driver constraint errors reach
	// uniqueViolationColumn untouched.
	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		if column, ok := uniqueViolationColumn(err); ok {
			return nil, newDuplicateIdentityError(AccountField(column).Label())
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create account")
	}
	return record, nil
}

func (a *accounts) Save(ctx context.Context, record *Account) (*Account, error) {
	return a.SaveTx(ctx, a.db, record)
}

// SaveTx writes the profile and lifecycle columns. Credentials are only
// changed through SetPassword.
func (a *accounts) SaveTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error) {
	ok, err := a.UpdateColumnsTx(ctx, tx, record, lifecycleColumns)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, newNotFoundError("account", record.ID.String())
	}
	return record, nil
}

// UpdateColumnsTx writes the given columns of record. When states are given
// the row is only updated while it is in one of them, and false is returned
// if nothing matched.
func (a *accounts) UpdateColumnsTx(ctx context.Context, tx bun.IDB, record *Account, columns []string, states ...LifecycleState) (bool, error) {
	if record == nil || record.ID == uuid.Nil {
		return false, goerrors.New("account record requires an id", goerrors.CategoryBadInput)
	}

	now := a.now()
	record.UpdatedAt = &now
	if record.Images == nil {
		record.Images = []Image{}
	}

	q := tx.NewUpdate().
		Model(record).
		Column(columns...).
		WherePK()

	if len(states) > 0 {
		q = q.WhereGroup(" AND ", func(q *bun.UpdateQuery) *bun.UpdateQuery {
			for _, state := range states {
				cond, args := lifecycleStateCondition(state)
				q = q.WhereOr(cond, args...)
			}
			return q
		})
	}

	res, err := q.Exec(ctx)
	if err != nil {
		if column, ok := uniqueViolationColumn(err); ok {
			return false, newDuplicateIdentityError(AccountField(column).Label())
		}
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update account")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read update result")
	}

	return affected > 0, nil
}

// lifecycleStateCondition mirrors lifecycleStateOf in SQL.
func lifecycleStateCondition(state LifecycleState) (string, []any) {
	switch state {
	case StateApproved:
		return "(remark = ? AND verified = ?)", []any{RemarkApprovedSentinel, true}
	case StateDeclined:
		return "(remark NOT IN (?, ?, ?))", []any{RemarkPendingSentinel, RemarkApprovedSentinel, ""}
	default:
		return "(remark IN (?, ?) OR (remark = ? AND verified = ?))", []any{RemarkPendingSentinel, "", RemarkApprovedSentinel, false}
	}
}

func (a *accounts) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return a.DeleteByIDTx(ctx, a.db, id)
}

func (a *accounts) DeleteByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := tx.NewDelete().
		Model((*Account)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete account")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return newNotFoundError("account", id.String())
	}
	return nil
}

func (a *accounts) SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.SetPasswordTx(ctx, a.db, id, passwordHash)
}

func (a *accounts) SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	res, err := a.Repository.RawTx(ctx, tx, SetPasswordSQL, passwordHash, a.now(), id.String())
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update password")
	}

	if len(res) == 0 {
		return newNotFoundError("account", id.String())
	}

	return nil
}

func (a *accounts) IncrementEmotionTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := tx.NewUpdate().
		Model((*Account)(nil)).
		Set("emotion = emotion + 1").
		Set("updated_at = ?", a.now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to increment emotion counter")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return newNotFoundError("account", id.String())
	}
	return nil
}

func (a *accounts) TrackAttemptedLogin(ctx context.Context, record *Account) error {
	now := a.now()
	_, err := a.db.NewRaw(`
		UPDATE "accounts"
		SET
			"login_attempts" = ?,
			"login_attempt_at" = ?
		WHERE "id" = ?;
	`, record.LoginAttempts+1, now, record.ID).Exec(ctx)
	return err
}

func (a *accounts) TrackSuccessfulLogin(ctx context.Context, record *Account) error {
	// Reset through raw SQL, an ORM update skips the NULL login_attempt_at.
	_, err := a.db.NewRaw(`
		UPDATE "accounts"
		SET
			"loggedin_at" = ?,
			"login_attempt_at" = NULL,
			"login_attempts" = 0
		WHERE "id" = ?;
	`, a.now(), record.ID).Exec(ctx)
	return err
}

func (a *accounts) List(ctx context.Context, filter AccountFilter) ([]*Account, error) {
	records := []*Account{}
	q := a.db.NewSelect().Model(&records)

	switch filter {
	case FilterVerified:
		q = q.Where("?TableAlias.verified = ?", true)
	case FilterActive:
		q = q.Where("?TableAlias.active = ?", true)
	case FilterDeactivated:
		q = q.Where("?TableAlias.active = ?", false)
	case FilterPending:
		q = q.Where("?TableAlias.verified = ?", false).
			Where("?TableAlias.remark = ?", RemarkPendingSentinel)
	case FilterDeclined:
		q = q.Where("?TableAlias.verified = ?", false).
			Where("?TableAlias.remark NOT IN (?, ?, ?)", RemarkPendingSentinel, RemarkApprovedSentinel, "")
	default:
		return nil, goerrors.New("unknown account filter", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"filter": filter})
	}

	if err := q.Order("created_at DESC").Scan(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list accounts")
	}
	return records, nil
}

// CountPending is the review badge count, derived on demand.
func (a *accounts) CountPending(ctx context.Context) (int, error) {
	n, err := a.db.NewSelect().
		Model((*Account)(nil)).
		Where("verified = ?", false).
		Where("remark = ?", RemarkPendingSentinel).
		Count(ctx)
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to count pending accounts")
	}
	return n, nil
}
