package enrollment

import (
	"context"
	"database/sql"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// SessionRecord is the persisted form of a Session.
type SessionRecord struct {
	bun.BaseModel `bun:"table:sessions,alias:ses"`
	ID            string            `bun:"id,pk"`
	Data          map[string]string `bun:"data,type:jsonb"`
	ExpiresAt     time.Time         `bun:"expires_at,notnull"`
	CreatedAt     *time.Time        `bun:"created_at,nullzero,default:current_timestamp"`
	UpdatedAt     *time.Time        `bun:"updated_at,nullzero,default:current_timestamp"`
}

// Sessions is the database backed session store
type Sessions interface {
	SessionStore
	DeleteExpired(ctx context.Context) (int64, error)
}

type sessions struct {
	db  *bun.DB
	now func() time.Time
}

var _ Sessions = (*sessions)(nil)

func NewSessionsRepository(db *bun.DB) Sessions {
	return &sessions{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *sessions) Load(ctx context.Context, id string) (*Session, error) {
	record := &SessionRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.expires_at > ?", s.now()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, newNotFoundError("session", id)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load session")
	}

	values := record.Data
	if values == nil {
		values = map[string]string{}
	}

	return &Session{
		ID:        record.ID,
		Values:    values,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

func (s *sessions) Save(ctx context.Context, session *Session) error {
	now := s.now()
	record := &SessionRecord{
		ID:        session.ID,
		Data:      session.Values,
		ExpiresAt: session.ExpiresAt.UTC(),
		CreatedAt: &now,
		UpdatedAt: &now,
	}
	if record.Data == nil {
		record.Data = map[string]string{}
	}

	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (id) DO UPDATE").
		Set("data = EXCLUDED.data").
		Set("expires_at = EXCLUDED.expires_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to save session")
	}

	session.dirty = false
	return nil
}

func (s *sessions) Destroy(ctx context.Context, id string) error {
	_, err := s.db.NewDelete().
		Model((*SessionRecord)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to destroy session")
	}
	return nil
}

// DeleteExpired purges sessions past their expiry and returns how many went.
func (s *sessions) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.NewDelete().
		Model((*SessionRecord)(nil)).
		Where("expires_at <= ?", s.now()).
		Exec(ctx)
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to purge sessions")
	}
	return res.RowsAffected()
}
