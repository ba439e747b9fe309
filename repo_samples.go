package enrollment

import (
	"context"
	"database/sql"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// EmotionSamples is the emotion sample store
type EmotionSamples interface {
	CreateTx(ctx context.Context, tx bun.IDB, record *EmotionSample) (*EmotionSample, error)
	FindByID(ctx context.Context, id uuid.UUID) (*EmotionSample, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*EmotionSample, error)
	LatestByAccount(ctx context.Context, accountID uuid.UUID) (*EmotionSample, error)
	DeleteOwnedTx(ctx context.Context, tx bun.IDB, id, ownerID uuid.UUID) error
}

type emotionSamples struct {
	repository.Repository[*EmotionSample]
	db  *bun.DB
	now func() time.Time
}

var _ EmotionSamples = (*emotionSamples)(nil)

func NewEmotionSamplesRepository(db *bun.DB) EmotionSamples {
	repo := repository.NewRepository[*EmotionSample](db, repository.ModelHandlers[*EmotionSample]{
		NewRecord: func() *EmotionSample { return &EmotionSample{} },
		GetID: func(s *EmotionSample) uuid.UUID {
			if s == nil {
				return uuid.Nil
			}
			return s.ID
		},
		SetID: func(s *EmotionSample, id uuid.UUID) {
			if s != nil {
				s.ID = id
			}
		},
	})

	return &emotionSamples{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
}

func (e *emotionSamples) CreateTx(ctx context.Context, tx bun.IDB, record *EmotionSample) (*EmotionSample, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt == nil {
		now := e.now()
		record.CreatedAt = &now
	}

	created, err := e.Repository.CreateTx(ctx, tx, record)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store emotion sample")
	}
	return created, nil
}

func (e *emotionSamples) FindByID(ctx context.Context, id uuid.UUID) (*EmotionSample, error) {
	record, err := e.Repository.GetByID(ctx, id.String())
	if err != nil {
		if goerrors.IsNotFound(err) || repository.IsRecordNotFound(err) {
			return nil, newNotFoundError("emotion sample", id.String())
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load emotion sample")
	}
	return record, nil
}

func (e *emotionSamples) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*EmotionSample, error) {
	records := []*EmotionSample{}
	err := e.db.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", accountID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list emotion samples")
	}
	return records, nil
}

func (e *emotionSamples) LatestByAccount(ctx context.Context, accountID uuid.UUID) (*EmotionSample, error) {
	record := &EmotionSample{}
	err := e.db.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", accountID).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, newNotFoundError("emotion sample", accountID.String())
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load latest emotion sample")
	}
	return record, nil
}

// DeleteOwnedTx removes a sample only when it belongs to ownerID.
func (e *emotionSamples) DeleteOwnedTx(ctx context.Context, tx bun.IDB, id, ownerID uuid.UUID) error {
	res, err := tx.NewDelete().
		Model((*EmotionSample)(nil)).
		Where("id = ?", id).
		Where("user_id = ?", ownerID).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete emotion sample")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return newNotFoundError("emotion sample", id.String())
	}
	return nil
}
