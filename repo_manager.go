package enrollment

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Accounts() Accounts
	EmotionSamples() EmotionSamples
	Sessions() Sessions
}

type mngr struct {
	db             *bun.DB
	accounts       Accounts
	emotionSamples EmotionSamples
	sessions       Sessions
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:             db,
		accounts:       NewAccountsRepository(db),
		emotionSamples: NewEmotionSamplesRepository(db),
		sessions:       NewSessionsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("repository manager requires a database")
	}

	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	if m.emotionSamples == nil {
		return errors.New("repository emotionSamples should be initialized")
	}

	if m.sessions == nil {
		return errors.New("repository sessions should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Accounts() Accounts {
	return m.accounts
}

func (m mngr) EmotionSamples() EmotionSamples {
	return m.emotionSamples
}

func (m mngr) Sessions() Sessions {
	return m.sessions
}
