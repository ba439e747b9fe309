package enrollment

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type DeleteEmotionMessage struct {
	AccountID uuid.UUID
	SampleID  uuid.UUID
}

func (e DeleteEmotionMessage) Type() string { return "emotion.delete" }

type DeleteEmotionHandler struct {
	repo RepositoryManager
}

func NewDeleteEmotionHandler(repo RepositoryManager) *DeleteEmotionHandler {
	return &DeleteEmotionHandler{repo: repo}
}

func (h *DeleteEmotionHandler) Execute(ctx context.Context, event DeleteEmotionMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during emotion deletion",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *DeleteEmotionHandler) execute(ctx context.Context, event DeleteEmotionMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	sample, err := h.repo.EmotionSamples().FindByID(ctx, event.SampleID)
	if err != nil {
		return err
	}

	if !sample.OwnedBy(event.AccountID) {
		return newUnauthorizedError("emotion sample belongs to another account").
			WithMetadata(map[string]any{"sample": event.SampleID.String()})
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return h.repo.EmotionSamples().DeleteOwnedTx(ctx, tx, event.SampleID, event.AccountID)
	})
	if err != nil {
		return passRichError(err, "failed to delete emotion sample")
	}
	return nil
}
