package enrollment

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type SubmitEmotionMessage struct {
	AccountID  uuid.UUID `json:"-"`
	Happy      int64     `json:"happy"`
	Neutral    int64     `json:"neutral"`
	Sad        int64     `json:"sad"`
	Angry      int64     `json:"angry"`
	Fearful    int64     `json:"fearful"`
	Disgusted  int64     `json:"disgusted"`
	Surprised  int64     `json:"surprised"`
	Total      int64     `json:"total"`
	OnResponse func(sample *EmotionSample)
}

func (e SubmitEmotionMessage) Type() string { return "emotion.submit" }

func (e SubmitEmotionMessage) sample() *EmotionSample {
	return &EmotionSample{
		Happy:     e.Happy,
		Neutral:   e.Neutral,
		Sad:       e.Sad,
		Angry:     e.Angry,
		Fearful:   e.Fearful,
		Disgusted: e.Disgusted,
		Surprised: e.Surprised,
		Total:     e.Total,
		UserID:    e.AccountID,
	}
}

type SubmitEmotionHandler struct {
	repo RepositoryManager
}

func NewSubmitEmotionHandler(repo RepositoryManager) *SubmitEmotionHandler {
	return &SubmitEmotionHandler{repo: repo}
}

func (h *SubmitEmotionHandler) Execute(ctx context.Context, event SubmitEmotionMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during emotion submission",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *SubmitEmotionHandler) execute(ctx context.Context, event SubmitEmotionMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	sample := event.sample()
	for _, v := range append(sample.Counters(), sample.Total) {
		if v < 0 {
			return goerrors.New("emotion durations must not be negative", goerrors.CategoryValidation).
				WithCode(goerrors.CodeBadRequest)
		}
	}

	if sample.Total == 0 {
		return newEmptySampleError()
	}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		created, err := h.repo.EmotionSamples().CreateTx(ctx, tx, sample)
		if err != nil {
			return err
		}
		sample = created
		return h.repo.Accounts().IncrementEmotionTx(ctx, tx, event.AccountID)
	})
	if err != nil {
		return passRichError(err, "failed to store emotion sample")
	}

	if event.OnResponse != nil {
		event.OnResponse(sample)
	}
	return nil
}
