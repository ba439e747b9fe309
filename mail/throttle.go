package mail

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/time/rate"
)

// ThrottledSender bounds how fast the wrapped sender is called.
type ThrottledSender struct {
	next    Sender
	limiter *rate.Limiter
}

// NewThrottledSender allows perMinute sends per minute with a burst of one.
// perMinute <= 0 disables throttling.
func NewThrottledSender(next Sender, perMinute int) *ThrottledSender {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &ThrottledSender{next: next, limiter: rate.NewLimiter(limit, 1)}
}

func (t *ThrottledSender) Send(ctx context.Context, to, subject, body string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryRateLimit, "mail throttled")
	}
	return t.next.Send(ctx, to, subject, body)
}
