package embedding

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Retry decorates an Embedder with bounded retries and exponential backoff.
// Only failures at the embedding boundary are retried; context cancellation
// stops the loop immediately.
type Retry struct {
	next        Embedder
	maxAttempts int
	baseDelay   time.Duration
}

// NewRetry wraps next with up to maxAttempts attempts, doubling baseDelay
// between them.
func NewRetry(next Embedder, maxAttempts int, baseDelay time.Duration) *Retry {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 250 * time.Millisecond
	}
	return &Retry{next: next, maxAttempts: maxAttempts, baseDelay: baseDelay}
}

// EmbedQuery implements Embedder.
func (r *Retry) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	delay := r.baseDelay
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		vec, err := r.next.EmbedQuery(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err
		if attempt == r.maxAttempts {
			break
		}
		log.Warn().Err(err).Int("attempt", attempt).Dur("backoff", delay).
			Msg("Embedding attempt failed, retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, lastErr
}
