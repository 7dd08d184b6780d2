package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// Default initial retry delay
	DefaultRetryInitial = 200 * time.Millisecond
	// Default maximum retry delay (exponential backoff cap)
	DefaultRetryMax = 5 * time.Second
	// Default exponential backoff multiplier
	DefaultRetryMultiplier = 2.0
	// Default number of attempts per operation; retrying is opt-in
	DefaultMaxAttempts = 1
)

// Backoff retries an operation with exponential backoff
type Backoff struct {
	MaxAttempts int           // Attempts before giving up
	Initial     time.Duration // Initial retry delay
	Max         time.Duration // Max retry delay
	Multiplier  float64       // Backoff multiplier
}

func (b Backoff) withDefaults() Backoff {
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = DefaultMaxAttempts
	}
	if b.Initial <= 0 {
		b.Initial = DefaultRetryInitial
	}
	if b.Max <= 0 {
		b.Max = DefaultRetryMax
	}
	if b.Multiplier <= 0 {
		b.Multiplier = DefaultRetryMultiplier
	}
	return b
}

// Do runs fn until it succeeds, attempts run out or ctx is done
func (b Backoff) Do(ctx context.Context, what string, fn func() error) error {
	b = b.withDefaults()
	delay := b.Initial
	attempts := 0

	for {
		err := fn()
		if err == nil {
			return nil
		}

		attempts++
		if attempts >= b.MaxAttempts {
			return fmt.Errorf("exhausted %d attempts for %s: %w", b.MaxAttempts, what, err)
		}

		log.Warn().
			Err(err).
			Str("operation", what).
			Int("attempt", attempts).
			Dur("retry_delay", delay).
			Msg("Operation failed, retrying")

		if !sleep(ctx, delay) {
			return fmt.Errorf("cancelled while retrying %s: %w", what, err)
		}

		delay = time.Duration(float64(delay) * b.Multiplier)
		if delay > b.Max {
			delay = b.Max
		}
	}
}

// sleep waits for d and reports false if ctx ended first
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
