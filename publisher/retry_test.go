package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffSucceedsAfterRetries(t *testing.T) {
	b := Backoff{MaxAttempts: 3, Initial: time.Millisecond, Max: 2 * time.Millisecond}

	calls := 0
	err := b.Do(context.Background(), "flaky", func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestBackoffExhaustsAttempts(t *testing.T) {
	b := Backoff{MaxAttempts: 2, Initial: time.Millisecond}
	cause := errors.New("always")

	calls := 0
	err := b.Do(context.Background(), "doomed", func() error {
		calls++
		return cause
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "exhausted 2 attempts for doomed")
	assert.Equal(t, 2, calls)
}

func TestBackoffStopsOnCancel(t *testing.T) {
	b := Backoff{MaxAttempts: 10, Initial: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := b.Do(ctx, "cancelled", func() error {
		calls++
		return errors.New("fail")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled while retrying")
	assert.Equal(t, 1, calls)
}

func TestBackoffDefaults(t *testing.T) {
	b := Backoff{}.withDefaults()

	assert.Equal(t, DefaultMaxAttempts, b.MaxAttempts)
	assert.Equal(t, DefaultRetryInitial, b.Initial)
	assert.Equal(t, DefaultRetryMax, b.Max)
	assert.Equal(t, DefaultRetryMultiplier, b.Multiplier)
}
