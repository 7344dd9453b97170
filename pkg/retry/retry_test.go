package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errConflict = errors.New("conflict")

func TestDo_RetriesRetryableUntilSuccess(t *testing.T) {
	attempts := 0
	err := New(WithMaxAttempts(3), WithInitialDelay(time.Millisecond)).Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return Retryable(errConflict)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	attempts := 0
	err := New(WithInitialDelay(time.Millisecond)).Do(context.Background(), func(context.Context) error {
		attempts++
		return errConflict
	})

	assert.ErrorIs(t, err, errConflict)
	assert.Equal(t, 1, attempts)
}

func TestDo_PermanentIsUnwrapped(t *testing.T) {
	err := New(WithRetryIf(func(error) bool { return true })).Do(context.Background(), func(context.Context) error {
		return Permanent(errConflict)
	})

	assert.Equal(t, errConflict, err)
}

func TestConflictRetrier_ExhaustsAttempts(t *testing.T) {
	attempts := 0
	r := ConflictRetrier(func(err error) bool { return errors.Is(err, errConflict) }, 4)

	err := r.Do(context.Background(), func(context.Context) error {
		attempts++
		return errConflict
	})

	assert.ErrorIs(t, err, errConflict)
	assert.Equal(t, 4, attempts)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := New().Do(ctx, func(context.Context) error { return nil })

	assert.ErrorIs(t, err, context.Canceled)
}
