package main_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fwojciec/cratedoc"
	main "github.com/fwojciec/cratedoc/cmd/cratedoc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noDelays is used for fast unit tests.
var noDelays = []time.Duration{0, 0, 0}

func TestRetry(t *testing.T) {
	t.Parallel()

	transient := cratedoc.Errorf(cratedoc.ENETWORK, "connection reset")

	t.Run("succeeds on first attempt", func(t *testing.T) {
		t.Parallel()

		var attempts int
		v, err := main.Retry(t.Context(), "serde", func(context.Context) (string, error) {
			attempts++
			return "ok", nil
		}, nil, noDelays)

		require.NoError(t, err)
		assert.Equal(t, "ok", v)
		assert.Equal(t, 1, attempts)
	})

	t.Run("retries transient failures and succeeds", func(t *testing.T) {
		t.Parallel()

		var attempts int
		var logged []string
		logger := func(format string, args ...any) {
			logged = append(logged, format)
		}
		v, err := main.Retry(t.Context(), "serde", func(context.Context) (string, error) {
			attempts++
			if attempts < 4 {
				return "", transient
			}
			return "ok", nil
		}, logger, noDelays)

		require.NoError(t, err)
		assert.Equal(t, "ok", v)
		assert.Equal(t, 4, attempts)
		assert.Len(t, logged, 3)
	})

	t.Run("returns the last error after every delay", func(t *testing.T) {
		t.Parallel()

		var attempts int
		_, err := main.Retry(t.Context(), "serde", func(context.Context) (int, error) {
			attempts++
			return 0, transient
		}, nil, noDelays)

		require.Error(t, err)
		assert.Equal(t, cratedoc.ENETWORK, cratedoc.ErrorCode(err))
		assert.Equal(t, 4, attempts)
	})

	t.Run("does not retry permanent failures", func(t *testing.T) {
		t.Parallel()

		var attempts int
		_, err := main.Retry(t.Context(), "serde", func(context.Context) (int, error) {
			attempts++
			return 0, cratedoc.Errorf(cratedoc.ENOTFOUND, "crate not found")
		}, nil, noDelays)

		require.Error(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("plain errors are not retried", func(t *testing.T) {
		t.Parallel()

		var attempts int
		_, err := main.Retry(t.Context(), "serde", func(context.Context) (int, error) {
			attempts++
			return 0, errors.New("boom")
		}, nil, noDelays)

		require.Error(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("stops when the context is canceled", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(t.Context())
		var attempts int
		_, err := main.Retry(ctx, "serde", func(context.Context) (int, error) {
			attempts++
			cancel()
			return 0, transient
		}, nil, []time.Duration{time.Hour})

		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, attempts)
	})
}

func TestRetryDelays(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, main.DefaultRetryDelays())
	assert.Empty(t, main.RetryDelays(0))
	assert.Empty(t, main.RetryDelays(-1))
	assert.Len(t, main.RetryDelays(5), 5)
}
