package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/errors"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	var calls atomic.Int32
	err := Retry(context.Background(), "flaky", fastRetry(5), func(context.Context) error {
		if calls.Add(1) < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryGivesUpAtCeiling(t *testing.T) {
	boom := errors.New("broker unreachable")
	var calls atomic.Int32
	err := Retry(context.Background(), "connect", fastRetry(4), func(context.Context) error {
		calls.Add(1)
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int32(4), calls.Load())
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	cfg := fastRetry(5)
	cfg.Retryable = func(err error) bool { return !apperrors.IsPermanent(err) }
	var calls atomic.Int32
	err := Retry(context.Background(), "fetch", cfg, func(context.Context) error {
		calls.Add(1)
		return apperrors.New(apperrors.ErrNotFound, "gone")
	})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 10, InitialDelay: time.Hour}
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := Retry(ctx, "slow", cfg, func(context.Context) error { return errors.New("down") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestComputeDelayIsCapped(t *testing.T) {
	cfg := RetryConfig{InitialDelay: time.Second, MaxDelay: 5 * time.Second, Multiplier: 2}
	assert.Equal(t, time.Second, computeDelay(1, cfg))
	assert.Equal(t, 4*time.Second, computeDelay(3, cfg))
	assert.Equal(t, 5*time.Second, computeDelay(10, cfg))
}

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	var states []State
	cb := NewCircuitBreaker("store", CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     20 * time.Millisecond,
		OnStateChange:    func(_ string, s State) { states = append(states, s) },
	})
	boom := errors.New("down")

	assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	assert.Equal(t, StateClosed, cb.GetState())
	assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	assert.Equal(t, StateOpen, cb.GetState())

	err := cb.Execute(func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.ErrorIs(t, err, apperrors.ErrUpstreamUnavailable)

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, states)
}

func TestCircuitBreakerIgnoresPermanentFailures(t *testing.T) {
	cb := NewCircuitBreaker("fetch", CircuitBreakerConfig{FailureThreshold: 1})
	_ = cb.Execute(func() error { return apperrors.New(apperrors.ErrValidation, "bad input") })
	_ = cb.Execute(func() error { return context.Canceled })
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("embed", CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Millisecond})
	_ = cb.Execute(func() error { return errors.New("down") })
	time.Sleep(15 * time.Millisecond)
	_ = cb.Execute(func() error { return errors.New("still down") })
	assert.Equal(t, StateOpen, cb.GetState())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 10*time.Millisecond, "ping", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	err = WithTimeout(context.Background(), time.Second, "ping", func(context.Context) error { return nil })
	assert.NoError(t, err)
}
