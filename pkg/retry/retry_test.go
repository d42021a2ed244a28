package retry

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net"
	"net/url"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// customError implements temporary interface for testing
type customError struct {
	message   string
	temporary bool
}

func (e customError) Error() string   { return e.message }
func (e customError) Temporary() bool { return e.temporary }

// manualTime advances a virtual clock on every wait.
type manualTime struct {
	now    time.Time
	waits  []time.Duration
	closed chan time.Time
}

func newManualTime() *manualTime {
	ch := make(chan time.Time)
	close(ch)
	return &manualTime{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), closed: ch}
}

func (m *manualTime) apply(c Config) Config {
	c.Now = func() time.Time { return m.now }
	c.After = func(d time.Duration) <-chan time.Time {
		m.waits = append(m.waits, d)
		m.now = m.now.Add(d)
		return m.closed
	}
	return c
}

func fixed(attempts int) Config {
	return Config{
		MaxAttempts:    attempts,
		InitialDelay:   10 * time.Millisecond,
		MaxDelay:       time.Second,
		Multiplier:     2.0,
		JitterStrategy: JitterNone,
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.InitialDelay)
	assert.Equal(t, 30*time.Second, cfg.MaxDelay)
	assert.Equal(t, 2.0, cfg.Multiplier)
	assert.Equal(t, JitterDecorrelated, cfg.JitterStrategy)
}

func TestPresets(t *testing.T) {
	for name, cfg := range map[string]Config{"storage": StorageConfig(), "notify": NotifyConfig()} {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, cfg.Normalize())
			assert.Greater(t, cfg.MaxElapsedTime, time.Duration(0))
			assert.LessOrEqual(t, cfg.InitialDelay, cfg.MaxDelay)
		})
	}
}

func TestDefaultRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"context canceled", context.Canceled, false},
		{"context deadline exceeded", context.DeadlineExceeded, true},
		{"temporary error", customError{"temp", true}, true},
		{"non-temporary error", customError{"not temp", false}, false},
		{"regular error", errors.New("regular"), false},
		{"io.EOF", io.EOF, true},
		{"io.ErrUnexpectedEOF", io.ErrUnexpectedEOF, true},
		{"net.ErrClosed", net.ErrClosed, true},
		{"url error with timeout", &url.Error{
			Op:  "Post",
			URL: "http://example.com",
			Err: &net.OpError{Op: "dial", Err: &os.SyscallError{Syscall: "connect", Err: syscall.ETIMEDOUT}},
		}, true},
		{"connection refused", &url.Error{
			Op:  "Post",
			URL: "http://example.com",
			Err: &net.OpError{Op: "dial", Err: &os.SyscallError{Syscall: "connect", Err: syscall.ECONNREFUSED}},
		}, true},
		{"dns temporary error", &url.Error{
			Op:  "Post",
			URL: "http://example.com",
			Err: &net.DNSError{IsTemporary: true},
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DefaultRetryable(tt.err))
		})
	}
}

func TestAny(t *testing.T) {
	marker := errors.New("marker")
	pred := Any(DefaultRetryable, func(err error) bool { return errors.Is(err, marker) })
	assert.True(t, pred(marker))
	assert.True(t, pred(io.EOF))
	assert.False(t, pred(errors.New("other")))
	assert.False(t, Any()(marker))
}

func TestCalculateDelay(t *testing.T) {
	config := Config{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2.0}
	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for i, w := range want {
		assert.Equal(t, w, config.calculateDelay(i+1), "attempt %d", i+1)
	}
}

func TestDoSuccess(t *testing.T) {
	var attempts int32
	err := Do(context.Background(), fixed(3), func(context.Context) error {
		atomic.AddInt32(&attempts, 1)
		return nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, attempts)
}

func TestDoRetryableError(t *testing.T) {
	mt := newManualTime()
	var attempts int32
	err := Do(context.Background(), mt.apply(fixed(3)), func(context.Context) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return customError{"temporary failure", true}
		}
		return nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, attempts)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, mt.waits)
}

func TestDoNonRetryableError(t *testing.T) {
	var attempts int32
	permanent := errors.New("permanent error")
	err := DoWithRetryable(context.Background(), DefaultConfig(), func(context.Context) error {
		atomic.AddInt32(&attempts, 1)
		return permanent
	}, func(error) bool { return false })
	assert.Same(t, permanent, err)
	assert.EqualValues(t, 1, attempts)
}

func TestDoMaxAttemptsReached(t *testing.T) {
	mt := newManualTime()
	failure := customError{"always fails", true}
	var attempts int32
	err := Do(context.Background(), mt.apply(fixed(2)), func(context.Context) error {
		atomic.AddInt32(&attempts, 1)
		return failure
	})

	var retryErr *RetriesExceededError
	require.ErrorAs(t, err, &retryErr)
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, 2, retryErr.Attempts)
	assert.Equal(t, "max attempts exceeded", retryErr.Reason)
	assert.Equal(t, 10*time.Millisecond, retryErr.TotalDuration)
	assert.Contains(t, retryErr.Error(), "(2 attempts)")
	assert.EqualValues(t, 2, attempts)
}

func TestDoContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fixed(5)
	cfg.InitialDelay = 50 * time.Millisecond
	var attempts int32
	err := Do(ctx, cfg, func(context.Context) error {
		if atomic.AddInt32(&attempts, 1) == 2 {
			cancel()
		}
		return customError{"retryable", true}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 2, attempts)
}

func TestDoContextTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	cfg := fixed(5)
	cfg.InitialDelay = 100 * time.Millisecond
	var attempts int32
	err := Do(ctx, cfg, func(context.Context) error {
		atomic.AddInt32(&attempts, 1)
		return customError{"retryable", true}
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.LessOrEqual(t, attempts, int32(3))
}

func TestDoInvalidConfig(t *testing.T) {
	err := Do(context.Background(), Config{}, func(context.Context) error { return nil })
	assert.EqualError(t, err, "retry: MaxAttempts must be positive")
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"zero attempts", Config{MaxAttempts: 0}, true},
		{"zero initial delay", Config{MaxAttempts: 1}, true},
		{"initial above max", Config{MaxAttempts: 1, InitialDelay: time.Minute, MaxDelay: time.Second}, true},
		{"multiplier too small", Config{MaxAttempts: 1, InitialDelay: time.Millisecond, Multiplier: 0.5}, true},
		{"negative budget", Config{MaxAttempts: 1, InitialDelay: time.Millisecond, MaxElapsedTime: -1}, true},
		{"defaults filled", Config{MaxAttempts: 1, InitialDelay: time.Millisecond}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.config
			err := cfg.Normalize()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 2.0, cfg.Multiplier)
			assert.Equal(t, 30*time.Second, cfg.MaxDelay)
			assert.NotNil(t, cfg.Rand)
			assert.NotNil(t, cfg.Now)
			assert.NotNil(t, cfg.After)
		})
	}
}

func TestJitterBounds(t *testing.T) {
	cfg := Config{
		MaxAttempts:    2,
		InitialDelay:   100 * time.Millisecond,
		MaxDelay:       140 * time.Millisecond,
		JitterStrategy: JitterDecorrelated,
		Rand:           rand.New(rand.NewSource(42)),
	}
	require.NoError(t, cfg.Normalize())

	seen := map[time.Duration]bool{}
	for i := 0; i < 20; i++ {
		d := cfg.applyJitter(100 * time.Millisecond)
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, 140*time.Millisecond)
		seen[d] = true
	}
	assert.Greater(t, len(seen), 1, "jitter should vary delays")

	cfg.JitterStrategy = JitterEqual
	for i := 0; i < 20; i++ {
		d := cfg.applyJitter(100 * time.Millisecond)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 100*time.Millisecond)
	}
}

func TestMaxElapsedTime(t *testing.T) {
	mt := newManualTime()
	cfg := fixed(10)
	cfg.MaxDelay = 50 * time.Millisecond
	cfg.MaxElapsedTime = 100 * time.Millisecond

	var attempts int32
	err := Do(context.Background(), mt.apply(cfg), func(context.Context) error {
		atomic.AddInt32(&attempts, 1)
		return customError{"temporary failure", true}
	})

	var retryErr *RetriesExceededError
	require.ErrorAs(t, err, &retryErr)
	assert.Equal(t, "max elapsed time exceeded", retryErr.Reason)
	// waits 10+20+40 fit the budget, the next 50 would not
	assert.EqualValues(t, 4, attempts)
	assert.Equal(t, 70*time.Millisecond, retryErr.TotalDuration)
}

func TestOnRetryCallback(t *testing.T) {
	mt := newManualTime()
	cfg := fixed(3)
	var calls []int
	var delays []time.Duration
	cfg.OnRetry = func(attempt int, err error, d time.Duration) {
		assert.Error(t, err)
		calls = append(calls, attempt)
		delays = append(delays, d)
	}

	var attempts int32
	err := Do(context.Background(), mt.apply(cfg), func(context.Context) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return customError{"temporary failure", true}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, calls)
	assert.Equal(t, mt.waits, delays)
}
