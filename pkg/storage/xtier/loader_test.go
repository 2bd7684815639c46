package xtier

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend unavailable")

func TestNewLoader_Errors(t *testing.T) {
	c := newTestCache[string](t, Config{})
	fn := func(context.Context, string) (string, error) { return "", nil }

	_, err := NewLoader[string](nil, fn)
	assert.ErrorIs(t, err, ErrNilCache)

	_, err = NewLoader[string](c, nil)
	assert.ErrorIs(t, err, ErrNilLoadFunc)

	_, err = NewLoader(c, fn, nil)
	assert.ErrorIs(t, err, ErrNilOption)
}

func TestLoader_Load_WhenCacheHit_ReturnsFromCache(t *testing.T) {
	// Given
	c := newTestCache[string](t, Config{})
	_, _, err := c.Insert("uid=alice", "cached")
	require.NoError(t, err)

	var calls atomic.Int32
	l, err := NewLoader(c, func(context.Context, string) (string, error) {
		calls.Add(1)
		return "backend", nil
	})
	require.NoError(t, err)

	// When
	v, err := l.Load(context.Background(), "uid=alice")

	// Then
	require.NoError(t, err)
	assert.Equal(t, "cached", v)
	assert.Zero(t, calls.Load())
}

func TestLoader_Load_WhenCacheMiss_LoadsAndFillsReservation(t *testing.T) {
	// Given
	c := newTestCache[string](t, Config{})
	l, err := NewLoader(c, func(_ context.Context, key string) (string, error) {
		return "value-of-" + key, nil
	})
	require.NoError(t, err)

	// When
	v, err := l.Load(context.Background(), "k")

	// Then
	require.NoError(t, err)
	assert.Equal(t, "value-of-k", v)
	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "value-of-k", got)

	st := c.Stats()
	assert.Equal(t, uint64(1), st.Reservations)
	assert.Equal(t, uint64(1), st.Updates)
	assert.Equal(t, 1, st.Occupancy, "reserved slot is filled in place")
}

func TestLoader_Load_EmptyKey(t *testing.T) {
	c := newTestCache[string](t, Config{})
	l, err := NewLoader(c, func(context.Context, string) (string, error) { return "x", nil })
	require.NoError(t, err)

	_, err = l.Load(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestLoader_Load_WhenBackendFails_ReturnsErrorAndDoesNotStore(t *testing.T) {
	c := newTestCache[string](t, Config{})
	l, err := NewLoader(c, func(context.Context, string) (string, error) {
		return "", errBackend
	})
	require.NoError(t, err)

	_, err = l.Load(context.Background(), "k")
	assert.ErrorIs(t, err, errBackend)
	assert.False(t, c.ContainsKey("k"))
}

func TestLoader_Load_ConcurrentMissesShareOneLoad(t *testing.T) {
	// Given
	const n = 16
	c := newTestCache[int](t, Config{})
	release := make(chan struct{})
	var calls atomic.Int32
	l, err := NewLoader(c, func(context.Context, string) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	})
	require.NoError(t, err)

	// When
	var wg sync.WaitGroup
	results := make([]int, n)
	for i := range n {
		wg.Go(func() {
			v, err := l.Load(context.Background(), "hot")
			assert.NoError(t, err)
			results[i] = v
		})
	}
	require.Eventually(t, func() bool {
		return c.Stats().Misses == n
	}, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	// Then
	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestLoader_Load_RetriesTransientErrors(t *testing.T) {
	c := newTestCache[string](t, Config{})
	var calls atomic.Int32
	l, err := NewLoader(c, func(context.Context, string) (string, error) {
		if calls.Add(1) < 3 {
			return "", errBackend
		}
		return "ok", nil
	}, WithLoadRetry(3, time.Millisecond))
	require.NoError(t, err)

	v, err := l.Load(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, int32(3), calls.Load())
}

func TestLoader_Load_RetryExhausted(t *testing.T) {
	c := newTestCache[string](t, Config{})
	var calls atomic.Int32
	l, err := NewLoader(c, func(context.Context, string) (string, error) {
		calls.Add(1)
		return "", errBackend
	}, WithLoadRetry(2, time.Millisecond))
	require.NoError(t, err)

	_, err = l.Load(context.Background(), "k")
	assert.ErrorIs(t, err, errBackend)
	assert.Equal(t, int32(2), calls.Load())
}

func TestLoader_Load_WhenLoadPanics_ReturnsErrorWithoutRetry(t *testing.T) {
	c := newTestCache[string](t, Config{})
	var calls atomic.Int32
	l, err := NewLoader(c, func(context.Context, string) (string, error) {
		calls.Add(1)
		panic("boom")
	}, WithLoadRetry(5, time.Millisecond))
	require.NoError(t, err)

	_, err = l.Load(context.Background(), "k")
	assert.ErrorIs(t, err, ErrLoadPanic)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, int32(1), calls.Load())
}

func TestLoader_Load_BreakerOpensAfterFailures(t *testing.T) {
	// Given
	c := newTestCache[string](t, Config{})
	var calls atomic.Int32
	l, err := NewLoader(c, func(context.Context, string) (string, error) {
		calls.Add(1)
		return "", errBackend
	}, WithLoadBreaker(gobreaker.Settings{
		Name:    "directory",
		Timeout: time.Hour,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 2
		},
	}))
	require.NoError(t, err)

	// When
	for range 2 {
		_, err = l.Load(context.Background(), "k")
		require.ErrorIs(t, err, errBackend)
	}
	_, err = l.Load(context.Background(), "k")

	// Then
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), calls.Load())
}

func TestLoader_Load_CallerCancelDoesNotAbortSharedLoad(t *testing.T) {
	// Given
	c := newTestCache[string](t, Config{})
	started := make(chan struct{})
	release := make(chan struct{})
	l, err := NewLoader(c, func(ctx context.Context, _ string) (string, error) {
		close(started)
		select {
		case <-release:
			return "late", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := l.Load(ctx, "k")
		errCh <- err
	}()
	<-started

	// When
	cancel()

	// Then
	assert.ErrorIs(t, <-errCh, context.Canceled)
	close(release)
	require.Eventually(t, func() bool {
		return c.ContainsKey("k")
	}, time.Second, time.Millisecond)
}

func TestLoader_Load_Timeout(t *testing.T) {
	c := newTestCache[string](t, Config{})
	l, err := NewLoader(c, func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}, WithLoadTimeout(10*time.Millisecond))
	require.NoError(t, err)

	_, err = l.Load(context.Background(), "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoader_Forget(t *testing.T) {
	c := newTestCache[string](t, Config{})
	release := make(chan struct{})
	var calls atomic.Int32
	l, err := NewLoader(c, func(context.Context, string) (string, error) {
		if calls.Add(1) == 1 {
			<-release
			return "first", nil
		}
		return "second", nil
	})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = l.Load(context.Background(), "k")
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	l.Forget("k")
	v, err := l.Load(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "second", v)

	close(release)
	<-done
}
