package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/axellelanca/acortador/internal/config"
	customerrors "github.com/axellelanca/acortador/internal/errors"
	"github.com/axellelanca/acortador/internal/models"
	"github.com/axellelanca/acortador/internal/repository"
)

const testIP = "192.168.1.1"

var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func newMockedLimiter(t *testing.T, opts RateLimitOptions) (*RateLimitService, *MockRateLimitRepository) {
	t.Helper()

	repo := new(MockRateLimitRepository)
	t.Cleanup(func() { repo.AssertExpectations(t) })

	svc := NewRateLimitService(repo, opts)
	svc.now = func() time.Time { return testNow }
	return svc, repo
}

// clock is a settable time source for SQLite-backed tests.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newSQLiteLimiter(t *testing.T, opts RateLimitOptions) (*RateLimitService, *clock) {
	t.Helper()

	clk := &clock{now: testNow}
	svc := NewRateLimitService(repository.NewRateLimitRepository(newTestDB(t)), opts)
	svc.now = clk.Now
	return svc, clk
}

func TestRateLimitService_CanRequest(t *testing.T) {
	ctx := context.Background()
	windowStart := testNow.Add(-24 * time.Hour)

	tests := []struct {
		name  string
		count int64
		want  bool
	}{
		{name: "no records", count: 0, want: true},
		{name: "three records", count: 3, want: true},
		{name: "four records", count: 4, want: true},
		{name: "five records", count: 5, want: false},
		{name: "over the limit", count: 12, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newMockedLimiter(t, DefaultRateLimitOptions())
			repo.On("CountSince", ctx, testIP, windowStart).Once().Return(tt.count, nil)

			ok, err := svc.CanRequest(ctx, testIP)

			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}

	t.Run("persistence failure", func(t *testing.T) {
		svc, repo := newMockedLimiter(t, DefaultRateLimitOptions())
		repo.On("CountSince", ctx, testIP, windowStart).Once().
			Return(int64(0), customerrors.Persistence("count", errors.New("boom")))

		ok, err := svc.CanRequest(ctx, testIP)

		assert.ErrorIs(t, err, customerrors.ErrPersistence)
		assert.False(t, ok)
	})

	t.Run("lifetime window counts without lower bound", func(t *testing.T) {
		opts := DefaultRateLimitOptions()
		opts.Window = 0
		svc, repo := newMockedLimiter(t, opts)
		repo.On("CountSince", ctx, testIP, time.Time{}).Once().Return(int64(4), nil)

		ok, err := svc.CanRequest(ctx, testIP)

		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestRateLimitService_RecordRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("records regardless of count", func(t *testing.T) {
		svc, repo := newMockedLimiter(t, DefaultRateLimitOptions())
		repo.On("CreateRecord", ctx, &models.RateLimitRecord{IP: testIP, CreatedAt: testNow}).Times(7).Return(nil)

		for i := 0; i < 7; i++ {
			assert.NoError(t, svc.RecordRequest(ctx, testIP))
		}
		repo.AssertNotCalled(t, "CountSince", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("persistence failure propagates", func(t *testing.T) {
		svc, repo := newMockedLimiter(t, DefaultRateLimitOptions())
		repo.On("CreateRecord", ctx, mock.Anything).Once().Return(customerrors.Persistence("create", errors.New("boom")))

		assert.ErrorIs(t, svc.RecordRequest(ctx, testIP), customerrors.ErrPersistence)
	})
}

func TestRateLimitService_AnonymousPolicies(t *testing.T) {
	ctx := context.Background()

	t.Run("shared pools every anonymous client", func(t *testing.T) {
		svc, _ := newSQLiteLimiter(t, DefaultRateLimitOptions())

		for _, ip := range []string{"", "  ", "", "\t", ""} {
			ok, err := svc.Acquire(ctx, ip)
			require.NoError(t, err)
			require.True(t, ok)
		}

		ok, err := svc.CanRequest(ctx, "")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = svc.CanRequest(ctx, AnonymousKey)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = svc.CanRequest(ctx, testIP)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("reject denies anonymous clients", func(t *testing.T) {
		opts := DefaultRateLimitOptions()
		opts.AnonymousPolicy = config.AnonymousReject
		svc, _ := newMockedLimiter(t, opts)

		ok, err := svc.CanRequest(ctx, "")
		assert.NoError(t, err)
		assert.False(t, ok)

		ok, err = svc.Acquire(ctx, " ")
		assert.NoError(t, err)
		assert.False(t, ok)

		assert.ErrorIs(t, svc.RecordRequest(ctx, ""), customerrors.ErrAnonymousClient)

		remaining, err := svc.Remaining(ctx, "")
		assert.NoError(t, err)
		assert.Zero(t, remaining)
	})

	t.Run("exempt never limits nor records anonymous clients", func(t *testing.T) {
		opts := DefaultRateLimitOptions()
		opts.AnonymousPolicy = config.AnonymousExempt
		svc, repo := newMockedLimiter(t, opts)

		for i := 0; i < 10; i++ {
			ok, err := svc.Acquire(ctx, "")
			require.NoError(t, err)
			require.True(t, ok)
		}
		assert.NoError(t, svc.RecordRequest(ctx, ""))

		remaining, err := svc.Remaining(ctx, "")
		assert.NoError(t, err)
		assert.Equal(t, 5, remaining)

		repo.AssertNotCalled(t, "AcquireSlot", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "CreateRecord", mock.Anything, mock.Anything)
	})
}

func TestRateLimitService_Window(t *testing.T) {
	ctx := context.Background()

	t.Run("rolling day", func(t *testing.T) {
		svc, clk := newSQLiteLimiter(t, DefaultRateLimitOptions())

		for i := 0; i < 5; i++ {
			require.NoError(t, svc.RecordRequest(ctx, testIP))
		}

		clk.Advance(23 * time.Hour)
		ok, err := svc.CanRequest(ctx, testIP)
		require.NoError(t, err)
		assert.False(t, ok)

		clk.Advance(time.Hour + time.Second)
		ok, err = svc.CanRequest(ctx, testIP)
		require.NoError(t, err)
		assert.True(t, ok)

		remaining, err := svc.Remaining(ctx, testIP)
		require.NoError(t, err)
		assert.Equal(t, 5, remaining)
	})

	t.Run("lifetime count never resets", func(t *testing.T) {
		opts := DefaultRateLimitOptions()
		opts.Window = 0
		svc, clk := newSQLiteLimiter(t, opts)

		for i := 0; i < 5; i++ {
			require.NoError(t, svc.RecordRequest(ctx, testIP))
		}

		clk.Advance(30 * 24 * time.Hour)
		ok, err := svc.CanRequest(ctx, testIP)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestRateLimitService_Acquire(t *testing.T) {
	ctx := context.Background()

	t.Run("denied request consumes nothing", func(t *testing.T) {
		svc, _ := newSQLiteLimiter(t, DefaultRateLimitOptions())

		for i := 0; i < 5; i++ {
			ok, err := svc.Acquire(ctx, testIP)
			require.NoError(t, err)
			require.True(t, ok, "request %d", i+1)
		}

		for i := 0; i < 3; i++ {
			ok, err := svc.Acquire(ctx, testIP)
			require.NoError(t, err)
			assert.False(t, ok)
		}

		count, err := svc.repo.CountSince(ctx, testIP, time.Time{})
		require.NoError(t, err)
		assert.EqualValues(t, 5, count)
	})

	t.Run("concurrent requests never exceed the limit", func(t *testing.T) {
		svc, _ := newSQLiteLimiter(t, DefaultRateLimitOptions())

		var granted atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 25; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := svc.Acquire(ctx, testIP)
				assert.NoError(t, err)
				if ok {
					granted.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.EqualValues(t, 5, granted.Load())
	})

	t.Run("persistence failure", func(t *testing.T) {
		svc, repo := newMockedLimiter(t, DefaultRateLimitOptions())
		repo.On("AcquireSlot", ctx, testIP, testNow.Add(-24*time.Hour), int64(5), testNow).Once().
			Return(false, customerrors.Persistence("acquire", errors.New("boom")))

		ok, err := svc.Acquire(ctx, testIP)

		assert.ErrorIs(t, err, customerrors.ErrPersistence)
		assert.False(t, ok)
	})
}

func TestRateLimitService_Purge(t *testing.T) {
	ctx := context.Background()

	t.Run("purges records outside the window", func(t *testing.T) {
		svc, repo := newMockedLimiter(t, DefaultRateLimitOptions())
		repo.On("PurgeOlderThan", ctx, testNow.Add(-24*time.Hour)).Once().Return(int64(3), nil)

		n, err := svc.Purge(ctx)

		require.NoError(t, err)
		assert.EqualValues(t, 3, n)
	})

	t.Run("lifetime window keeps everything", func(t *testing.T) {
		opts := DefaultRateLimitOptions()
		opts.Window = 0
		svc, repo := newMockedLimiter(t, opts)

		n, err := svc.Purge(ctx)

		require.NoError(t, err)
		assert.Zero(t, n)
		repo.AssertNotCalled(t, "PurgeOlderThan", mock.Anything, mock.Anything)
	})
}

func TestRateLimitService_Release(t *testing.T) {
	ctx := context.Background()

	t.Run("released slot can be acquired again", func(t *testing.T) {
		svc, _ := newSQLiteLimiter(t, DefaultRateLimitOptions())

		for i := 0; i < 5; i++ {
			ok, err := svc.Acquire(ctx, testIP)
			require.NoError(t, err)
			require.True(t, ok)
		}

		require.NoError(t, svc.Release(ctx, testIP))

		remaining, err := svc.Remaining(ctx, testIP)
		require.NoError(t, err)
		assert.Equal(t, 1, remaining)

		ok, err := svc.Acquire(ctx, testIP)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("exempt anonymous client holds no slot", func(t *testing.T) {
		opts := DefaultRateLimitOptions()
		opts.AnonymousPolicy = config.AnonymousExempt
		svc, repo := newMockedLimiter(t, opts)

		require.NoError(t, svc.Release(ctx, ""))
		repo.AssertNotCalled(t, "ReleaseSlot", mock.Anything, mock.Anything)
	})

	t.Run("shared anonymous bucket", func(t *testing.T) {
		svc, repo := newMockedLimiter(t, DefaultRateLimitOptions())
		repo.On("ReleaseSlot", ctx, AnonymousKey).Once().Return(nil)

		assert.NoError(t, svc.Release(ctx, "  "))
	})

	t.Run("persistence failure", func(t *testing.T) {
		svc, repo := newMockedLimiter(t, DefaultRateLimitOptions())
		repo.On("ReleaseSlot", ctx, testIP).Once().
			Return(customerrors.Persistence("release", errors.New("boom")))

		assert.ErrorIs(t, svc.Release(ctx, testIP), customerrors.ErrPersistence)
	})
}
