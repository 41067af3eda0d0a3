package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/axellelanca/acortador/internal/config"
	customerrors "github.com/axellelanca/acortador/internal/errors"
	"github.com/axellelanca/acortador/internal/logger"
	"github.com/axellelanca/acortador/internal/models"
	"github.com/axellelanca/acortador/internal/repository"
)

// AnonymousKey is the bucket shared by clients without an IP under the "shared" policy.
const AnonymousKey = "anonymous"

// RateLimitOptions configures RateLimitService.
type RateLimitOptions struct {
	Limit           int
	Window          time.Duration // 0 counts every record ever made
	AnonymousPolicy string
}

// DefaultRateLimitOptions is five creations per rolling day, anonymous clients pooled.
func DefaultRateLimitOptions() RateLimitOptions {
	return RateLimitOptions{Limit: 5, Window: 24 * time.Hour, AnonymousPolicy: config.AnonymousShared}
}

// RateLimitService enforces the per-IP creation quota.
// Every request that creates a mapping leaves one record; a client is allowed while it
// has fewer than Limit records inside the window.
type RateLimitService struct {
	repo repository.RateLimitRepository
	opts RateLimitOptions
	now  func() time.Time

	// mu makes Acquire's count-and-insert atomic within the process.
	mu sync.Mutex
}

// NewRateLimitService creates and returns a new instance of RateLimitService.
func NewRateLimitService(repo repository.RateLimitRepository, opts RateLimitOptions) *RateLimitService {
	return &RateLimitService{
		repo: repo,
		opts: opts,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Limit returns the number of creations allowed per window.
func (s *RateLimitService) Limit() int {
	return s.opts.Limit
}

// CanRequest reports whether ip still has quota left. It does not record anything.
// Parameters:
//   - ip: the client address, "" when unknown
//
// Returns:
//   - bool: true while the count inside the window is strictly below the limit
//   - error: any storage error that occurred while counting
func (s *RateLimitService) CanRequest(ctx context.Context, ip string) (bool, error) {
	key, decided, allowed := s.resolveKey(ip)
	if decided {
		return allowed, nil
	}

	count, err := s.repo.CountSince(ctx, key, s.windowStart())
	if err != nil {
		return false, fmt.Errorf("failed to count requests: %w", err)
	}
	return count < int64(s.opts.Limit), nil
}

// RecordRequest appends one record for ip regardless of the current count.
// Exempt anonymous clients are not recorded; rejected ones get customerrors.ErrAnonymousClient.
func (s *RateLimitService) RecordRequest(ctx context.Context, ip string) error {
	key, decided, allowed := s.resolveKey(ip)
	if decided {
		if allowed {
			return nil
		}
		return customerrors.ErrAnonymousClient
	}

	if err := s.repo.CreateRecord(ctx, &models.RateLimitRecord{IP: key, CreatedAt: s.now()}); err != nil {
		return fmt.Errorf("failed to record request: %w", err)
	}
	return nil
}

// Acquire checks the quota and records the request in one atomic step.
// A denied request consumes nothing.
// Parameters:
//   - ip: the client address as seen by the router, "" when unknown
//
// Returns:
//   - bool: true when a slot was taken (or the anonymous policy exempts the client)
//   - error: a persistence failure; the request must then be refused
func (s *RateLimitService) Acquire(ctx context.Context, ip string) (bool, error) {
	// Anonymous clients may be settled by policy without touching storage
	key, decided, allowed := s.resolveKey(ip)
	if decided {
		return allowed, nil
	}

	// Count and insert must not interleave with another Acquire for the same process
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.repo.AcquireSlot(ctx, key, s.windowStart(), int64(s.opts.Limit), s.now())
	if err != nil {
		return false, fmt.Errorf("failed to acquire rate limit slot: %w", err)
	}
	if !ok {
		logger.Log.Info("rate limit reached", zap.String("ip", key), zap.Int("limit", s.opts.Limit))
	}
	return ok, nil
}

// Release gives back the slot taken by a successful Acquire, for when the creation
// that followed failed. Clients settled by the anonymous policy hold no slot.
func (s *RateLimitService) Release(ctx context.Context, ip string) error {
	key, decided, _ := s.resolveKey(ip)
	if decided {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.ReleaseSlot(ctx, key); err != nil {
		return fmt.Errorf("failed to release rate limit slot: %w", err)
	}
	return nil
}

// Remaining returns how many creations ip may still perform in the current window.
func (s *RateLimitService) Remaining(ctx context.Context, ip string) (int, error) {
	key, decided, allowed := s.resolveKey(ip)
	if decided {
		if allowed {
			return s.opts.Limit, nil
		}
		return 0, nil
	}

	count, err := s.repo.CountSince(ctx, key, s.windowStart())
	if err != nil {
		return 0, fmt.Errorf("failed to count requests: %w", err)
	}
	return max(s.opts.Limit-int(count), 0), nil
}

// Purge deletes the records that fell out of the window. With lifetime counting
// (zero window) every record matters and nothing is deleted.
func (s *RateLimitService) Purge(ctx context.Context) (int64, error) {
	if s.opts.Window == 0 {
		return 0, nil
	}
	n, err := s.repo.PurgeOlderThan(ctx, s.windowStart())
	if err != nil {
		return 0, fmt.Errorf("failed to purge rate limit records: %w", err)
	}
	return n, nil
}

// windowStart is the zero time for lifetime counting.
func (s *RateLimitService) windowStart() time.Time {
	if s.opts.Window == 0 {
		return time.Time{}
	}
	return s.now().Add(-s.opts.Window)
}

// resolveKey maps ip to its storage key. decided is true when the anonymous policy
// settles the request without storage, allowed then carries the verdict.
func (s *RateLimitService) resolveKey(ip string) (key string, decided, allowed bool) {
	ip = strings.TrimSpace(ip)
	if ip != "" {
		return ip, false, false
	}

	switch s.opts.AnonymousPolicy {
	case config.AnonymousReject:
		return "", true, false
	case config.AnonymousExempt:
		return "", true, true
	default:
		return AnonymousKey, false, false
	}
}

// NewRateLimitOptions reads the ratelimit section of the configuration.
func NewRateLimitOptions(cfg *config.Config) RateLimitOptions {
	return RateLimitOptions{
		Limit:           cfg.RateLimit.Limit,
		Window:          cfg.RateLimit.Window,
		AnonymousPolicy: cfg.RateLimit.AnonymousPolicy,
	}
}
