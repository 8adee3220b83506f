package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/sonicweb/internal/db"
)

var _ db.CacheStore = (*Store)(nil)

// DefaultTimeout bounds each cache round trip when Config.Timeout is zero.
const DefaultTimeout = 200 * time.Millisecond

// Config holds connection parameters for the document cache (Redis or Valkey).
type Config struct {
	Addrs    []string
	Password string
	// Timeout bounds every cache call. A slow cache is treated as a miss by
	// callers rather than holding up a search.
	Timeout time.Duration
}

// Store is the rueidis-backed document cache.
type Store struct {
	client  rueidis.Client
	timeout time.Duration
}

// NewStore dials the cache. Server-assisted client caching stays off: every
// entry is written once and read by id, so there is nothing to invalidate.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("%w: cache addrs are required", db.ErrInvalidConfig)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:      cfg.Addrs,
		Password:         cfg.Password,
		DisableCache:     true,
		ConnWriteTimeout: cfg.Timeout,
	})
	if err != nil {
		return nil, &db.Error{Op: db.OpConnect, Err: err}
	}

	return &Store{client: client, timeout: cfg.Timeout}, nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// Ping sends PING within the store timeout.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.client.Do(ctx, s.client.B().Ping().Build()).Error(); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady polls Ping until the cache answers or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var lastErr error
	for {
		if lastErr = s.Ping(ctx); lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("cache not ready after %s: %w", timeout, lastErr)
		case <-ticker.C:
		}
	}
}
