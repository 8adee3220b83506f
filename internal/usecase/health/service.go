package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/sonicweb/internal/sonic"
)

// DefaultTimeout bounds each component check when none is configured.
const DefaultTimeout = 2 * time.Second

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

var channels = []sonic.Channel{sonic.ChannelIngest, sonic.ChannelSearch, sonic.ChannelControl}

// Service coordinates health checks.
type Service struct {
	db      DBPinger
	sonic   SonicPinger
	cache   DBPinger
	timeout time.Duration
}

// New creates a Service. cache can be nil.
func New(db DBPinger, index SonicPinger, cache DBPinger) *Service {
	return &Service{db: db, sonic: index, cache: cache, timeout: DefaultTimeout}
}

// WithTimeout sets the per-component deadline. A check still running when it
// expires is reported as an error.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Check runs all component checks concurrently, each under its own deadline.
func (s *Service) Check(ctx context.Context) Report {
	pings := map[string]func(context.Context) error{
		"database": s.db.Ping,
	}
	for _, ch := range channels {
		pings["sonic_"+string(ch)] = func(ctx context.Context) error { return s.sonic.Ping(ctx, ch) }
	}
	if s.cache != nil {
		pings["cache"] = s.cache.Ping
	}

	var (
		mu     sync.Mutex
		g      errgroup.Group
		checks = make(map[string]CheckResult, len(pings))
	)
	for name, ping := range pings {
		g.Go(func() error {
			res := s.run(ctx, ping)
			mu.Lock()
			checks[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, v := range checks {
		if v == CheckError {
			failed++
		}
	}

	status := Healthy
	switch {
	case failed == len(checks):
		status = Unhealthy
	case failed > 0:
		status = Degraded
	}

	return Report{Status: status, Checks: checks}
}

// run returns CheckError once the deadline passes even if ping never returns.
func (s *Service) run(ctx context.Context, ping func(context.Context) error) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- ping(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			return CheckError
		}
		return CheckOK
	case <-ctx.Done():
		return CheckError
	}
}
