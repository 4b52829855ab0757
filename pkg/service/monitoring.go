package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/taxonline/admin/cli/pkg/api"
	"github.com/taxonline/admin/cli/pkg/logger"
)

// Refresh intervals of the monitoring queries.
const (
	HealthTTL      = 30 * time.Second
	RealtimeTTL    = 10 * time.Second
	PerformanceTTL = 60 * time.Second
)

// MonitoringService reads service health and query metrics.
type MonitoringService struct {
	api  *api.API
	caps Capabilities

	health      *Cached[*api.HealthReport]
	realtime    *Cached[*api.RealtimeMetrics]
	performance *Cached[[]api.PerformancePoint]
}

// NewMonitoringService creates the monitoring view.
func NewMonitoringService(a *api.API, caps Capabilities) *MonitoringService {
	return &MonitoringService{
		api:         a,
		caps:        caps,
		health:      NewCached[*api.HealthReport](HealthTTL),
		realtime:    NewCached[*api.RealtimeMetrics](RealtimeTTL),
		performance: NewCached[[]api.PerformancePoint](PerformanceTTL),
	}
}

func (s *MonitoringService) Health(ctx context.Context) (*api.HealthReport, error) {
	if err := requireSession(s.caps); err != nil {
		return nil, err
	}
	return s.health.Get(ctx, "", func(ctx context.Context) (*api.HealthReport, error) {
		h, err := s.api.Health(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to check health: %w", err)
		}
		return h, nil
	})
}

func (s *MonitoringService) Realtime(ctx context.Context) (*api.RealtimeMetrics, error) {
	if err := requireSession(s.caps); err != nil {
		return nil, err
	}
	return s.realtime.Get(ctx, "", func(ctx context.Context) (*api.RealtimeMetrics, error) {
		m, err := s.api.Realtime(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch realtime metrics: %w", err)
		}
		return m, nil
	})
}

func (s *MonitoringService) Performance(ctx context.Context, hours int) ([]api.PerformancePoint, error) {
	if err := requireSession(s.caps); err != nil {
		return nil, err
	}
	return s.performance.Get(ctx, key(hours), func(ctx context.Context) ([]api.PerformancePoint, error) {
		p, err := s.api.Performance(ctx, hours)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch performance: %w", err)
		}
		return p, nil
	})
}

// Dashboard is everything the monitoring screen shows.
type Dashboard struct {
	Health      *api.HealthReport      `json:"health"`
	Realtime    *api.RealtimeMetrics   `json:"realtime"`
	Performance []api.PerformancePoint `json:"performance"`
}

// Dashboard fetches the three monitoring queries concurrently. They are
// independent and may complete in any order; the first failure cancels
// the others.
func (s *MonitoringService) Dashboard(ctx context.Context, hours int) (*Dashboard, error) {
	if err := requireSession(s.caps); err != nil {
		return nil, err
	}

	var d Dashboard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.Health, err = s.Health(gctx)
		return err
	})
	g.Go(func() (err error) {
		d.Realtime, err = s.Realtime(gctx)
		return err
	})
	g.Go(func() (err error) {
		d.Performance, err = s.Performance(gctx, hours)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Debug("Dashboard loaded", "overall", d.Health.Overall)
	return &d, nil
}

// Watch reloads the dashboard every interval until ctx ends, passing
// each snapshot to fn. A failed reload is reported and retried on the
// next tick.
func (s *MonitoringService) Watch(ctx context.Context, hours int, interval time.Duration, fn func(*Dashboard, error)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		d, err := s.Dashboard(ctx, hours)
		if ctx.Err() != nil {
			return nil
		}
		fn(d, err)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.realtime.Invalidate()
		}
	}
}
