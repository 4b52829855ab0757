package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/taxonline/admin/cli/pkg/api"
	"github.com/taxonline/admin/cli/pkg/logger"
)

// AnalyticsService reads corpus coverage and query analytics and exports
// raw tables.
type AnalyticsService struct {
	api  *api.API
	caps Capabilities

	coverage *Cached[[]api.CoverageRow]
	heatmap  *Cached[[]api.HeatmapCell]
	top      *Cached[[]api.TopQuery]
	behavior *Cached[[]api.BehaviorPoint]
}

// NewAnalyticsService creates the analytics view.
func NewAnalyticsService(a *api.API, caps Capabilities) *AnalyticsService {
	return &AnalyticsService{
		api:      a,
		caps:     caps,
		coverage: NewCached[[]api.CoverageRow](5 * time.Minute),
		heatmap:  NewCached[[]api.HeatmapCell](5 * time.Minute),
		top:      NewCached[[]api.TopQuery](5 * time.Minute),
		behavior: NewCached[[]api.BehaviorPoint](5 * time.Minute),
	}
}

func (s *AnalyticsService) Coverage(ctx context.Context) ([]api.CoverageRow, error) {
	if err := requireSession(s.caps); err != nil {
		return nil, err
	}
	return s.coverage.Get(ctx, "", func(ctx context.Context) ([]api.CoverageRow, error) {
		rows, err := s.api.Coverage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch coverage: %w", err)
		}
		return rows, nil
	})
}

func (s *AnalyticsService) Heatmap(ctx context.Context, days int) ([]api.HeatmapCell, error) {
	if err := requireSession(s.caps); err != nil {
		return nil, err
	}
	return s.heatmap.Get(ctx, key(days), func(ctx context.Context) ([]api.HeatmapCell, error) {
		cells, err := s.api.Heatmap(ctx, days)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch heatmap: %w", err)
		}
		return cells, nil
	})
}

func (s *AnalyticsService) TopQueries(ctx context.Context, limit int, failedOnly bool) ([]api.TopQuery, error) {
	if err := requireSession(s.caps); err != nil {
		return nil, err
	}
	return s.top.Get(ctx, key(limit, failedOnly), func(ctx context.Context) ([]api.TopQuery, error) {
		rows, err := s.api.TopQueries(ctx, limit, failedOnly)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch top queries: %w", err)
		}
		return rows, nil
	})
}

func (s *AnalyticsService) Behavior(ctx context.Context, days int) ([]api.BehaviorPoint, error) {
	if err := requireSession(s.caps); err != nil {
		return nil, err
	}
	return s.behavior.Get(ctx, key(days), func(ctx context.Context) ([]api.BehaviorPoint, error) {
		points, err := s.api.UserBehavior(ctx, days)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch user behavior: %w", err)
		}
		return points, nil
	})
}

// Export downloads a table and writes it into dir. It returns the path of
// the written file.
func (s *AnalyticsService) Export(ctx context.Context, req api.ExportRequest, dir string) (string, error) {
	if err := requireSession(s.caps); err != nil {
		return "", err
	}
	if err := validate.Struct(req); err != nil {
		return "", err
	}

	exp, err := s.api.Export(ctx, req)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	// The name comes from a response header; never let it leave dir.
	dest := filepath.Join(dir, filepath.Base(exp.Filename))
	if err := os.WriteFile(dest, exp.Data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}

	logger.Info("Export written", "path", dest, "bytes", len(exp.Data))
	return dest, nil
}
