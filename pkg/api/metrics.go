package api

import (
	"context"

	"github.com/taxonline/admin/cli/pkg/client"
	"github.com/taxonline/admin/cli/pkg/logger"
)

// Health reports the state of the vector store, search index and model host.
func (a *API) Health(ctx context.Context) (*HealthReport, error) {
	logger.Debug("Fetching service health")

	var h HealthReport
	if err := a.c.Get(ctx, "/metrics/health", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Realtime returns query metrics for the last hour.
func (a *API) Realtime(ctx context.Context) (*RealtimeMetrics, error) {
	logger.Debug("Fetching realtime metrics")

	var m RealtimeMetrics
	if err := a.c.Get(ctx, "/metrics/realtime", &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Performance returns hourly query performance over the last hours.
func (a *API) Performance(ctx context.Context, hours int) ([]PerformancePoint, error) {
	logger.Debug("Fetching performance", "hours", hours)

	var points []PerformancePoint
	if err := a.c.Get(ctx, "/metrics/performance", &points, client.WithQuery("hours", itoa(hours))); err != nil {
		return nil, err
	}
	return points, nil
}
