package api

import (
	"context"
	"fmt"
	"mime"
	"strconv"

	"github.com/taxonline/admin/cli/pkg/client"
	"github.com/taxonline/admin/cli/pkg/logger"
)

// Coverage returns indexed documents and chunks per fiscal domain.
func (a *API) Coverage(ctx context.Context) ([]CoverageRow, error) {
	logger.Debug("Fetching coverage")

	var rows []CoverageRow
	if err := a.c.Get(ctx, "/analytics/coverage", &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Heatmap returns query counts per day and domain.
func (a *API) Heatmap(ctx context.Context, days int) ([]HeatmapCell, error) {
	logger.Debug("Fetching heatmap", "days", days)

	var cells []HeatmapCell
	if err := a.c.Get(ctx, "/analytics/heatmap", &cells, client.WithQuery("days", itoa(days))); err != nil {
		return nil, err
	}
	return cells, nil
}

// TopQueries returns the most frequent queries.
func (a *API) TopQueries(ctx context.Context, limit int, failedOnly bool) ([]TopQuery, error) {
	logger.Debug("Fetching top queries", "limit", limit, "failed_only", failedOnly)

	opts := []client.RequestOption{client.WithQuery("limit", itoa(limit))}
	if failedOnly {
		opts = append(opts, client.WithQuery("failed_only", "true"))
	}
	var rows []TopQuery
	if err := a.c.Get(ctx, "/analytics/top-queries", &rows, opts...); err != nil {
		return nil, err
	}
	return rows, nil
}

// UserBehavior returns hourly usage over the last days.
func (a *API) UserBehavior(ctx context.Context, days int) ([]BehaviorPoint, error) {
	logger.Debug("Fetching user behavior", "days", days)

	var points []BehaviorPoint
	if err := a.c.Get(ctx, "/analytics/user-behavior", &points, client.WithQuery("days", itoa(days))); err != nil {
		return nil, err
	}
	return points, nil
}

// Export downloads a table as CSV or JSON.
func (a *API) Export(ctx context.Context, req ExportRequest) (*Export, error) {
	logger.Debug("Exporting", "table", req.Table, "format", req.Format, "days", req.Days)

	data, header, err := a.c.Download(ctx, "/analytics/export",
		client.WithQuery("format", req.Format),
		client.WithQuery("table", req.Table),
		client.WithQuery("days", strconv.Itoa(req.Days)))
	if err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("%s_%dd.%s", req.Table, req.Days, req.Format)
	if _, params, err := mime.ParseMediaType(header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		filename = params["filename"]
	}
	return &Export{
		Filename:    filename,
		ContentType: header.Get("Content-Type"),
		Data:        data,
	}, nil
}
