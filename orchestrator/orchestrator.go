// Package orchestrator runs one query across the configured sources, one
// source at a time, and folds the results into a request-scoped aggregate.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/use-agent/offerscout/config"
	"github.com/use-agent/offerscout/extractor"
	"github.com/use-agent/offerscout/metrics"
	"github.com/use-agent/offerscout/models"
)

// Driver is the Page Driver as seen by the orchestrator.
type Driver interface {
	Drive(ctx context.Context, requestID, query string, src *models.Source) *models.SourceResult
}

// Orchestrator sequences Page Driver calls. Queries are serialised so only
// one tab is ever open at a time.
type Orchestrator struct {
	driver       Driver
	sources      []models.Source
	queryTimeout time.Duration

	mu sync.Mutex
}

// New creates an Orchestrator over the ordered source catalogue.
func New(driver Driver, sources []models.Source, queryTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		driver:       driver,
		sources:      sources,
		queryTimeout: queryTimeout,
	}
}

// Sources returns the configured catalogue in order.
func (o *Orchestrator) Sources() []models.Source {
	out := make([]models.Source, len(o.sources))
	copy(out, o.sources)
	return out
}

// Select resolves a requested subset of source ids. An empty list selects
// every configured source.
func (o *Orchestrator) Select(ids []string) ([]models.Source, error) {
	srcs, err := config.FilterSources(o.sources, ids)
	if err != nil {
		return nil, models.NewDriveError(models.ErrCodeInvalidInput, "", err.Error(), err)
	}
	return srcs, nil
}

// HandleQuery drives every source in srcs for query and replies exactly
// once. The aggregate holds one entry per source even when every drive
// came back empty. Success is false only when a fault escaped the drivers.
func (o *Orchestrator) HandleQuery(ctx context.Context, query string, srcs []models.Source) (resp *models.SearchResponse) {
	start := time.Now()
	requestID := uuid.NewString()

	o.mu.Lock()
	defer o.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("query failed", "request_id", requestID, "panic", r)
			metrics.QueriesTotal.WithLabelValues("failed").Inc()
			resp = &models.SearchResponse{
				Success:   false,
				RequestID: requestID,
				Query:     query,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInternal,
					Message: fmt.Sprintf("unexpected fault: %v", r),
				},
			}
		}
	}()

	if o.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.queryTimeout)
		defer cancel()
	}

	ids := make([]string, len(srcs))
	for i := range srcs {
		ids[i] = srcs[i].ID
	}
	agg := models.NewAggregate(ids)
	timing := &models.TimingInfo{Sources: make(map[string]int64, len(srcs))}

	slog.Info("query started", "request_id", requestID, "query", query, "sources", len(srcs))

	for i := range srcs {
		src := &srcs[i]
		driveStart := time.Now()
		agg.Set(src.ID, o.driver.Drive(ctx, requestID, query, src))
		timing.Sources[src.ID] = time.Since(driveStart).Milliseconds()
	}

	best := BestOffer(agg, srcs)
	timing.TotalMs = time.Since(start).Milliseconds()

	metrics.QueriesTotal.WithLabelValues("success").Inc()
	metrics.QueryDuration.Observe(time.Since(start).Seconds())
	slog.Info("query complete",
		"request_id", requestID,
		"found", found(agg),
		"best", bestSource(best),
		"elapsed", time.Since(start),
	)

	return &models.SearchResponse{
		Success:   true,
		RequestID: requestID,
		Query:     query,
		Data:      agg,
		BestOffer: best,
		Timing:    timing,
	}
}

// BestOffer picks the source with the lowest parseable price, scanning in
// configured order so ties go to the earlier source. Entries without a
// parseable price are skipped.
func BestOffer(agg *models.AggregateResult, srcs []models.Source) *models.BestOffer {
	var best *models.BestOffer
	for i := range srcs {
		res, _ := agg.Get(srcs[i].ID)
		if res == nil || res.Price == nil {
			continue
		}
		v, ok := extractor.ParsePrice(*res.Price)
		if !ok {
			continue
		}
		if best == nil || v < best.Amount {
			best = &models.BestOffer{
				Source: srcs[i].ID,
				Label:  srcs[i].Label,
				Price:  *res.Price,
				Amount: v,
				URL:    models.Deref(res.URL),
			}
		}
	}
	return best
}

func found(agg *models.AggregateResult) int {
	n := 0
	for _, id := range agg.Keys() {
		if r, _ := agg.Get(id); r != nil {
			n++
		}
	}
	return n
}

func bestSource(b *models.BestOffer) string {
	if b == nil {
		return ""
	}
	return b.Source
}
