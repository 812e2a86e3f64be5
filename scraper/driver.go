// Package scraper implements the Page Driver: one background tab per source
// per query, a settle delay after every load, a watchdog per navigation step
// and a guaranteed close.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/offerscout/config"
	"github.com/use-agent/offerscout/engine"
	"github.com/use-agent/offerscout/extractor"
	"github.com/use-agent/offerscout/metrics"
	"github.com/use-agent/offerscout/models"
	"github.com/use-agent/offerscout/relay"
)

// Driver drives sources. It is safe for concurrent use, though the
// orchestrator calls it sequentially.
type Driver struct {
	engines   engine.Registry
	extractor *extractor.Extractor
	relay     relay.Publisher
	cfg       config.DriverConfig
}

// NewDriver creates a Driver. pub may be nil.
func NewDriver(engines engine.Registry, ex *extractor.Extractor, pub relay.Publisher, cfg config.DriverConfig) *Driver {
	return &Driver{engines: engines, extractor: ex, relay: pub, cfg: cfg}
}

// Drive runs one source for query and returns its record, or nil when
// nothing was found or the source failed. It never returns an error: faults
// are logged, counted and published on the relay alongside the result.
func (d *Driver) Drive(ctx context.Context, requestID, query string, src *models.Source) *models.SourceResult {
	start := time.Now()
	res, err := d.drive(ctx, query, src)
	if res.Empty() {
		res = nil
	}

	outcome := "found"
	switch {
	case err != nil && models.CodeOf(err) == models.ErrCodeNavigationTimeout:
		outcome = "timeout"
	case res == nil && err != nil && models.CodeOf(err) != models.ErrCodeExtractionMiss:
		outcome = "fault"
	case res == nil:
		outcome = "empty"
	}
	metrics.SourceRunsTotal.WithLabelValues(src.ID, outcome).Inc()
	metrics.DriveDuration.WithLabelValues(src.ID).Observe(time.Since(start).Seconds())

	fault := ""
	if err != nil {
		fault = models.CodeOf(err)
		metrics.DriveFaultsTotal.WithLabelValues(src.ID, fault).Inc()
		slog.Warn("source drive absorbed an error",
			"source", src.ID,
			"request_id", requestID,
			"code", fault,
			"error", err,
			"elapsed", time.Since(start),
		)
	} else {
		slog.Info("source drive complete",
			"source", src.ID,
			"request_id", requestID,
			"found", res != nil,
			"elapsed", time.Since(start),
		)
	}

	if d.relay != nil {
		d.relay.Publish(relay.NewMessage(requestID, src.ID, res, fault))
	}
	return res
}

func (d *Driver) drive(ctx context.Context, query string, src *models.Source) (*models.SourceResult, error) {
	eng, err := d.engines.Get(src.EngineName())
	if err != nil {
		return nil, models.NewDriveError(models.ErrCodeNoContext, src.ID, "no engine", err)
	}

	sess, err := openSession(ctx, eng, src)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	settle := src.Settle(d.cfg.SettleDelay)
	searchURL := src.BuildSearchURL(query)

	// The search navigation may land on a product page directly (detail
	// markers), in which case the detail rules apply to that same page.
	var landed bool
	lead, err := d.step(ctx, sess, searchURL, settle, src.SearchTimeout(d.cfg.SearchTimeout),
		func(p extractor.Page) (*models.SourceResult, error) {
			if d.extractor.OnDetailPage(p, src) {
				landed = true
				return d.extractor.Detail(p, src, "")
			}
			return d.extractor.Search(p, src)
		})
	if lead == nil || landed || !src.TwoStep() {
		return lead, err
	}
	if lead.URL == nil {
		if err == nil {
			err = models.NewDriveError(models.ErrCodeExtractionMiss, src.ID, "no product link on search page", nil)
		}
		return nil, err
	}

	seed := models.Deref(lead.Name)
	return d.step(ctx, sess, *lead.URL, settle, src.DetailTimeout(d.cfg.DetailTimeout),
		func(p extractor.Page) (*models.SourceResult, error) {
			return d.extractor.Detail(p, src, seed)
		})
}

type stepResult struct {
	res *models.SourceResult
	err error
}

// step runs one navigation against its watchdog. Whichever finishes first
// wins; on the watchdog (or ctx) path the tab is closed before returning
// and the late result, if any, is discarded.
func (d *Driver) step(ctx context.Context, sess *session, target string, settle, timeout time.Duration, extract func(extractor.Page) (*models.SourceResult, error)) (*models.SourceResult, error) {
	stepCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan stepResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- stepResult{err: models.NewDriveError(models.ErrCodeInjectionFault, sess.source, fmt.Sprintf("panic during page load: %v", r), nil)}
			}
		}()
		res, err := sess.load(stepCtx, target, settle, extract)
		done <- stepResult{res: res, err: err}
	}()

	watchdog := time.NewTimer(timeout)
	defer watchdog.Stop()

	select {
	case r := <-done:
		return r.res, r.err
	case <-watchdog.C:
		cancel()
		sess.Close()
		return nil, models.NewDriveError(models.ErrCodeNavigationTimeout, sess.source,
			fmt.Sprintf("watchdog fired after %s on %s", timeout, target), nil)
	case <-ctx.Done():
		cancel()
		sess.Close()
		return nil, categorizeError(ctx.Err(), sess.source, "query ended")
	}
}
