package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/use-agent/offerscout/engine"
	"github.com/use-agent/offerscout/extractor"
	"github.com/use-agent/offerscout/metrics"
	"github.com/use-agent/offerscout/models"
)

// session owns one tab for the length of one Page Driver invocation. Both
// the normal path and the watchdog close it; only the first close reaches
// the tab.
type session struct {
	tab    engine.Tab
	source string
	once   sync.Once
}

func openSession(ctx context.Context, eng engine.Engine, src *models.Source) (*session, error) {
	tab, err := eng.Open(ctx, engine.OptionsFor(src))
	if err != nil {
		return nil, models.NewDriveError(models.ErrCodeNoContext, src.ID, "failed to open tab", err)
	}
	metrics.ActiveTabs.Inc()
	return &session{tab: tab, source: src.ID}, nil
}

// Close is idempotent and never fails; a tab that is already gone is fine.
func (s *session) Close() {
	s.once.Do(func() {
		if err := s.tab.Close(); err != nil {
			slog.Debug("tab close failed", "source", s.source, "error", err)
		}
		metrics.ActiveTabs.Dec()
	})
}

// load navigates, waits for load-complete plus the settle delay, snapshots
// the page and runs extract on it.
func (s *session) load(ctx context.Context, target string, settle time.Duration, extract func(extractor.Page) (*models.SourceResult, error)) (*models.SourceResult, error) {
	if err := s.tab.Navigate(ctx, target); err != nil {
		return nil, categorizeError(err, s.source, "navigation failed")
	}

	if settle > 0 {
		timer := time.NewTimer(settle)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, categorizeError(ctx.Err(), s.source, "settle interrupted")
		}
	}

	rawHTML, err := s.tab.HTML(ctx)
	if err != nil {
		return nil, categorizeError(err, s.source, "failed to read page HTML")
	}
	pageURL, err := s.tab.URL(ctx)
	if err != nil || pageURL == "" {
		pageURL = target
	}

	page, err := extractor.NewPage(rawHTML, pageURL)
	if err != nil {
		return nil, models.NewDriveError(models.ErrCodeInjectionFault, s.source, "failed to parse page", err)
	}
	return extract(page)
}

// categorizeError maps tab errors onto the drive taxonomy: deadlines and
// cancellation are navigation timeouts, everything else means the tab is
// unusable.
func categorizeError(err error, source, msg string) *models.DriveError {
	var de *models.DriveError
	switch {
	case errors.As(err, &de):
		return de
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return models.NewDriveError(models.ErrCodeNavigationTimeout, source, msg, err)
	case errors.Is(err, engine.ErrTabClosed):
		return models.NewDriveError(models.ErrCodeNoContext, source, msg, err)
	default:
		return models.NewDriveError(models.ErrCodeNoContext, source, fmt.Sprintf("%s: tab error", msg), err)
	}
}
