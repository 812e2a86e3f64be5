package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/use-agent/offerscout/config"
	"github.com/use-agent/offerscout/models"
)

// RodEngine opens background Chromium tabs through a single shared browser.
// It is safe for concurrent use.
type RodEngine struct {
	browser    *rod.Browser
	cfg        config.BrowserConfig
	block      BlockPolicy
	activeTabs atomic.Int32
}

// NewRodEngine launches a browser with automation fingerprints removed.
func NewRodEngine(cfg config.BrowserConfig) (*RodEngine, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.DefaultProxy != "" {
		l = l.Proxy(cfg.DefaultProxy)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	return &RodEngine{
		browser: browser,
		cfg:     cfg,
		block:   NewBlockPolicy(cfg.BlockedResourceTypes, cfg.BlockDomains),
	}, nil
}

func (e *RodEngine) Name() string { return models.EngineBrowser }

// Open creates a background target. Stealth, extra headers and the block
// policy are installed before the first navigation so they apply to it.
func (e *RodEngine) Open(ctx context.Context, opts TabOptions) (Tab, error) {
	page, err := e.browser.Context(ctx).Page(proto.TargetCreateTarget{Background: true})
	if err != nil {
		return nil, fmt.Errorf("create tab: %w", err)
	}
	// Detach the page from the open context; later calls bind their own.
	page = page.Context(context.Background())

	prepareTab(page, e.cfg, opts.Source)

	t := &rodTab{page: page, engine: e}
	t.router = e.block.With(opts.BlockResourceTypes, opts.BlockDomains).install(page, opts.Source)
	e.activeTabs.Add(1)
	return t, nil
}

// pageSetup is the part of *rod.Page that prepareTab configures.
type pageSetup interface {
	proto.Client
	EvalOnNewDocument(js string) (func() error, error)
}

// prepareTab injects stealth and the Accept-Language header. A failure of
// either is logged and the tab proceeds without it.
func prepareTab(page pageSetup, cfg config.BrowserConfig, source string) {
	if cfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "source", source, "error", err)
		}
	}
	if cfg.AcceptLanguage != "" {
		err := proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(map[string]string{"Accept-Language": cfg.AcceptLanguage}),
		}.Call(page)
		if err != nil {
			slog.Warn("extra headers not set, proceeding with browser defaults", "source", source, "error", err)
		}
	}
}

// ActiveTabs returns the number of open tabs.
func (e *RodEngine) ActiveTabs() int {
	return int(e.activeTabs.Load())
}

// Close kills the browser. Call on graceful shutdown to avoid zombie Chrome
// processes.
func (e *RodEngine) Close() error {
	slog.Info("closing browser", "activeTabs", e.ActiveTabs())
	return e.browser.Close()
}

type rodTab struct {
	page   *rod.Page
	router *rod.HijackRouter
	engine *RodEngine

	closeOnce sync.Once
	closed    atomic.Bool
}

func (t *rodTab) Navigate(ctx context.Context, url string) error {
	if t.closed.Load() {
		return ErrTabClosed
	}
	p := t.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return err
	}
	return p.WaitLoad()
}

func (t *rodTab) HTML(ctx context.Context) (string, error) {
	if t.closed.Load() {
		return "", ErrTabClosed
	}
	return t.page.Context(ctx).HTML()
}

func (t *rodTab) URL(ctx context.Context) (string, error) {
	if t.closed.Load() {
		return "", ErrTabClosed
	}
	info, err := t.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

// Close stops the block router and closes the target. It uses the page
// without any request context so it still succeeds after a watchdog fired.
func (t *rodTab) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		if t.router != nil {
			_ = t.router.Stop()
		}
		err = t.page.Close()
		t.engine.activeTabs.Add(-1)
	})
	return err
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
