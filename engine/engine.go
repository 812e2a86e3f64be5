package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/use-agent/offerscout/models"
)

// ErrTabClosed is returned by Tab operations after Close.
var ErrTabClosed = errors.New("engine: tab closed")

// Tab is one background page owned by a single Page Driver invocation.
type Tab interface {
	// Navigate loads url and returns once the page reports load-complete.
	Navigate(ctx context.Context, url string) error

	// HTML returns the current rendered document.
	HTML(ctx context.Context) (string, error)

	// URL returns the tab's current URL after redirects.
	URL(ctx context.Context) (string, error)

	// Close releases the tab. It is safe to call more than once; only the
	// first call does any work.
	Close() error
}

// TabOptions are the per-source settings a tab is opened with.
type TabOptions struct {
	// Source labels the tab in logs and metrics.
	Source string

	// BlockResourceTypes and BlockDomains extend the engine's own block
	// lists. Engines that load no subresources ignore them.
	BlockResourceTypes []string
	BlockDomains       []string
}

// OptionsFor returns the tab options declared by src.
func OptionsFor(src *models.Source) TabOptions {
	return TabOptions{
		Source:             src.ID,
		BlockResourceTypes: src.BlockResourceTypes,
		BlockDomains:       src.BlockDomains,
	}
}

// Engine opens tabs.
type Engine interface {
	// Name returns the engine identifier ("browser" or "http").
	Name() string

	// Open creates a fresh background tab.
	Open(ctx context.Context, opts TabOptions) (Tab, error)
}

// Registry maps engine names to engines.
type Registry map[string]Engine

// NewRegistry indexes engines by Name. Nil engines are skipped.
func NewRegistry(engines ...Engine) Registry {
	r := make(Registry, len(engines))
	for _, e := range engines {
		if e != nil {
			r[e.Name()] = e
		}
	}
	return r
}

// Get returns the engine registered under name.
func (r Registry) Get(name string) (Engine, error) {
	e, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("engine: %q not available", name)
	}
	return e, nil
}
