package orchestrator

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/offerscout/config"
	"github.com/use-agent/offerscout/engine"
	"github.com/use-agent/offerscout/extractor"
	"github.com/use-agent/offerscout/models"
	"github.com/use-agent/offerscout/relay"
	"github.com/use-agent/offerscout/scraper"
)

type stubDriver struct {
	mu      sync.Mutex
	results map[string]*models.SourceResult
	calls   []string
	active  int
	overlap bool
	panicOn string
}

func (d *stubDriver) Drive(_ context.Context, _, _ string, src *models.Source) *models.SourceResult {
	d.mu.Lock()
	d.active++
	if d.active > 1 {
		d.overlap = true
	}
	d.calls = append(d.calls, src.ID)
	d.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	d.mu.Lock()
	d.active--
	d.mu.Unlock()

	if src.ID == d.panicOn {
		panic("driver bug")
	}
	return d.results[src.ID]
}

func offer(price string) *models.SourceResult {
	return &models.SourceResult{
		Name:  models.StringPtr("Widget"),
		Price: models.StringPtr(price),
		URL:   models.StringPtr("https://shop.example/widget"),
	}
}

func sources(ids ...string) []models.Source {
	out := make([]models.Source, len(ids))
	for i, id := range ids {
		out[i] = models.Source{ID: id, Label: strings.ToUpper(id)}
	}
	return out
}

func TestHandleQuerySequentialAndComplete(t *testing.T) {
	d := &stubDriver{results: map[string]*models.SourceResult{"b": offer("₹599")}}
	srcs := sources("a", "b", "c")
	o := New(d, srcs, time.Second)

	resp := o.HandleQuery(context.Background(), "widget", srcs)
	require.True(t, resp.Success)
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, []string{"a", "b", "c"}, d.calls)
	assert.False(t, d.overlap)

	assert.Equal(t, []string{"a", "b", "c"}, resp.Data.Keys())
	a, ok := resp.Data.Get("a")
	assert.True(t, ok)
	assert.Nil(t, a)

	require.NotNil(t, resp.BestOffer)
	assert.Equal(t, "b", resp.BestOffer.Source)
	assert.Len(t, resp.Timing.Sources, 3)
}

func TestConcurrentQueriesDoNotShareState(t *testing.T) {
	d := &stubDriver{results: map[string]*models.SourceResult{"a": offer("₹10")}}
	srcs := sources("a", "b")
	o := New(d, srcs, time.Second)

	var wg sync.WaitGroup
	resps := make([]*models.SearchResponse, 4)
	for i := range resps {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resps[i] = o.HandleQuery(context.Background(), "q", srcs)
		}(i)
	}
	wg.Wait()

	assert.False(t, d.overlap, "queries never drive two sources at once")
	for _, r := range resps {
		assert.Equal(t, 2, r.Data.Len())
	}
	assert.NotSame(t, resps[0].Data, resps[1].Data)
}

func TestHandleQueryPanicReplies(t *testing.T) {
	d := &stubDriver{panicOn: "b"}
	srcs := sources("a", "b")
	o := New(d, srcs, time.Second)

	resp := o.HandleQuery(context.Background(), "q", srcs)
	assert.False(t, resp.Success)
	assert.Nil(t, resp.Data)
	require.NotNil(t, resp.Error)
	assert.Equal(t, models.ErrCodeInternal, resp.Error.Code)

	// The lock is released after a fault.
	d.panicOn = ""
	assert.True(t, o.HandleQuery(context.Background(), "q", srcs).Success)
}

func TestBestOffer(t *testing.T) {
	srcs := sources("a", "b", "c")
	tests := []struct {
		name    string
		entries map[string]*models.SourceResult
		want    string
	}{
		{"lowest wins", map[string]*models.SourceResult{"a": offer("₹499"), "b": offer("₹599")}, "a"},
		{"lower later", map[string]*models.SourceResult{"a": offer("₹1,299"), "b": offer("₹999")}, "b"},
		{"tie goes first", map[string]*models.SourceResult{"a": offer("₹499"), "b": offer("₹499")}, "a"},
		{"unparseable skipped", map[string]*models.SourceResult{"a": offer("see price in cart"), "c": offer("₹5")}, "c"},
		{"nothing priced", map[string]*models.SourceResult{"a": {Name: models.StringPtr("x")}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := models.NewAggregate([]string{"a", "b", "c"})
			for id, r := range tt.entries {
				agg.Set(id, r)
			}
			best := BestOffer(agg, srcs)
			if tt.want == "" {
				assert.Nil(t, best)
				return
			}
			require.NotNil(t, best)
			assert.Equal(t, tt.want, best.Source)
			assert.Equal(t, strings.ToUpper(tt.want), best.Label)
		})
	}
}

func TestSelect(t *testing.T) {
	o := New(&stubDriver{}, sources("a", "b"), 0)

	srcs, err := o.Select([]string{"b"})
	require.NoError(t, err)
	require.Len(t, srcs, 1)
	assert.Equal(t, "b", srcs[0].ID)

	_, err = o.Select([]string{"zzz"})
	assert.Equal(t, models.ErrCodeInvalidInput, models.CodeOf(err))
}

// pageEngine serves canned pages by URL prefix through the real Page Driver.
type pageEngine struct{ pages map[string]string }

func (e *pageEngine) Name() string { return models.EngineBrowser }

func (e *pageEngine) Open(context.Context, engine.TabOptions) (engine.Tab, error) {
	return &pageTab{pages: e.pages}, nil
}

type pageTab struct {
	pages map[string]string
	url   string
}

func (t *pageTab) Navigate(_ context.Context, url string) error { t.url = url; return nil }
func (t *pageTab) URL(context.Context) (string, error)          { return t.url, nil }
func (t *pageTab) Close() error                                 { return nil }

func (t *pageTab) HTML(context.Context) (string, error) {
	for prefix, html := range t.pages {
		if strings.HasPrefix(t.url, prefix) {
			return html, nil
		}
	}
	return "<html><body></body></html>", nil
}

func TestTestSongEndToEnd(t *testing.T) {
	eng := &pageEngine{pages: map[string]string{
		"https://www.flipkart.com/search": `<html><body><p>No results found for "Test Song"</p></body></html>`,
		"https://www.amazon.in/s": `<html><body>
<span id="productTitle">Widget</span>
<span class="a-price"><span class="a-offscreen">₹499</span></span>
</body></html>`,
	}}

	bus := relay.NewBus(8)
	msgs, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	srcs := config.DefaultSources()
	drv := scraper.NewDriver(engine.NewRegistry(eng), extractor.New(nil), bus, config.DriverConfig{
		SearchTimeout: time.Second,
		DetailTimeout: time.Second,
	})
	o := New(drv, srcs, 5*time.Second)

	resp := o.HandleQuery(context.Background(), "Test Song", srcs)
	require.True(t, resp.Success)

	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"flipkart": null,
		"amazon": {"name": "Widget", "price": "₹499", "url": "https://www.amazon.in/s?k=Test%20Song"}
	}`, string(raw))

	require.NotNil(t, resp.BestOffer)
	assert.Equal(t, "amazon", resp.BestOffer.Source)
	assert.Equal(t, 499.0, resp.BestOffer.Amount)

	var stores []string
	for range srcs {
		select {
		case m := <-msgs:
			assert.Equal(t, resp.RequestID, m.RequestID)
			stores = append(stores, m.Store)
		case <-time.After(time.Second):
			t.Fatal("relay message not delivered")
		}
	}
	assert.Equal(t, []string{"flipkart", "amazon"}, stores)
}
