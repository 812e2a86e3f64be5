package extractor

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/offerscout/cleaner"
	"github.com/use-agent/offerscout/config"
	"github.com/use-agent/offerscout/models"
)

func page(t *testing.T, html, url string) Page {
	t.Helper()
	p, err := NewPage(html, url)
	require.NoError(t, err)
	return p
}

func source(t *testing.T, id string) *models.Source {
	t.Helper()
	for _, s := range config.DefaultSources() {
		if s.ID == id {
			return &s
		}
	}
	t.Fatalf("no default source %q", id)
	return nil
}

const flipkartSearch = `<html><body>
<div class="_1YokD2">
  <div class="_1AtVbE"><div class="_2kHMtA">Sponsored</div></div>
  <div class="_1AtVbE">
    <div class="_13oc-S">
      <a class="_1fQZEK" href="/apple-iphone-15/p/itm6ac6485515ae4?pid=MOBGTAGPTB3VS24W">
        <div class="_4rR01T">Apple iPhone 15 (Black, 128 GB)</div>
      </a>
    </div>
  </div>
</div>
</body></html>`

const flipkartDetailScan = `<html><body>
<h1><span class="B_NuCI">Apple iPhone 15 (Black, 128 GB)</span></h1>
<div class="mrp"><span>₹1,50,000</span></div>
<div class="now"><span>₹1,23,456</span></div>
<div class="bank"><span>₹5,000</span> off with bank offer</div>
<div class="emi"><span>₹150</span></div>
<div class="fee"><span>₹40</span></div>
</body></html>`

func TestSearchTwoStepLead(t *testing.T) {
	e := New(nil)
	src := source(t, "flipkart")

	lead, err := e.Search(page(t, flipkartSearch, "https://www.flipkart.com/search?q=iphone"), src)
	require.NoError(t, err)
	require.NotNil(t, lead)

	assert.Equal(t, "Apple iPhone 15 (Black, 128 GB)", models.Deref(lead.Name))
	assert.Equal(t, "https://www.flipkart.com/apple-iphone-15/p/itm6ac6485515ae4?pid=MOBGTAGPTB3VS24W", models.Deref(lead.URL))
	assert.Nil(t, lead.Price)
}

func TestSearchNothingMatches(t *testing.T) {
	e := New(nil)
	src := source(t, "flipkart")

	res, err := e.Search(page(t, `<html><body><p>No results for Test Song</p></body></html>`, "https://www.flipkart.com/search"), src)
	assert.Nil(t, res)
	assert.Equal(t, models.ErrCodeExtractionMiss, models.CodeOf(err))
}

func TestDetailPriceScan(t *testing.T) {
	e := New(nil)
	src := source(t, "flipkart")
	url := "https://www.flipkart.com/apple-iphone-15/p/itm6ac6485515ae4"

	res, err := e.Detail(page(t, flipkartDetailScan, url), src, "seed name")
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, "Apple iPhone 15 (Black, 128 GB)", models.Deref(res.Name))
	assert.Equal(t, "₹1,23,456", models.Deref(res.Price))
	assert.Equal(t, url, models.Deref(res.URL))
}

func TestDetailPriceSelectorReformatted(t *testing.T) {
	e := New(nil)
	src := source(t, "flipkart")
	html := `<html><body><div class="_30jeq3 _1_WHN1">₹79999</div></body></html>`

	res, err := e.Detail(page(t, html, "https://www.flipkart.com/p/x"), src, "Pixel 8")
	require.NoError(t, err)
	assert.Equal(t, "Pixel 8", models.Deref(res.Name), "seed name kept when the page has none")
	assert.Equal(t, "₹79,999", models.Deref(res.Price))
}

func TestDetailOverlongPriceIsParseMiss(t *testing.T) {
	e := New(nil)
	src := source(t, "flipkart")
	html := `<html><body><span class="B_NuCI">Widget</span>
<div class="_30jeq3">₹99,99,99,99,99,99,99,99,999</div></body></html>`

	res, err := e.Detail(page(t, html, "https://www.flipkart.com/p/z"), src, "Widget")
	require.NotNil(t, res)
	assert.Equal(t, models.ErrCodeParseMiss, models.CodeOf(err))
	assert.Nil(t, res.Price)
	assert.Equal(t, "Widget", models.Deref(res.Name))
}

func TestDetailMissKeepsSeedAndURL(t *testing.T) {
	e := New(nil)
	src := source(t, "flipkart")

	res, err := e.Detail(page(t, `<html><body></body></html>`, "https://www.flipkart.com/p/y"), src, "Product")
	require.NotNil(t, res)
	assert.Equal(t, models.ErrCodeExtractionMiss, models.CodeOf(err))
	assert.Equal(t, "Product", models.Deref(res.Name))
	assert.Nil(t, res.Price)
	assert.Equal(t, "https://www.flipkart.com/p/y", models.Deref(res.URL))
}

func TestScanPrices(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(flipkartDetailScan))
	require.NoError(t, err)

	scan := source(t, "flipkart").Detail.Scan
	values := ScanPrices(doc.Nodes[0], scan)
	assert.Equal(t, []float64{150000, 123456, 150}, values)
}

func TestScanPricesMainClassBypassesFilters(t *testing.T) {
	html := `<html><body><p>Deal</p>
<div>Special price <span class="_30jeq3">₹60</span> save more</div>
<div><span>₹999</span></div>
</body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	values := ScanPrices(doc.Nodes[0], source(t, "flipkart").Detail.Scan)
	assert.Equal(t, []float64{60, 999}, values)
}

const amazonResults = `<html><body>
<div class="s-result-item" data-component-type="s-search-result">
  <h2><a class="a-link-normal" href="/Widget-Pro/dp/B0WIDGET/ref=sr_1_1"><span>Widget Pro</span></a></h2>
  <span class="a-price"><span class="a-offscreen">₹1,299</span><span class="a-price-whole">1,299</span></span>
</div>
</body></html>`

func TestSearchSingleStep(t *testing.T) {
	e := New(nil)
	src := source(t, "amazon")
	p := page(t, amazonResults, "https://www.amazon.in/s?k=widget")

	assert.False(t, e.OnDetailPage(p, src))

	res, err := e.Search(p, src)
	require.NoError(t, err)
	assert.Equal(t, "Widget Pro", models.Deref(res.Name))
	assert.Equal(t, "₹1,299", models.Deref(res.Price))
	assert.Equal(t, "https://www.amazon.in/Widget-Pro/dp/B0WIDGET/ref=sr_1_1", models.Deref(res.URL))
}

func TestSearchFallbacks(t *testing.T) {
	e := New(nil)
	src := source(t, "amazon")

	t.Run("search url from name", func(t *testing.T) {
		html := `<html><body><div class="s-result-item" data-component-type="s-search-result">
<span class="a-size-medium a-color-base a-text-normal">Widget Pro</span></div></body></html>`
		res, err := e.Search(page(t, html, "https://www.amazon.in/s?k=widget"), src)
		require.NoError(t, err)
		assert.Equal(t, "https://www.amazon.in/s?k=Widget%20Pro", models.Deref(res.URL))
	})

	t.Run("default name", func(t *testing.T) {
		html := `<html><body><a href="/dp/B0LAST">more</a></body></html>`
		res, err := e.Search(page(t, html, "https://www.amazon.in/s?k=widget"), src)
		require.NoError(t, err)
		assert.Equal(t, "Amazon Product", models.Deref(res.Name))
		assert.Equal(t, "https://www.amazon.in/dp/B0LAST", models.Deref(res.URL))
		assert.Nil(t, res.Price)
	})
}

func TestAmazonProductPage(t *testing.T) {
	e := New(nil)
	src := source(t, "amazon")
	url := "https://www.amazon.in/Widget/dp/B0WIDGET"
	html := `<html><body>
<span id="productTitle">  Widget  </span>
<span class="a-price"><span class="a-offscreen">₹499</span></span>
</body></html>`
	p := page(t, html, url)

	require.True(t, e.OnDetailPage(p, src))
	res, err := e.Detail(p, src, "")
	require.NoError(t, err)
	assert.Equal(t, &models.SourceResult{
		Name:  models.StringPtr("Widget"),
		Price: models.StringPtr("₹499"),
		URL:   models.StringPtr(url),
	}, res)
}

func TestFacts(t *testing.T) {
	e := New(nil)
	src := &models.Source{
		ID:      "songfacts",
		BaseURL: "https://facts.example",
		Search: models.PageRules{
			Name:  []string{"h1"},
			Facts: []string{".facts li"},
		},
	}
	html := `<html><body><h1>Test Song</h1><ul class="facts"><li>Composed in 1994</li></ul></body></html>`

	res, err := e.Search(page(t, html, "https://facts.example/test-song"), src)
	require.NoError(t, err)
	assert.Equal(t, "Test Song", models.Deref(res.Name))
	assert.Equal(t, "Composed in 1994", models.Deref(res.Facts))
}

const songfactsDetail = `<html><body>
<nav><a href="/">Home</a> <a href="/artists">Artists</a></nav>
<div class="main-content">
  <h1>Test Song by The Testers</h1>
  <ul class="fact-list">
    <li>The band recorded it live in a <a href="/facts/studio">converted church</a>.</li>
    <li>It closed every show of their 1994 tour.</li>
  </ul>
  <p>Copyright 2024 Songfacts, LLC. All rights reserved.</p>
</div>
</body></html>`

func TestDetailSummarizesFactPage(t *testing.T) {
	e := New(cleaner.NewSummarizer(0))
	src := &config.FactSources()[0]
	url := "https://www.songfacts.com/facts/the-testers/test-song"

	res, err := e.Detail(page(t, songfactsDetail, url), src, "Test Song")
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, "Test Song by The Testers", models.Deref(res.Name))
	assert.Nil(t, res.Price)
	assert.Equal(t, url, models.Deref(res.URL))

	facts := models.Deref(res.Facts)
	assert.Contains(t, facts, "- The band recorded it live")
	assert.Contains(t, facts, "(https://www.songfacts.com/facts/studio)")
	assert.Contains(t, facts, "1994 tour")
	assert.NotContains(t, facts, "Artists")
	assert.NotContains(t, facts, "rights reserved")
}

func TestFactsSelectorBeatsSummary(t *testing.T) {
	e := New(cleaner.NewSummarizer(0))
	src := &config.FactSources()[0]
	detail := *src.Detail
	detail.Facts = []string{".fact-list li"}
	src.Detail = &detail

	res, err := e.Detail(page(t, songfactsDetail, "https://www.songfacts.com/facts/x"), src, "x")
	require.NoError(t, err)
	assert.Equal(t, "The band recorded it live in a converted church.", models.Deref(res.Facts))
}

func TestPanicBecomesInjectionFault(t *testing.T) {
	e := New(nil)
	src := source(t, "amazon")

	res, err := e.Search(Page{}, src)
	assert.Nil(t, res)
	assert.Equal(t, models.ErrCodeInjectionFault, models.CodeOf(err))

	res, err = e.Detail(Page{}, src, "x")
	assert.Nil(t, res)
	assert.Equal(t, models.ErrCodeInjectionFault, models.CodeOf(err))

	assert.False(t, e.OnDetailPage(Page{}, src))
}
