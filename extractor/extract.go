// Package extractor interprets a source's declarative selector rules against
// a loaded page. It performs no I/O: the Page Driver hands it a parsed
// document and the tab's current URL.
package extractor

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/offerscout/cleaner"
	"github.com/use-agent/offerscout/models"
)

// Page is a loaded page as seen by the extractor.
type Page struct {
	Doc *goquery.Document

	// URL is the tab's current URL after redirects.
	URL string
}

// NewPage parses rawHTML into a Page.
func NewPage(rawHTML, pageURL string) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return Page{}, err
	}
	return Page{Doc: doc, URL: pageURL}, nil
}

// Extractor is the single generic interpreter for every source's rules.
type Extractor struct {
	summarizer *cleaner.Summarizer
}

// New creates an Extractor. summarizer may be nil, which disables the
// summarize rule.
func New(summarizer *cleaner.Summarizer) *Extractor {
	return &Extractor{summarizer: summarizer}
}

// Search applies the search-page rules. For a two-step source the result is
// the lead to follow (name and product link); for a single-step source it is
// the final record.
//
// A nil record with an EXTRACTION_MISS error means nothing matched. A
// recovered panic yields a nil record and an INJECTION_FAULT error.
func (e *Extractor) Search(p Page, src *models.Source) (res *models.SourceResult, err error) {
	defer recoverFault(src.ID, &res, &err)

	res, err = e.apply(p, src, &src.Search)
	if src.TwoStep() {
		if res != nil {
			res.Price = nil
			res.Facts = nil
		}
		return res, err
	}
	return e.finish(src, res, err)
}

// Detail applies the detail-page rules. seedName is the name found on the
// search page and is kept when the detail page exposes none. The record's
// url is always the page's own URL.
func (e *Extractor) Detail(p Page, src *models.Source, seedName string) (res *models.SourceResult, err error) {
	defer recoverFault(src.ID, &res, &err)

	if src.Detail == nil {
		return nil, models.NewDriveError(models.ErrCodeExtractionMiss, src.ID, "source has no detail rules", nil)
	}

	res, err = e.apply(p, src, src.Detail)
	if res == nil {
		res = &models.SourceResult{}
	}
	if res.Name == nil {
		res.Name = models.StringPtr(seedName)
	}
	res.URL = models.StringPtr(p.URL)
	if res.Empty() {
		return e.finish(src, nil, err)
	}
	return e.finish(src, res, err)
}

// OnDetailPage reports whether a search navigation already landed on a
// product page, which is the case when any detail marker matches.
func (e *Extractor) OnDetailPage(p Page, src *models.Source) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	if src.Detail == nil {
		return false
	}
	for _, sel := range src.DetailMarkers {
		if p.Doc.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}

// apply runs one PageRules set. It returns nil when no field matched.
func (e *Extractor) apply(p Page, src *models.Source, rules *models.PageRules) (*models.SourceResult, error) {
	doc := p.Doc.Selection
	scope, _ := container(p.Doc, rules)

	roots := []*goquery.Selection{scope}
	if rules.DocumentFallback && scope != doc {
		roots = append(roots, doc)
	}

	res := &models.SourceResult{}
	var errs []error

	res.Name = models.StringPtr(firstText(roots, rules.Name))

	if href := firstAttr(roots, rules.Link, "href"); href != "" {
		res.URL = models.StringPtr(NormalizeLink(src.BaseURL, href))
	}

	price, perr := e.price(p, roots, rules)
	res.Price = models.StringPtr(price)
	if perr != nil {
		errs = append(errs, models.NewDriveError(models.ErrCodeParseMiss, src.ID, perr.Error(), nil))
	}

	res.Facts = models.StringPtr(e.facts(p, roots, rules))

	if res.Empty() {
		return nil, models.NewDriveError(models.ErrCodeExtractionMiss, src.ID, "no selector matched", nil)
	}
	if len(errs) > 0 {
		return res, errs[0]
	}
	return res, nil
}

// price resolves the price text: first the price selectors, then the scan
// fallback. With ReformatPrice the selector text must parse so it can be
// re-rendered.
func (e *Extractor) price(p Page, roots []*goquery.Selection, rules *models.PageRules) (string, error) {
	currency := ""
	if rules.Scan != nil {
		currency = rules.Scan.Currency
	}

	var parseErr error
	if raw := firstText(roots, rules.Price); raw != "" {
		if !rules.ReformatPrice {
			return raw, nil
		}
		if v, ok := ParsePrice(raw); ok {
			return FormatPrice(currency, v), nil
		}
		parseErr = fmt.Errorf("unparseable price text %q", raw)
	}

	if rules.Scan != nil && len(p.Doc.Nodes) > 0 {
		values := ScanPrices(p.Doc.Nodes[0], rules.Scan)
		if v, ok := PickPrice(values, rules.Scan.Pick); ok {
			return FormatPrice(currency, v), nil
		}
	}
	return "", parseErr
}

func (e *Extractor) facts(p Page, roots []*goquery.Selection, rules *models.PageRules) string {
	if t := firstText(roots, rules.Facts); t != "" {
		return t
	}
	if !rules.Summarize || e.summarizer == nil {
		return ""
	}
	raw, err := p.Doc.Html()
	if err != nil {
		return ""
	}
	summary, err := e.summarizer.Summarize(raw, p.URL, rules.SummaryScope)
	if err != nil {
		slog.Debug("extractor: summarize failed", "url", p.URL, "error", err)
		return ""
	}
	return summary
}

// finish applies the source-level fallbacks to a final record: the default
// name and, for single-step sources, the search-URL fallback.
func (e *Extractor) finish(src *models.Source, res *models.SourceResult, err error) (*models.SourceResult, error) {
	if res == nil {
		return nil, err
	}
	if res.Name == nil && src.DefaultName != "" {
		res.Name = models.StringPtr(src.DefaultName)
	}
	if res.URL == nil && src.SearchURLFallback && !src.TwoStep() && res.Name != nil {
		res.URL = models.StringPtr(src.BuildSearchURL(*res.Name))
	}
	return res, err
}

// container locates the result card. Ordered candidates come first, then
// the first ContainerAll element holding a ContainerHas match. Without a
// match the whole document is the scope.
func container(doc *goquery.Document, rules *models.PageRules) (*goquery.Selection, bool) {
	for _, sel := range rules.Container {
		if m := doc.Find(sel).First(); m.Length() > 0 {
			return m, true
		}
	}
	if rules.ContainerAll != "" && rules.ContainerHas != "" {
		m := doc.Find(rules.ContainerAll).FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.Find(rules.ContainerHas).Length() > 0
		}).First()
		if m.Length() > 0 {
			return m, true
		}
	}
	return doc.Selection, false
}

// firstText returns the collapsed text of the first element matching the
// first selector that yields non-empty text. Each selector is tried against
// every root before moving on.
func firstText(roots []*goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		for _, root := range roots {
			var text string
			root.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				text = strings.Join(strings.Fields(s.Text()), " ")
				return text == ""
			})
			if text != "" {
				return text
			}
		}
	}
	return ""
}

func firstAttr(roots []*goquery.Selection, selectors []string, attr string) string {
	for _, sel := range selectors {
		for _, root := range roots {
			var val string
			root.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				v, _ := s.Attr(attr)
				val = strings.TrimSpace(v)
				return val == ""
			})
			if val != "" {
				return val
			}
		}
	}
	return ""
}

// recoverFault turns a panic inside rule interpretation into a nil record
// and an INJECTION_FAULT error.
func recoverFault(source string, res **models.SourceResult, err *error) {
	if r := recover(); r != nil {
		*res = nil
		*err = models.NewDriveError(models.ErrCodeInjectionFault, source, fmt.Sprintf("extractor panic: %v", r), nil)
	}
}
