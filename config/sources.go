package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/goccy/go-yaml"

	"github.com/use-agent/offerscout/models"
)

// sourcesFile is the on-disk layout of OFFERSCOUT_SOURCES_FILE.
type sourcesFile struct {
	Sources []models.Source `yaml:"sources"`
}

// DefaultSources returns the built-in catalogue: a two-step Flipkart source
// and a single-step Amazon source.
func DefaultSources() []models.Source {
	return []models.Source{
		{
			ID:         "flipkart",
			Label:      "Flipkart",
			SearchURL:  "https://www.flipkart.com/search?q={query}",
			BaseURL:    "https://www.flipkart.com",
			FollowLink: true,
			Search: models.PageRules{
				Container: []string{
					"div._1AtVbE div._13oc-S",
					"div._1AtVbE div._4ddWXP",
					"div._1YokD2 div._1AtVbE",
				},
				ContainerAll: "div._1AtVbE",
				ContainerHas: `a[href*="/p/"]`,
				Name: []string{
					"div._4rR01T",
					"a.s1Q9rs",
					"a.IRpwTa",
					"div.s1Q9rs",
					".B_NuCI",
				},
				Link: []string{
					"a._1fQZEK",
					"a.s1Q9rs",
					"a.IRpwTa",
					"a._2rpwqI",
					`a[href*="/p/"]`,
				},
				DocumentFallback: true,
			},
			Detail: &models.PageRules{
				Name: []string{".B_NuCI", "h1.yhB1nd", "span.B_NuCI"},
				Price: []string{
					"div._30jeq3._1_WHN1",
					"div._30jeq3",
					".CEmiEU",
					"._16Jk6d",
				},
				ReformatPrice: true,
				Scan: &models.PriceScan{
					Currency:     "₹",
					MinPrice:     100,
					ExcludeWords: []string{"discount", "off", "save"},
					MainClasses:  []string{"_30jeq3", "_1_WHN1", "CEmiEU", "_16Jk6d"},
					Pick:         models.PickSecondHighest,
				},
			},
		},
		{
			ID:                "amazon",
			Label:             "Amazon",
			SearchURL:         "https://www.amazon.in/s?k={query}",
			BaseURL:           "https://www.amazon.in",
			DefaultName:       "Amazon Product",
			SearchURLFallback: true,
			Search: models.PageRules{
				Container: []string{`div.s-result-item[data-component-type="s-search-result"]`},
				Name: []string{
					"h2 .a-link-normal",
					"h2 a.a-link-normal",
					".a-size-medium.a-color-base.a-text-normal",
					".a-size-base-plus.a-color-base.a-text-normal",
				},
				Price: []string{
					".a-price .a-offscreen",
					".a-price-whole",
					"span.a-price span.a-offscreen",
				},
				Link: []string{
					"h2 a.a-link-normal",
					`a.a-link-normal[href*="/dp/"]`,
					`.a-link-normal.s-no-outline[href*="/dp/"]`,
					`a[href*="/dp/"]`,
				},
				DocumentFallback: true,
			},
			Detail: &models.PageRules{
				Name:  []string{"#productTitle"},
				Price: []string{".a-price .a-offscreen", ".a-price-whole"},
			},
			DetailMarkers: []string{"#productTitle"},
			BlockDomains:  []string{"amazon-adsystem.com"},
		},
	}
}

// FactSources returns the built-in fact-style sources. They report no price
// and are added to the defaults by OFFERSCOUT_FACT_SOURCES.
func FactSources() []models.Source {
	return []models.Source{
		{
			ID:         "songfacts",
			Label:      "Songfacts",
			SearchURL:  "https://www.songfacts.com/search/songs/{query}",
			BaseURL:    "https://www.songfacts.com",
			Engine:     models.EngineHTTP,
			SettleMs:   1,
			FollowLink: true,
			Search: models.PageRules{
				Name: []string{".songfact-results-list a", ".fact-list a", `a[href^="/facts/"]`},
				Link: []string{".songfact-results-list a", ".fact-list a", `a[href^="/facts/"]`},
			},
			Detail: &models.PageRules{
				Name:         []string{"h1"},
				Summarize:    true,
				SummaryScope: []string{".fact-list", ".main-content", ".content-main", "article", ".content"},
			},
		},
	}
}

// LoadSources reads the catalogue from path. With an empty path it returns
// DefaultSources, followed by FactSources when withFacts is set. A file
// catalogue is used as written. The result is validated.
func LoadSources(path string, withFacts bool) ([]models.Source, error) {
	if path == "" {
		if withFacts {
			return append(DefaultSources(), FactSources()...), nil
		}
		return DefaultSources(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	return ParseSources(data)
}

// ParseSources decodes a YAML catalogue and validates it.
func ParseSources(data []byte) ([]models.Source, error) {
	var f sourcesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse sources: %w", err)
	}
	if len(f.Sources) == 0 {
		return nil, fmt.Errorf("parse sources: no sources defined")
	}
	if err := ValidateSources(f.Sources); err != nil {
		return nil, err
	}
	return f.Sources, nil
}

// FilterSources keeps only the listed ids, in the listed order. An empty
// list keeps everything.
func FilterSources(sources []models.Source, ids []string) ([]models.Source, error) {
	if len(ids) == 0 {
		return sources, nil
	}
	byID := make(map[string]models.Source, len(sources))
	for _, s := range sources {
		byID[s.ID] = s
	}
	out := make([]models.Source, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		s, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("unknown source %q", id)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, s)
	}
	return out, nil
}

// ValidateSources checks every source: a unique non-empty id, a search
// template with the query placeholder, an absolute base URL, a known engine,
// and selectors that compile.
func ValidateSources(sources []models.Source) error {
	seen := make(map[string]bool, len(sources))
	for i := range sources {
		s := &sources[i]
		if strings.TrimSpace(s.ID) == "" {
			return fmt.Errorf("source #%d: id is required", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("source %q: duplicate id", s.ID)
		}
		seen[s.ID] = true

		if !strings.Contains(s.SearchURL, models.QueryPlaceholder) {
			return fmt.Errorf("source %q: search_url must contain %s", s.ID, models.QueryPlaceholder)
		}
		if u, err := url.Parse(s.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("source %q: base_url must be absolute", s.ID)
		}
		switch s.EngineName() {
		case models.EngineBrowser, models.EngineHTTP:
		default:
			return fmt.Errorf("source %q: unknown engine %q", s.ID, s.Engine)
		}
		if len(s.DetailMarkers) > 0 && s.Detail == nil {
			return fmt.Errorf("source %q: detail_markers require detail rules", s.ID)
		}
		if s.FollowLink && s.Detail == nil {
			return fmt.Errorf("source %q: follow_link requires detail rules", s.ID)
		}

		if err := validateResourceTypes(fmt.Sprintf("source %q: block_resource_types", s.ID), s.BlockResourceTypes); err != nil {
			return err
		}
		for _, d := range s.BlockDomains {
			if d = strings.TrimSpace(d); d == "" || strings.ContainsAny(d, "/:") {
				return fmt.Errorf("source %q: block_domains: %q is not a bare domain", s.ID, d)
			}
		}

		if err := validateRules(s.ID, "search", &s.Search); err != nil {
			return err
		}
		if s.Detail != nil {
			if err := validateRules(s.ID, "detail", s.Detail); err != nil {
				return err
			}
		}
		for _, sel := range s.DetailMarkers {
			if err := compile(s.ID, "detail_markers", sel); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateRules(id, page string, r *models.PageRules) error {
	groups := map[string][]string{
		"container":     r.Container,
		"name":          r.Name,
		"price":         r.Price,
		"link":          r.Link,
		"facts":         r.Facts,
		"summary_scope": r.SummaryScope,
	}
	for field, sels := range groups {
		for _, sel := range sels {
			if err := compile(id, page+"."+field, sel); err != nil {
				return err
			}
		}
	}
	if (r.ContainerAll == "") != (r.ContainerHas == "") {
		return fmt.Errorf("source %q: %s: container_all and container_has go together", id, page)
	}
	for field, sel := range map[string]string{"container_all": r.ContainerAll, "container_has": r.ContainerHas} {
		if sel == "" {
			continue
		}
		if err := compile(id, page+"."+field, sel); err != nil {
			return err
		}
	}
	if r.Scan != nil {
		switch r.Scan.Pick {
		case "", models.PickSecondHighest, models.PickHighest, models.PickLowest, models.PickFirst:
		default:
			return fmt.Errorf("source %q: %s: unknown scan pick %q", id, page, r.Scan.Pick)
		}
		if r.Scan.Currency == "" {
			return fmt.Errorf("source %q: %s: scan currency is required", id, page)
		}
	}
	if len(r.SummaryScope) > 0 && !r.Summarize {
		return fmt.Errorf("source %q: %s: summary_scope needs summarize", id, page)
	}
	if r.ReformatPrice && r.Scan == nil {
		return fmt.Errorf("source %q: %s: reformat_price needs scan.currency", id, page)
	}
	return nil
}

func compile(id, field, sel string) error {
	if _, err := cascadia.Compile(sel); err != nil {
		return fmt.Errorf("source %q: %s: bad selector %q: %w", id, field, sel, err)
	}
	return nil
}

func validateResourceTypes(field string, types []string) error {
	for _, t := range types {
		if !slices.Contains(models.BlockableResourceTypes, t) {
			return fmt.Errorf("%s: unknown resource type %q (want one of %s)",
				field, t, strings.Join(models.BlockableResourceTypes, ", "))
		}
	}
	return nil
}
