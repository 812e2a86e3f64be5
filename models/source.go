package models

import (
	"net/url"
	"strings"
	"time"
)

// Engine names accepted in a source's Engine field.
const (
	EngineBrowser = "browser"
	EngineHTTP    = "http"
)

// Pick strategies for the fallback price scan.
const (
	PickSecondHighest = "second_highest"
	PickHighest       = "highest"
	PickLowest        = "lowest"
	PickFirst         = "first"
)

// BlockableResourceTypes are the resource type names a block list accepts.
var BlockableResourceTypes = []string{"Image", "Stylesheet", "Font", "Media", "Script"}

// QueryPlaceholder is substituted with the URL-encoded query in SearchURL.
const QueryPlaceholder = "{query}"

// Source is the declarative configuration of one external site.
// Adding a source is a configuration change, never a new code path.
type Source struct {
	// ID keys the source in the aggregate (e.g. "flipkart"). Required.
	ID string `yaml:"id" json:"id"`

	// Label is a human-readable display name.
	Label string `yaml:"label" json:"label,omitempty"`

	// SearchURL is the search page template, containing QueryPlaceholder.
	SearchURL string `yaml:"search_url" json:"search_url"`

	// BaseURL is the origin prefixed to relative links.
	BaseURL string `yaml:"base_url" json:"base_url"`

	// Engine selects how pages are opened: "browser" (default) or "http".
	Engine string `yaml:"engine" json:"engine,omitempty"`

	// SettleMs is the wait after load-complete; 0 uses the driver default.
	SettleMs int `yaml:"settle_ms" json:"settle_ms,omitempty"`

	// TimeoutMs is the search-step watchdog; 0 uses the driver default.
	TimeoutMs int `yaml:"timeout_ms" json:"timeout_ms,omitempty"`

	// DetailTimeoutMs is the detail-step watchdog; 0 uses the driver default.
	DetailTimeoutMs int `yaml:"detail_timeout_ms" json:"detail_timeout_ms,omitempty"`

	// DefaultName fills the name when selectors miss but something else matched.
	DefaultName string `yaml:"default_name" json:"default_name,omitempty"`

	// SearchURLFallback builds a search URL from the extracted name when a
	// single-step source finds a product without a link.
	SearchURLFallback bool `yaml:"search_url_fallback" json:"search_url_fallback,omitempty"`

	// Search holds the rules for the search-results page.
	Search PageRules `yaml:"search" json:"search"`

	// FollowLink makes the source two-step: the search page only yields a
	// lead whose link is opened and read with the Detail rules.
	FollowLink bool `yaml:"follow_link" json:"follow_link,omitempty"`

	// Detail holds the rules for the product page.
	Detail *PageRules `yaml:"detail" json:"detail,omitempty"`

	// BlockResourceTypes ("Image", "Stylesheet", "Font", "Media", "Script")
	// and BlockDomains are blocked in this source's browser tabs on top of
	// the engine-wide lists.
	BlockResourceTypes []string `yaml:"block_resource_types" json:"block_resource_types,omitempty"`
	BlockDomains       []string `yaml:"block_domains" json:"block_domains,omitempty"`

	// DetailMarkers identify a search navigation that already landed on a
	// detail page (e.g. "#productTitle"). Requires Detail.
	DetailMarkers []string `yaml:"detail_markers" json:"detail_markers,omitempty"`
}

// PageRules are the ordered selector candidates for one page kind.
// Each list is tried in order; the first non-empty match wins.
type PageRules struct {
	// Container candidates locate the result card. Empty or no match scopes
	// field lookups to the whole document.
	Container []string `yaml:"container" json:"container,omitempty"`

	// ContainerHas, when set, picks the first element matched by
	// ContainerAll that contains a match for this selector.
	ContainerAll string `yaml:"container_all" json:"container_all,omitempty"`
	ContainerHas string `yaml:"container_has" json:"container_has,omitempty"`

	Name  []string `yaml:"name" json:"name,omitempty"`
	Price []string `yaml:"price" json:"price,omitempty"`
	Link  []string `yaml:"link" json:"link,omitempty"`
	Facts []string `yaml:"facts" json:"facts,omitempty"`

	// DocumentFallback retries each field selector against the whole
	// document when the container holds no match.
	DocumentFallback bool `yaml:"document_fallback" json:"document_fallback,omitempty"`

	// ReformatPrice renders the parsed price as Currency + grouped digits
	// instead of keeping the element's raw text.
	ReformatPrice bool `yaml:"reformat_price" json:"reformat_price,omitempty"`

	// Summarize fills Facts from the page's main content when the Facts
	// selectors miss.
	Summarize bool `yaml:"summarize" json:"summarize,omitempty"`

	// SummaryScope candidates locate the fact block to summarize; the first
	// that matches wins. Empty or no match summarizes the main article.
	SummaryScope []string `yaml:"summary_scope" json:"summary_scope,omitempty"`

	// Scan is the fallback price heuristic. Nil disables it.
	Scan *PriceScan `yaml:"scan" json:"scan,omitempty"`
}

// PriceScan configures the text-scan fallback used when no price selector
// matches.
type PriceScan struct {
	// Currency is the prefix a candidate's text must start with (e.g. "₹").
	Currency string `yaml:"currency" json:"currency"`

	// MinPrice drops candidates below this value.
	MinPrice float64 `yaml:"min_price" json:"min_price"`

	// ExcludeWords drop candidates whose own or parent text mentions them.
	ExcludeWords []string `yaml:"exclude_words" json:"exclude_words,omitempty"`

	// MainClasses mark candidates that bypass the filters.
	MainClasses []string `yaml:"main_classes" json:"main_classes,omitempty"`

	// Pick chooses among the surviving values. Defaults to second_highest.
	Pick string `yaml:"pick" json:"pick,omitempty"`
}

// TwoStep reports whether the source follows a product link to a detail page.
func (s *Source) TwoStep() bool {
	return s.FollowLink && s.Detail != nil
}

// BuildSearchURL substitutes the URL-encoded query into SearchURL.
func (s *Source) BuildSearchURL(query string) string {
	return strings.ReplaceAll(s.SearchURL, QueryPlaceholder, EncodeQuery(query))
}

// EncodeQuery percent-encodes a query for a URL query string, using %20 for
// spaces rather than "+".
func EncodeQuery(query string) string {
	return strings.ReplaceAll(url.QueryEscape(strings.TrimSpace(query)), "+", "%20")
}

// EngineName returns the configured engine, defaulting to the browser.
func (s *Source) EngineName() string {
	if s.Engine == "" {
		return EngineBrowser
	}
	return s.Engine
}

// Settle returns the configured settle delay or fallback.
func (s *Source) Settle(fallback time.Duration) time.Duration {
	return msOr(s.SettleMs, fallback)
}

// SearchTimeout returns the search-step watchdog or fallback.
func (s *Source) SearchTimeout(fallback time.Duration) time.Duration {
	return msOr(s.TimeoutMs, fallback)
}

// DetailTimeout returns the detail-step watchdog or fallback.
func (s *Source) DetailTimeout(fallback time.Duration) time.Duration {
	return msOr(s.DetailTimeoutMs, fallback)
}

func msOr(ms int, fallback time.Duration) time.Duration {
	if ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
