package models

// SearchResponse is the response for POST /api/v1/search.
type SearchResponse struct {
	// Success is false when the run could not produce an aggregate at all.
	Success bool `json:"success"`

	// RequestID correlates relay messages with this response.
	RequestID string `json:"request_id,omitempty"`

	// Query echoes the trimmed query.
	Query string `json:"query,omitempty"`

	// Data maps every configured source id to its result or null.
	Data *AggregateResult `json:"data,omitempty"`

	// BestOffer is the cheapest source with a parseable price, if any.
	BestOffer *BestOffer `json:"best_offer,omitempty"`

	// Timing provides duration breakdowns for the run.
	Timing *TimingInfo `json:"timing,omitempty"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// TimingInfo breaks down the time spent in a run.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// Sources holds the per-source Page Driver duration in milliseconds.
	Sources map[string]int64 `json:"sources"`
}

// SourceInfo describes one configured source for GET /api/v1/sources.
type SourceInfo struct {
	ID      string `json:"id"`
	Label   string `json:"label,omitempty"`
	Engine  string `json:"engine"`
	TwoStep bool   `json:"two_step"`
	BaseURL string `json:"base_url"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string    `json:"status"` // "healthy" or "degraded"
	Uptime    string    `json:"uptime"`
	Sources   int       `json:"sources"`
	PoolStats PoolStats `json:"pool_stats"`
	Version   string    `json:"version"`
}

// PoolStats reports the state of the browser tabs.
type PoolStats struct {
	ActiveTabs int  `json:"active_tabs"`
	Browser    bool `json:"browser"`
}
