package models

import "strings"

// ActionSearchProduct is the only action accepted by POST /api/v1/search.
const ActionSearchProduct = "searchProduct"

// SearchRequest is the payload for POST /api/v1/search.
type SearchRequest struct {
	// Action must be "searchProduct". Required.
	Action string `json:"action" binding:"required,eq=searchProduct"`

	// Query is the free-text product name. Required, non-blank after trim.
	Query string `json:"query" binding:"required"`

	// Sources restricts the run to a subset of configured source ids.
	// Empty runs every configured source.
	Sources []string `json:"sources,omitempty"`
}

// Normalize trims the query and drops blank source ids.
func (r *SearchRequest) Normalize() {
	r.Query = strings.TrimSpace(r.Query)
	ids := r.Sources[:0]
	for _, id := range r.Sources {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	r.Sources = ids
}

// Valid reports whether the request carries the expected action and a
// non-blank query.
func (r *SearchRequest) Valid() bool {
	return r.Action == ActionSearchProduct && strings.TrimSpace(r.Query) != ""
}
