package models

import (
	"bytes"
	"encoding/json"
)

// SourceResult is the best-effort record scraped from one source.
// Every field is optional; a nil field means "not found", not an error.
// It is built inside one Page Driver invocation and never mutated afterwards.
type SourceResult struct {
	Name  *string `json:"name"`
	Price *string `json:"price"`
	URL   *string `json:"url"`

	// Facts is filled only by fact-style sources.
	Facts *string `json:"facts,omitempty"`
}

// Empty reports whether no field was found.
func (r *SourceResult) Empty() bool {
	return r == nil || (r.Name == nil && r.Price == nil && r.URL == nil && r.Facts == nil)
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// AggregateResult maps each configured source id to its result (or nil).
// Every key is present from construction, so the aggregate can never be
// partially populated. Keys marshal in configured order.
type AggregateResult struct {
	order   []string
	entries map[string]*SourceResult
}

// NewAggregate returns an aggregate with one nil entry per id, in order.
// Duplicate ids collapse to their first position.
func NewAggregate(ids []string) *AggregateResult {
	a := &AggregateResult{
		order:   make([]string, 0, len(ids)),
		entries: make(map[string]*SourceResult, len(ids)),
	}
	for _, id := range ids {
		if _, seen := a.entries[id]; seen {
			continue
		}
		a.order = append(a.order, id)
		a.entries[id] = nil
	}
	return a
}

// Set records the result for a configured id. Unknown ids are ignored and
// reported false so the key set never grows.
func (a *AggregateResult) Set(id string, r *SourceResult) bool {
	if _, ok := a.entries[id]; !ok {
		return false
	}
	a.entries[id] = r
	return true
}

// Get returns the entry for id and whether id is configured.
func (a *AggregateResult) Get(id string) (*SourceResult, bool) {
	r, ok := a.entries[id]
	return r, ok
}

// Keys returns the source ids in configured order.
func (a *AggregateResult) Keys() []string {
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out
}

// Len returns the number of configured sources.
func (a *AggregateResult) Len() int {
	return len(a.order)
}

// MarshalJSON renders the aggregate as an object keyed by source id in
// configured order, with null for sources that produced nothing.
func (a *AggregateResult) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range a.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(a.entries[id])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object into the aggregate. Key order follows the
// document order.
func (a *AggregateResult) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return err
	}
	a.order = nil
	a.entries = make(map[string]*SourceResult)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		id, _ := tok.(string)
		var r *SourceResult
		if err := dec.Decode(&r); err != nil {
			return err
		}
		if _, seen := a.entries[id]; !seen {
			a.order = append(a.order, id)
		}
		a.entries[id] = r
	}
	_, err := dec.Token()
	return err
}

// BestOffer is the source with the lowest parseable price.
type BestOffer struct {
	Source string  `json:"source"`
	Label  string  `json:"label,omitempty"`
	Price  string  `json:"price"`
	Amount float64 `json:"amount"`
	URL    string  `json:"url,omitempty"`
}
