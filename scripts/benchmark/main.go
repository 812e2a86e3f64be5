// Command benchmark replays a few searches against a running offerscout and
// reports per-source latency and hit counts.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/use-agent/offerscout/models"
)

var (
	apiURL  = flag.String("api-url", "http://localhost:8080", "offerscout API base URL")
	apiKey  = flag.String("api-key", "", "API key for authenticated requests")
	runs    = flag.Int("runs", 3, "runs per query")
	queries = flag.String("queries", "iphone 15 128gb,usb c cable 1m,Test Song", "comma-separated queries")
	sources = flag.String("sources", "", "comma-separated source ids (default: all)")
)

// stats accumulates one query's runs.
type stats struct {
	runs, failed int
	totalMs      int64
	sourceMs     map[string]int64
	hits         map[string]int
}

func main() {
	flag.Parse()
	client := &http.Client{Timeout: 3 * time.Minute}

	for _, q := range splitList(*queries) {
		st := stats{sourceMs: map[string]int64{}, hits: map[string]int{}}
		for i := 1; i <= *runs; i++ {
			resp, err := search(client, q)
			st.runs++
			if err != nil {
				st.failed++
				fmt.Printf("%-28q run %d: %v\n", q, i, err)
				continue
			}
			st.add(resp)
			fmt.Printf("%-28q run %d: %5dms  best=%s\n", q, i, resp.Timing.TotalMs, bestOf(resp))
		}
		st.print(q)
	}
}

func search(client *http.Client, query string) (*models.SearchResponse, error) {
	body, err := json.Marshal(models.SearchRequest{
		Action:  models.ActionSearchProduct,
		Query:   query,
		Sources: splitList(*sources),
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, *apiURL+"/api/v1/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if *apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+*apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var sr models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if !sr.Success {
		if sr.Error != nil {
			return nil, fmt.Errorf("%s: %s", sr.Error.Code, sr.Error.Message)
		}
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	if sr.Timing == nil || sr.Data == nil {
		return nil, fmt.Errorf("incomplete response")
	}
	return &sr, nil
}

func (s *stats) add(resp *models.SearchResponse) {
	s.totalMs += resp.Timing.TotalMs
	for id, ms := range resp.Timing.Sources {
		s.sourceMs[id] += ms
	}
	for _, id := range resp.Data.Keys() {
		if r, _ := resp.Data.Get(id); r != nil {
			s.hits[id]++
		}
	}
}

func (s *stats) print(query string) {
	ok := s.runs - s.failed
	if ok == 0 {
		fmt.Printf("%-28q all %d runs failed\n\n", query, s.runs)
		return
	}
	fmt.Printf("%-28q avg %dms over %d runs", query, s.totalMs/int64(ok), ok)
	for _, id := range slices.Sorted(maps.Keys(s.sourceMs)) {
		fmt.Printf("  %s=%dms hit %d/%d", id, s.sourceMs[id]/int64(ok), s.hits[id], ok)
	}
	fmt.Print("\n\n")
}

func bestOf(resp *models.SearchResponse) string {
	if resp.BestOffer == nil {
		return "-"
	}
	return resp.BestOffer.Source + " " + resp.BestOffer.Price
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
