package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// searchRequest mirrors the offerscout API request model.
type searchRequest struct {
	Action  string   `json:"action"`
	Query   string   `json:"query"`
	Sources []string `json:"sources,omitempty"`
}

type sourceResult struct {
	Name  *string `json:"name"`
	Price *string `json:"price"`
	URL   *string `json:"url"`
	Facts *string `json:"facts"`
}

// searchResponse mirrors the offerscout API response model. Data is kept
// raw so the configured source order survives decoding.
type searchResponse struct {
	Success   bool            `json:"success"`
	RequestID string          `json:"request_id"`
	Query     string          `json:"query"`
	Data      json.RawMessage `json:"data"`
	BestOffer *struct {
		Source string  `json:"source"`
		Label  string  `json:"label"`
		Price  string  `json:"price"`
		Amount float64 `json:"amount"`
		URL    string  `json:"url"`
	} `json:"best_offer"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type sourcesResponse struct {
	Sources []struct {
		ID      string `json:"id"`
		Label   string `json:"label"`
		Engine  string `json:"engine"`
		TwoStep bool   `json:"two_step"`
		BaseURL string `json:"base_url"`
	} `json:"sources"`
}

func main() {
	apiURL := os.Getenv("OFFERSCOUT_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("OFFERSCOUT_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "OFFERSCOUT_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"offerscout",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	compareTool := mcp.NewTool("compare_prices",
		mcp.WithDescription("Search every configured shop for a product and return each shop's name, price and link plus the cheapest offer. Shops are visited one after another in a real browser, so a call can take a minute."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Free-text product name, e.g. 'iphone 15 128gb'"),
		),
		mcp.WithArray("sources",
			mcp.Description("Optional subset of source ids to search (see list_sources). Defaults to all."),
		),
	)
	s.AddTool(compareTool, handleComparePrices(apiURL, apiKey))

	listTool := mcp.NewTool("list_sources",
		mcp.WithDescription("List the shops offerscout can search, in the order they are visited."),
	)
	s.AddTool(listTool, handleListSources(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiDo sends a request to the offerscout API and returns the response body.
func apiDo(ctx context.Context, client *http.Client, method, apiURL, apiKey, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func handleComparePrices(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 180 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil || strings.TrimSpace(query) == "" {
			return mcp.NewToolResultError("query is required"), nil
		}

		payload := searchRequest{
			Action:  "searchProduct",
			Query:   query,
			Sources: request.GetStringSlice("sources", nil),
		}
		respBody, err := apiDo(ctx, client, http.MethodPost, apiURL, apiKey, "/api/v1/search", payload)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var resp searchResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		if !resp.Success {
			errMsg := "search failed"
			if resp.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", resp.Error.Code, resp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		text, err := formatComparison(&resp)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(text), nil
	}
}

func handleListSources(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 10 * time.Second}

	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		respBody, err := apiDo(ctx, client, http.MethodGet, apiURL, apiKey, "/api/v1/sources", nil)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var resp sourcesResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		var b strings.Builder
		for _, s := range resp.Sources {
			steps := "single-step"
			if s.TwoStep {
				steps = "two-step"
			}
			fmt.Fprintf(&b, "- %s (%s): %s, %s engine, %s\n", s.ID, s.Label, s.BaseURL, s.Engine, steps)
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

// formatComparison renders one line per source, in configured order, then
// the best offer.
func formatComparison(resp *searchResponse) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(resp.Data))
	if _, err := dec.Token(); err != nil {
		return "", fmt.Errorf("failed to parse data: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Results for %q:\n", resp.Query)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return "", fmt.Errorf("failed to parse data: %w", err)
		}
		id, _ := tok.(string)

		var r *sourceResult
		if err := dec.Decode(&r); err != nil {
			return "", fmt.Errorf("failed to parse %s: %w", id, err)
		}
		if r == nil {
			fmt.Fprintf(&b, "- %s: no result\n", id)
			continue
		}
		fmt.Fprintf(&b, "- %s: %s | %s | %s\n", id, orDash(r.Name), orDash(r.Price), orDash(r.URL))
		if r.Facts != nil {
			fmt.Fprintf(&b, "  %s\n", *r.Facts)
		}
	}

	if resp.BestOffer != nil {
		fmt.Fprintf(&b, "\nBest offer: %s at %s", resp.BestOffer.Source, resp.BestOffer.Price)
		if resp.BestOffer.URL != "" {
			fmt.Fprintf(&b, " (%s)", resp.BestOffer.URL)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("\nNo comparable price found.\n")
	}
	return b.String(), nil
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
