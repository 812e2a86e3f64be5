package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/offerscout/models"
)

func TestSearchAndStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/search", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))

		var req models.SearchRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"amazon", "flipkart"}, req.Sources)

		agg := models.NewAggregate([]string{"flipkart", "amazon"})
		agg.Set("amazon", &models.SourceResult{Name: models.StringPtr("Widget"), Price: models.StringPtr("₹499")})
		json.NewEncoder(w).Encode(models.SearchResponse{
			Success:   true,
			Data:      agg,
			BestOffer: &models.BestOffer{Source: "amazon", Price: "₹499"},
			Timing:    &models.TimingInfo{TotalMs: 900, Sources: map[string]int64{"flipkart": 400, "amazon": 500}},
		})
	}))
	defer srv.Close()

	*apiURL, *apiKey, *sources = srv.URL, "k", "amazon, flipkart"

	resp, err := search(srv.Client(), "widget")
	require.NoError(t, err)
	assert.Equal(t, "amazon ₹499", bestOf(resp))

	st := stats{sourceMs: map[string]int64{}, hits: map[string]int{}}
	st.runs = 2
	st.add(resp)
	st.add(resp)
	assert.Equal(t, int64(1800), st.totalMs)
	assert.Equal(t, int64(1000), st.sourceMs["amazon"])
	assert.Equal(t, 2, st.hits["amazon"])
	assert.Zero(t, st.hits["flipkart"])
}

func TestSearchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(models.SearchResponse{
			Error: &models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: "query is required"},
		})
	}))
	defer srv.Close()

	*apiURL, *apiKey, *sources = srv.URL, "", ""

	_, err := search(srv.Client(), " ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_INPUT")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a,,b ,"))
	assert.Nil(t, splitList(""))
}
