// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/answer-engine/internal/httputil"
	"github.com/pdiddy/answer-engine/pkg/types"
)

// ProviderTavily is the label reported when Tavily served a query.
const ProviderTavily = "Tavily AI"

// tavilyAPIURL is the Tavily search endpoint. Declared as a var so tests can
// substitute an httptest server.
var tavilyAPIURL = "https://api.tavily.com/search"

// Tavily calls the Tavily search API. It is a single best-effort attempt;
// the chain, not this provider, handles failure.
type Tavily struct {
	Client     *http.Client
	APIKey     string
	Timeout    time.Duration
	MaxResults int
	// Depth is Tavily's search_depth parameter (basic or advanced).
	Depth string
}

// NewTavily builds the Tavily provider from the search configuration.
func NewTavily(cfg types.SearchConfig, client *http.Client) *Tavily {
	if client == nil {
		client = &http.Client{}
	}
	return &Tavily{
		Client:     client,
		APIKey:     cfg.TavilyAPIKey,
		Timeout:    cfg.Timeout,
		MaxResults: cfg.MaxResults,
		Depth:      "basic",
	}
}

// Name returns the provider label.
func (t *Tavily) Name() string { return ProviderTavily }

// Search posts query to Tavily and returns the filtered results.
func (t *Tavily) Search(ctx context.Context, query string) ([]types.SearchResult, error) {
	if strings.TrimSpace(t.APIKey) == "" {
		return nil, errors.New("tavily: API key is missing")
	}
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	body := map[string]any{
		"query":        query,
		"api_key":      t.APIKey,
		"search_depth": t.Depth,
	}
	if t.MaxResults > 0 {
		body["max_results"] = t.MaxResults
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tavilyAPIURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var tr struct {
		Results []rawResult `json:"results"`
	}
	if err := httputil.DoJSON(t.Client, req, "Tavily", &tr); err != nil {
		return nil, err
	}
	return truncate(filterResults(tr.Results), t.MaxResults), nil
}
