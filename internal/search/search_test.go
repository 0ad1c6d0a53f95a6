// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/answer-engine/pkg/types"
)

// --- mock provider ---

type mockProvider struct {
	name    string
	results []types.SearchResult
	err     error
	calls   int
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Search(_ context.Context, _ string) ([]types.SearchResult, error) {
	m.calls++
	return m.results, m.err
}

func someResults(n int) []types.SearchResult {
	out := make([]types.SearchResult, n)
	for i := range out {
		out[i] = types.SearchResult{
			Title:   fmt.Sprintf("Result %d", i),
			URL:     fmt.Sprintf("https://r%d.example", i),
			Content: "content",
		}
	}
	return out
}

func TestChainFirstProviderWins(t *testing.T) {
	primary := &mockProvider{name: "SearxNG", results: someResults(2)}
	alt := &mockProvider{name: "Tavily AI", results: someResults(2)}

	out, err := NewChain(5, nil, primary, alt).Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "SearxNG", out.Provider)
	assert.Len(t, out.Results, 2)
	assert.Equal(t, 0, alt.calls)
}

func TestChainFallsThroughInOrder(t *testing.T) {
	primary := &mockProvider{name: "SearxNG", err: &InstanceError{Failures: []string{"a (attempt 1): boom"}}}
	empty := &mockProvider{name: "Tavily AI", results: []types.SearchResult{{Title: "", URL: "https://x"}}}
	last := &mockProvider{name: "DuckDuckGo & Wikipedia", results: someResults(1)}

	out, err := NewChain(5, nil, primary, empty, last).Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "DuckDuckGo & Wikipedia", out.Provider)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, empty.calls)
}

func TestChainBoundsResults(t *testing.T) {
	p := &mockProvider{name: "SearxNG", results: someResults(9)}
	out, err := NewChain(5, nil, p).Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, out.Results, 5)
}

func TestChainExhaustionEnumeratesEveryFailure(t *testing.T) {
	primary := &mockProvider{name: "SearxNG", err: &InstanceError{Failures: []string{
		"https://a (attempt 1): timeout",
		"https://a (attempt 2): timeout",
		"https://b (attempt 1): HTTP 503",
	}}}
	tavily := &mockProvider{name: "Tavily AI", err: errors.New("tavily: API key is missing")}
	knowledge := &mockProvider{name: "DuckDuckGo & Wikipedia"}

	_, err := NewChain(5, nil, primary, tavily, knowledge).Search(context.Background(), "q")

	var ex *ExhaustedError
	require.True(t, errors.As(err, &ex))
	assert.Equal(t, []string{
		"SearxNG: https://a (attempt 1): timeout",
		"SearxNG: https://a (attempt 2): timeout",
		"SearxNG: https://b (attempt 1): HTTP 503",
		"Tavily AI: tavily: API key is missing",
		"DuckDuckGo & Wikipedia: no valid results",
	}, ex.Failures)
}

func TestChainStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &mockProvider{name: "SearxNG", results: someResults(1)}
	_, err := NewChain(5, nil, p).Search(ctx, "q")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, p.calls)
}

func TestChainRejectsEmptyQuery(t *testing.T) {
	p := &mockProvider{name: "SearxNG", results: someResults(1)}
	_, err := NewChain(5, nil, p).Search(context.Background(), "   ")
	assert.Error(t, err)
	assert.Equal(t, 0, p.calls)
}

func TestFilterResults(t *testing.T) {
	got := filterResults([]rawResult{
		{Title: " A ", URL: "https://a.example/", Content: " x "},
		{Title: "A again", URL: "https://A.example", Content: "dup"},
		{Title: "B", URL: "https://b.example", Snippet: "s"},
		{Title: "C", URL: "https://c.example"},
		{Title: nil, URL: "https://d.example", Content: "x"},
		{Title: float64(7), URL: "https://e.example", Content: "x"},
	})
	assert.Equal(t, []types.SearchResult{
		{Title: "A", URL: "https://a.example/", Content: "x"},
		{Title: "B", URL: "https://b.example", Content: "s"},
		{Title: "7", URL: "https://e.example", Content: "x"},
	}, got)
}

func TestFromConfig(t *testing.T) {
	cfg := testCfg("https://searx.example")
	cfg.Providers = []string{"tavily", " Knowledge "}
	chain, err := FromConfig(cfg, &http.Client{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{ProviderSearxNG, ProviderTavily, ProviderKnowledge}, chain.Providers())

	cfg.Providers = []string{"bing"}
	_, err = FromConfig(cfg, &http.Client{}, nil)
	assert.Error(t, err)
}
