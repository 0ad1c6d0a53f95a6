// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search is the resilient multi-provider web search client. A Chain
// tries providers in a fixed priority order (SearxNG instances first, then
// Tavily, then DuckDuckGo & Wikipedia) and returns the first non-empty,
// normalized result set together with the label of the provider that served
// it.
package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/answer-engine/internal/normalize"
	"github.com/pdiddy/answer-engine/pkg/types"
)

// Provider searches a single web search backend. Each backend (SearxNG,
// Tavily, DuckDuckGo & Wikipedia) implements this interface.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) ([]types.SearchResult, error)
}

// Outcome is the result of a chain search.
type Outcome struct {
	Results  []types.SearchResult
	Provider string
}

// failureLister is implemented by provider errors that aggregate several
// underlying failures (one per instance attempt).
type failureLister interface {
	FailureDetails() []string
}

// ExhaustedError reports that every provider in the chain failed. Failures
// holds one entry per provider, or per instance attempt for providers that
// retry internally.
type ExhaustedError struct {
	Failures []string
}

func (e *ExhaustedError) Error() string {
	return "all search providers failed:\n" + strings.Join(e.Failures, "\n")
}

// FailureDetails returns the underlying failure reasons.
func (e *ExhaustedError) FailureDetails() []string { return e.Failures }

// ErrNoResults is returned by a provider that answered but produced no
// usable result.
var ErrNoResults = errors.New("no valid results")

// Chain queries providers strictly in order and returns the first non-empty
// result set. It holds no mutable state and is safe for concurrent use.
type Chain struct {
	providers  []Provider
	maxResults int
	logger     *zap.Logger
}

// NewChain builds a chain over providers in priority order. A non-positive
// maxResults disables truncation.
func NewChain(maxResults int, logger *zap.Logger, providers ...Provider) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{providers: providers, maxResults: maxResults, logger: logger}
}

// Providers returns the provider names in priority order.
func (c *Chain) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// Search runs query against each provider until one returns at least one
// valid result. It fails with *ExhaustedError when every provider fails, or
// with ctx.Err() as soon as the context is done.
func (c *Chain) Search(ctx context.Context, query string) (Outcome, error) {
	if strings.TrimSpace(query) == "" {
		return Outcome{}, fmt.Errorf("search query is empty")
	}
	if len(c.providers) == 0 {
		return Outcome{}, fmt.Errorf("no search providers configured")
	}

	var failures []string
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}

		results, err := p.Search(ctx, query)
		if err == nil {
			results = normalize.Results(results)
			if len(results) == 0 {
				err = ErrNoResults
			}
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Outcome{}, ctxErr
			}
			c.logger.Warn("search provider failed",
				zap.String("provider", p.Name()), zap.Error(err))
			failures = append(failures, providerFailures(p.Name(), err)...)
			continue
		}

		if c.maxResults > 0 && len(results) > c.maxResults {
			results = results[:c.maxResults]
		}
		c.logger.Info("search served",
			zap.String("provider", p.Name()), zap.Int("results", len(results)))
		return Outcome{Results: results, Provider: p.Name()}, nil
	}
	return Outcome{}, &ExhaustedError{Failures: failures}
}

// providerFailures expands err into one line per underlying failure, each
// prefixed by the provider name.
func providerFailures(name string, err error) []string {
	var fl failureLister
	if errors.As(err, &fl) && len(fl.FailureDetails()) > 0 {
		details := fl.FailureDetails()
		out := make([]string, len(details))
		for i, d := range details {
			out[i] = name + ": " + d
		}
		return out
	}
	return []string{name + ": " + err.Error()}
}

// rawResult is the loosely typed result shape shared by the JSON search
// APIs. Fields are decoded as any so that non-string values can be coerced.
type rawResult struct {
	Title   any `json:"title"`
	URL     any `json:"url"`
	Content any `json:"content"`
	Snippet any `json:"snippet"`
}

// filterResults keeps results that have a title, a URL and either content
// or a snippet. Kept fields are coerced to text and trimmed; duplicate URLs
// are dropped. The returned slice is never nil.
func filterResults(raw []rawResult) []types.SearchResult {
	results := make([]types.SearchResult, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, r := range raw {
		title := normalize.Stringify(r.Title)
		link := normalize.Stringify(r.URL)
		content := normalize.Stringify(r.Content)
		if content == "" {
			content = normalize.Stringify(r.Snippet)
		}
		if title == "" || link == "" || content == "" {
			continue
		}
		key := dedupKey(link)
		if seen[key] {
			continue
		}
		seen[key] = true
		results = append(results, types.SearchResult{Title: title, URL: link, Content: content})
	}
	return results
}

// dedupKey lowercases the URL and drops a trailing slash and fragment.
func dedupKey(link string) string {
	if i := strings.IndexByte(link, '#'); i >= 0 {
		link = link[:i]
	}
	return strings.TrimSuffix(strings.ToLower(link), "/")
}

// truncate bounds results to max entries; a non-positive max keeps all.
func truncate(results []types.SearchResult, max int) []types.SearchResult {
	if max > 0 && len(results) > max {
		return results[:max]
	}
	return results
}

// FromConfig builds the default chain: SearxNG instances first, then the
// alternative providers named in cfg.Providers in order. Unknown provider
// names are an error.
func FromConfig(cfg types.SearchConfig, client *http.Client, logger *zap.Logger) (*Chain, error) {
	providers := []Provider{NewSearxNG(cfg, client, logger)}
	for _, name := range cfg.Providers {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case types.ProviderTavily:
			providers = append(providers, NewTavily(cfg, client))
		case types.ProviderKnowledge:
			providers = append(providers, NewKnowledge(cfg, client))
		default:
			return nil, fmt.Errorf("unknown search provider %q", name)
		}
	}
	return NewChain(cfg.MaxResults, logger, providers...), nil
}
