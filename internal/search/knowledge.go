// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/answer-engine/internal/httputil"
	"github.com/pdiddy/answer-engine/internal/normalize"
	"github.com/pdiddy/answer-engine/pkg/types"
)

// ProviderKnowledge is the label reported when the DuckDuckGo & Wikipedia
// fallback served a query.
const ProviderKnowledge = "DuckDuckGo & Wikipedia"

// Knowledge API endpoints. Declared as vars so tests can substitute an
// httptest server.
var (
	duckDuckGoAPIBase = "https://api.duckduckgo.com/"
	wikipediaAPIBase  = "https://en.wikipedia.org/w/api.php"
	wikipediaPageBase = "https://en.wikipedia.org/wiki/"
)

// htmlTag matches markup in Wikipedia search snippets.
var htmlTag = regexp.MustCompile(`<[^>]*>`)

// Knowledge is the last-resort provider. It combines the DuckDuckGo Instant
// Answer API with Wikipedia full-text search, one attempt each, and succeeds
// when either source yields a result.
type Knowledge struct {
	Client     *http.Client
	Timeout    time.Duration
	MaxResults int
	UserAgent  string
}

// NewKnowledge builds the fallback provider from the search configuration.
func NewKnowledge(cfg types.SearchConfig, client *http.Client) *Knowledge {
	if client == nil {
		client = &http.Client{}
	}
	return &Knowledge{
		Client:     client,
		Timeout:    cfg.Timeout,
		MaxResults: cfg.MaxResults,
		UserAgent:  cfg.UserAgent,
	}
}

// Name returns the provider label.
func (k *Knowledge) Name() string { return ProviderKnowledge }

// Search queries DuckDuckGo then Wikipedia and merges their results,
// DuckDuckGo first. Each upstream call gets its own Timeout.
func (k *Knowledge) Search(ctx context.Context, query string) ([]types.SearchResult, error) {
	var raw []rawResult
	var errs []error

	ddg, err := k.withTimeout(ctx, query, k.duckDuckGo)
	if err != nil {
		errs = append(errs, fmt.Errorf("duckduckgo: %w", err))
	}
	raw = append(raw, ddg...)

	wiki, err := k.withTimeout(ctx, query, k.wikipedia)
	if err != nil {
		errs = append(errs, fmt.Errorf("wikipedia: %w", err))
	}
	raw = append(raw, wiki...)

	results := truncate(filterResults(raw), k.MaxResults)
	if len(results) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return results, nil
}

func (k *Knowledge) withTimeout(ctx context.Context, query string,
	fetch func(context.Context, string) ([]rawResult, error)) ([]rawResult, error) {
	if k.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, k.Timeout)
		defer cancel()
	}
	return fetch(ctx, query)
}

func (k *Knowledge) duckDuckGo(ctx context.Context, query string) ([]rawResult, error) {
	params := url.Values{
		"q":             {query},
		"format":        {"json"},
		"no_html":       {"1"},
		"skip_disambig": {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, duckDuckGoAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	k.setHeaders(req)

	var dr ddgResponse
	if err := httputil.DoJSON(k.Client, req, "DuckDuckGo", &dr); err != nil {
		return nil, err
	}

	var raw []rawResult
	if dr.AbstractText != "" && dr.AbstractURL != "" {
		title := dr.Heading
		if title == "" {
			title = query
		}
		raw = append(raw, rawResult{Title: title, URL: dr.AbstractURL, Content: dr.AbstractText})
	}
	for _, topic := range flattenTopics(dr.RelatedTopics) {
		raw = append(raw, rawResult{Title: topicTitle(topic.Text), URL: topic.FirstURL, Content: topic.Text})
	}
	return raw, nil
}

func (k *Knowledge) wikipedia(ctx context.Context, query string) ([]rawResult, error) {
	limit := k.MaxResults
	if limit <= 0 {
		limit = 5
	}
	params := url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {strconv.Itoa(limit)},
		"format":   {"json"},
		"utf8":     {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wikipediaAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	k.setHeaders(req)

	var wr wikiResponse
	if err := httputil.DoJSON(k.Client, req, "Wikipedia", &wr); err != nil {
		return nil, err
	}

	raw := make([]rawResult, 0, len(wr.Query.Search))
	for _, page := range wr.Query.Search {
		raw = append(raw, rawResult{
			Title:   page.Title,
			URL:     wikipediaPageBase + url.PathEscape(strings.ReplaceAll(page.Title, " ", "_")),
			Content: html.UnescapeString(htmlTag.ReplaceAllString(page.Snippet, "")),
		})
	}
	return raw, nil
}

func (k *Knowledge) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if k.UserAgent != "" {
		req.Header.Set("User-Agent", k.UserAgent)
	}
}

// flattenTopics expands DuckDuckGo topic groups into their member topics.
func flattenTopics(topics []ddgTopic) []ddgTopic {
	var out []ddgTopic
	for _, t := range topics {
		if len(t.Topics) > 0 {
			out = append(out, flattenTopics(t.Topics)...)
			continue
		}
		out = append(out, t)
	}
	return out
}

// topicTitle derives a title from a related-topic text, which has the form
// "Title - description".
func topicTitle(text string) string {
	if i := strings.Index(text, " - "); i > 0 {
		return text[:i]
	}
	return normalize.Truncate(text, 80)
}

// DuckDuckGo Instant Answer API JSON structures.
type ddgResponse struct {
	Heading       string     `json:"Heading"`
	AbstractText  string     `json:"AbstractText"`
	AbstractURL   string     `json:"AbstractURL"`
	RelatedTopics []ddgTopic `json:"RelatedTopics"`
}

type ddgTopic struct {
	Text     string     `json:"Text"`
	FirstURL string     `json:"FirstURL"`
	Topics   []ddgTopic `json:"Topics"`
}

// Wikipedia search API JSON structures.
type wikiResponse struct {
	Query struct {
		Search []wikiPage `json:"search"`
	} `json:"query"`
}

type wikiPage struct {
	PageID  int    `json:"pageid"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}
