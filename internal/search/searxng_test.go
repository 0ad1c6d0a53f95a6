// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/answer-engine/pkg/types"
)

const searxBody = `{"results":[
	{"title":"Paris","url":"https://en.wikipedia.org/wiki/Paris","content":"Paris is the capital of France."},
	{"title":"France","url":"https://en.wikipedia.org/wiki/France","snippet":"France is a country."},
	{"title":"","url":"https://dropped.example","content":"no title"},
	{"title":"No content","url":"https://dropped2.example"}
]}`

func testCfg(instances ...string) types.SearchConfig {
	return types.SearchConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   2 * time.Second,
			UserAgent: "test/0.1",
		},
		Instances:  instances,
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
		MaxResults: 5,
	}
}

// newTestSearx keeps the configured instance order so tests are deterministic.
func newTestSearx(cfg types.SearchConfig) *SearxNG {
	s := NewSearxNG(cfg, &http.Client{}, nil)
	s.shuffle = func([]string) {}
	return s
}

// flakyServer fails the first `failures` requests with HTTP 503, then serves body.
func flakyServer(t *testing.T, failures int32, body string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n <= failures {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(ts.Close)
	return ts, &calls
}

func TestSearxNGRequestParams(t *testing.T) {
	var captured *http.Request
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r
		fmt.Fprint(w, searxBody)
	}))
	defer ts.Close()

	s := newTestSearx(testCfg(ts.URL + "/"))
	_, err := s.Search(context.Background(), "capital of france")
	require.NoError(t, err)

	assert.Equal(t, "/search", captured.URL.Path)
	q := captured.URL.Query()
	assert.Equal(t, "capital of france", q.Get("q"))
	assert.Equal(t, "json", q.Get("format"))
	assert.Equal(t, "en", q.Get("language"))
	assert.Equal(t, "general", q.Get("categories"))
	assert.Equal(t, "year", q.Get("time_range"))
	assert.Equal(t, "1", q.Get("safesearch"))
	assert.Equal(t, "application/json", captured.Header.Get("Accept"))
	assert.Equal(t, "test/0.1", captured.Header.Get("User-Agent"))
}

func TestSearxNGFiltersResults(t *testing.T) {
	ts, _ := flakyServer(t, 0, searxBody)

	s := newTestSearx(testCfg(ts.URL))
	results, err := s.Search(context.Background(), "paris")
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "Paris", results[0].Title)
	assert.Equal(t, "France is a country.", results[1].Content, "snippet used when content is absent")
}

func TestSearxNGCoercesTypes(t *testing.T) {
	ts, _ := flakyServer(t, 0, `{"results":[{"title":2024,"url":" https://n.example ","content":true}]}`)

	s := newTestSearx(testCfg(ts.URL))
	results, err := s.Search(context.Background(), "numbers")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, types.SearchResult{Title: "2024", URL: "https://n.example", Content: "true"}, results[0])
}

func TestSearxNGTruncatesToMaxResults(t *testing.T) {
	var b strings.Builder
	b.WriteString(`{"results":[`)
	for i := 0; i < 12; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"title":"t%d","url":"https://r%d.example","content":"c"}`, i, i)
	}
	b.WriteString(`]}`)
	ts, _ := flakyServer(t, 0, b.String())

	cfg := testCfg(ts.URL)
	cfg.MaxResults = 3
	results, err := newTestSearx(cfg).Search(context.Background(), "many")
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestSearxNGRecoversFromSingleFailurePerInstance(t *testing.T) {
	ts1, calls1 := flakyServer(t, 1, searxBody)
	ts2, calls2 := flakyServer(t, 1, searxBody)
	ts3, calls3 := flakyServer(t, 1, searxBody)

	cfg := testCfg(ts1.URL, ts2.URL, ts3.URL)
	cfg.MaxRetries = 2
	results, err := newTestSearx(cfg).Search(context.Background(), "paris")
	require.NoError(t, err)
	assert.NotEmpty(t, results)

	// First instance recovers on its second attempt; the others are never contacted.
	assert.Equal(t, int32(2), atomic.LoadInt32(calls1))
	assert.Equal(t, int32(0), atomic.LoadInt32(calls2))
	assert.Equal(t, int32(0), atomic.LoadInt32(calls3))
}

func TestSearxNGMovesToNextInstanceAfterRetries(t *testing.T) {
	bad, badCalls := flakyServer(t, 100, searxBody)
	good, goodCalls := flakyServer(t, 0, searxBody)

	cfg := testCfg(bad.URL, good.URL)
	results, err := newTestSearx(cfg).Search(context.Background(), "paris")
	require.NoError(t, err)
	assert.NotEmpty(t, results)
	assert.Equal(t, int32(3), atomic.LoadInt32(badCalls))
	assert.Equal(t, int32(1), atomic.LoadInt32(goodCalls))
}

func TestSearxNGEmptyResultsCountAsFailure(t *testing.T) {
	empty, emptyCalls := flakyServer(t, 0, `{"results":[]}`)
	good, _ := flakyServer(t, 0, searxBody)

	cfg := testCfg(empty.URL, good.URL)
	cfg.MaxRetries = 2
	results, err := newTestSearx(cfg).Search(context.Background(), "paris")
	require.NoError(t, err)
	assert.NotEmpty(t, results)
	assert.Equal(t, int32(2), atomic.LoadInt32(emptyCalls))
}

func TestSearxNGExhaustionListsEveryAttempt(t *testing.T) {
	ts1, _ := flakyServer(t, 100, searxBody)
	ts2, _ := flakyServer(t, 0, `{"unexpected":true}`)

	cfg := testCfg(ts1.URL, ts2.URL)
	cfg.MaxRetries = 2
	_, err := newTestSearx(cfg).Search(context.Background(), "paris")

	var ie *InstanceError
	require.True(t, errors.As(err, &ie))
	require.Len(t, ie.Failures, 4)
	assert.Contains(t, ie.Failures[0], ts1.URL+" (attempt 1)")
	assert.Contains(t, ie.Failures[0], "HTTP 503")
	assert.Contains(t, ie.Failures[1], ts1.URL+" (attempt 2)")
	assert.Contains(t, ie.Failures[2], ts2.URL+" (attempt 1)")
	assert.Contains(t, ie.Failures[3], "invalid response format")
}

func TestSearxNGTimeoutGrowsWithAttempt(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		select {
		case <-time.After(150 * time.Millisecond):
		case <-r.Context().Done():
			return
		}
		fmt.Fprint(w, searxBody)
	}))
	defer ts.Close()

	cfg := testCfg(ts.URL)
	cfg.Timeout = 100 * time.Millisecond
	cfg.MaxRetries = 2
	results, err := newTestSearx(cfg).Search(context.Background(), "slow")
	require.NoError(t, err)
	assert.NotEmpty(t, results)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "first attempt times out at 100ms, second gets 200ms")
}

func TestSearxNGBackoffDoubles(t *testing.T) {
	var mu sync.Mutex
	var stamps []time.Time
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		stamps = append(stamps, time.Now())
		mu.Unlock()
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	cfg := testCfg(ts.URL)
	cfg.RetryDelay = 40 * time.Millisecond
	_, err := newTestSearx(cfg).Search(context.Background(), "q")
	require.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, stamps, 3)

	assert.GreaterOrEqual(t, stamps[1].Sub(stamps[0]), 40*time.Millisecond)
	assert.GreaterOrEqual(t, stamps[2].Sub(stamps[1]), 80*time.Millisecond)
}

func TestSearxNGContextCancelledStopsRetries(t *testing.T) {
	ts, calls := flakyServer(t, 100, searxBody)

	cfg := testCfg(ts.URL)
	cfg.RetryDelay = time.Second
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := newTestSearx(cfg).Search(ctx, "q")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestSearxNGShuffleDoesNotMutateConfig(t *testing.T) {
	ts, _ := flakyServer(t, 0, searxBody)
	instances := []string{"http://127.0.0.1:1", "http://127.0.0.1:2", ts.URL}
	original := append([]string(nil), instances...)

	cfg := testCfg(instances...)
	cfg.MaxRetries = 1
	s := NewSearxNG(cfg, &http.Client{}, nil)
	s.shuffle = func(list []string) {
		// Reverse the copy so the healthy instance comes first.
		for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
			list[i], list[j] = list[j], list[i]
		}
	}

	_, err := s.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, original, s.Instances)
}

func TestSearxNGNoInstances(t *testing.T) {
	_, err := newTestSearx(testCfg()).Search(context.Background(), "q")
	assert.Error(t, err)
}
