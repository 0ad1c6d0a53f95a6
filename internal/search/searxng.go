// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/answer-engine/internal/httputil"
	"github.com/pdiddy/answer-engine/pkg/types"
)

// ProviderSearxNG is the label reported when a SearxNG instance served a query.
const ProviderSearxNG = "SearxNG"

// browserUserAgent is sent when no User-Agent is configured; several public
// SearxNG instances reject non-browser agents.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// InstanceError reports that every SearxNG instance was exhausted. Failures
// holds one "<instance> (attempt n): reason" entry per failed attempt.
type InstanceError struct {
	Failures []string
}

func (e *InstanceError) Error() string {
	return "all SearxNG instances failed:\n" + strings.Join(e.Failures, "\n")
}

// FailureDetails returns the per-attempt failure reasons.
func (e *InstanceError) FailureDetails() []string { return e.Failures }

// SearxNG queries a list of public SearxNG instances. Instances are tried in
// a random order; each is attempted up to MaxRetries times with a linearly
// growing timeout and exponential backoff between attempts.
type SearxNG struct {
	Client     *http.Client
	Instances  []string
	MaxRetries int
	Timeout    time.Duration
	RetryDelay time.Duration
	MaxResults int
	UserAgent  string
	Logger     *zap.Logger

	// shuffle reorders a copy of Instances; tests replace it to make the
	// order deterministic.
	shuffle func([]string)
}

// NewSearxNG builds the primary provider from the search configuration.
func NewSearxNG(cfg types.SearchConfig, client *http.Client, logger *zap.Logger) *SearxNG {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearxNG{
		Client:     client,
		Instances:  cfg.Instances,
		MaxRetries: cfg.MaxRetries,
		Timeout:    cfg.Timeout,
		RetryDelay: cfg.RetryDelay,
		MaxResults: cfg.MaxResults,
		UserAgent:  cfg.UserAgent,
		Logger:     logger,
	}
}

// Name returns the provider label.
func (s *SearxNG) Name() string { return ProviderSearxNG }

// Search returns the results of the first instance that yields at least one
// valid result, truncated to MaxResults. Later instances are not contacted.
func (s *SearxNG) Search(ctx context.Context, query string) ([]types.SearchResult, error) {
	if len(s.Instances) == 0 {
		return nil, fmt.Errorf("no SearxNG instances configured")
	}

	maxRetries := s.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	instances := make([]string, len(s.Instances))
	copy(instances, s.Instances)
	if s.shuffle != nil {
		s.shuffle(instances)
	} else {
		rand.Shuffle(len(instances), func(i, j int) {
			instances[i], instances[j] = instances[j], instances[i]
		})
	}

	var failures []string
	for _, instance := range instances {
		for attempt := 0; attempt < maxRetries; attempt++ {
			results, err := s.queryInstance(ctx, instance, query, attempt)
			if err == nil && len(results) > 0 {
				return truncate(results, s.MaxResults), nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if err == nil {
				err = ErrNoResults
			}

			failures = append(failures, fmt.Sprintf("%s (attempt %d): %v", instance, attempt+1, err))
			s.Logger.Warn("SearxNG instance failed",
				zap.String("instance", instance),
				zap.Int("attempt", attempt+1),
				zap.Error(err))

			if attempt < maxRetries-1 {
				if err := httputil.Sleep(ctx, httputil.Backoff(s.RetryDelay, attempt)); err != nil {
					return nil, err
				}
			}
		}
	}
	return nil, &InstanceError{Failures: failures}
}

// queryInstance performs one attempt against one instance. The attempt
// timeout grows with the attempt number.
func (s *SearxNG) queryInstance(ctx context.Context, instance, query string, attempt int) ([]types.SearchResult, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, httputil.AttemptTimeout(timeout, attempt))
	defer cancel()

	params := url.Values{
		"q":          {query},
		"format":     {"json"},
		"language":   {"en"},
		"categories": {"general"},
		"time_range": {"year"},
		"safesearch": {"1"},
	}
	reqURL := strings.TrimRight(instance, "/") + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	ua := s.UserAgent
	if ua == "" {
		ua = browserUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")

	var sr searxResponse
	if err := httputil.DoJSON(s.Client, req, "SearxNG", &sr); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
			return nil, fmt.Errorf("timed out after %v", httputil.AttemptTimeout(timeout, attempt))
		}
		return nil, err
	}
	if sr.Results == nil {
		return nil, fmt.Errorf("invalid response format from search instance")
	}
	return filterResults(*sr.Results), nil
}

// searxResponse is the SearxNG JSON API response. Results is a pointer so
// that a missing field can be told apart from an empty list.
type searxResponse struct {
	Results *[]rawResult `json:"results"`
}
