// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package completion is a thin typed client for text-generation services.
// A Backend performs exactly one request/response call; Client bounds each
// call with a fixed timeout and is shared read-only by every pipeline stage.
package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pdiddy/answer-engine/pkg/types"
)

// defaultTimeout bounds a completion call when none is configured.
const defaultTimeout = 30 * time.Second

// Request is one completion call.
type Request struct {
	Model             string
	SystemInstruction string
	UserContent       string
	Temperature       float64
	// JSON asks the service for a structured (JSON object) response.
	JSON bool
}

// Response is the raw text returned by the service.
type Response struct {
	Text string
}

// Backend abstracts the completion API so tests can supply a mock. Each
// implementation performs a single call with no retries.
type Backend interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// ErrEmptyResponse is returned when the service answers without content.
var ErrEmptyResponse = errors.New("completion service returned empty content")

// Client wraps a Backend with a default model and a fixed per-call timeout.
type Client struct {
	backend Backend
	model   string
	timeout time.Duration
}

// NewClient builds a client over backend.
func NewClient(backend Backend, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{backend: backend, model: model, timeout: timeout}
}

// Complete issues one call bounded by the client timeout. The client model
// is used when req.Model is empty.
func (c *Client) Complete(ctx context.Context, req Request) (Response, error) {
	if req.Model == "" {
		req.Model = c.model
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.backend.Complete(ctx, req)
	if err != nil {
		return Response{}, err
	}
	if resp.Text == "" {
		return Response{}, ErrEmptyResponse
	}
	return resp, nil
}

// FromConfig builds a client for the configured provider. httpClient is used
// by the OpenAI-compatible backend.
func FromConfig(ctx context.Context, cfg types.CompletionConfig, httpClient *http.Client) (*Client, error) {
	var backend Backend
	switch cfg.Provider {
	case types.CompletionOpenAI, "":
		backend = &OpenAIBackend{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Client: httpClient}
	case types.CompletionGemini:
		g, err := NewGeminiBackend(ctx, cfg.APIKey)
		if err != nil {
			return nil, err
		}
		backend = g
	default:
		return nil, fmt.Errorf("unknown completion provider %q", cfg.Provider)
	}
	return NewClient(backend, cfg.Model, cfg.Timeout), nil
}
