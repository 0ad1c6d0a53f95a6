// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package agent implements the pipeline stages that turn a question into a
// cited answer: Perspective, Retriever, Writer and Presenter. Each stage
// makes one completion call (the Retriever also searches) and always returns
// an envelope whose Data has the stage's output type, substituting a
// fallback value when the call or its parsing fails.
package agent

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"go.uber.org/zap"

	"github.com/pdiddy/answer-engine/internal/completion"
	"github.com/pdiddy/answer-engine/internal/normalize"
	"github.com/pdiddy/answer-engine/internal/search"
	"github.com/pdiddy/answer-engine/pkg/types"
)

// Stage is one step of the answer pipeline.
type Stage[In, Out any] interface {
	Name() string
	Execute(ctx context.Context, in In) types.AgentResponse[Out]
}

// Completer performs one completion call. *completion.Client implements it.
type Completer interface {
	Complete(ctx context.Context, req completion.Request) (completion.Response, error)
}

// Searcher runs a resilient web search. *search.Chain implements it.
type Searcher interface {
	Search(ctx context.Context, query string) (search.Outcome, error)
}

// Sampling temperatures per stage.
const (
	creativeTemperature = 0.7
	formatTemperature   = 0.3
)

// parseFunc converts a decoded, cleaned JSON object into a stage payload.
// An error marks the response as malformed.
type parseFunc[T any] func(obj map[string]any) (T, error)

// call sends one structured completion request and parses the reply.
//
// A failed call (transport, timeout, quota, empty reply) returns fallback
// with the envelope Error set. A reply that cannot be parsed returns
// fallback with Fallback set and no Error.
func call[T any](ctx context.Context, c Completer, logger *zap.Logger, stage string,
	req completion.Request, parse parseFunc[T], fallback T) types.AgentResponse[T] {

	req.JSON = true
	resp, err := c.Complete(ctx, req)
	if err != nil {
		logger.Warn("stage call failed, using fallback",
			zap.String("stage", stage), zap.Error(err))
		return types.Recovered(fallback, fmt.Errorf("%s: %w", stage, err))
	}

	obj, err := normalize.Object(resp.Text)
	if err != nil {
		logger.Debug("stage reply is not a JSON object, using fallback",
			zap.String("stage", stage), zap.Error(err))
		return types.Recovered(fallback, nil)
	}

	data, err := parse(obj)
	if err != nil {
		logger.Debug("stage reply has an unexpected shape, using fallback",
			zap.String("stage", stage), zap.Error(err))
		return types.Recovered(fallback, nil)
	}
	return types.Ok(data)
}

// render executes a prompt template.
func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// object returns obj[key] when it is a JSON object.
func object(obj map[string]any, key string) (map[string]any, bool) {
	m, ok := obj[key].(map[string]any)
	return m, ok
}

// objects returns the JSON objects found in the list at obj[key]. A missing
// or non-list value yields an empty slice.
func objects(obj map[string]any, key string) []map[string]any {
	list, _ := obj[key].([]any)
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
