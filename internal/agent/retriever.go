// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/answer-engine/internal/completion"
	"github.com/pdiddy/answer-engine/internal/normalize"
	"github.com/pdiddy/answer-engine/pkg/types"
)

// maxQueryWords is the length hint given for a rewritten search query.
const maxQueryWords = 12

// RetrieveInput is the retriever stage input.
type RetrieveInput struct {
	Query        string
	Perspectives []types.Perspective
}

// Retriever gathers search results for a question.
type Retriever struct {
	client     Completer
	searcher   Searcher
	maxResults int
	logger     *zap.Logger
}

// NewRetriever builds the retriever stage. Results are bounded to
// maxResults; a non-positive value keeps everything the searcher returns.
func NewRetriever(client Completer, searcher Searcher, maxResults int, logger *zap.Logger) *Retriever {
	return &Retriever{client: client, searcher: searcher, maxResults: maxResults, logger: nopIfNil(logger)}
}

// Name returns the stage name.
func (r *Retriever) Name() string { return "retriever" }

// Execute rewrites the question into a web query, searches, and returns the
// results with the input perspectives echoed. When the rewrite call fails or
// the search chain is exhausted the fallback research is empty and the
// envelope carries the error. An unparsable rewrite searches the question
// itself.
func (r *Retriever) Execute(ctx context.Context, in RetrieveInput) types.AgentResponse[types.ResearchResult] {
	perspectives := in.Perspectives
	if perspectives == nil {
		perspectives = []types.Perspective{}
	}
	fallback := types.ResearchResult{Results: []types.SearchResult{}, Perspectives: perspectives}

	query, err := r.searchQuery(ctx, in)
	if err != nil {
		return types.Recovered(fallback, err)
	}
	outcome, err := r.searcher.Search(ctx, query)
	if err != nil {
		r.logger.Warn("retrieval search failed", zap.String("query", query), zap.Error(err))
		return types.Recovered(fallback, fmt.Errorf("%s: %w", r.Name(), err))
	}

	results := outcome.Results
	if r.maxResults > 0 && len(results) > r.maxResults {
		results = results[:r.maxResults]
	}
	return types.Ok(types.ResearchResult{
		Results:      results,
		Perspectives: perspectives,
		Provider:     outcome.Provider,
	})
}

// searchQuery asks the completion service for a focused query. A reply that
// cannot be parsed falls back to the question itself; a failed call is
// returned as an error.
func (r *Retriever) searchQuery(ctx context.Context, in RetrieveInput) (string, error) {
	system, err := render(queryPromptTmpl, struct {
		Perspectives []types.Perspective
		MaxWords     int
	}{in.Perspectives, maxQueryWords})
	if err != nil {
		return in.Query, nil
	}

	resp := call(ctx, r.client, r.logger, r.Name(), completion.Request{
		SystemInstruction: system,
		UserContent:       in.Query,
		Temperature:       creativeTemperature,
	}, parseQuery, in.Query)
	if resp.HardFailure() {
		return "", errors.New(resp.Error)
	}
	if resp.Data == "" {
		return in.Query, nil
	}
	if resp.Data != in.Query {
		r.logger.Debug("search query rewritten",
			zap.String("question", in.Query), zap.String("query", resp.Data))
	}
	return resp.Data, nil
}

func parseQuery(obj map[string]any) (string, error) {
	q := normalize.Stringify(obj["query"])
	if q == "" {
		return "", fmt.Errorf("reply has no query")
	}
	return q, nil
}
