// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package orchestrator resolves a question into a cited answer. It selects a
// strategy (direct or multi-perspective), runs the pipeline stages in order
// while reporting status checkpoints, and falls back to a plain resilient
// search when any stage fails hard.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/answer-engine/internal/agent"
	"github.com/pdiddy/answer-engine/internal/normalize"
	"github.com/pdiddy/answer-engine/pkg/types"
)

// Status checkpoints reported while a query is resolved.
const (
	StatusPerspectives = "Adding different perspectives to enrich your answer..."
	StatusSearching    = "Searching through reliable sources..."
	StatusWriting      = "Crafting a comprehensive answer..."
	StatusFormatting   = "Formatting the response..."
	StatusFallback     = "Falling back to direct search..."
)

// FallbackAnswer is the answer text of a fallback response.
const FallbackAnswer = "Based on the search results, here is what I found..."

// DefaultShortQueryThreshold is the length below which a query is treated as
// a direct question.
const DefaultShortQueryThreshold = 50

// Stable user-facing search failure messages.
const (
	MsgAllSearchFailed = "All search services failed"
	MsgNoResults       = "No results found for the given query"
)

// ErrEmptyQuery is returned for an empty or whitespace-only query.
var ErrEmptyQuery = errors.New("query must not be empty")

// SearchError reports a failed fallback search. Error returns only the
// stable message; Details holds the underlying provider failures.
type SearchError struct {
	Message string
	Details []string
}

func (e *SearchError) Error() string { return e.Message }

// StatusFunc receives status checkpoints. It is called synchronously on the
// resolving goroutine.
type StatusFunc func(status string)

// Path names how a response was produced.
type Path string

// Resolution paths.
const (
	PathPipeline Path = "pipeline"
	PathFallback Path = "fallback"
)

// Resolution is a response together with details the response schema does
// not carry.
type Resolution struct {
	Response          types.SearchResponse `json:"response" yaml:"response"`
	FollowUpQuestions []string             `json:"followUpQuestions" yaml:"follow_up_questions"`
	Path              Path                 `json:"path" yaml:"path"`
	Direct            bool                 `json:"direct" yaml:"direct"`
}

// Stages holds the pipeline stages in execution order.
type Stages struct {
	Perspective agent.Stage[string, []types.Perspective]
	Retriever   agent.Stage[agent.RetrieveInput, types.ResearchResult]
	Writer      agent.Stage[types.ResearchResult, types.ArticleResult]
	Presenter   agent.Stage[types.Presentation, types.Presentation]
}

// Options tunes an Orchestrator.
type Options struct {
	// ShortQueryThreshold classifies queries shorter than this many
	// characters as direct. Zero means DefaultShortQueryThreshold.
	ShortQueryThreshold int
	// MaxResults bounds the sources of every response. Zero disables the
	// bound.
	MaxResults int
}

// Orchestrator resolves queries. It holds no per-query state and is safe
// for concurrent use.
type Orchestrator struct {
	stages    Stages
	searcher  agent.Searcher
	threshold int
	maxResult int
	logger    *zap.Logger
}

// New builds an orchestrator from its stages and the search client used for
// the fallback path.
func New(stages Stages, searcher agent.Searcher, opts Options, logger *zap.Logger) *Orchestrator {
	if opts.ShortQueryThreshold <= 0 {
		opts.ShortQueryThreshold = DefaultShortQueryThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		stages:    stages,
		searcher:  searcher,
		threshold: opts.ShortQueryThreshold,
		maxResult: opts.MaxResults,
		logger:    logger,
	}
}

// FromClients wires the default stages over a completion client and a
// search client.
func FromClients(client agent.Completer, searcher agent.Searcher, opts Options, logger *zap.Logger) *Orchestrator {
	stages := Stages{
		Perspective: agent.NewPerspective(client, logger),
		Retriever:   agent.NewRetriever(client, searcher, opts.MaxResults, logger),
		Writer:      agent.NewWriter(client, logger),
		Presenter:   agent.NewPresenter(client, opts.MaxResults, logger),
	}
	return New(stages, searcher, opts, logger)
}

// directPrefixes mark questions answered without perspective generation.
var directPrefixes = []string{
	"what is", "who is", "when did", "where is",
	"how much", "how many", "which", "define", "explain",
}

// IsDirect reports whether query is a direct question: it starts with one
// of the direct prefixes (case-insensitive, any whitespace between words) or
// is shorter than the short-query threshold.
func (o *Orchestrator) IsDirect(query string) bool {
	return isDirect(query, o.threshold)
}

func isDirect(query string, threshold int) bool {
	if len([]rune(query)) < threshold {
		return true
	}
	words := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	for _, p := range directPrefixes {
		if strings.HasPrefix(words, p) {
			return true
		}
	}
	return false
}

// Resolve answers query. onStatus may be nil.
func (o *Orchestrator) Resolve(ctx context.Context, query string, onStatus StatusFunc) (types.SearchResponse, error) {
	res, err := o.ResolveDetailed(ctx, query, onStatus)
	if err != nil {
		return types.SearchResponse{}, err
	}
	return res.Response, nil
}

// ResolveDetailed answers query and reports the path taken and the
// follow-up questions of the generated article.
//
// The pipeline is abandoned for the fallback search when a stage fails
// hard, panics, or leaves no perspectives or no results to work with.
// Cancellation of ctx aborts with ctx.Err() and never falls back.
func (o *Orchestrator) ResolveDetailed(ctx context.Context, query string, onStatus StatusFunc) (Resolution, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Resolution{}, ErrEmptyQuery
	}
	if onStatus == nil {
		onStatus = func(string) {}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := o.logger.With(zap.String("request_id", uuid.NewString()))
	direct := o.IsDirect(query)
	log.Info("resolving query", zap.String("query", query), zap.Bool("direct", direct))

	res, err := o.runPipeline(ctx, query, direct, onStatus, log)
	if err == nil {
		res.Direct = direct
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Resolution{}, ctxErr
	}

	log.Info("pipeline failed, falling back to search", zap.Error(err))
	onStatus(StatusFallback)
	res, err = o.fallback(ctx, query, log)
	if err != nil {
		return Resolution{}, err
	}
	res.Direct = direct
	return res, nil
}

// runPipeline runs the stages in order.
func (o *Orchestrator) runPipeline(ctx context.Context, query string, direct bool, onStatus StatusFunc, log *zap.Logger) (Resolution, error) {
	perspectives := []types.Perspective{}
	if !direct {
		onStatus(StatusPerspectives)
		resp, err := runStage(ctx, o.stages.Perspective, query, log)
		if err != nil {
			return Resolution{}, err
		}
		if len(resp.Data) == 0 {
			return Resolution{}, fmt.Errorf("perspective stage produced no perspectives")
		}
		perspectives = resp.Data
	}

	onStatus(StatusSearching)
	research, err := runStage(ctx, o.stages.Retriever, agent.RetrieveInput{Query: query, Perspectives: perspectives}, log)
	if err != nil {
		return Resolution{}, err
	}
	if len(research.Data.Results) == 0 {
		return Resolution{}, fmt.Errorf("retriever stage produced no results")
	}

	onStatus(StatusWriting)
	article, err := runStage(ctx, o.stages.Writer, research.Data, log)
	if err != nil {
		return Resolution{}, err
	}

	onStatus(StatusFormatting)
	presented, err := runStage(ctx, o.stages.Presenter, types.Presentation{Research: research.Data, Article: article.Data}, log)
	if err != nil {
		return Resolution{}, err
	}
	if len(presented.Data.Research.Results) == 0 {
		return Resolution{}, fmt.Errorf("presenter stage produced no results")
	}

	resp := normalize.Response(types.SearchResponse{
		Answer:   presented.Data.Article.Content,
		Sources:  types.SourcesFrom(presented.Data.Research.Results, o.maxResult),
		Provider: research.Data.Provider,
	})
	log.Info("query resolved",
		zap.String("path", string(PathPipeline)),
		zap.String("provider", resp.Provider),
		zap.Int("sources", len(resp.Sources)))

	return Resolution{
		Response:          resp,
		FollowUpQuestions: normalize.Article(presented.Data.Article).FollowUpQuestions,
		Path:              PathPipeline,
	}, nil
}

// runStage executes one stage, converting a panic or a hard failure into an
// error. A cancelled context is reported as ctx.Err().
func runStage[In, Out any](ctx context.Context, s agent.Stage[In, Out], in In, log *zap.Logger) (resp types.AgentResponse[Out], err error) {
	if s == nil {
		return resp, fmt.Errorf("pipeline stage not configured")
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("stage panicked", zap.String("stage", s.Name()), zap.Any("panic", r))
			err = fmt.Errorf("%s stage panicked: %v", s.Name(), r)
		}
	}()

	resp = s.Execute(ctx, in)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return resp, ctxErr
	}
	if !resp.Success {
		return resp, fmt.Errorf("%s stage failed: %s", s.Name(), resp.Error)
	}
	if resp.HardFailure() {
		return resp, fmt.Errorf("%s stage failed: %s", s.Name(), resp.Error)
	}
	if resp.Fallback {
		log.Debug("stage used fallback data", zap.String("stage", s.Name()))
	}
	return resp, nil
}

// fallback answers with raw search results.
func (o *Orchestrator) fallback(ctx context.Context, query string, log *zap.Logger) (Resolution, error) {
	outcome, err := o.searcher.Search(ctx, query)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Resolution{}, ctxErr
		}
		details := []string{err.Error()}
		var fl interface{ FailureDetails() []string }
		if errors.As(err, &fl) {
			details = fl.FailureDetails()
		}
		log.Warn("fallback search failed", zap.Strings("details", details))
		return Resolution{}, &SearchError{Message: MsgAllSearchFailed, Details: details}
	}

	resp := normalize.Response(types.SearchResponse{
		Answer:   FallbackAnswer,
		Sources:  types.SourcesFrom(outcome.Results, o.maxResult),
		Provider: outcome.Provider,
	})
	if len(resp.Sources) == 0 {
		return Resolution{}, &SearchError{Message: MsgNoResults}
	}
	log.Info("query resolved",
		zap.String("path", string(PathFallback)),
		zap.String("provider", resp.Provider),
		zap.Int("sources", len(resp.Sources)))

	return Resolution{
		Response:          resp,
		FollowUpQuestions: []string{},
		Path:              PathFallback,
	}, nil
}
