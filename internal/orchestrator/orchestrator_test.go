// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pdiddy/answer-engine/internal/agent"
	"github.com/pdiddy/answer-engine/internal/completion"
	"github.com/pdiddy/answer-engine/internal/search"
	"github.com/pdiddy/answer-engine/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

const (
	directQuery = "What is the capital of France?"
	// longQuery has no direct prefix and exceeds the default threshold.
	longQuery = "Impacts of urbanization on biodiversity in temperate regions"
)

// funcStage adapts a function to agent.Stage and counts calls.
type funcStage[In, Out any] struct {
	name  string
	fn    func(context.Context, In) types.AgentResponse[Out]
	calls int
	last  In
}

func (s *funcStage[In, Out]) Name() string { return s.name }

func (s *funcStage[In, Out]) Execute(ctx context.Context, in In) types.AgentResponse[Out] {
	s.calls++
	s.last = in
	return s.fn(ctx, in)
}

func stage[In, Out any](name string, fn func(context.Context, In) types.AgentResponse[Out]) *funcStage[In, Out] {
	return &funcStage[In, Out]{name: name, fn: fn}
}

type mockSearcher struct {
	outcome search.Outcome
	err     error
	calls   int
}

func (m *mockSearcher) Search(_ context.Context, _ string) (search.Outcome, error) {
	m.calls++
	return m.outcome, m.err
}

func results(n int) []types.SearchResult {
	out := make([]types.SearchResult, n)
	for i := range out {
		out[i] = types.SearchResult{
			Title:   fmt.Sprintf("Source %d", i+1),
			URL:     fmt.Sprintf("https://example.com/%d", i+1),
			Content: fmt.Sprintf("snippet %d", i+1),
		}
	}
	return out
}

// pipeline holds stub stages that succeed by default.
type pipeline struct {
	perspective *funcStage[string, []types.Perspective]
	retriever   *funcStage[agent.RetrieveInput, types.ResearchResult]
	writer      *funcStage[types.ResearchResult, types.ArticleResult]
	presenter   *funcStage[types.Presentation, types.Presentation]
}

func newPipeline(n int) *pipeline {
	return &pipeline{
		perspective: stage("perspective", func(context.Context, string) types.AgentResponse[[]types.Perspective] {
			return types.Ok([]types.Perspective{
				{ID: "environmental", Title: "Environmental", Description: "Habitat loss"},
				{ID: "economic", Title: "Economic", Description: "Land value"},
			})
		}),
		retriever: stage("retriever", func(_ context.Context, in agent.RetrieveInput) types.AgentResponse[types.ResearchResult] {
			return types.Ok(types.ResearchResult{Results: results(n), Perspectives: in.Perspectives, Provider: search.ProviderSearxNG})
		}),
		writer: stage("writer", func(context.Context, types.ResearchResult) types.AgentResponse[types.ArticleResult] {
			return types.Ok(types.ArticleResult{Content: "An answer citing Source 1.", FollowUpQuestions: []string{"Why?"}, Citations: []string{"Source 1"}})
		}),
		presenter: stage("presenter", func(_ context.Context, in types.Presentation) types.AgentResponse[types.Presentation] {
			return types.Ok(in)
		}),
	}
}

func (p *pipeline) stages() Stages {
	return Stages{Perspective: p.perspective, Retriever: p.retriever, Writer: p.writer, Presenter: p.presenter}
}

type statusLog []string

func (s *statusLog) record(status string) { *s = append(*s, status) }

func TestIsDirect(t *testing.T) {
	o := New(Stages{}, nil, Options{}, nil)
	for query, want := range map[string]bool{
		"What is the capital of France?": true,
		"WHO IS the current president of the United States of America?": true,
		"what   is   entropy in thermodynamics and information theory": true,
		"Which programming language has the best concurrency model today?": true,
		"Explain the differences between TCP and UDP in network protocols": true,
		"short":    true,
		longQuery:  false,
		"Compare the long-term economic effects of remote work on city centers": false,
	} {
		assert.Equal(t, want, o.IsDirect(query), query)
	}

	custom := New(Stages{}, nil, Options{ShortQueryThreshold: 10}, nil)
	assert.False(t, custom.IsDirect("Impacts of urbanization on biodiversity"))
}

func TestResolveEmptyQuery(t *testing.T) {
	for _, q := range []string{"", "   ", "\n\t"} {
		p := newPipeline(3)
		s := &mockSearcher{}
		var statuses statusLog
		_, err := New(p.stages(), s, Options{}, nil).Resolve(context.Background(), q, statuses.record)

		assert.ErrorIs(t, err, ErrEmptyQuery)
		assert.Empty(t, statuses)
		assert.Zero(t, p.perspective.calls+p.retriever.calls+p.writer.calls+p.presenter.calls)
		assert.Zero(t, s.calls)
	}
}

func TestResolveDirectSkipsPerspective(t *testing.T) {
	p := newPipeline(3)
	var statuses statusLog
	res, err := New(p.stages(), &mockSearcher{}, Options{MaxResults: 5}, nil).
		ResolveDetailed(context.Background(), directQuery, statuses.record)
	require.NoError(t, err)

	assert.Zero(t, p.perspective.calls)
	assert.Empty(t, p.retriever.last.Perspectives)
	assert.NotNil(t, p.retriever.last.Perspectives)
	assert.Equal(t, statusLog{StatusSearching, StatusWriting, StatusFormatting}, statuses)
	assert.Equal(t, PathPipeline, res.Path)
	assert.True(t, res.Direct)
	assert.Equal(t, []string{"Why?"}, res.FollowUpQuestions)
	assert.Equal(t, search.ProviderSearxNG, res.Response.Provider)
}

func TestResolvePerspectivesPassedVerbatim(t *testing.T) {
	p := newPipeline(3)
	var statuses statusLog
	o := New(p.stages(), &mockSearcher{}, Options{ShortQueryThreshold: 10, MaxResults: 5}, nil)

	resp, err := o.Resolve(context.Background(), "Impacts of urbanization on biodiversity", statuses.record)
	require.NoError(t, err)

	assert.Equal(t, 1, p.perspective.calls)
	assert.Equal(t, "Impacts of urbanization on biodiversity", p.perspective.last)
	assert.Equal(t, []types.Perspective{
		{ID: "environmental", Title: "Environmental", Description: "Habitat loss"},
		{ID: "economic", Title: "Economic", Description: "Land value"},
	}, p.retriever.last.Perspectives)
	assert.Equal(t, statusLog{StatusPerspectives, StatusSearching, StatusWriting, StatusFormatting}, statuses)
	assert.Equal(t, "An answer citing Source 1.", resp.Answer)
}

func TestResolveSourcesBounded(t *testing.T) {
	t.Run("pipeline", func(t *testing.T) {
		p := newPipeline(9)
		resp, err := New(p.stages(), &mockSearcher{}, Options{MaxResults: 5}, nil).
			Resolve(context.Background(), directQuery, nil)
		require.NoError(t, err)
		assert.Len(t, resp.Sources, 5)
	})

	t.Run("fallback", func(t *testing.T) {
		p := newPipeline(3)
		p.writer.fn = func(context.Context, types.ResearchResult) types.AgentResponse[types.ArticleResult] {
			return types.Recovered(types.ArticleResult{}, errors.New("timeout"))
		}
		s := &mockSearcher{outcome: search.Outcome{Results: results(9), Provider: search.ProviderTavily}}
		resp, err := New(p.stages(), s, Options{MaxResults: 5}, nil).
			Resolve(context.Background(), directQuery, nil)
		require.NoError(t, err)
		assert.Len(t, resp.Sources, 5)
	})
}

func TestResolveFallsBack(t *testing.T) {
	hardPerspective := func(context.Context, string) types.AgentResponse[[]types.Perspective] {
		return types.Recovered([]types.Perspective{}, errors.New("deadline exceeded"))
	}

	tests := []struct {
		name   string
		query  string
		mutate func(p *pipeline)
	}{
		{"perspective hard failure", longQuery, func(p *pipeline) { p.perspective.fn = hardPerspective }},
		{"no perspectives", longQuery, func(p *pipeline) {
			p.perspective.fn = func(context.Context, string) types.AgentResponse[[]types.Perspective] {
				return types.Ok([]types.Perspective{})
			}
		}},
		{"retriever without results", directQuery, func(p *pipeline) {
			p.retriever.fn = func(context.Context, agent.RetrieveInput) types.AgentResponse[types.ResearchResult] {
				return types.Ok(types.ResearchResult{Results: []types.SearchResult{}})
			}
		}},
		{"writer panic", directQuery, func(p *pipeline) {
			p.writer.fn = func(context.Context, types.ResearchResult) types.AgentResponse[types.ArticleResult] {
				panic("boom")
			}
		}},
		{"presenter without results", directQuery, func(p *pipeline) {
			p.presenter.fn = func(_ context.Context, in types.Presentation) types.AgentResponse[types.Presentation] {
				in.Research.Results = []types.SearchResult{}
				return types.Recovered(in, nil)
			}
		}},
		{"unsuccessful envelope", directQuery, func(p *pipeline) {
			p.writer.fn = func(context.Context, types.ResearchResult) types.AgentResponse[types.ArticleResult] {
				return types.AgentResponse[types.ArticleResult]{Error: "broken"}
			}
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := newPipeline(3)
			tc.mutate(p)
			s := &mockSearcher{outcome: search.Outcome{Results: results(2), Provider: search.ProviderKnowledge}}
			var statuses statusLog

			res, err := New(p.stages(), s, Options{MaxResults: 5}, nil).
				ResolveDetailed(context.Background(), tc.query, statuses.record)
			require.NoError(t, err)

			assert.Equal(t, PathFallback, res.Path)
			assert.Equal(t, FallbackAnswer, res.Response.Answer)
			assert.Equal(t, search.ProviderKnowledge, res.Response.Provider)
			assert.Len(t, res.Response.Sources, 2)
			assert.Equal(t, "snippet 1", res.Response.Sources[0].Snippet)
			assert.Equal(t, 1, s.calls)
			require.NotEmpty(t, statuses)
			assert.Equal(t, StatusFallback, statuses[len(statuses)-1])
		})
	}
}

func TestResolveSoftFailureDoesNotAbort(t *testing.T) {
	p := newPipeline(3)
	p.writer.fn = func(context.Context, types.ResearchResult) types.AgentResponse[types.ArticleResult] {
		return types.Recovered(types.ArticleResult{Content: agent.WriterApology}, nil)
	}
	s := &mockSearcher{}
	res, err := New(p.stages(), s, Options{}, nil).ResolveDetailed(context.Background(), directQuery, nil)
	require.NoError(t, err)

	assert.Equal(t, PathPipeline, res.Path)
	assert.Equal(t, agent.WriterApology, res.Response.Answer)
	assert.Zero(t, s.calls)
}

func TestResolveFallbackSearchErrors(t *testing.T) {
	failing := func(p *pipeline) {
		p.retriever.fn = func(context.Context, agent.RetrieveInput) types.AgentResponse[types.ResearchResult] {
			return types.Recovered(types.ResearchResult{}, errors.New("search down"))
		}
	}

	t.Run("exhausted", func(t *testing.T) {
		p := newPipeline(3)
		failing(p)
		s := &mockSearcher{err: &search.ExhaustedError{Failures: []string{
			"SearxNG: https://a.example (attempt 1): HTTP 502",
			"Tavily AI: HTTP 429",
			"DuckDuckGo & Wikipedia: no valid results",
		}}}
		_, err := New(p.stages(), s, Options{}, nil).Resolve(context.Background(), directQuery, nil)

		var se *SearchError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, MsgAllSearchFailed, err.Error())
		assert.Len(t, se.Details, 3)
		assert.Contains(t, se.Details[1], "Tavily AI")
	})

	t.Run("plain error", func(t *testing.T) {
		p := newPipeline(3)
		failing(p)
		s := &mockSearcher{err: errors.New("no search providers configured")}
		_, err := New(p.stages(), s, Options{}, nil).Resolve(context.Background(), directQuery, nil)

		var se *SearchError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, []string{"no search providers configured"}, se.Details)
	})

	t.Run("no results", func(t *testing.T) {
		p := newPipeline(3)
		failing(p)
		s := &mockSearcher{outcome: search.Outcome{Results: []types.SearchResult{{Title: "", URL: "x"}}, Provider: "SearxNG"}}
		_, err := New(p.stages(), s, Options{}, nil).Resolve(context.Background(), directQuery, nil)
		assert.EqualError(t, err, MsgNoResults)
	})
}

func TestResolveCancellationNeverFallsBack(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := newPipeline(3)
	p.retriever.fn = func(ctx context.Context, _ agent.RetrieveInput) types.AgentResponse[types.ResearchResult] {
		cancel()
		return types.Recovered(types.ResearchResult{}, ctx.Err())
	}
	s := &mockSearcher{}
	var statuses statusLog

	_, err := New(p.stages(), s, Options{}, nil).Resolve(ctx, directQuery, statuses.record)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, s.calls)
	assert.NotContains(t, statuses, StatusFallback)
}

// scriptedCompleter answers each stage by recognizing its instruction.
type scriptedCompleter struct {
	err     error
	byStage map[string]string
	calls   []string
}

func (c *scriptedCompleter) Complete(_ context.Context, req completion.Request) (completion.Response, error) {
	for marker, reply := range c.byStage {
		if strings.Contains(req.SystemInstruction, marker) {
			c.calls = append(c.calls, marker)
			if c.err != nil {
				return completion.Response{}, c.err
			}
			return completion.Response{Text: reply}, nil
		}
	}
	c.calls = append(c.calls, "unknown")
	if c.err != nil {
		return completion.Response{}, c.err
	}
	return completion.Response{}, errors.New("unexpected prompt")
}

func TestEndToEndDirectQuestion(t *testing.T) {
	wiki := types.SearchResult{
		Title:   "Paris - Wikipedia",
		URL:     "https://en.wikipedia.org/wiki/Paris",
		Content: "Paris is the capital and most populous city of France.",
	}
	client := &scriptedCompleter{byStage: map[string]string{
		"key perspectives":      `{"perspectives":[]}`,
		"web search query":      `{"query":"capital of France"}`,
		"comprehensive article": `{"content":"Paris is the capital of France (Paris - Wikipedia).","followUpQuestions":["What is the population of Paris?"],"citations":["Paris - Wikipedia"]}`,
		"Format the provided data": `{"research":{"results":[{"title":"Paris - Wikipedia","url":"https://en.wikipedia.org/wiki/Paris","content":"x"}],"perspectives":[]},
			"article":{"content":"Paris is the capital of France (Paris - Wikipedia).","followUpQuestions":["What is the population of Paris?"],"citations":["Paris - Wikipedia"]}}`,
	}}
	s := &mockSearcher{outcome: search.Outcome{Results: []types.SearchResult{wiki}, Provider: search.ProviderSearxNG}}

	var statuses statusLog
	o := FromClients(client, s, Options{MaxResults: 5}, nil)
	resp, err := o.Resolve(context.Background(), directQuery, statuses.record)
	require.NoError(t, err)

	assert.NotContains(t, client.calls, "key perspectives")
	require.NotEmpty(t, resp.Sources)
	assert.NotEmpty(t, resp.Answer)
	assert.Contains(t, resp.Answer, resp.Sources[0].Title)
	assert.Equal(t, wiki.Content, resp.Sources[0].Snippet)
	assert.Equal(t, search.ProviderSearxNG, resp.Provider)
	assert.Equal(t, statusLog{StatusSearching, StatusWriting, StatusFormatting}, statuses)
}

func TestEndToEndCompletionTimeout(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		calls    []string
		statuses statusLog
	}{
		{"research question", longQuery, []string{"key perspectives"}, statusLog{StatusPerspectives, StatusFallback}},
		{"direct question", directQuery, []string{"web search query"}, statusLog{StatusSearching, StatusFallback}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := &scriptedCompleter{err: context.DeadlineExceeded, byStage: map[string]string{
				"key perspectives": "", "web search query": "", "comprehensive article": "", "Format the provided data": "",
			}}
			s := &mockSearcher{outcome: search.Outcome{Results: results(3), Provider: search.ProviderTavily}}

			var statuses statusLog
			o := FromClients(client, s, Options{MaxResults: 5}, nil)
			resp, err := o.Resolve(context.Background(), tc.query, statuses.record)
			require.NoError(t, err)

			assert.Equal(t, tc.calls, client.calls)
			assert.Equal(t, tc.statuses, statuses)
			assert.Equal(t, FallbackAnswer, resp.Answer)
			assert.Equal(t, search.ProviderTavily, resp.Provider)
			assert.Len(t, resp.Sources, 3)
			assert.Equal(t, 1, s.calls)
		})
	}
}
