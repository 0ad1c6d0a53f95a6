// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/answer-engine/internal/completion"
	"github.com/pdiddy/answer-engine/internal/normalize"
	"github.com/pdiddy/answer-engine/pkg/types"
)

// PresenterApology is the article content of the presenter fallback.
const PresenterApology = "We apologize, but we could not process your request at this time. Please try again."

// Presenter re-shapes research and article into the presentation schema.
type Presenter struct {
	client     Completer
	maxResults int
	logger     *zap.Logger
}

// NewPresenter builds the presenter stage. Output results are bounded to
// maxResults; a non-positive value disables the bound.
func NewPresenter(client Completer, maxResults int, logger *zap.Logger) *Presenter {
	return &Presenter{client: client, maxResults: maxResults, logger: nopIfNil(logger)}
}

// Name returns the stage name.
func (p *Presenter) Name() string { return "presenter" }

// Execute formats in. Results in the reply are matched to the input by URL
// and any the input does not contain are dropped. The fallback is an empty
// research list with an apology article.
func (p *Presenter) Execute(ctx context.Context, in types.Presentation) types.AgentResponse[types.Presentation] {
	fallback := types.Presentation{
		Research: types.ResearchResult{
			Results:      []types.SearchResult{},
			Perspectives: []types.Perspective{},
			Provider:     in.Research.Provider,
		},
		Article: apologyArticle(PresenterApology),
	}

	system, err := render(presenterPromptTmpl, struct{ MaxResults int }{p.maxResults})
	if err != nil {
		return types.Recovered(fallback, fmt.Errorf("rendering prompt: %w", err))
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return types.Recovered(fallback, fmt.Errorf("marshaling presentation: %w", err))
	}

	return call(ctx, p.client, p.logger, p.Name(), completion.Request{
		SystemInstruction: system,
		UserContent:       string(payload),
		Temperature:       formatTemperature,
	}, func(obj map[string]any) (types.Presentation, error) {
		return p.parse(obj, in)
	}, fallback)
}

// parse builds the presentation from the reply. Results keep the reply's
// order but their fields come from the matching input result.
func (p *Presenter) parse(obj map[string]any, in types.Presentation) (types.Presentation, error) {
	research, ok := object(obj, "research")
	if !ok {
		return types.Presentation{}, fmt.Errorf("reply has no research object")
	}
	articleObj, ok := object(obj, "article")
	if !ok {
		return types.Presentation{}, fmt.Errorf("reply has no article object")
	}

	byURL := make(map[string]types.SearchResult, len(in.Research.Results))
	for _, r := range in.Research.Results {
		byURL[urlKey(r.URL)] = r
	}

	results := make([]types.SearchResult, 0, len(in.Research.Results))
	used := make(map[string]bool)
	for _, m := range objects(research, "results") {
		key := urlKey(normalize.Stringify(m["url"]))
		r, known := byURL[key]
		if !known || used[key] {
			continue
		}
		used[key] = true
		results = append(results, r)
		if p.maxResults > 0 && len(results) == p.maxResults {
			break
		}
	}

	perspectives := in.Research.Perspectives
	if _, present := research["perspectives"]; present {
		if parsed, _ := parsePerspectives(research); len(parsed) > 0 {
			perspectives = parsed
		}
	}
	if perspectives == nil {
		perspectives = []types.Perspective{}
	}

	article, err := parseArticle(articleObj)
	if err != nil || article.Content == "" {
		article = in.Article
	}

	return types.Presentation{
		Research: types.ResearchResult{
			Results:      results,
			Perspectives: perspectives,
			Provider:     in.Research.Provider,
		},
		Article: article,
	}, nil
}

func urlKey(u string) string {
	return strings.TrimSuffix(strings.TrimSpace(u), "/")
}
