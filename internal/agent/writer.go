// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/answer-engine/internal/completion"
	"github.com/pdiddy/answer-engine/internal/normalize"
	"github.com/pdiddy/answer-engine/pkg/types"
)

// WriterApology is the article content used when no article could be
// generated.
const WriterApology = "We apologize, but we could not generate a detailed response at this time. Please try your search again."

// followUpCount is the number of follow-up questions requested.
const followUpCount = 3

// Writer composes the answer article from research results.
type Writer struct {
	client Completer
	logger *zap.Logger
}

// NewWriter builds the writer stage.
func NewWriter(client Completer, logger *zap.Logger) *Writer {
	return &Writer{client: client, logger: nopIfNil(logger)}
}

// Name returns the stage name.
func (w *Writer) Name() string { return "writer" }

// Execute writes an article for research. Absent fields are coerced to
// empty values; an unusable reply yields the apology article.
func (w *Writer) Execute(ctx context.Context, research types.ResearchResult) types.AgentResponse[types.ArticleResult] {
	fallback := apologyArticle(WriterApology)

	system, err := render(writerPromptTmpl, struct{ FollowUps int }{followUpCount})
	if err != nil {
		return types.Recovered(fallback, fmt.Errorf("rendering prompt: %w", err))
	}
	payload, err := json.Marshal(research)
	if err != nil {
		return types.Recovered(fallback, fmt.Errorf("marshaling research: %w", err))
	}

	return call(ctx, w.client, w.logger, w.Name(), completion.Request{
		SystemInstruction: system,
		UserContent:       string(payload),
		Temperature:       creativeTemperature,
	}, parseArticle, fallback)
}

// parseArticle coerces an article object. Only a reply with none of the
// article fields is rejected.
func parseArticle(obj map[string]any) (types.ArticleResult, error) {
	_, hasContent := obj["content"]
	_, hasFollowUps := obj["followUpQuestions"]
	_, hasCitations := obj["citations"]
	if !hasContent && !hasFollowUps && !hasCitations {
		return types.ArticleResult{}, fmt.Errorf("reply has no article fields")
	}
	return types.ArticleResult{
		Content:           normalize.Stringify(obj["content"]),
		FollowUpQuestions: normalize.Strings(obj["followUpQuestions"]),
		Citations:         normalize.Strings(obj["citations"]),
	}, nil
}

func apologyArticle(msg string) types.ArticleResult {
	return types.ArticleResult{Content: msg, FollowUpQuestions: []string{}, Citations: []string{}}
}
