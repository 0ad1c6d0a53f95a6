// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/pdiddy/answer-engine/internal/completion"
	"github.com/pdiddy/answer-engine/internal/normalize"
	"github.com/pdiddy/answer-engine/pkg/types"
)

// MaxPerspectives bounds the number of perspectives kept from a reply.
const MaxPerspectives = 3

// Perspective generates research angles for a question.
type Perspective struct {
	client Completer
	logger *zap.Logger
}

// NewPerspective builds the perspective stage.
func NewPerspective(client Completer, logger *zap.Logger) *Perspective {
	return &Perspective{client: client, logger: nopIfNil(logger)}
}

// Name returns the stage name.
func (p *Perspective) Name() string { return "perspective" }

// Execute asks for up to MaxPerspectives perspectives on query. The fallback
// is an empty list.
func (p *Perspective) Execute(ctx context.Context, query string) types.AgentResponse[[]types.Perspective] {
	fallback := []types.Perspective{}

	system, err := render(perspectivePromptTmpl, struct{ Max int }{MaxPerspectives})
	if err != nil {
		return types.Recovered(fallback, fmt.Errorf("rendering prompt: %w", err))
	}

	return call(ctx, p.client, p.logger, p.Name(), completion.Request{
		SystemInstruction: system,
		UserContent:       query,
		Temperature:       creativeTemperature,
	}, parsePerspectives, fallback)
}

// parsePerspectives reads the "perspectives" list. A missing or non-list
// field yields an empty list; entries without a title are dropped and
// missing ids are derived from the title.
func parsePerspectives(obj map[string]any) ([]types.Perspective, error) {
	out := make([]types.Perspective, 0, MaxPerspectives)
	for _, m := range objects(obj, "perspectives") {
		p := types.Perspective{
			ID:          normalize.Stringify(m["id"]),
			Title:       normalize.Stringify(m["title"]),
			Description: normalize.Stringify(m["description"]),
		}
		if p.Title == "" {
			continue
		}
		if p.ID == "" {
			p.ID = slug(p.Title)
		}
		out = append(out, p)
		if len(out) == MaxPerspectives {
			break
		}
	}
	return out, nil
}

// slug lowercases s and joins its letter and digit runs with hyphens.
func slug(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, "-")
}
