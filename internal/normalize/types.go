// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import "github.com/pdiddy/answer-engine/pkg/types"

// Results cleans every field and drops results without a title or URL.
// The returned slice is never nil.
func Results(in []types.SearchResult) []types.SearchResult {
	out := make([]types.SearchResult, 0, len(in))
	for _, r := range in {
		r = types.SearchResult{Title: Text(r.Title), URL: Text(r.URL), Content: Text(r.Content)}
		if r.Title == "" || r.URL == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Perspectives cleans every field and drops perspectives without a title.
func Perspectives(in []types.Perspective) []types.Perspective {
	out := make([]types.Perspective, 0, len(in))
	for _, p := range in {
		p = types.Perspective{ID: Text(p.ID), Title: Text(p.Title), Description: Text(p.Description)}
		if p.Title == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Research normalizes a research result, keeping its provider label.
func Research(r types.ResearchResult) types.ResearchResult {
	return types.ResearchResult{
		Results:      Results(r.Results),
		Perspectives: Perspectives(r.Perspectives),
		Provider:     Text(r.Provider),
	}
}

// Article normalizes an article, dropping empty list entries.
func Article(a types.ArticleResult) types.ArticleResult {
	return types.ArticleResult{
		Content:           Text(a.Content),
		FollowUpQuestions: textList(a.FollowUpQuestions),
		Citations:         textList(a.Citations),
	}
}

// Response normalizes the final response. Sources without a title or URL
// are dropped and Sources is never nil.
func Response(r types.SearchResponse) types.SearchResponse {
	sources := make([]types.Source, 0, len(r.Sources))
	for _, s := range r.Sources {
		s = types.Source{Title: Text(s.Title), URL: Text(s.URL), Snippet: Text(s.Snippet)}
		if s.Title == "" || s.URL == "" {
			continue
		}
		sources = append(sources, s)
	}
	return types.SearchResponse{
		Answer:   Text(r.Answer),
		Sources:  sources,
		Provider: Text(r.Provider),
	}
}

func textList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = Text(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
