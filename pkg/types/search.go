// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the data structures shared by the answer-engine
// components: search results, stage payloads, the stage envelope, and the
// final response returned to the presentation layer.
package types

// SearchResult is one external document reference returned by a search
// provider. After normalization Title and URL are never empty.
type SearchResult struct {
	Title   string `json:"title" yaml:"title"`
	URL     string `json:"url" yaml:"url"`
	Content string `json:"content" yaml:"content"`
}

// Perspective is one angle of investigation produced by the perspective
// stage and consumed by the retriever.
type Perspective struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
}

// ResearchResult aggregates the retriever output.
type ResearchResult struct {
	Results      []SearchResult `json:"results" yaml:"results"`
	Perspectives []Perspective  `json:"perspectives" yaml:"perspectives"`

	// Provider labels the search backend that served Results. It is carried
	// alongside the payload and never sent to the completion service.
	Provider string `json:"-" yaml:"-"`
}

// ArticleResult is the generated answer produced by the writer stage.
type ArticleResult struct {
	Content           string   `json:"content" yaml:"content"`
	FollowUpQuestions []string `json:"followUpQuestions" yaml:"follow_up_questions"`
	Citations         []string `json:"citations" yaml:"citations"`
}

// Presentation is the presenter stage input and output envelope.
type Presentation struct {
	Research ResearchResult `json:"research" yaml:"research"`
	Article  ArticleResult  `json:"article" yaml:"article"`
}

// Source is one cited document in the final response.
type Source struct {
	Title   string `json:"title" yaml:"title"`
	URL     string `json:"url" yaml:"url"`
	Snippet string `json:"snippet" yaml:"snippet"`
}

// SearchResponse is the externally visible payload handed to the
// presentation layer. Its JSON form is a fixed contract.
type SearchResponse struct {
	Answer   string   `json:"answer" yaml:"answer"`
	Sources  []Source `json:"sources" yaml:"sources"`
	Provider string   `json:"provider" yaml:"provider"`
}

// SourcesFrom converts search results into response sources, keeping at most
// max entries. A non-positive max keeps everything.
func SourcesFrom(results []SearchResult, max int) []Source {
	if max > 0 && len(results) > max {
		results = results[:max]
	}
	sources := make([]Source, 0, len(results))
	for _, r := range results {
		sources = append(sources, Source{Title: r.Title, URL: r.URL, Snippet: r.Content})
	}
	return sources
}
