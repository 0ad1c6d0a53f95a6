// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import "text/template"

// perspectivePromptTmpl asks for a small set of research angles.
var perspectivePromptTmpl = template.Must(template.New("perspective").Parse(`Generate 1-{{.Max}} key perspectives for researching the given topic.

Return a valid JSON object with a "perspectives" array. Each element must have:
- id: a short lowercase, hyphenated identifier
- title: a few words naming the angle
- description: one sentence on what this angle covers

Do not include any text outside the JSON object.

Example response:
{"perspectives": [{"id": "historical", "title": "Historical Context", "description": "Understanding the historical background"}]}
`))

// queryPromptTmpl turns a question and its perspectives into one web query.
var queryPromptTmpl = template.Must(template.New("query").Parse(`Write a single focused web search query that will find sources answering the user's question.
{{- if .Perspectives}}

Cover these perspectives where possible:
{{- range .Perspectives}}
- {{.Title}}{{if .Description}}: {{.Description}}{{end}}
{{- end}}
{{- end}}

Return a valid JSON object with a "query" string. Keep it under {{.MaxWords}} words. Do not include any text outside the JSON object.

Example response:
{"query": "effects of urbanization on biodiversity"}
`))

// writerPromptTmpl asks for the answer article from research results.
var writerPromptTmpl = template.Must(template.New("writer").Parse(`Generate a comprehensive article based on the provided research.
Use only the supplied search results as sources and cite them by title.

Return a valid JSON object with these properties:
- content: the article text
- followUpQuestions: {{.FollowUps}} questions the reader might ask next
- citations: the titles or URLs of the sources you used

Do not include any text outside the JSON object.

Example response:
{"content": "Detailed article text...", "followUpQuestions": ["Question 1?", "Question 2?"], "citations": ["Source 1", "Source 2"]}
`))

// presenterPromptTmpl asks for the data re-shaped for presentation.
var presenterPromptTmpl = template.Must(template.New("presenter").Parse(`Format the provided data for user presentation.
Keep at most {{.MaxResults}} research results, choosing the most relevant. Never add results that are not in the input and never change their URLs.

Return a valid JSON object with "research" and "article" properties. Do not include any text outside the JSON object.

Example response:
{"research": {"results": [{"title": "", "url": "", "content": ""}], "perspectives": []}, "article": {"content": "", "followUpQuestions": [], "citations": []}}
`))
