// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrator

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Output formats accepted by Write.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Write renders res to w. JSON and YAML carry only the response schema
// unless detailed is set; text always lists follow-up questions when there
// are any.
func Write(w io.Writer, res Resolution, format string, detailed bool) error {
	switch format {
	case FormatText, "":
		return writeText(w, res)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if detailed {
			return enc.Encode(res)
		}
		return enc.Encode(res.Response)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		if detailed {
			return enc.Encode(res)
		}
		return enc.Encode(res.Response)
	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}
}

func writeText(w io.Writer, res Resolution) error {
	var b strings.Builder
	b.WriteString(res.Response.Answer)
	b.WriteString("\n")

	if len(res.Response.Sources) > 0 {
		b.WriteString("\nSources:\n")
		for i, s := range res.Response.Sources {
			fmt.Fprintf(&b, "  [%d] %s\n      %s\n", i+1, s.Title, s.URL)
		}
	}
	if len(res.FollowUpQuestions) > 0 {
		b.WriteString("\nFollow-up questions:\n")
		for _, q := range res.FollowUpQuestions {
			fmt.Fprintf(&b, "  - %s\n", q)
		}
	}
	if res.Response.Provider != "" {
		fmt.Fprintf(&b, "\nProvider: %s\n", res.Response.Provider)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
