// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/answer-engine/internal/normalize"
	"github.com/pdiddy/answer-engine/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a resilient web search without answer generation",
	Long: `Search queries the provider chain directly: SearxNG instances in random
order with retries, then the configured alternative providers. It prints the
provider that served the results and the sources found.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chain, err := newSearchChain()
	if err != nil {
		return err
	}
	outcome, err := chain.Search(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}

	sources := types.SourcesFrom(outcome.Results, cfg.Search.MaxResults)
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Provider string         `json:"provider"`
			Sources  []types.Source `json:"sources"`
		}{outcome.Provider, sources})
	}

	fmt.Fprintf(os.Stdout, "Provider: %s\n\n", outcome.Provider)
	for i, s := range sources {
		fmt.Fprintf(os.Stdout, "[%d] %s\n    %s\n    %s\n", i+1, s.Title, s.URL, normalize.Truncate(s.Snippet, 120))
	}
	fmt.Fprintf(os.Stdout, "\n%d results\n", len(sources))
	return nil
}

func init() {
	searchCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(searchCmd)
}
