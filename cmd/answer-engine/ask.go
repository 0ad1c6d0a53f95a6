// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/answer-engine/internal/orchestrator"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question with cited sources",
	Long: `Ask resolves a question through the answer pipeline and prints the answer,
its sources and suggested follow-up questions. Progress checkpoints are
written to stderr. If answer generation fails, the plain search results are
printed instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	detailed, _ := cmd.Flags().GetBool("detailed")
	quiet, _ := cmd.Flags().GetBool("quiet")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	o, err := newOrchestrator(ctx)
	if err != nil {
		return err
	}

	onStatus := func(status string) {
		if !quiet {
			fmt.Fprintln(os.Stderr, status)
		}
	}
	res, err := o.ResolveDetailed(ctx, strings.Join(args, " "), onStatus)
	if err != nil {
		return err
	}
	return orchestrator.Write(os.Stdout, res, format, detailed)
}

func init() {
	askCmd.Flags().StringP("format", "f", orchestrator.FormatText, "output format: text, json or yaml")
	askCmd.Flags().Bool("detailed", false, "include follow-up questions and the resolution path in json/yaml output")
	askCmd.Flags().BoolP("quiet", "q", false, "do not print progress to stderr")

	rootCmd.AddCommand(askCmd)
}
