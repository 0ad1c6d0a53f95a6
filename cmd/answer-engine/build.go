// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/pdiddy/answer-engine/internal/completion"
	"github.com/pdiddy/answer-engine/internal/orchestrator"
	"github.com/pdiddy/answer-engine/internal/search"
)

// newSearchChain builds the resilient search client from cfg.
func newSearchChain() (*search.Chain, error) {
	chain, err := search.FromConfig(cfg.Search, &http.Client{}, logger.Named("search"))
	if err != nil {
		return nil, err
	}
	logger.Debug("search chain ready", zap.Strings("providers", chain.Providers()))
	return chain, nil
}

// newOrchestrator wires the completion client, the search chain and the
// pipeline stages.
func newOrchestrator(ctx context.Context) (*orchestrator.Orchestrator, error) {
	chain, err := newSearchChain()
	if err != nil {
		return nil, err
	}
	client, err := completion.FromConfig(ctx, cfg.Completion, &http.Client{})
	if err != nil {
		return nil, fmt.Errorf("creating completion client: %w", err)
	}
	return orchestrator.FromClients(client, chain, orchestrator.Options{
		ShortQueryThreshold: cfg.Orchestrator.ShortQueryThreshold,
		MaxResults:          cfg.Search.MaxResults,
	}, logger.Named("orchestrator")), nil
}
