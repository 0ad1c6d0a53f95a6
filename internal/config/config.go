// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config assembles types.Config from viper: built-in defaults, the
// answer-engine.yaml config file, ANSWER_ENGINE_* environment variables and
// bound flags, plus API keys loaded from the secrets directory.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/answer-engine/internal/secrets"
	"github.com/pdiddy/answer-engine/pkg/types"
)

// EnvPrefix prefixes every environment variable read by viper.
const EnvPrefix = "ANSWER_ENGINE"

// Name is the config file base name.
const Name = "answer-engine"

// DefaultInstances are the public SearxNG instances used when none are
// configured.
var DefaultInstances = []string{
	"https://searx.tiekoetter.com",
	"https://search.bus-hit.me",
	"https://searx.thegpm.org",
}

// Configuration keys.
const (
	KeySearchInstances      = "search.instances"
	KeySearchProviders      = "search.providers"
	KeySearchTimeout        = "search.timeout"
	KeySearchUserAgent      = "search.user_agent"
	KeySearchMaxRetries     = "search.max_retries"
	KeySearchRetryDelay     = "search.retry_delay"
	KeySearchMaxResults     = "search.max_results"
	KeySearchConcurrent     = "search.concurrent_requests"
	KeySearchTavilyAPIKey   = "search.tavily_api_key"
	KeyCompletionProvider   = "completion.provider"
	KeyCompletionModel      = "completion.model"
	KeyCompletionAPIKey     = "completion.api_key"
	KeyCompletionBaseURL    = "completion.base_url"
	KeyCompletionTimeout    = "completion.timeout"
	KeyShortQueryThreshold  = "orchestrator.short_query_threshold"
	KeyServerAddr           = "server.addr"
	KeyServerAllowedOrigins = "server.allowed_origins"
	KeyLogLevel             = "log.level"
	KeyLogFormat            = "log.format"
)

// SetDefaults registers the built-in defaults on v and enables environment
// lookup (search.max_retries reads ANSWER_ENGINE_SEARCH_MAX_RETRIES).
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeySearchInstances, DefaultInstances)
	v.SetDefault(KeySearchProviders, []string{types.ProviderTavily, types.ProviderKnowledge})
	v.SetDefault(KeySearchTimeout, 10*time.Second)
	v.SetDefault(KeySearchMaxRetries, 3)
	v.SetDefault(KeySearchRetryDelay, time.Second)
	v.SetDefault(KeySearchMaxResults, 5)
	v.SetDefault(KeySearchConcurrent, 2)
	v.SetDefault(KeyCompletionProvider, types.CompletionOpenAI)
	v.SetDefault(KeyCompletionModel, "gpt-3.5-turbo")
	v.SetDefault(KeyCompletionTimeout, 30*time.Second)
	v.SetDefault(KeyShortQueryThreshold, 50)
	v.SetDefault(KeyServerAddr, ":8080")
	v.SetDefault(KeyServerAllowedOrigins, []string{"*"})
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads the configuration from v. Defaults must already be set.
func Load(v *viper.Viper) (types.Config, error) {
	cfg := types.Config{
		Search: types.SearchConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   v.GetDuration(KeySearchTimeout),
				UserAgent: v.GetString(KeySearchUserAgent),
			},
			Instances:          cleanList(v.GetStringSlice(KeySearchInstances)),
			Providers:          lowerList(cleanList(v.GetStringSlice(KeySearchProviders))),
			MaxRetries:         v.GetInt(KeySearchMaxRetries),
			RetryDelay:         v.GetDuration(KeySearchRetryDelay),
			MaxResults:         v.GetInt(KeySearchMaxResults),
			ConcurrentRequests: v.GetInt(KeySearchConcurrent),
			TavilyAPIKey:       v.GetString(KeySearchTavilyAPIKey),
		},
		Completion: types.CompletionConfig{
			Provider: strings.ToLower(v.GetString(KeyCompletionProvider)),
			Model:    v.GetString(KeyCompletionModel),
			APIKey:   v.GetString(KeyCompletionAPIKey),
			BaseURL:  v.GetString(KeyCompletionBaseURL),
			Timeout:  v.GetDuration(KeyCompletionTimeout),
		},
		Orchestrator: types.OrchestratorConfig{
			ShortQueryThreshold: v.GetInt(KeyShortQueryThreshold),
		},
		Server: types.ServerConfig{
			Addr:           v.GetString(KeyServerAddr),
			AllowedOrigins: cleanList(v.GetStringSlice(KeyServerAllowedOrigins)),
		},
		Log: types.LogConfig{
			Level:  strings.ToLower(v.GetString(KeyLogLevel)),
			Format: strings.ToLower(v.GetString(KeyLogFormat)),
		},
	}
	if err := Validate(cfg); err != nil {
		return types.Config{}, err
	}
	return cfg, nil
}

// ApplySecrets fills API keys that are not set in cfg from the loaded
// secrets. Explicit configuration wins.
func ApplySecrets(cfg *types.Config, s map[string]string) {
	if cfg.Search.TavilyAPIKey == "" {
		cfg.Search.TavilyAPIKey = s[secrets.TavilyAPIKey]
	}
	if cfg.Completion.APIKey == "" {
		switch cfg.Completion.Provider {
		case types.CompletionGemini:
			cfg.Completion.APIKey = s[secrets.GeminiAPIKey]
		default:
			cfg.Completion.APIKey = s[secrets.OpenAIAPIKey]
		}
	}
}

// Validate checks value ranges and enumerations.
func Validate(cfg types.Config) error {
	var errs []error
	s := cfg.Search
	if len(s.Instances) == 0 {
		errs = append(errs, fmt.Errorf("%s: at least one instance is required", KeySearchInstances))
	}
	for _, p := range s.Providers {
		if p != types.ProviderTavily && p != types.ProviderKnowledge {
			errs = append(errs, fmt.Errorf("%s: unknown provider %q", KeySearchProviders, p))
		}
	}
	if s.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1", KeySearchMaxRetries))
	}
	if s.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeySearchTimeout))
	}
	if s.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeySearchRetryDelay))
	}
	if s.MaxResults < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1", KeySearchMaxResults))
	}
	if s.ConcurrentRequests < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1", KeySearchConcurrent))
	}

	c := cfg.Completion
	if c.Provider != types.CompletionOpenAI && c.Provider != types.CompletionGemini {
		errs = append(errs, fmt.Errorf("%s: unknown provider %q", KeyCompletionProvider, c.Provider))
	}
	if c.Model == "" {
		errs = append(errs, fmt.Errorf("%s is required", KeyCompletionModel))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyCompletionTimeout))
	}
	if cfg.Orchestrator.ShortQueryThreshold < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyShortQueryThreshold))
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("%s: unknown level %q", KeyLogLevel, cfg.Log.Level))
	}
	switch cfg.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("%s: unknown format %q", KeyLogFormat, cfg.Log.Format))
	}
	return errors.Join(errs...)
}

// cleanList trims entries and drops empty ones. viper returns a single
// comma-separated string from the environment as one element.
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func lowerList(in []string) []string {
	for i, s := range in {
		in[i] = strings.ToLower(s)
	}
	return in
}
