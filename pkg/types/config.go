package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout is the base per-request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with outbound requests.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// Alternative provider names accepted in SearchConfig.Providers.
const (
	ProviderTavily    = "tavily"
	ProviderKnowledge = "knowledge"
)

// SearchConfig holds settings for the resilient search client.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// Instances lists the primary SearxNG instance base URLs.
	Instances []string `json:"instances" yaml:"instances"`

	// Providers is the alternative provider priority list consulted after
	// every primary instance is exhausted (tavily, knowledge).
	Providers []string `json:"providers" yaml:"providers"`

	// MaxRetries is the number of attempts made against each instance (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// RetryDelay is the base backoff delay; attempt n waits RetryDelay*2^n (default 1s).
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay"`

	// MaxResults bounds the number of results returned on every path (default 5).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// ConcurrentRequests bounds concurrent resolutions admitted by the HTTP
	// server. Providers are always queried sequentially.
	ConcurrentRequests int `json:"concurrent_requests" yaml:"concurrent_requests"`

	// TavilyAPIKey authenticates the Tavily provider.
	TavilyAPIKey string `json:"tavily_api_key,omitempty" yaml:"tavily_api_key,omitempty"`
}

// Completion backends accepted in CompletionConfig.Provider.
const (
	CompletionOpenAI = "openai"
	CompletionGemini = "gemini"
)

// CompletionConfig holds settings for the text-generation completion client.
type CompletionConfig struct {
	// Provider selects the backend: openai or gemini.
	Provider string `json:"provider" yaml:"provider"`

	// Model is the model identifier (e.g. "gpt-3.5-turbo").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the completion API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the OpenAI-compatible endpoint root.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// Timeout is the fixed per-call timeout (default 30s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// OrchestratorConfig holds settings for query classification.
type OrchestratorConfig struct {
	// ShortQueryThreshold classifies queries shorter than this many
	// characters as direct (default 50).
	ShortQueryThreshold int `json:"short_query_threshold" yaml:"short_query_threshold"`
}

// ServerConfig holds settings for the HTTP surface.
type ServerConfig struct {
	Addr           string   `json:"addr" yaml:"addr"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`
}

// LogConfig selects the logger level and encoding.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level" yaml:"level"`

	// Format is json or console.
	Format string `json:"format" yaml:"format"`
}

// Config groups all component configurations.
type Config struct {
	Search       SearchConfig       `json:"search" yaml:"search"`
	Completion   CompletionConfig   `json:"completion" yaml:"completion"`
	Orchestrator OrchestratorConfig `json:"orchestrator" yaml:"orchestrator"`
	Server       ServerConfig       `json:"server" yaml:"server"`
	Log          LogConfig          `json:"log" yaml:"log"`
}
