// Package config provides application settings loaded from environment variables.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
// - Provider-specific API key lookup

package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/mkondo/datalyst/agent"
	"github.com/mkondo/datalyst/llm"
	"github.com/mkondo/datalyst/mcp"
)

// Settings holds all application configuration.
type Settings struct {
	Provider      llm.Provider
	Model         string
	MaxTokens     int64
	MaxIterations int
	MCPBaseURL    string
	DBPath        string
}

// providerInfo holds configuration for a specific model provider.
type providerInfo struct {
	modelEnv     string
	defaultModel string
	apiKeyEnv    string
}

var providers = map[llm.Provider]providerInfo{
	llm.ProviderAnthropic: {"ANTHROPIC_MODEL", "claude-sonnet-4-20250514", "ANTHROPIC_API_KEY"},
	llm.ProviderOpenAI:    {"OPENAI_MODEL", "gpt-4o", "OPENAI_API_KEY"},
}

// New creates settings for the specified provider (empty selects Anthropic),
// loading values from environment variables. Returns an error if the provider
// is unknown or an environment variable contains an invalid value.
func New(provider string) (Settings, error) {
	p, err := llm.ParseProvider(provider)
	if err != nil {
		return Settings{}, err
	}
	info := providers[p]

	maxTokens, err := getEnvInt64("LLM_MAX_TOKENS", 4096)
	if err != nil {
		return Settings{}, err
	}

	maxIterations, err := getEnvInt("AGENT_MAX_ITERATIONS", agent.DefaultMaxIterations)
	if err != nil {
		return Settings{}, err
	}

	model := os.Getenv(info.modelEnv)
	if model == "" {
		model = info.defaultModel
	}

	baseURL := os.Getenv("MCP_BASE_URL")
	if baseURL == "" {
		baseURL = mcp.DefaultBaseURL
	}

	dbPath := os.Getenv("DATALYST_DB")
	if dbPath == "" {
		dbPath = "datalyst.db"
	}

	return Settings{
		Provider:      p,
		Model:         model,
		MaxTokens:     maxTokens,
		MaxIterations: maxIterations,
		MCPBaseURL:    baseURL,
		DBPath:        dbPath,
	}, nil
}

// MustNew creates settings for the specified provider.
// Panics on invalid configuration; use only when errors should be fatal.
func MustNew(provider string) Settings {
	settings, err := New(provider)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

// APIKeyFor returns the model provider API key from environment variables.
func APIKeyFor(provider llm.Provider) (string, error) {
	info, ok := providers[provider]
	if !ok {
		return "", fmt.Errorf("unknown provider: %q", provider)
	}

	key := os.Getenv(info.apiKeyEnv)
	if key == "" {
		return "", fmt.Errorf("%s environment variable not set", info.apiKeyEnv)
	}
	return key, nil
}

// AuthToken returns the bearer token used against the tool-invocation service.
func AuthToken() (string, error) {
	token := os.Getenv("MCP_AUTH_TOKEN")
	if token == "" {
		return "", fmt.Errorf("MCP_AUTH_TOKEN environment variable not set")
	}
	return token, nil
}

// Environment variable helpers with proper error handling

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}
