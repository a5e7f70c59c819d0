// Model client factory.

package llm

import (
	"fmt"
	"strings"
)

// Provider identifies a supported model provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// ParseProvider parses a provider name (case-insensitive, accepting common
// aliases).
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(s) {
	case "anthropic", "claude", "":
		return ProviderAnthropic, nil
	case "openai", "gpt":
		return ProviderOpenAI, nil
	default:
		return "", fmt.Errorf("unknown provider: %q", s)
	}
}

// NewClient creates a model client for the given provider and API key.
func NewClient(provider Provider, apiKey string) (Client, error) {
	switch provider {
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey), nil
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey), nil
	default:
		return nil, fmt.Errorf("unknown provider: %q", provider)
	}
}
