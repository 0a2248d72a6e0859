// Package ai routes plugin completion requests to the host's configured
// AI provider. Plugins never see provider endpoints or credentials; the
// host owns both.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNoProvider is returned when the host has no AI provider configured.
var ErrNoProvider = errors.New("no AI provider configured")

// Default generation settings.
const (
	DefaultAnthropicModel = "claude-sonnet-4-20250514"
	DefaultOpenAIModel    = "gpt-4o"
	DefaultMaxTokens      = 1024
)

// Provider produces completions for plugin requests.
type Provider interface {
	// Complete returns the completion text for a prompt.
	Complete(ctx context.Context, prompt string) (string, error)

	// Name identifies the provider.
	Name() string
}

// Options configure a provider.
type Options struct {
	APIKey    string
	Model     string
	MaxTokens int
}

// New constructs the provider named by the configuration.
func New(provider string, opts Options) (Provider, error) {
	switch strings.ToLower(provider) {
	case "anthropic":
		return NewAnthropic(opts), nil
	case "openai":
		return NewOpenAI(opts), nil
	case "":
		return nil, ErrNoProvider
	default:
		return nil, fmt.Errorf("unknown AI provider %q", provider)
	}
}
