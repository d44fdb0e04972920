package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"formvoice/agent/internal/resilience"
)

type Options struct {
	Provider        string // openai | azure | gemini
	APIKey          string
	BaseURL         string
	Model           string
	AzureDeployment string
	Timeout         time.Duration
}

// New builds an Assistant for the configured provider, guarded by a breaker.
// It returns nil without error when no API key is configured.
func New(ctx context.Context, opts Options, logger *zap.Logger) (*Assistant, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, nil
	}
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	var c Completer
	switch provider {
	case "", "openai", "azure":
		if provider == "" {
			provider = "openai"
		}
		c = NewOpenAI(OpenAIConfig{
			BaseURL:         opts.BaseURL,
			APIKey:          opts.APIKey,
			Model:           opts.Model,
			AzureDeployment: opts.AzureDeployment,
		}, &http.Client{})
	case "gemini":
		g, err := NewGemini(ctx, GeminiConfig{APIKey: opts.APIKey, Model: opts.Model, BaseURL: opts.BaseURL})
		if err != nil {
			return nil, err
		}
		c = g
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", opts.Provider)
	}
	return NewAssistant(provider, c, resilience.NewBreaker("llm-"+provider, logger), opts.Timeout, logger), nil
}
