package llm

import (
	"log/slog"

	"github.com/granhackaria/eventharvest/internal/config"
)

// NewFromConfig builds the provider chosen by the available credentials:
// OpenAI when its key is set, Anthropic otherwise. The result retries on
// throttling. ErrNoProvider is returned when neither key is present.
func NewFromConfig(cfg config.ModelConfig, observer CallObserver, logger *slog.Logger) (Provider, error) {
	var base Provider

	switch {
	case cfg.OpenAIAPIKey != "":
		base = NewOpenAIProvider(OpenAIConfig{
			APIKey:    cfg.OpenAIAPIKey,
			Model:     cfg.OpenAIModel,
			BaseURL:   cfg.OpenAIBaseURL,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout,
		})
	case cfg.AnthropicAPIKey != "":
		base = NewAnthropicProvider(AnthropicConfig{
			APIKey:    cfg.AnthropicAPIKey,
			Model:     cfg.AnthropicModel,
			BaseURL:   cfg.AnthropicBaseURL,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout,
		})
	default:
		return nil, ErrNoProvider
	}

	logger.Info("extraction provider selected", "provider", base.Name())

	return NewRateLimitedProvider(Instrument(base, observer), cfg.RateLimitRetries, cfg.RateLimitWait, logger), nil
}
