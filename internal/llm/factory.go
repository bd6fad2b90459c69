package llm

import (
	"fmt"

	"adoptsim/internal/config"
	"adoptsim/internal/logging"
)

// =============================================================================
// PROVIDER WIRING
// =============================================================================

// FromConfig builds the SmartRouter described by the configuration: the
// primary backend per the provider field, an optional worker, and the local
// Ollama model doubling as intent classifier when reachable. Construction
// failures of optional links degrade with a warning instead of erroring;
// only a broken primary is fatal.
func FromConfig(cfg config.LLMConfig) (*SmartRouter, error) {
	primary, err := buildBackend(cfg.Provider, cfg)
	if err != nil {
		return nil, fmt.Errorf("primary provider %q: %w", cfg.Provider, err)
	}

	var worker Provider
	if cfg.Worker != "" && cfg.Worker != cfg.Provider {
		worker, err = buildBackend(cfg.Worker, cfg)
		if err != nil {
			logging.LLM("worker provider %q unavailable, routing everything to primary: %v", cfg.Worker, err)
			worker = nil
		}
	}

	var classifier Provider
	if cfg.OllamaEndpoint != "" {
		classifier, err = NewOllamaProvider(cfg.OllamaEndpoint, cfg.OllamaModel)
		if err != nil {
			logging.LLM("intent classifier unavailable, using heuristics: %v", err)
			classifier = nil
		}
	}

	return NewSmartRouter(primary, worker, classifier), nil
}

func buildBackend(kind string, cfg config.LLMConfig) (Provider, error) {
	switch kind {
	case "gemini":
		return NewGeminiProvider(cfg.GeminiAPIKeys, cfg.GeminiModel)
	case "openai":
		return NewOpenAICompatProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel)
	case "ollama":
		return NewOllamaProvider(cfg.OllamaEndpoint, cfg.OllamaModel)
	case "mock", "":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", kind)
	}
}
