package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"adoptsim/internal/logging"
)

// =============================================================================
// GEMINI PROVIDER WITH KEY ROTATION
// =============================================================================

// GeminiProvider calls the Gemini API through the official genai client.
// Multiple API keys rotate round-robin: a quota error advances to the next
// key and retries, up to one full pass over the pool plus one.
type GeminiProvider struct {
	model string

	mu      sync.Mutex
	keys    []string
	clients []*genai.Client // lazily created, index-aligned with keys
	current int
}

// NewGeminiProvider builds a provider over one or more API keys.
func NewGeminiProvider(keys []string, model string) (*GeminiProvider, error) {
	cleaned := make([]string, 0, len(keys))
	for _, k := range keys {
		if strings.TrimSpace(k) != "" {
			cleaned = append(cleaned, strings.TrimSpace(k))
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("at least one Gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiProvider{
		model:   model,
		keys:    cleaned,
		clients: make([]*genai.Client, len(cleaned)),
	}, nil
}

// Name identifies the provider in logs and metrics.
func (p *GeminiProvider) Name() string { return fmt.Sprintf("gemini:%s", p.model) }

// Generate runs one completion, rotating keys on quota exhaustion.
func (p *GeminiProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	maxAttempts := len(p.keys) + 1
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		client, keyIdx, err := p.client(ctx)
		if err != nil {
			return nil, err
		}

		resp, err := p.generateOnce(ctx, client, model, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !isQuotaError(err) {
			return nil, fmt.Errorf("gemini generate: %w", err)
		}

		logging.LLM("gemini key %d hit quota, rotating (attempt %d/%d)", keyIdx, attempt+1, maxAttempts)
		p.rotate(keyIdx)
	}

	return nil, fmt.Errorf("gemini: all %d keys exhausted: %w", len(p.keys), lastErr)
}

func (p *GeminiProvider) generateOnce(ctx context.Context, client *genai.Client, model string, req Request) (*Response, error) {
	cfg := &genai.GenerateContentConfig{}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}

	result, err := client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, err
	}

	text := result.Text()
	if text == "" {
		return nil, fmt.Errorf("empty completion")
	}

	out := &Response{Text: text, Model: model}
	if result.UsageMetadata != nil {
		out.InputTokens = int(result.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(result.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}

// client returns the connection for the current key, creating it on first use.
func (p *GeminiProvider) client(ctx context.Context) (*genai.Client, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.current
	if p.clients[idx] == nil {
		c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: p.keys[idx]})
		if err != nil {
			return nil, idx, fmt.Errorf("create gemini client for key %d: %w", idx, err)
		}
		p.clients[idx] = c
	}
	return p.clients[idx], idx, nil
}

// rotate advances past keyIdx unless another goroutine already did.
func (p *GeminiProvider) rotate(keyIdx int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == keyIdx {
		p.current = (p.current + 1) % len(p.keys)
	}
}

func isQuotaError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit")
}
