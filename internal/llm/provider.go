// Package llm abstracts text generation behind a small Provider interface and
// supplies the concrete backends the engine runs against: Gemini with API key
// rotation, any OpenAI-compatible HTTP endpoint, a local Ollama server, and a
// deterministic mock used as the last resort of every fallback chain.
package llm

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
)

// Request describes one generation call.
type Request struct {
	System      string  // optional system instruction
	Prompt      string  // user content
	Temperature float64 // 0 disables sampling variation on backends that honor it
	MaxTokens   int     // 0 means backend default
	Model       string  // optional override of the provider's default model
}

// Response is a completed generation.
type Response struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// TotalTokens returns input plus output token counts.
func (r *Response) TotalTokens() int {
	if r == nil {
		return 0
	}
	return r.InputTokens + r.OutputTokens
}

// Provider is a text generation backend. Implementations must be safe for
// concurrent use; the racing engine calls Generate from multiple goroutines.
type Provider interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	Name() string
}

// =============================================================================
// MOCK PROVIDER
// =============================================================================

// MockProvider produces deterministic canned output keyed on prompt content.
// It keeps the full pipeline (routing, simulation, racing, warmup) runnable
// with no credentials and is the terminal link of every fallback chain.
type MockProvider struct {
	// Responses maps a substring of the prompt to a canned reply.
	// Checked in insertion-independent order; first match wins via sorted keys.
	Responses map[string]string
}

// NewMockProvider returns a mock with the built-in canned response table.
func NewMockProvider() *MockProvider {
	return &MockProvider{Responses: map[string]string{}}
}

// Generate returns a deterministic response derived from the request. Prompts
// asking for JSON get a syntactically valid object so downstream decoding
// exercises its real path.
func (m *MockProvider) Generate(_ context.Context, req Request) (*Response, error) {
	keys := make([]string, 0, len(m.Responses))
	for key := range m.Responses {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if strings.Contains(req.Prompt, key) {
			return m.respond(m.Responses[key], req), nil
		}
	}

	lower := strings.ToLower(req.System + "\n" + req.Prompt)
	var text string
	switch {
	case strings.Contains(lower, "classify") && strings.Contains(lower, "mode"):
		text = `{"mode": "HYBRID", "confidence": 0.5, "collections": ["profiles", "metrics", "events", "playbooks"], "refined_query": ""}`
	case strings.Contains(lower, "plausibility"):
		text = `{"plausibility_score": 85, "issues": [], "reasoning": "Consistent with the scenario."}`
	case strings.Contains(lower, "consolidat"):
		text = `{"morale_delta": -1, "velocity_delta": -2, "confidence_delta": 1, "triggered_events": [], "scratchpad": "Team adjusting to the new process.", "narrative": "The week closes with guarded progress."}`
	case strings.Contains(lower, "stakeholder") || strings.Contains(lower, "persona"):
		text = `{"text": "I need to see evidence before committing my team to this.", "emotion": "skeptical", "morale_impact": -2}`
	case strings.Contains(lower, "intent"):
		text = "COMPLEX_REASONING"
	default:
		text = fmt.Sprintf("mock response %d", hashString(req.Prompt)%1000)
	}

	return m.respond(text, req), nil
}

func (m *MockProvider) respond(text string, req Request) *Response {
	return &Response{
		Text:         text,
		Model:        "mock",
		InputTokens:  len(req.Prompt) / 4,
		OutputTokens: len(text) / 4,
	}
}

// Name identifies the provider in logs and metrics.
func (m *MockProvider) Name() string { return "mock" }

// =============================================================================
// MODEL OVERRIDE
// =============================================================================

// WithModel wraps a provider so requests that carry no explicit model use the
// given one. The racing engine uses this to diversify agents by model without
// rebuilding the whole provider chain.
func WithModel(p Provider, model string) Provider {
	if model == "" {
		return p
	}
	return &modelProvider{inner: p, model: model}
}

type modelProvider struct {
	inner Provider
	model string
}

func (m *modelProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	if req.Model == "" {
		req.Model = m.model
	}
	return m.inner.Generate(ctx, req)
}

func (m *modelProvider) Name() string {
	return m.inner.Name() + "+" + m.model
}

func hashString(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}
