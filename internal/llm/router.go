package llm

import (
	"context"
	"strings"

	"adoptsim/internal/logging"
)

// =============================================================================
// SMART ROUTER
// =============================================================================

// Intent is the coarse task class the router assigns before picking a backend.
type Intent string

const (
	IntentComplexReasoning   Intent = "COMPLEX_REASONING"
	IntentCreativeGeneration Intent = "CREATIVE_GENERATION"
	IntentSimpleValidation   Intent = "SIMPLE_VALIDATION"
)

// SmartRouter sends heavy reasoning and creative work to the primary backend
// and cheap validation work to the worker. A small local model classifies the
// intent; if it is unavailable, keyword heuristics decide. Every Generate call
// falls back primary -> worker -> mock so the pipeline never dies on a
// provider outage.
type SmartRouter struct {
	primary    Provider
	worker     Provider
	classifier Provider // small/local model for intent classification, may be nil
	mock       Provider
}

// NewSmartRouter wires the routing chain. primary and worker may be nil; any
// missing link collapses to the next one, ending at the mock.
func NewSmartRouter(primary, worker, classifier Provider) *SmartRouter {
	return &SmartRouter{
		primary:    primary,
		worker:     worker,
		classifier: classifier,
		mock:       NewMockProvider(),
	}
}

// Name identifies the router in logs and metrics.
func (r *SmartRouter) Name() string { return "smart-router" }

// Classify assigns an intent to a prompt. Never fails: classifier errors or
// unrecognized output fall back to keyword heuristics.
func (r *SmartRouter) Classify(ctx context.Context, prompt string) Intent {
	if r.classifier != nil {
		resp, err := r.classifier.Generate(ctx, Request{
			System: "You classify task intent. Answer with exactly one of: COMPLEX_REASONING, CREATIVE_GENERATION, SIMPLE_VALIDATION.",
			Prompt: "Classify the intent of this task:\n\n" + truncate(prompt, 1500),
		})
		if err == nil {
			answer := strings.ToUpper(strings.TrimSpace(resp.Text))
			switch {
			case strings.Contains(answer, string(IntentComplexReasoning)):
				return IntentComplexReasoning
			case strings.Contains(answer, string(IntentCreativeGeneration)):
				return IntentCreativeGeneration
			case strings.Contains(answer, string(IntentSimpleValidation)):
				return IntentSimpleValidation
			}
		} else {
			logging.LLMDebug("intent classifier unavailable: %v", err)
		}
	}
	return heuristicIntent(prompt)
}

func heuristicIntent(prompt string) Intent {
	lower := strings.ToLower(prompt)
	switch {
	case strings.Contains(lower, "plausib") || strings.Contains(lower, "valid") || strings.Contains(lower, "score"):
		return IntentSimpleValidation
	case strings.Contains(lower, "react") || strings.Contains(lower, "respond as") || strings.Contains(lower, "narrative"):
		return IntentCreativeGeneration
	default:
		return IntentComplexReasoning
	}
}

// Generate classifies the request, picks the matching backend and walks the
// fallback chain until one succeeds.
func (r *SmartRouter) Generate(ctx context.Context, req Request) (*Response, error) {
	intent := r.Classify(ctx, req.Prompt)
	return r.GenerateWithIntent(ctx, req, intent)
}

// GenerateWithIntent skips classification when the caller already knows the
// task class (the orchestrator does, per pipeline stage).
func (r *SmartRouter) GenerateWithIntent(ctx context.Context, req Request, intent Intent) (*Response, error) {
	chain := r.chainFor(intent)

	var lastErr error
	for _, p := range chain {
		resp, err := p.Generate(ctx, req)
		if err == nil {
			logging.LLM("routed %s to %s", intent, p.Name())
			return resp, nil
		}
		lastErr = err
		logging.LLM("provider %s failed for %s: %v", p.Name(), intent, err)
	}
	// Unreachable: the mock never errors. Kept for interface honesty.
	return nil, lastErr
}

func (r *SmartRouter) chainFor(intent Intent) []Provider {
	chain := make([]Provider, 0, 3)
	if intent == IntentSimpleValidation {
		// Cheap work goes worker-first.
		if r.worker != nil {
			chain = append(chain, r.worker)
		}
		if r.primary != nil {
			chain = append(chain, r.primary)
		}
	} else {
		if r.primary != nil {
			chain = append(chain, r.primary)
		}
		if r.worker != nil {
			chain = append(chain, r.worker)
		}
	}
	return append(chain, r.mock)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
