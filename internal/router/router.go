// Package router classifies incoming queries before retrieval. The
// classifier decides whether retrieval is needed at all (pure persona
// questions skip it) and which collections to search. Any classification
// failure fails open to hybrid mode over every collection; routing never
// blocks a query.
package router

import (
	"context"
	"fmt"
	"strings"

	"adoptsim/internal/decode"
	"adoptsim/internal/llm"
	"adoptsim/internal/logging"
	"adoptsim/internal/sim"
)

// Router classifies queries with an LLM behind the provider interface.
type Router struct {
	provider llm.Provider
}

// New creates a query router.
func New(provider llm.Provider) *Router {
	return &Router{provider: provider}
}

// classification is the wire schema the model must produce.
type classification struct {
	Mode         string   `json:"mode"`
	Confidence   float64  `json:"confidence"`
	Collections  []string `json:"collections"`
	RefinedQuery string   `json:"refined_query"`
}

var validCollections = map[string]bool{
	sim.CollectionProfiles:  true,
	sim.CollectionMetrics:   true,
	sim.CollectionEvents:    true,
	sim.CollectionPlaybooks: true,
	sim.CollectionHistory:   true,
	sim.CollectionUserDocs:  true,
}

// Validate enforces the classification schema beyond JSON shape.
func (c *classification) Validate() error {
	mode := sim.QueryMode(strings.ToUpper(strings.TrimSpace(c.Mode)))
	found := false
	for _, known := range sim.KnownModes {
		if mode == known {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	c.Mode = string(mode)

	if c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("confidence %.2f out of [0,1]", c.Confidence)
	}
	for _, col := range c.Collections {
		if !validCollections[col] {
			return fmt.Errorf("unknown collection %q", col)
		}
	}
	if mode == sim.ModePurePersona && len(c.Collections) > 0 {
		return fmt.Errorf("pure persona mode must not request collections")
	}
	if mode != sim.ModePurePersona && len(c.Collections) == 0 {
		return fmt.Errorf("mode %s requires at least one collection", mode)
	}
	return nil
}

const classifyPrompt = `You route queries for a corporate framework adoption simulator.
Classify the query into exactly one mode and pick the collections to retrieve from.

Modes:
- PURE_PERSONA: asks how a stakeholder would feel, react or behave. Needs no documents. collections must be [].
- FINANCIAL: asks about costs, ROI, formulas or numeric projections. collections: ["metrics"].
- COMPARATIVE: compares frameworks or adoption scenarios. collections: ["playbooks", "metrics"].
- EVENT_TRIGGER: asks about risks, incidents or what could go wrong. collections: ["events"].
- HYBRID: needs multiple kinds of sources. collections: any subset of ["profiles", "metrics", "events", "playbooks", "history", "user_frameworks"].

Respond with JSON only:
{"mode": "...", "confidence": 0.0-1.0, "collections": [...], "refined_query": "reworded retrieval query, or empty string"}

Query: %s`

// FallbackClassification is the conservative verdict used when the
// classifier fails: hybrid mode over every core collection.
func FallbackClassification() sim.QueryClassification {
	return sim.QueryClassification{
		Mode:        sim.ModeHybrid,
		Confidence:  0,
		Collections: append([]string(nil), sim.AllCollections...),
	}
}

// Classify routes one query. It never returns an error: failures degrade to
// the hybrid fallback so retrieval still happens, just less precisely.
func (r *Router) Classify(ctx context.Context, query string) sim.QueryClassification {
	resp, err := r.provider.Generate(ctx, llm.Request{
		System:      "You are a precise query classifier. Output JSON only.",
		Prompt:      fmt.Sprintf(classifyPrompt, query),
		Temperature: 0.1,
	})
	if err != nil {
		logging.Router("classification call failed, falling back to hybrid: %v", err)
		return FallbackClassification()
	}

	result := decode.Decode[classification](resp.Text)
	if !result.OK {
		logging.Router("classification parse failed, falling back to hybrid: %v", result.Err)
		return FallbackClassification()
	}

	c := result.Value
	out := sim.QueryClassification{
		Mode:         sim.QueryMode(c.Mode),
		Confidence:   c.Confidence,
		Collections:  c.Collections,
		RefinedQuery: c.RefinedQuery,
	}
	logging.Router("classified %q as %s (confidence %.2f, collections %v)",
		truncate(query, 80), out.Mode, out.Confidence, out.Collections)
	return out
}

// ShouldUseRAG reports whether retrieval should run for this classification.
func ShouldUseRAG(c sim.QueryClassification) bool {
	return c.Mode != sim.ModePurePersona && len(c.Collections) > 0
}

// RetrievalQuery returns the refined query when the classifier produced one,
// else the original.
func RetrievalQuery(c sim.QueryClassification, original string) string {
	if strings.TrimSpace(c.RefinedQuery) != "" {
		return c.RefinedQuery
	}
	return original
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
