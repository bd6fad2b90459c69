package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adoptsim/internal/llm"
	"adoptsim/internal/sim"
)

// scriptedProvider returns a fixed response or error.
type scriptedProvider struct {
	text string
	err  error
}

func (p *scriptedProvider) Generate(context.Context, llm.Request) (*llm.Response, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &llm.Response{Text: p.text, Model: "scripted"}, nil
}

func (p *scriptedProvider) Name() string { return "scripted" }

func TestClassifyPurePersona(t *testing.T) {
	r := New(&scriptedProvider{text: `{"mode": "PURE_PERSONA", "confidence": 0.92, "collections": [], "refined_query": ""}`})

	c := r.Classify(context.Background(), "Como o CEO cético reagiria ao Scrum?")
	assert.Equal(t, sim.ModePurePersona, c.Mode)
	assert.Empty(t, c.Collections)
	assert.False(t, ShouldUseRAG(c))
}

func TestClassifyFinancial(t *testing.T) {
	r := New(&scriptedProvider{text: "```json\n" + `{"mode": "FINANCIAL", "confidence": 0.8, "collections": ["metrics"], "refined_query": "ROI formula framework adoption"}` + "\n```"})

	c := r.Classify(context.Background(), "What is the ROI of SAFe?")
	assert.Equal(t, sim.ModeFinancial, c.Mode)
	assert.Equal(t, []string{"metrics"}, c.Collections)
	assert.True(t, ShouldUseRAG(c))
	assert.Equal(t, "ROI formula framework adoption", RetrievalQuery(c, "What is the ROI of SAFe?"))
}

func TestClassifyProviderFailureFallsOpen(t *testing.T) {
	r := New(&scriptedProvider{err: errors.New("quota exhausted")})

	c := r.Classify(context.Background(), "anything")
	assert.Equal(t, sim.ModeHybrid, c.Mode)
	assert.Equal(t, sim.AllCollections, c.Collections)
	assert.Zero(t, c.Confidence)
	assert.True(t, ShouldUseRAG(c))
}

func TestClassifyGarbageOutputFallsOpen(t *testing.T) {
	r := New(&scriptedProvider{text: "I think this query is about money, probably."})

	c := r.Classify(context.Background(), "anything")
	assert.Equal(t, sim.ModeHybrid, c.Mode)
	assert.Equal(t, sim.AllCollections, c.Collections)
}

func TestClassifyRejectsInconsistentVerdicts(t *testing.T) {
	cases := []string{
		// Pure persona must not carry collections.
		`{"mode": "PURE_PERSONA", "confidence": 0.9, "collections": ["metrics"], "refined_query": ""}`,
		// Retrieval modes need at least one collection.
		`{"mode": "FINANCIAL", "confidence": 0.9, "collections": [], "refined_query": ""}`,
		// Unknown mode.
		`{"mode": "TAROT", "confidence": 0.9, "collections": ["metrics"], "refined_query": ""}`,
		// Unknown collection.
		`{"mode": "HYBRID", "confidence": 0.9, "collections": ["secrets"], "refined_query": ""}`,
		// Confidence out of range.
		`{"mode": "FINANCIAL", "confidence": 7, "collections": ["metrics"], "refined_query": ""}`,
	}
	for _, raw := range cases {
		c := New(&scriptedProvider{text: raw}).Classify(context.Background(), "q")
		assert.Equal(t, sim.ModeHybrid, c.Mode, "case %s should fall open", raw)
	}
}

func TestClassifyNormalizesModeCase(t *testing.T) {
	r := New(&scriptedProvider{text: `{"mode": "event_trigger", "confidence": 0.7, "collections": ["events"], "refined_query": ""}`})
	c := r.Classify(context.Background(), "what could go wrong?")
	require.Equal(t, sim.ModeEventTrigger, c.Mode)
}

func TestRetrievalQueryFallsBackToOriginal(t *testing.T) {
	c := sim.QueryClassification{RefinedQuery: "  "}
	assert.Equal(t, "original", RetrievalQuery(c, "original"))
}

func TestShouldUseRAG(t *testing.T) {
	assert.False(t, ShouldUseRAG(sim.QueryClassification{Mode: sim.ModePurePersona}))
	assert.False(t, ShouldUseRAG(sim.QueryClassification{Mode: sim.ModeHybrid, Collections: nil}))
	assert.True(t, ShouldUseRAG(sim.QueryClassification{Mode: sim.ModeHybrid, Collections: []string{"metrics"}}))
}
