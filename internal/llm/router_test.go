package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name  string
	text  string
	err   error
	calls int
}

func (f *fakeProvider) Generate(context.Context, Request) (*Response, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &Response{Text: f.text, Model: f.name}, nil
}

func (f *fakeProvider) Name() string { return f.name }

func TestMockProviderIsDeterministic(t *testing.T) {
	m := NewMockProvider()
	req := Request{Prompt: "some arbitrary prompt"}

	a, err := m.Generate(context.Background(), req)
	require.NoError(t, err)
	b, err := m.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, a.Text, b.Text)
}

func TestMockProviderCannedStages(t *testing.T) {
	m := NewMockProvider()

	resp, err := m.Generate(context.Background(), Request{System: "Classify the query mode."})
	require.NoError(t, err)
	assert.Contains(t, resp.Text, `"mode"`)

	resp, err = m.Generate(context.Background(), Request{Prompt: "Rate the plausibility of this turn."})
	require.NoError(t, err)
	assert.Contains(t, resp.Text, `"plausibility_score"`)

	resp, err = m.Generate(context.Background(), Request{Prompt: "Respond as this stakeholder."})
	require.NoError(t, err)
	assert.Contains(t, resp.Text, `"morale_impact"`)
}

func TestMockProviderCustomResponses(t *testing.T) {
	m := NewMockProvider()
	m.Responses["magic token"] = "canned"

	resp, err := m.Generate(context.Background(), Request{Prompt: "prompt with magic token inside"})
	require.NoError(t, err)
	assert.Equal(t, "canned", resp.Text)
}

func TestMockProviderOverlappingKeysAreDeterministic(t *testing.T) {
	// Both keys match; the lexicographically first one must win on every run.
	for i := 0; i < 20; i++ {
		m := NewMockProvider()
		m.Responses["beta"] = "second"
		m.Responses["alpha"] = "first"

		resp, err := m.Generate(context.Background(), Request{Prompt: "alpha beta"})
		require.NoError(t, err)
		assert.Equal(t, "first", resp.Text)
	}
}

type recordingProvider struct {
	last Request
}

func (r *recordingProvider) Generate(_ context.Context, req Request) (*Response, error) {
	r.last = req
	return &Response{Text: "ok", Model: req.Model}, nil
}

func (r *recordingProvider) Name() string { return "recording" }

func TestWithModelFillsEmptyModel(t *testing.T) {
	inner := &recordingProvider{}
	p := WithModel(inner, "gemini-2.5-pro")

	_, err := p.Generate(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", inner.last.Model)

	_, err = p.Generate(context.Background(), Request{Prompt: "p", Model: "explicit"})
	require.NoError(t, err)
	assert.Equal(t, "explicit", inner.last.Model)
}

func TestWithModelEmptyIsPassthrough(t *testing.T) {
	inner := &fakeProvider{name: "inner", text: "t"}
	assert.Same(t, inner, WithModel(inner, ""))
}

func TestSmartRouterPrefersPrimaryForReasoning(t *testing.T) {
	primary := &fakeProvider{name: "primary", text: "deep answer"}
	worker := &fakeProvider{name: "worker", text: "quick answer"}
	r := NewSmartRouter(primary, worker, nil)

	resp, err := r.GenerateWithIntent(context.Background(), Request{Prompt: "p"}, IntentComplexReasoning)
	require.NoError(t, err)
	assert.Equal(t, "deep answer", resp.Text)
	assert.Zero(t, worker.calls)
}

func TestSmartRouterSendsValidationToWorkerFirst(t *testing.T) {
	primary := &fakeProvider{name: "primary", text: "deep answer"}
	worker := &fakeProvider{name: "worker", text: "quick answer"}
	r := NewSmartRouter(primary, worker, nil)

	resp, err := r.GenerateWithIntent(context.Background(), Request{Prompt: "p"}, IntentSimpleValidation)
	require.NoError(t, err)
	assert.Equal(t, "quick answer", resp.Text)
	assert.Zero(t, primary.calls)
}

func TestSmartRouterFallsThroughToMock(t *testing.T) {
	primary := &fakeProvider{name: "primary", err: errors.New("quota exceeded")}
	worker := &fakeProvider{name: "worker", err: errors.New("connection refused")}
	r := NewSmartRouter(primary, worker, nil)

	resp, err := r.GenerateWithIntent(context.Background(), Request{Prompt: "p"}, IntentComplexReasoning)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, worker.calls)
	assert.Equal(t, "mock", resp.Model)
}

func TestSmartRouterWorksWithNoBackends(t *testing.T) {
	r := NewSmartRouter(nil, nil, nil)
	resp, err := r.Generate(context.Background(), Request{Prompt: "anything"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Text)
}

func TestClassifyUsesClassifierAnswer(t *testing.T) {
	classifier := &fakeProvider{name: "local", text: "  creative_generation  "}
	r := NewSmartRouter(nil, nil, classifier)
	assert.Equal(t, IntentCreativeGeneration, r.Classify(context.Background(), "write a scene"))
}

func TestClassifyFallsBackToHeuristics(t *testing.T) {
	classifier := &fakeProvider{name: "local", err: errors.New("down")}
	r := NewSmartRouter(nil, nil, classifier)

	assert.Equal(t, IntentSimpleValidation, r.Classify(context.Background(), "score the plausibility of this"))
	assert.Equal(t, IntentCreativeGeneration, r.Classify(context.Background(), "respond as the CFO to the narrative"))
	assert.Equal(t, IntentComplexReasoning, r.Classify(context.Background(), "plan the rollout"))
}

func TestIsQuotaError(t *testing.T) {
	assert.True(t, isQuotaError(errors.New("googleapi: Error 429: quota exceeded")))
	assert.True(t, isQuotaError(errors.New("RESOURCE_EXHAUSTED")))
	assert.False(t, isQuotaError(errors.New("invalid api key")))
	assert.False(t, isQuotaError(nil))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))
	long := strings.Repeat("x", 2000)
	assert.Len(t, truncate(long, 1500), 1500)
}
