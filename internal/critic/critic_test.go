package critic

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"adoptsim/internal/llm"
)

type scriptedProvider struct {
	text string
	err  error
}

func (p *scriptedProvider) Generate(context.Context, llm.Request) (*llm.Response, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &llm.Response{Text: p.text}, nil
}

func (p *scriptedProvider) Name() string { return "scripted" }

func TestReplanDerivedFromScore(t *testing.T) {
	assert.True(t, Review{PlausibilityScore: 69}.ReplanRequired())
	assert.False(t, Review{PlausibilityScore: 70}.ReplanRequired())
	assert.False(t, Review{PlausibilityScore: 100}.ReplanRequired())
	assert.True(t, Review{PlausibilityScore: 0}.ReplanRequired())
}

func TestReviewTurnParsesVerdict(t *testing.T) {
	c := New(&scriptedProvider{text: `{"plausibility_score": 45, "issues": ["morale jumped 40 points in one week"], "reasoning": "implausible swing"}`})

	review := c.ReviewTurn(context.Background(), "scenario", "turn")
	assert.Equal(t, 45.0, review.PlausibilityScore)
	assert.True(t, review.ReplanRequired())
	assert.Len(t, review.Issues, 1)
}

func TestReviewReportsErrors(t *testing.T) {
	c := New(&scriptedProvider{err: errors.New("backend down")})
	_, err := c.Review(context.Background(), "scenario", "turn")
	assert.Error(t, err)

	c = New(&scriptedProvider{text: "not json"})
	_, err = c.Review(context.Background(), "scenario", "turn")
	assert.Error(t, err)

	c = New(&scriptedProvider{text: `{"plausibility_score": 62, "issues": [], "reasoning": "ok"}`})
	review, err := c.Review(context.Background(), "scenario", "turn")
	assert.NoError(t, err)
	assert.Equal(t, 62.0, review.PlausibilityScore)
}

func TestReviewTurnFailsOpenOnProviderError(t *testing.T) {
	c := New(&scriptedProvider{err: errors.New("backend down")})

	review := c.ReviewTurn(context.Background(), "scenario", "turn")
	assert.Equal(t, 100.0, review.PlausibilityScore)
	assert.False(t, review.ReplanRequired())
}

func TestReviewTurnFailsOpenOnGarbage(t *testing.T) {
	c := New(&scriptedProvider{text: "the turn seemed fine to me"})

	review := c.ReviewTurn(context.Background(), "scenario", "turn")
	assert.Equal(t, 100.0, review.PlausibilityScore)
}

func TestReviewTurnFailsOpenOnOutOfRangeScore(t *testing.T) {
	c := New(&scriptedProvider{text: `{"plausibility_score": 180, "issues": [], "reasoning": "x"}`})

	review := c.ReviewTurn(context.Background(), "scenario", "turn")
	assert.Equal(t, 100.0, review.PlausibilityScore)
}
