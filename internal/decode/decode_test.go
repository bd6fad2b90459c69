package decode

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scored struct {
	Score float64 `json:"score"`
	Label string  `json:"label"`
}

func (s *scored) Validate() error {
	if s.Score < 0 || s.Score > 100 {
		return fmt.Errorf("score out of range")
	}
	return nil
}

func TestExtractPlainObject(t *testing.T) {
	out, err := Extract(`{"a": 1}`)
	require.NoError(t, err)
	assert.Equal(t, `{"a": 1}`, out)
}

func TestExtractWithProseAndFences(t *testing.T) {
	raw := "Here is the result:\n```json\n{\"score\": 85, \"label\": \"ok\"}\n```\nHope that helps!"
	out, err := Extract(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"score": 85, "label": "ok"}`, out)
}

func TestExtractNestedAndBracesInStrings(t *testing.T) {
	raw := `prefix {"outer": {"inner": "has } brace and \" quote"}, "n": 2} suffix`
	out, err := Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, `{"outer": {"inner": "has } brace and \" quote"}, "n": 2}`, out)
}

func TestExtractNoObject(t *testing.T) {
	_, err := Extract("no json here")
	assert.Error(t, err)
}

func TestExtractUnbalanced(t *testing.T) {
	_, err := Extract(`{"open": 1`)
	assert.Error(t, err)
}

func TestDecodeValid(t *testing.T) {
	res := Decode[scored](`{"score": 70, "label": "fine"}`)
	require.True(t, res.OK)
	assert.Equal(t, 70.0, res.Value.Score)
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	res := Decode[scored](`{"score": 70, "label": "fine", "extra": true}`)
	assert.False(t, res.OK)
}

func TestDecodeLenientAllowsUnknownFields(t *testing.T) {
	res := DecodeLenient[scored](`{"score": 70, "label": "fine", "extra": true}`)
	require.True(t, res.OK)
	assert.Equal(t, "fine", res.Value.Label)
}

func TestDecodeValidateRejects(t *testing.T) {
	res := Decode[scored](`{"score": 250, "label": "bad"}`)
	require.False(t, res.OK)
	assert.Contains(t, res.Err.Error(), "score out of range")
}

func TestOrElseFallback(t *testing.T) {
	bad := Decode[scored]("garbage")
	got := bad.OrElse(scored{Score: 100})
	assert.Equal(t, 100.0, got.Score)

	good := Decode[scored](`{"score": 5, "label": ""}`)
	assert.Equal(t, 5.0, good.OrElse(scored{Score: 100}).Score)
}
