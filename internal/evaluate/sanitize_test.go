package evaluate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/resume-match-engine/internal/domain"
)

func TestSanitizeFencedJSON(t *testing.T) {
	t.Parallel()
	raw := "```json\n{\"score\": 80, \"reason\": \"ok\"}\n```"
	got, err := Sanitize(raw)
	require.NoError(t, err)
	assert.Equal(t, `{"score": 80, "reason": "ok"}`, got)
}

func TestSanitizeTrailingProse(t *testing.T) {
	t.Parallel()
	raw := "Here is my evaluation:\n{\"score\": 70}\nHope that helps!"
	got, err := Sanitize(raw)
	require.NoError(t, err)
	assert.Equal(t, `{"score": 70}`, got)
}

func TestSanitizeNestedBraces(t *testing.T) {
	t.Parallel()
	raw := `{"outer": {"inner": 1}} trailing`
	got, err := Sanitize(raw)
	require.NoError(t, err)
	assert.Equal(t, `{"outer": {"inner": 1}}`, got)
}

func TestSanitizeBraceInsideString(t *testing.T) {
	t.Parallel()
	// A closing brace inside a string value must not end extraction.
	raw := `{"reason": "uses {braces} a lot", "score": 5}`
	got, err := Sanitize(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestSanitizeStripsAsides(t *testing.T) {
	t.Parallel()
	raw := "{\"score\": 60, // model note\n\"reason\": \"fine\" (mostly)\n}"
	got, err := Sanitize(raw)
	require.NoError(t, err)
	assert.NotContains(t, got, "//")
	assert.NotContains(t, got, "(mostly)")
	assert.Contains(t, got, `"score": 60,`)
}

func TestSanitizeNoObject(t *testing.T) {
	t.Parallel()
	_, err := Sanitize("the resume looks great, no structured output here")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSchemaInvalid)
}

func TestSanitizeUnbalanced(t *testing.T) {
	t.Parallel()
	_, err := Sanitize(`{"score": 10, "reason": "cut off`)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSchemaInvalid)
}
