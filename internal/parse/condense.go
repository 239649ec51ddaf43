package parse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fairyhunter13/resume-match-engine/internal/domain"
	"github.com/fairyhunter13/resume-match-engine/pkg/textx"
)

const condensePrompt = `Clean the following action/bullet points.
Rules:
- Do NOT invent new facts.
- Keep the original meaning ONLY.
- Merge into 1-3 sentences max.
- Remove duplicates.
- No JSON. Just the cleaned text.

Input:
%s`

// LLMCondenser compresses narrative blocks through the evaluator
// provider. Callers treat it as fallible and keep the raw text on error.
type LLMCondenser struct {
	Provider domain.Evaluator
	Timeout  time.Duration
}

// Condense asks the provider for a 1-3 sentence rendition of text.
func (c *LLMCondenser) Condense(ctx domain.Context, text string) (string, error) {
	if c.Provider == nil {
		return "", fmt.Errorf("op=parse.Condense: %w: no provider", domain.ErrInvalidArgument)
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	out, err := c.Provider.Evaluate(ctx, fmt.Sprintf(condensePrompt, text))
	if err != nil {
		return "", fmt.Errorf("op=parse.Condense: %w", err)
	}
	out = strings.TrimSpace(strings.Trim(strings.TrimSpace(out), "`"))
	return textx.CollapseNewlines(out), nil
}
