// Package evaluate orchestrates the external natural-language evaluator:
// prompt construction, per-call deadlines, and the sanitize/parse/coerce
// pipeline that turns free-form model output into a strict result schema.
package evaluate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tiktoken "github.com/pkoukk/tiktoken-go"

	"github.com/fairyhunter13/resume-match-engine/internal/adapter/observability"
	"github.com/fairyhunter13/resume-match-engine/internal/domain"
	"github.com/fairyhunter13/resume-match-engine/pkg/textx"
)

// State tracks a pair's evaluation lifecycle. Terminal states are always
// reached; there is no retry loop or hung state.
type State int

const (
	StateNotEvaluated State = iota
	StateRequested
	StateParsed
	StateDegraded
)

// String implements fmt.Stringer for logging.
func (s State) String() string {
	switch s {
	case StateNotEvaluated:
		return "not_evaluated"
	case StateRequested:
		return "requested"
	case StateParsed:
		return "parsed"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Evaluation is the terminal outcome of one pair's evaluation.
type Evaluation struct {
	State   State
	Outcome Outcome
}

const promptTemplate = `You are a senior recruiter. Evaluate how well this resume matches this job posting.

STRICT RULES:
- DO NOT invent skills. Only extract skills that explicitly appear in the text.
- matched_skills MUST be a subset of the actual skills found in BOTH texts.
- missing_skills MUST be a subset of requirements found in the posting but NOT in the resume.
- reason MUST be 1-2 sentences, concise, no hallucination.
- score MUST be an integer 0-100.
- Return ONLY valid JSON, no code fences.

Job Posting:
%s

Resume:
%s

Return JSON:
{
  "score": 0,
  "matched_skills": [],
  "missing_skills": [],
  "reason": ""
}`

// Orchestrator drives the external evaluator for shortlisted pairs.
// It never returns an error: any failure degrades the pair's result.
type Orchestrator struct {
	Provider        domain.Evaluator
	Timeout         time.Duration
	ReasonMaxChars  int
	MaxPromptTokens int

	enc *tiktoken.Tiktoken
}

// New constructs an Orchestrator. The token encoder is best-effort; when
// unavailable, prompts are budgeted by a character heuristic instead.
func New(provider domain.Evaluator, timeout time.Duration, reasonMaxChars, maxPromptTokens int) *Orchestrator {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		slog.Warn("tiktoken encoding unavailable, falling back to character budget", slog.Any("error", err))
		enc = nil
	}
	if reasonMaxChars <= 0 {
		reasonMaxChars = 400
	}
	return &Orchestrator{
		Provider:        provider,
		Timeout:         timeout,
		ReasonMaxChars:  reasonMaxChars,
		MaxPromptTokens: maxPromptTokens,
		enc:             enc,
	}
}

// EvaluatePair runs the full REQUESTED -> PARSED/DEGRADED transition for
// one (resume, posting) pair. Exactly one provider call is made; there is
// no silent retry, and the call carries a hard deadline.
func (o *Orchestrator) EvaluatePair(ctx domain.Context, resumeFullText, postingFullText string) Evaluation {
	prompt := o.buildPrompt(resumeFullText, postingFullText)

	if o.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := o.Provider.Evaluate(ctx, prompt)
	observability.AIRequestDuration.WithLabelValues("evaluator", "evaluate").Observe(time.Since(start).Seconds())
	observability.AIRequestsTotal.WithLabelValues("evaluator", "evaluate").Inc()
	if err != nil {
		return o.degrade(fmt.Sprintf("evaluator call failed: %v", err))
	}

	sanitized, err := Sanitize(raw)
	if err != nil {
		return o.degrade(nonEmptyReason(raw, err, o.ReasonMaxChars))
	}
	out, err := parseOutcome(sanitized, o.ReasonMaxChars)
	if err != nil {
		return o.degrade(nonEmptyReason(sanitized, err, o.ReasonMaxChars))
	}
	observability.EvaluationsTotal.WithLabelValues("parsed").Inc()
	return Evaluation{State: StateParsed, Outcome: out}
}

func (o *Orchestrator) degrade(reason string) Evaluation {
	observability.EvaluationsTotal.WithLabelValues("degraded").Inc()
	slog.Warn("qualitative evaluation degraded", slog.String("reason", textx.Truncate(reason, 200)))
	return Evaluation{
		State: StateDegraded,
		Outcome: Outcome{
			Score:         0,
			MatchedSkills: []string{},
			MissingSkills: []string{},
			Reason:        textx.Truncate(reason, o.ReasonMaxChars),
		},
	}
}

// nonEmptyReason prefers the (bounded) cleaned text as diagnostic, else
// the error description, so a degraded result always explains itself.
func nonEmptyReason(text string, err error, max int) string {
	t := textx.CollapseNewlines(text)
	if t != "" {
		return textx.Truncate(t, max)
	}
	return textx.Truncate(err.Error(), max)
}

// buildPrompt assembles the instruction contract around the two full
// texts, each truncated to half the remaining token budget.
func (o *Orchestrator) buildPrompt(resumeText, postingText string) string {
	budget := o.MaxPromptTokens
	if budget > 0 {
		// Reserve a slice for the instruction scaffolding itself.
		per := (budget - 400) / 2
		if per < 100 {
			per = 100
		}
		resumeText = o.truncateTokens(resumeText, per)
		postingText = o.truncateTokens(postingText, per)
	}
	return fmt.Sprintf(promptTemplate, postingText, resumeText)
}

func (o *Orchestrator) truncateTokens(text string, maxTokens int) string {
	if o.enc == nil {
		// ~4 chars per token on average English text
		return textx.Truncate(text, maxTokens*4)
	}
	tokens := o.enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return o.enc.Decode(tokens[:maxTokens])
}
