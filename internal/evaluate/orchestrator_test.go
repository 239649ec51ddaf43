package evaluate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/resume-match-engine/internal/domain"
)

type fakeEvaluator struct {
	reply string
	err   error
	block bool

	prompts []string
}

func (f *fakeEvaluator) Evaluate(ctx domain.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.reply, f.err
}

func TestEvaluatePairParsed(t *testing.T) {
	t.Parallel()
	fake := &fakeEvaluator{reply: "```json\n{\"score\": 78, \"matched_skills\": [\"Go\", \"Docker\"], \"missing_skills\": [\"Terraform\"], \"reason\": \"Solid overlap on core stack.\"}\n```"}
	o := New(fake, time.Second, 400, 6000)

	ev := o.EvaluatePair(context.Background(), "resume text", "posting text")
	assert.Equal(t, StateParsed, ev.State)
	assert.Equal(t, Outcome{
		Score:         78,
		MatchedSkills: []string{"Go", "Docker"},
		MissingSkills: []string{"Terraform"},
		Reason:        "Solid overlap on core stack.",
	}, ev.Outcome)
}

func TestEvaluatePairProviderError(t *testing.T) {
	t.Parallel()
	fake := &fakeEvaluator{err: errors.New("upstream 503")}
	o := New(fake, time.Second, 400, 6000)

	ev := o.EvaluatePair(context.Background(), "r", "p")
	assert.Equal(t, StateDegraded, ev.State)
	assert.Zero(t, ev.Outcome.Score)
	assert.Empty(t, ev.Outcome.MatchedSkills)
	assert.NotEmpty(t, ev.Outcome.Reason)
}

func TestEvaluatePairGarbageOutput(t *testing.T) {
	t.Parallel()
	fake := &fakeEvaluator{reply: "I am not able to answer that in JSON form, sorry."}
	o := New(fake, time.Second, 400, 6000)

	ev := o.EvaluatePair(context.Background(), "r", "p")
	assert.Equal(t, StateDegraded, ev.State)
	assert.Zero(t, ev.Outcome.Score)
	assert.NotEmpty(t, ev.Outcome.Reason)
}

func TestEvaluatePairTimeout(t *testing.T) {
	t.Parallel()
	fake := &fakeEvaluator{block: true}
	o := New(fake, 20*time.Millisecond, 400, 6000)

	start := time.Now()
	ev := o.EvaluatePair(context.Background(), "r", "p")
	require.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, StateDegraded, ev.State)
	assert.NotEmpty(t, ev.Outcome.Reason)
}

func TestEvaluatePairReasonBounded(t *testing.T) {
	t.Parallel()
	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'x'
	}
	fake := &fakeEvaluator{reply: string(long)}
	o := New(fake, time.Second, 100, 6000)

	ev := o.EvaluatePair(context.Background(), "r", "p")
	assert.Equal(t, StateDegraded, ev.State)
	assert.NotEmpty(t, ev.Outcome.Reason)
	assert.LessOrEqual(t, len(ev.Outcome.Reason), 100)
}

func TestBuildPromptOrdersPostingFirst(t *testing.T) {
	t.Parallel()
	fake := &fakeEvaluator{reply: `{"score": 1, "matched_skills": [], "missing_skills": [], "reason": "r"}`}
	o := New(fake, time.Second, 400, 6000)

	o.EvaluatePair(context.Background(), "RESUME_MARK", "POSTING_MARK")
	require.Len(t, fake.prompts, 1)
	p := fake.prompts[0]
	assert.Contains(t, p, "POSTING_MARK")
	assert.Contains(t, p, "RESUME_MARK")
	assert.Less(t, strings.Index(p, "POSTING_MARK"), strings.Index(p, "RESUME_MARK"))
}

func TestBuildPromptTruncatesLongInputs(t *testing.T) {
	t.Parallel()
	long := make([]byte, 200_000)
	for i := range long {
		long[i] = 'a'
	}
	o := New(&fakeEvaluator{}, time.Second, 400, 1000)

	p := o.buildPrompt(string(long), string(long))
	// With a 1000-token budget the prompt must come out far below the raw input size.
	assert.Less(t, len(p), 50_000)
}

func TestStateString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "not_evaluated", StateNotEvaluated.String())
	assert.Equal(t, "requested", StateRequested.String())
	assert.Equal(t, "parsed", StateParsed.String())
	assert.Equal(t, "degraded", StateDegraded.String())
	assert.Equal(t, "unknown", State(99).String())
}
