package match_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/resume-match-engine/internal/domain"
	"github.com/fairyhunter13/resume-match-engine/internal/match"
)

func TestCanonicalSpec_WeightsSumToOne(t *testing.T) {
	t.Parallel()
	spec := match.CanonicalSpec()
	require.NoError(t, spec.Validate())
	sum := 0.0
	for _, p := range spec {
		sum += p.Weight
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestCosine_SymmetricAndDeterministic(t *testing.T) {
	t.Parallel()
	a := []float32{0.3, -0.5, 0.8}
	b := []float32{0.1, 0.9, -0.2}
	assert.Equal(t, match.Cosine(a, b), match.Cosine(b, a))
	assert.Equal(t, match.Cosine(a, b), match.Cosine(a, b))
}

func TestCosine_SelfSimilarity(t *testing.T) {
	t.Parallel()
	v := []float32{0.2, 0.4, 0.6, 0.8}
	assert.InDelta(t, 1.0, match.Cosine(v, v), 1e-9)
}

func TestCosine_ZeroVectorYieldsZero(t *testing.T) {
	t.Parallel()
	zero := make([]float32, 4)
	v := []float32{1, 2, 3, 4}
	assert.Equal(t, 0.0, match.Cosine(zero, v))
	assert.Equal(t, 0.0, match.Cosine(v, zero))
	assert.Equal(t, 0.0, match.Cosine(zero, zero))
}

func TestCosine_DimensionMismatchYieldsZero(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0.0, match.Cosine([]float32{1, 2}, []float32{1, 2, 3}))
	assert.Equal(t, 0.0, match.Cosine(nil, []float32{1}))
}

func TestCosine_ClippedToUnitRange(t *testing.T) {
	t.Parallel()
	a := []float32{1e-30, 1e-30}
	got := match.Cosine(a, a)
	assert.LessOrEqual(t, got, 1.0)
	assert.GreaterOrEqual(t, got, -1.0)
}

func vecsFor(vals map[domain.Field][]float32) domain.FieldVectorSet {
	out := make(domain.FieldVectorSet, 5)
	for _, f := range domain.CanonicalFields() {
		if v, ok := vals[f]; ok {
			out[f] = v
		} else {
			out[f] = make([]float32, 3)
		}
	}
	return out
}

func TestScore_CompositeIsWeightedSum(t *testing.T) {
	t.Parallel()
	spec := match.CanonicalSpec()
	resume := vecsFor(map[domain.Field][]float32{
		domain.FieldSummary:  {1, 0, 0},
		domain.FieldSkills:   {0, 1, 0},
		domain.FieldFullText: {1, 1, 0},
	})
	posting := vecsFor(map[domain.Field][]float32{
		domain.FieldSummary:  {1, 0, 0},
		domain.FieldSkills:   {0, 1, 0},
		domain.FieldFullText: {1, 0, 0},
	})
	fieldScores, composite := match.Score(resume, posting, spec)
	require.Len(t, fieldScores, len(spec))

	want := 0.0
	for _, p := range spec {
		want += p.Weight * fieldScores[p.Key()]
	}
	assert.InDelta(t, want, composite, 1e-12)
	assert.InDelta(t, 1.0, fieldScores["summary:summary"], 1e-9)
	assert.InDelta(t, 1.0, fieldScores["skills:skills"], 1e-9)
	assert.InDelta(t, 1/math.Sqrt2, fieldScores["full_text:full_text"], 1e-9)
}

func TestScore_EmptyFieldContributesZero(t *testing.T) {
	t.Parallel()
	spec := match.CanonicalSpec()
	resume := vecsFor(map[domain.Field][]float32{
		domain.FieldSummary: {1, 0, 0},
		domain.FieldSkills:  {0, 1, 0},
		// narrative fields stay zero vectors
	})
	posting := vecsFor(map[domain.Field][]float32{
		domain.FieldSummary:            {1, 0, 0},
		domain.FieldSkills:             {0, 1, 0},
		domain.FieldNarrativePrimary:   {1, 1, 1},
		domain.FieldNarrativeSecondary: {1, 1, 1},
	})
	fieldScores, composite := match.Score(resume, posting, spec)
	assert.Equal(t, 0.0, fieldScores["narrative_primary:narrative_primary"])
	assert.Equal(t, 0.0, fieldScores["narrative_secondary:narrative_secondary"])
	assert.InDelta(t, 0.35+0.35, composite, 1e-9)
}

func TestScore_DirectionSymmetric(t *testing.T) {
	t.Parallel()
	spec := match.CanonicalSpec()
	a := vecsFor(map[domain.Field][]float32{
		domain.FieldSummary: {0.3, 0.1, 0.5},
		domain.FieldSkills:  {0.9, 0.2, 0.0},
	})
	b := vecsFor(map[domain.Field][]float32{
		domain.FieldSummary: {0.2, 0.8, 0.1},
		domain.FieldSkills:  {0.4, 0.4, 0.7},
	})
	fwd, fwdComposite := match.Score(a, b, spec)
	rev, revComposite := match.Score(b, a, spec)
	assert.Equal(t, fwdComposite, revComposite)
	assert.Equal(t, fwd, rev)
}
