package match_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/resume-match-engine/internal/domain"
	"github.com/fairyhunter13/resume-match-engine/internal/match"
)

func unitVec(dim, axis int) []float32 {
	v := make([]float32, dim)
	v[axis] = 1
	return v
}

func candidateWithSummary(id string, vec []float32) match.Candidate {
	vals := make(domain.FieldVectorSet, 5)
	for _, f := range domain.CanonicalFields() {
		vals[f] = make([]float32, len(vec))
	}
	vals[domain.FieldSummary] = vec
	return match.Candidate{ID: id, Vectors: vals}
}

func queryWithSummary(vec []float32) domain.FieldVectorSet {
	vals := make(domain.FieldVectorSet, 5)
	for _, f := range domain.CanonicalFields() {
		vals[f] = make([]float32, len(vec))
	}
	vals[domain.FieldSummary] = vec
	return vals
}

func TestRank_OrdersByCompositeDescending(t *testing.T) {
	t.Parallel()
	query := queryWithSummary([]float32{1, 0, 0})
	candidates := []match.Candidate{
		candidateWithSummary("far", unitVec(3, 1)),
		candidateWithSummary("близко", []float32{1, 1, 0}),
		candidateWithSummary("exact", unitVec(3, 0)),
	}
	got, err := match.Rank(query, candidates, match.CanonicalSpec(), 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "exact", got[0].ID)
	assert.Equal(t, "близко", got[1].ID)
	assert.Equal(t, "far", got[2].ID)
}

func TestRank_TieBreakByAscendingID(t *testing.T) {
	t.Parallel()
	query := queryWithSummary([]float32{1, 0, 0})
	same := unitVec(3, 0)
	candidates := []match.Candidate{
		candidateWithSummary("zeta", same),
		candidateWithSummary("alpha", same),
		candidateWithSummary("mid", same),
	}
	got, err := match.Rank(query, candidates, match.CanonicalSpec(), 3)
	require.NoError(t, err)
	assert.Equal(t, "alpha", got[0].ID)
	assert.Equal(t, "mid", got[1].ID)
	assert.Equal(t, "zeta", got[2].ID)
}

func TestRank_StableUnderEnumerationOrder(t *testing.T) {
	t.Parallel()
	query := queryWithSummary([]float32{0.5, 0.5, 0})
	build := func(order []string) []match.Candidate {
		vecs := map[string][]float32{
			"a": {1, 0, 0},
			"b": {0, 1, 0},
			"c": {1, 1, 0},
			"d": {1, 0, 0}, // ties with a
		}
		out := make([]match.Candidate, 0, len(order))
		for _, id := range order {
			out = append(out, candidateWithSummary(id, vecs[id]))
		}
		return out
	}
	first, err := match.Rank(query, build([]string{"a", "b", "c", "d"}), match.CanonicalSpec(), 4)
	require.NoError(t, err)
	second, err := match.Rank(query, build([]string{"d", "c", "b", "a"}), match.CanonicalSpec(), 4)
	require.NoError(t, err)
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Composite, second[i].Composite)
	}
}

func TestRank_TopKTruncates(t *testing.T) {
	t.Parallel()
	query := queryWithSummary(unitVec(3, 0))
	var candidates []match.Candidate
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		candidates = append(candidates, candidateWithSummary(id, unitVec(3, 0)))
	}
	got, err := match.Rank(query, candidates, match.CanonicalSpec(), 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestRank_TopKZeroYieldsEmpty(t *testing.T) {
	t.Parallel()
	query := queryWithSummary(unitVec(3, 0))
	got, err := match.Rank(query, []match.Candidate{candidateWithSummary("a", unitVec(3, 0))}, match.CanonicalSpec(), 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRank_NegativeTopKIsInvalid(t *testing.T) {
	t.Parallel()
	query := queryWithSummary(unitVec(3, 0))
	_, err := match.Rank(query, nil, match.CanonicalSpec(), -1)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}
