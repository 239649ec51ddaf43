package match

import (
	"math"

	"github.com/fairyhunter13/resume-match-engine/internal/domain"
)

// CanonicalSpec returns the engine's canonical weight table:
// summary 0.35, skills 0.35, primary narrative 0.15, secondary
// narrative 0.10, full text 0.05.
func CanonicalSpec() domain.WeightedScoreSpec {
	return domain.WeightedScoreSpec{
		{ResumeField: domain.FieldSummary, PostingField: domain.FieldSummary, Weight: 0.35},
		{ResumeField: domain.FieldSkills, PostingField: domain.FieldSkills, Weight: 0.35},
		{ResumeField: domain.FieldNarrativePrimary, PostingField: domain.FieldNarrativePrimary, Weight: 0.15},
		{ResumeField: domain.FieldNarrativeSecondary, PostingField: domain.FieldNarrativeSecondary, Weight: 0.10},
		{ResumeField: domain.FieldFullText, PostingField: domain.FieldFullText, Weight: 0.05},
	}
}

// Cosine returns the cosine similarity of a and b, clipped to [-1,1].
// A zero vector or a dimension mismatch yields 0.0 rather than an error;
// vectors are normalized here because the provider contract does not
// guarantee unit norm.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0.0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0.0
	}
	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}

// Score computes per-field-pair cosine similarities and the weighted
// composite between a resume's and a posting's vector sets. It is
// field-pair symmetric: swapping which side is which yields identical
// output, so the same implementation serves both ranking directions.
func Score(resumeVecs, postingVecs domain.FieldVectorSet, spec domain.WeightedScoreSpec) (map[string]float64, float64) {
	fieldScores := make(map[string]float64, len(spec))
	composite := 0.0
	for _, p := range spec {
		s := Cosine(resumeVecs[p.ResumeField], postingVecs[p.PostingField])
		fieldScores[p.Key()] = s
		composite += p.Weight * s
	}
	return fieldScores, composite
}
