package match

import (
	"fmt"
	"sort"

	"github.com/fairyhunter13/resume-match-engine/internal/domain"
)

// Candidate pairs an id with precomputed field vectors.
type Candidate struct {
	ID      string
	Vectors domain.FieldVectorSet
}

// Ranked is one entry of a ranking: candidate id, its per-field scores,
// and the weighted composite.
type Ranked struct {
	ID          string
	FieldScores map[string]float64
	Composite   float64
}

// Rank scores every candidate against the query vectors (brute force,
// O(corpus) per query), sorts descending by composite, and truncates to
// topK. Equal composites are ordered by ascending id so output is
// reproducible regardless of input enumeration order. topK of zero
// yields an empty ranking without error.
func Rank(query domain.FieldVectorSet, candidates []Candidate, spec domain.WeightedScoreSpec, topK int) ([]Ranked, error) {
	if topK < 0 {
		return nil, fmt.Errorf("op=match.Rank: %w: top_k must be >= 0", domain.ErrInvalidArgument)
	}
	scored := make([]Ranked, 0, len(candidates))
	for _, c := range candidates {
		fieldScores, composite := Score(query, c.Vectors, spec)
		scored = append(scored, Ranked{ID: c.ID, FieldScores: fieldScores, Composite: composite})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Composite != scored[j].Composite {
			return scored[i].Composite > scored[j].Composite
		}
		return scored[i].ID < scored[j].ID
	})
	if topK < len(scored) {
		scored = scored[:topK]
	}
	return scored, nil
}

// RankForPosting ranks resume candidates against posting query vectors.
// The spec is transposed so asymmetric field pairs keep their meaning,
// and field score keys stay in canonical resume:posting form.
func RankForPosting(query domain.FieldVectorSet, candidates []Candidate, spec domain.WeightedScoreSpec, topK int) ([]Ranked, error) {
	transposed := make(domain.WeightedScoreSpec, len(spec))
	keyFor := make(map[string]string, len(spec))
	for i, p := range spec {
		t := domain.WeightPair{ResumeField: p.PostingField, PostingField: p.ResumeField, Weight: p.Weight}
		transposed[i] = t
		keyFor[t.Key()] = p.Key()
	}
	ranked, err := Rank(query, candidates, transposed, topK)
	if err != nil {
		return nil, err
	}
	for i := range ranked {
		remapped := make(map[string]float64, len(ranked[i].FieldScores))
		for k, v := range ranked[i].FieldScores {
			remapped[keyFor[k]] = v
		}
		ranked[i].FieldScores = remapped
	}
	return ranked, nil
}
