package usecase

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/fairyhunter13/resume-match-engine/internal/adapter/observability"
	"github.com/fairyhunter13/resume-match-engine/internal/domain"
	"github.com/fairyhunter13/resume-match-engine/internal/evaluate"
	"github.com/fairyhunter13/resume-match-engine/internal/match"
)

// MatchService ranks stored records against each other and drives the
// qualitative evaluation of the top entries.
type MatchService struct {
	Records      domain.RecordRepository
	Matches      domain.MatchRepository
	Orchestrator *evaluate.Orchestrator
	Spec         domain.WeightedScoreSpec
	// SkipEmptyCandidates drops candidates whose vectors cannot be
	// loaded instead of failing the whole ranking.
	SkipEmptyCandidates bool

	recompute singleflight.Group
}

// NewMatchService constructs a MatchService.
func NewMatchService(records domain.RecordRepository, matches domain.MatchRepository, orch *evaluate.Orchestrator, spec domain.WeightedScoreSpec, skipEmpty bool) *MatchService {
	return &MatchService{
		Records:             records,
		Matches:             matches,
		Orchestrator:        orch,
		Spec:                spec,
		SkipEmptyCandidates: skipEmpty,
	}
}

// RankPostingsForResume ranks all stored postings for one resume,
// evaluates the first explainTopN entries, stores every result and
// returns them in ranking order.
func (s *MatchService) RankPostingsForResume(ctx domain.Context, resumeID string, topK, explainTopN int) ([]domain.MatchResult, error) {
	observability.RankRequestsTotal.WithLabelValues("postings_for_resume").Inc()
	_, queryVecs, err := s.Records.GetRecord(ctx, resumeID)
	if err != nil {
		return nil, fmt.Errorf("op=match.rank: %w", err)
	}
	candidates, err := s.candidates(ctx, domain.KindPosting)
	if err != nil {
		return nil, err
	}
	ranked, err := match.Rank(queryVecs, candidates, s.Spec, topK)
	if err != nil {
		return nil, err
	}
	return s.finalize(ctx, ranked, explainTopN, func(candidateID string) (string, string) {
		return resumeID, candidateID
	})
}

// RankResumesForPosting is the symmetric direction: all stored resumes
// ranked for one posting.
func (s *MatchService) RankResumesForPosting(ctx domain.Context, postingID string, topK, explainTopN int) ([]domain.MatchResult, error) {
	observability.RankRequestsTotal.WithLabelValues("resumes_for_posting").Inc()
	_, queryVecs, err := s.Records.GetRecord(ctx, postingID)
	if err != nil {
		return nil, fmt.Errorf("op=match.rank: %w", err)
	}
	candidates, err := s.candidates(ctx, domain.KindResume)
	if err != nil {
		return nil, err
	}
	ranked, err := match.RankForPosting(queryVecs, candidates, s.Spec, topK)
	if err != nil {
		return nil, err
	}
	return s.finalize(ctx, ranked, explainTopN, func(candidateID string) (string, string) {
		return candidateID, postingID
	})
}

// candidates loads the vectors for every record of a kind. A record
// whose vectors cannot be loaded either fails the call or is skipped,
// per configuration.
func (s *MatchService) candidates(ctx domain.Context, kind string) ([]match.Candidate, error) {
	recs, err := s.Records.ListByKind(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("op=match.candidates: %w", err)
	}
	out := make([]match.Candidate, 0, len(recs))
	for _, rec := range recs {
		vecs, err := s.Records.VectorsFor(ctx, rec.ID)
		if err != nil {
			if s.SkipEmptyCandidates {
				slog.Warn("candidate skipped, vectors unavailable",
					slog.String("record_id", rec.ID), slog.Any("error", err))
				continue
			}
			return nil, fmt.Errorf("op=match.candidates: record %s: %w", rec.ID, err)
		}
		out = append(out, match.Candidate{ID: rec.ID, Vectors: vecs})
	}
	return out, nil
}

// finalize turns ranking entries into stored MatchResults, running the
// qualitative evaluation for the first explainTopN entries concurrently.
// pairOf maps a candidate id to the (resumeID, postingID) pair.
func (s *MatchService) finalize(ctx domain.Context, ranked []match.Ranked, explainTopN int, pairOf func(candidateID string) (string, string)) ([]domain.MatchResult, error) {
	now := time.Now().UTC()
	results := make([]domain.MatchResult, len(ranked))
	for i, r := range ranked {
		resumeID, postingID := pairOf(r.ID)
		results[i] = domain.MatchResult{
			ID:             ulid.Make().String(),
			ResumeID:       resumeID,
			PostingID:      postingID,
			FieldScores:    r.FieldScores,
			CompositeScore: r.Composite,
			ComputedAt:     now,
		}
		observability.CompositeScoreHistogram.Observe(r.Composite)
	}

	if s.Orchestrator != nil && explainTopN > 0 {
		g, gctx := errgroup.WithContext(ctx)
		for i := range results {
			if i >= explainTopN {
				break
			}
			i := i
			g.Go(func() error {
				s.evaluateInto(gctx, &results[i])
				return nil
			})
		}
		_ = g.Wait()
	}

	// A cancelled ranking must not leave partially evaluated pairs behind.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("op=match.finalize: %w", err)
	}
	for i := range results {
		if err := s.Matches.Put(ctx, results[i]); err != nil {
			return nil, fmt.Errorf("op=match.finalize: %w", err)
		}
	}
	return results, nil
}

// evaluateInto runs the qualitative evaluation for one result in place.
// Missing records degrade the pair rather than failing the ranking. A
// degraded pair still carries an explicit zero score; a nil LLMScore is
// reserved for entries that were never selected for evaluation.
func (s *MatchService) evaluateInto(ctx domain.Context, res *domain.MatchResult) {
	resumeRec, _, err := s.Records.GetRecord(ctx, res.ResumeID)
	if err != nil {
		degradePair(res, fmt.Sprintf("resume record unavailable: %v", err))
		return
	}
	postingRec, _, err := s.Records.GetRecord(ctx, res.PostingID)
	if err != nil {
		degradePair(res, fmt.Sprintf("posting record unavailable: %v", err))
		return
	}
	ev := s.Orchestrator.EvaluatePair(ctx, resumeRec.Fields[domain.FieldFullText], postingRec.Fields[domain.FieldFullText])
	res.MatchedSkills = ev.Outcome.MatchedSkills
	res.MissingSkills = ev.Outcome.MissingSkills
	res.Reason = ev.Outcome.Reason
	score := ev.Outcome.Score
	res.LLMScore = &score
	if ev.State != evaluate.StateParsed {
		res.Degraded = true
	}
}

func degradePair(res *domain.MatchResult, reason string) {
	zero := 0
	res.LLMScore = &zero
	res.Degraded = true
	res.Reason = reason
}

// Recompute forces a fresh computation for one pair, bypassing the
// cache. Concurrent recomputes of the same pair share one in-flight
// computation.
func (s *MatchService) Recompute(ctx domain.Context, resumeID, postingID string) (domain.MatchResult, error) {
	key := resumeID + "|" + postingID
	v, err, _ := s.recompute.Do(key, func() (any, error) {
		_, resumeVecs, err := s.Records.GetRecord(ctx, resumeID)
		if err != nil {
			return nil, fmt.Errorf("op=match.recompute: %w", err)
		}
		_, postingVecs, err := s.Records.GetRecord(ctx, postingID)
		if err != nil {
			return nil, fmt.Errorf("op=match.recompute: %w", err)
		}
		fieldScores, composite := match.Score(resumeVecs, postingVecs, s.Spec)
		observability.CompositeScoreHistogram.Observe(composite)
		res := domain.MatchResult{
			ID:             ulid.Make().String(),
			ResumeID:       resumeID,
			PostingID:      postingID,
			FieldScores:    fieldScores,
			CompositeScore: composite,
			ComputedAt:     time.Now().UTC(),
		}
		if s.Orchestrator != nil {
			s.evaluateInto(ctx, &res)
		}
		if err := s.Matches.Put(ctx, res); err != nil {
			return nil, fmt.Errorf("op=match.recompute: %w", err)
		}
		return res, nil
	})
	if err != nil {
		return domain.MatchResult{}, err
	}
	return v.(domain.MatchResult), nil
}

// ResultsForResume lists cached results for a resume.
func (s *MatchService) ResultsForResume(ctx domain.Context, resumeID string) ([]domain.MatchResult, error) {
	return s.Matches.ListByResume(ctx, resumeID)
}

// ResultsForPosting lists cached results for a posting.
func (s *MatchService) ResultsForPosting(ctx domain.Context, postingID string) ([]domain.MatchResult, error) {
	return s.Matches.ListByPosting(ctx, postingID)
}
