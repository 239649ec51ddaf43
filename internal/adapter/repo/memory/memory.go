// Package memory provides in-process implementations of the repository
// ports. They back single-node deployments and tests; the postgres
// adapters replace them when a database URL is configured.
package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/fairyhunter13/resume-match-engine/internal/domain"
)

// MatchStore is a concurrency-safe match cache keyed by (resume_id, posting_id).
type MatchStore struct {
	mu      sync.RWMutex
	results map[string]domain.MatchResult
}

// NewMatchStore constructs an empty MatchStore.
func NewMatchStore() *MatchStore {
	return &MatchStore{results: make(map[string]domain.MatchResult)}
}

func pairKey(resumeID, postingID string) string {
	return resumeID + "|" + postingID
}

// Get returns the last stored result for the pair.
func (s *MatchStore) Get(_ domain.Context, resumeID, postingID string) (domain.MatchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[pairKey(resumeID, postingID)]
	if !ok {
		return domain.MatchResult{}, fmt.Errorf("op=match.get: %w", domain.ErrNotFound)
	}
	return r, nil
}

// Put stores a result, replacing any previous one for the same pair.
func (s *MatchStore) Put(_ domain.Context, r domain.MatchResult) error {
	if r.ResumeID == "" || r.PostingID == "" {
		return fmt.Errorf("op=match.put: %w: missing resume or posting id", domain.ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[pairKey(r.ResumeID, r.PostingID)] = r
	return nil
}

// ListByResume returns all stored results for a resume, ordered by posting id.
func (s *MatchStore) ListByResume(_ domain.Context, resumeID string) ([]domain.MatchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.MatchResult
	for _, r := range s.results {
		if r.ResumeID == resumeID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PostingID < out[j].PostingID })
	return out, nil
}

// ListByPosting returns all stored results for a posting, ordered by resume id.
func (s *MatchStore) ListByPosting(_ domain.Context, postingID string) ([]domain.MatchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.MatchResult
	for _, r := range s.results {
		if r.PostingID == postingID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResumeID < out[j].ResumeID })
	return out, nil
}

type recordEntry struct {
	rec  domain.CanonicalRecord
	vecs domain.FieldVectorSet
}

// RecordStore holds canonical records with their field vectors.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]recordEntry
}

// NewRecordStore constructs an empty RecordStore.
func NewRecordStore() *RecordStore {
	return &RecordStore{records: make(map[string]recordEntry)}
}

// PutRecord stores or replaces a record and its vectors.
func (s *RecordStore) PutRecord(_ domain.Context, rec domain.CanonicalRecord, vecs domain.FieldVectorSet) error {
	if rec.ID == "" {
		return fmt.Errorf("op=record.put: %w: missing id", domain.ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = recordEntry{rec: rec, vecs: vecs}
	return nil
}

// GetRecord returns a record and its vectors by id.
func (s *RecordStore) GetRecord(_ domain.Context, id string) (domain.CanonicalRecord, domain.FieldVectorSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.records[id]
	if !ok {
		return domain.CanonicalRecord{}, nil, fmt.Errorf("op=record.get: %w", domain.ErrNotFound)
	}
	return e.rec, e.vecs, nil
}

// ListByKind returns all records of a kind ordered by id.
func (s *RecordStore) ListByKind(_ domain.Context, kind string) ([]domain.CanonicalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.CanonicalRecord
	for _, e := range s.records {
		if e.rec.Kind == kind {
			out = append(out, e.rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// VectorsFor returns only the stored vectors for a record.
func (s *RecordStore) VectorsFor(_ domain.Context, id string) (domain.FieldVectorSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("op=record.vectors: %w", domain.ErrNotFound)
	}
	return e.vecs, nil
}
