package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/resume-match-engine/internal/config"
	"github.com/fairyhunter13/resume-match-engine/internal/domain"
	"github.com/fairyhunter13/resume-match-engine/internal/usecase"
	"github.com/fairyhunter13/resume-match-engine/pkg/textx"
)

// Server aggregates handler dependencies.
type Server struct {
	Cfg       config.Config
	Ingest    usecase.IngestService
	Matcher   *usecase.MatchService
	Extractor domain.TextExtractor

	DBCheck     func(ctx context.Context) error
	RedisCheck  func(ctx context.Context) error
	QdrantCheck func(ctx context.Context) error
	TikaCheck   func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers wired.
func NewServer(cfg config.Config, ingest usecase.IngestService, matcher *usecase.MatchService, extractor domain.TextExtractor) *Server {
	return &Server{Cfg: cfg, Ingest: ingest, Matcher: matcher, Extractor: extractor}
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// allowedExt enforces an allowlist for uploads: .txt, .md, .pdf, .docx
func allowedExt(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md", ".pdf", ".docx":
		return true
	}
	return false
}

func allowedMIME(m string) bool {
	m = strings.ToLower(m)
	if strings.HasPrefix(m, "text/") { // allow parameters such as charset
		return true
	}
	return m == "application/pdf" ||
		m == "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
}

// extractUploadedText turns uploaded bytes into plain text. PDF and
// Word documents go through the extractor via a temp file; text files
// are sanitized directly.
func (s *Server) extractUploadedText(ctx context.Context, fileName string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == ".pdf" || ext == ".docx" {
		if s.Extractor == nil {
			return "", fmt.Errorf("%w: %s requires extractor", domain.ErrUnsupportedFormat, strings.TrimPrefix(ext, "."))
		}
		tmp, err := os.CreateTemp("", "upload-*"+ext)
		if err != nil {
			return "", err
		}
		defer func() { _ = os.Remove(tmp.Name()); _ = tmp.Close() }()
		if _, err := tmp.Write(data); err != nil {
			return "", err
		}
		return s.Extractor.ExtractPath(ctx, fileName, tmp.Name())
	}
	return textx.SanitizeText(string(data)), nil
}

// ingestRequest is the JSON body alternative to a multipart upload.
type ingestRequest struct {
	ID   string `json:"id"`
	Text string `json:"text" validate:"required"`
}

// ResumeUploadHandler ingests a resume from a multipart file or a JSON text body.
func (s *Server) ResumeUploadHandler() http.HandlerFunc {
	return s.uploadHandler(domain.KindResume)
}

// PostingUploadHandler ingests a job posting from a multipart file or a JSON text body.
func (s *Server) PostingUploadHandler() http.HandlerFunc {
	return s.uploadHandler(domain.KindPosting)
}

func (s *Server) uploadHandler(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var id, text string
		var err error
		if strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
			id, text, err = s.readMultipart(w, r)
		} else {
			id, text, err = s.readJSONText(w, r)
		}
		if err != nil {
			writeError(w, r, err, nil)
			return
		}

		var rec domain.CanonicalRecord
		if kind == domain.KindResume {
			rec, err = s.Ingest.IngestResume(r.Context(), id, text)
		} else {
			rec, err = s.Ingest.IngestPosting(r.Context(), id, text)
		}
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id":           rec.ID,
			"kind":         rec.Kind,
			"content_hash": rec.ContentHash,
			"raw_skills":   rec.RawSkills,
		})
	}
}

// readMultipart pulls the "file" part, enforces extension and sniffed
// MIME allowlists, and extracts plain text.
func (s *Server) readMultipart(w http.ResponseWriter, r *http.Request) (id, text string, err error) {
	maxBytes := s.Cfg.MaxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return "", "", fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", "", fmt.Errorf("%w: file part required", domain.ErrInvalidArgument)
	}
	defer func() { _ = file.Close() }()
	data, err := io.ReadAll(file)
	if err != nil {
		return "", "", fmt.Errorf("%w: read: %v", domain.ErrInvalidArgument, err)
	}
	if !allowedExt(header.Filename) {
		return "", "", fmt.Errorf("%w: extension of %s", domain.ErrUnsupportedFormat, header.Filename)
	}
	if m := mimetype.Detect(data); !allowedMIME(m.String()) {
		return "", "", fmt.Errorf("%w: detected %s", domain.ErrUnsupportedFormat, m.String())
	}
	text, err = s.extractUploadedText(r.Context(), header.Filename, data)
	if err != nil {
		return "", "", err
	}
	return r.FormValue("id"), text, nil
}

func (s *Server) readJSONText(w http.ResponseWriter, r *http.Request) (id, text string, err error) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", "", fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument)
	}
	if err := getValidator().Struct(req); err != nil {
		return "", "", fmt.Errorf("%w: text is required", domain.ErrInvalidArgument)
	}
	return req.ID, req.Text, nil
}

type candidatesRequest struct {
	PostingID   string `json:"posting_id" validate:"required"`
	TopK        *int   `json:"top_k"`
	ExplainTopN *int   `json:"explain_top_n"`
}

type jobsRequest struct {
	ResumeID    string `json:"resume_id" validate:"required"`
	TopK        *int   `json:"top_k"`
	ExplainTopN *int   `json:"explain_top_n"`
}

type recomputeRequest struct {
	ResumeID  string `json:"resume_id" validate:"required"`
	PostingID string `json:"posting_id" validate:"required"`
}

// matchResultDTO is the wire shape of a MatchResult.
type matchResultDTO struct {
	ID             string             `json:"id"`
	ResumeID       string             `json:"resume_id"`
	PostingID      string             `json:"posting_id"`
	FieldScores    map[string]float64 `json:"field_scores"`
	CompositeScore float64            `json:"composite_score"`
	LLMScore       *int               `json:"llm_score"`
	MatchedSkills  []string           `json:"matched_skills"`
	MissingSkills  []string           `json:"missing_skills"`
	Reason         string             `json:"reason"`
	Degraded       bool               `json:"degraded"`
	ComputedAt     time.Time          `json:"computed_at"`
}

func toDTO(r domain.MatchResult) matchResultDTO {
	return matchResultDTO{
		ID:             r.ID,
		ResumeID:       r.ResumeID,
		PostingID:      r.PostingID,
		FieldScores:    r.FieldScores,
		CompositeScore: r.CompositeScore,
		LLMScore:       r.LLMScore,
		MatchedSkills:  r.MatchedSkills,
		MissingSkills:  r.MissingSkills,
		Reason:         r.Reason,
		Degraded:       r.Degraded,
		ComputedAt:     r.ComputedAt,
	}
}

func toDTOs(rs []domain.MatchResult) []matchResultDTO {
	out := make([]matchResultDTO, len(rs))
	for i, r := range rs {
		out[i] = toDTO(r)
	}
	return out
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument)
	}
	if err := getValidator().Struct(dst); err != nil {
		verrs := map[string]string{}
		if ve, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range ve {
				verrs[strings.ToLower(fe.Field())] = fe.Tag()
			}
		}
		return fmt.Errorf("%w: validation failed (%v)", domain.ErrInvalidArgument, verrs)
	}
	return nil
}

func (s *Server) rankParams(topK, explainTopN *int) (int, int) {
	k := s.Cfg.TopKDefault
	if topK != nil {
		k = *topK
	}
	n := s.Cfg.ExplainTopNDefault
	if explainTopN != nil {
		n = *explainTopN
	}
	return k, n
}

// MatchCandidatesHandler ranks stored resumes for one posting.
func (s *Server) MatchCandidatesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req candidatesRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		topK, explainTopN := s.rankParams(req.TopK, req.ExplainTopN)
		results, err := s.Matcher.RankResumesForPosting(r.Context(), req.PostingID, topK, explainTopN)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": toDTOs(results)})
	}
}

// MatchJobsHandler ranks stored postings for one resume.
func (s *Server) MatchJobsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req jobsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		topK, explainTopN := s.rankParams(req.TopK, req.ExplainTopN)
		results, err := s.Matcher.RankPostingsForResume(r.Context(), req.ResumeID, topK, explainTopN)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": toDTOs(results)})
	}
}

// RecomputeHandler forces a fresh computation for one pair.
func (s *Server) RecomputeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req recomputeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		res, err := s.Matcher.Recompute(r.Context(), req.ResumeID, req.PostingID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, toDTO(res))
	}
}

// MatchesByResumeHandler lists cached results for a resume.
func (s *Server) MatchesByResumeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			writeError(w, r, fmt.Errorf("%w: id missing", domain.ErrInvalidArgument), nil)
			return
		}
		results, err := s.Matcher.ResultsForResume(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": toDTOs(results)})
	}
}

// MatchesByPostingHandler lists cached results for a posting.
func (s *Server) MatchesByPostingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			writeError(w, r, fmt.Errorf("%w: id missing", domain.ErrInvalidArgument), nil)
			return
		}
		results, err := s.Matcher.ResultsForPosting(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": toDTOs(results)})
	}
}

// ReadyzHandler reports dependency readiness. Unconfigured checks pass.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	checks := map[string]func(ctx context.Context) error{
		"db":     s.DBCheck,
		"redis":  s.RedisCheck,
		"qdrant": s.QdrantCheck,
		"tika":   s.TikaCheck,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		status := http.StatusOK
		out := make(map[string]string, len(checks))
		for name, check := range checks {
			if check == nil {
				out[name] = "skipped"
				continue
			}
			if err := check(ctx); err != nil {
				out[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			out[name] = "ok"
		}
		writeJSON(w, status, map[string]any{"checks": out})
	}
}
