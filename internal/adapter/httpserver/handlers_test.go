package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/resume-match-engine/internal/adapter/httpserver"
	"github.com/fairyhunter13/resume-match-engine/internal/adapter/repo/memory"
	"github.com/fairyhunter13/resume-match-engine/internal/config"
	"github.com/fairyhunter13/resume-match-engine/internal/domain"
	"github.com/fairyhunter13/resume-match-engine/internal/evaluate"
	"github.com/fairyhunter13/resume-match-engine/internal/match"
	"github.com/fairyhunter13/resume-match-engine/internal/parse"
	"github.com/fairyhunter13/resume-match-engine/internal/usecase"
)

type stubEmbedProvider struct{ err error }

func (s stubEmbedProvider) Embed(_ domain.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

type fixedEvaluator struct{ reply string }

func (f fixedEvaluator) Evaluate(_ domain.Context, _ string) (string, error) {
	return f.reply, nil
}

const evalReply = `{"score": 90, "matched_skills": ["Go"], "missing_skills": ["Rust"], "reason": "Solid overlap."}`

func testConfig() config.Config {
	return config.Config{
		MaxUploadMB:        1,
		TopKDefault:        5,
		ExplainTopNDefault: 2,
	}
}

func newTestServer(t *testing.T) (*httpserver.Server, *memory.RecordStore, *memory.MatchStore) {
	t.Helper()
	records := memory.NewRecordStore()
	matches := memory.NewMatchStore()
	ingest := usecase.NewIngestService(&parse.Normalizer{}, match.NewEmbedder(stubEmbedProvider{}, 2), records, nil)
	orch := evaluate.New(fixedEvaluator{reply: evalReply}, time.Second, 400, 6000)
	matcher := usecase.NewMatchService(records, matches, orch, match.CanonicalSpec(), false)
	return httpserver.NewServer(testConfig(), ingest, matcher, nil), records, matches
}

func angleVecs(deg float64) domain.FieldVectorSet {
	rad := deg * math.Pi / 180
	vecs := make(domain.FieldVectorSet, 5)
	for _, f := range domain.CanonicalFields() {
		vecs[f] = []float32{float32(math.Cos(rad)), float32(math.Sin(rad))}
	}
	return vecs
}

func storeRecord(t *testing.T, records *memory.RecordStore, id, kind string, vecs domain.FieldVectorSet) {
	t.Helper()
	rec := domain.NewCanonicalRecord(id, kind)
	rec.Fields[domain.FieldFullText] = "full text of " + id
	require.NoError(t, records.PutRecord(context.Background(), rec, vecs))
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody(t, rr)
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok, "body: %s", rr.Body.String())
	return errObj["code"].(string)
}

func TestResumeUploadJSON(t *testing.T) {
	t.Parallel()
	srv, records, _ := newTestServer(t)

	payload := `{"text": "SUMMARY:\nBackend engineer.\nSKILLS:\nGo, Postgres\n"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/resumes", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.ResumeUploadHandler()(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decodeBody(t, rr)
	id, _ := body["id"].(string)
	assert.NotEmpty(t, id)
	assert.Equal(t, "resume", body["kind"])

	rec, _, err := records.GetRecord(context.Background(), id)
	require.NoError(t, err)
	assert.Contains(t, rec.RawSkills, "Go")
}

func TestUploadKeepsCallerID(t *testing.T) {
	t.Parallel()
	srv, records, _ := newTestServer(t)

	payload := `{"id": "post-7", "text": "REQUIREMENTS:\nGo, Kubernetes\n"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/postings", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.PostingUploadHandler()(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rec, _, err := records.GetRecord(context.Background(), "post-7")
	require.NoError(t, err)
	assert.Equal(t, domain.KindPosting, rec.Kind)
}

func TestUploadEmptyTextRejected(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/resumes", strings.NewReader(`{"text": ""}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.ResumeUploadHandler()(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "INVALID_ARGUMENT", errorCode(t, rr))
}

func multipartBody(t *testing.T, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	fw, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func TestResumeUploadMultipartText(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t)

	buf, ctype := multipartBody(t, "resume.txt", []byte("SUMMARY:\nPlatform engineer.\nSKILLS:\nGo\n"))
	req := httptest.NewRequest(http.MethodPost, "/v1/resumes", buf)
	req.Header.Set("Content-Type", ctype)
	rr := httptest.NewRecorder()
	srv.ResumeUploadHandler()(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decodeBody(t, rr)
	assert.NotEmpty(t, body["id"])
}

func TestUploadUnsupportedExtension(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t)

	buf, ctype := multipartBody(t, "resume.csv", []byte("a,b,c"))
	req := httptest.NewRequest(http.MethodPost, "/v1/resumes", buf)
	req.Header.Set("Content-Type", ctype)
	rr := httptest.NewRecorder()
	srv.ResumeUploadHandler()(rr, req)

	require.Equal(t, http.StatusUnsupportedMediaType, rr.Code)
	assert.Equal(t, "UNSUPPORTED_FORMAT", errorCode(t, rr))
}

func TestUploadMismatchedContent(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t)

	// A zip payload behind a .txt name fails MIME sniffing.
	buf, ctype := multipartBody(t, "resume.txt", []byte("PK\x03\x04\x14\x00\x00\x00\x08\x00"))
	req := httptest.NewRequest(http.MethodPost, "/v1/resumes", buf)
	req.Header.Set("Content-Type", ctype)
	rr := httptest.NewRecorder()
	srv.ResumeUploadHandler()(rr, req)

	require.Equal(t, http.StatusUnsupportedMediaType, rr.Code)
}

func TestMatchCandidatesRanksAndExplains(t *testing.T) {
	t.Parallel()
	srv, records, _ := newTestServer(t)
	storeRecord(t, records, "post-1", domain.KindPosting, angleVecs(0))
	for i, deg := range []float64{10, 30, 60} {
		storeRecord(t, records, fmt.Sprintf("r%d", i+1), domain.KindResume, angleVecs(deg))
	}

	payload := `{"posting_id": "post-1", "top_k": 2, "explain_top_n": 1}`
	req := httptest.NewRequest(http.MethodPost, "/v1/match/candidates", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.MatchCandidatesHandler()(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decodeBody(t, rr)
	results, ok := body["results"].([]any)
	require.True(t, ok)
	require.Len(t, results, 2)

	first := results[0].(map[string]any)
	second := results[1].(map[string]any)
	assert.Equal(t, "r1", first["resume_id"])
	assert.Equal(t, "r2", second["resume_id"])
	assert.Equal(t, float64(90), first["llm_score"])
	assert.Nil(t, second["llm_score"])
}

func TestMatchJobsUsesConfigDefaults(t *testing.T) {
	t.Parallel()
	srv, records, matches := newTestServer(t)
	storeRecord(t, records, "r1", domain.KindResume, angleVecs(0))
	storeRecord(t, records, "post-1", domain.KindPosting, angleVecs(15))

	req := httptest.NewRequest(http.MethodPost, "/v1/match/jobs", strings.NewReader(`{"resume_id": "r1"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.MatchJobsHandler()(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decodeBody(t, rr)
	results := body["results"].([]any)
	require.Len(t, results, 1)

	stored, err := matches.Get(context.Background(), "r1", "post-1")
	require.NoError(t, err)
	require.NotNil(t, stored.LLMScore)
	assert.Equal(t, 90, *stored.LLMScore)
}

func TestMatchCandidatesValidation(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/match/candidates", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.MatchCandidatesHandler()(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "INVALID_ARGUMENT", errorCode(t, rr))
}

func TestMatchCandidatesUnknownPosting(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/match/candidates", strings.NewReader(`{"posting_id": "ghost"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.MatchCandidatesHandler()(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rr))
}

func TestRecomputeHandler(t *testing.T) {
	t.Parallel()
	srv, records, matches := newTestServer(t)
	storeRecord(t, records, "r1", domain.KindResume, angleVecs(0))
	storeRecord(t, records, "post-1", domain.KindPosting, angleVecs(20))

	payload := `{"resume_id": "r1", "posting_id": "post-1"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/match/recompute", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.RecomputeHandler()(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decodeBody(t, rr)
	assert.Equal(t, "r1", body["resume_id"])
	assert.Equal(t, "post-1", body["posting_id"])
	assert.NotEmpty(t, body["id"])

	_, err := matches.Get(context.Background(), "r1", "post-1")
	require.NoError(t, err)
}

func TestRecomputeUnknownPair(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t)

	payload := `{"resume_id": "nope", "posting_id": "nada"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/match/recompute", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.RecomputeHandler()(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMatchesByResumeHandler(t *testing.T) {
	t.Parallel()
	srv, _, matches := newTestServer(t)
	res := domain.MatchResult{ID: "m1", ResumeID: "r1", PostingID: "post-1", CompositeScore: 0.9}
	require.NoError(t, matches.Put(context.Background(), res))

	req := httptest.NewRequest(http.MethodGet, "/v1/match/resume/r1", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "r1")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rr := httptest.NewRecorder()
	srv.MatchesByResumeHandler()(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	results := body["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "m1", results[0].(map[string]any)["id"])
}

func TestReadyzReportsFailures(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t)
	srv.DBCheck = func(_ context.Context) error { return nil }
	srv.QdrantCheck = func(_ context.Context) error { return errors.New("connection refused") }

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	srv.ReadyzHandler()(rr, req)

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	body := decodeBody(t, rr)
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "ok", checks["db"])
	assert.Equal(t, "skipped", checks["redis"])
	assert.Contains(t, checks["qdrant"], "refused")
}

func TestReadyzAllSkipped(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	srv.ReadyzHandler()(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
}
