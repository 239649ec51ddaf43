package tika

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/resume-match-engine/internal/domain"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestExtractPathPlainText(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/tika", r.URL.Path)
		assert.Equal(t, "text/plain", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "SUMMARY:\nA solid engineer.", string(body))
		_, _ = w.Write([]byte("SUMMARY:\nA solid engineer."))
	}))
	defer srv.Close()

	path := writeTempFile(t, "resume.txt", "SUMMARY:\nA solid engineer.")
	c := New(srv.URL)
	got, err := c.ExtractPath(context.Background(), "resume.txt", path)
	require.NoError(t, err)
	// Newlines survive extraction so heading segmentation still works.
	assert.Equal(t, "SUMMARY:\nA solid engineer.", got)
}

func TestExtractPathUnsupportedExtension(t *testing.T) {
	t.Parallel()
	path := writeTempFile(t, "resume", "binary")
	c := New("http://unused")
	_, err := c.ExtractPath(context.Background(), "resume", path)
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}

func TestExtractPathServerError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	path := writeTempFile(t, "resume.pdf", "%PDF-1.4")
	c := New(srv.URL)
	_, err := c.ExtractPath(context.Background(), "resume.pdf", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tika status 422")
}

func TestExtractPathDisallowedPath(t *testing.T) {
	t.Parallel()
	c := New("http://unused")
	_, err := c.ExtractPath(context.Background(), "passwd.txt", "/etc/passwd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disallowed path")
}

func TestContentTypeFromExt(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "application/pdf", contentTypeFromExt(".pdf"))
	assert.Equal(t, "text/plain", contentTypeFromExt(".md"))
	assert.Equal(t, "", contentTypeFromExt(""))
}
