// Package tika provides Apache Tika integration for text extraction.
//
// It extracts text content from uploaded resumes and postings in PDF,
// Word and plain-text formats, returning clean text for normalization.
package tika

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fairyhunter13/resume-match-engine/internal/domain"
	"github.com/fairyhunter13/resume-match-engine/pkg/textx"
)

// Client is a minimal Apache Tika HTTP client implementing domain.TextExtractor.
// It performs PUT /tika with Accept: text/plain to retrieve extracted text.
// See: https://tika.apache.org/server/ for API details.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New constructs a Tika client with a default timeout.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// ExtractPath uploads the file at path to the Tika server and returns plain text.
// Files outside the temp dir and working dir are refused.
func (c *Client) ExtractPath(ctx context.Context, fileName, path string) (string, error) {
	ct := contentTypeFromExt(filepath.Ext(fileName))
	if ct == "" {
		return "", fmt.Errorf("op=tika.extract: %w: %s", domain.ErrUnsupportedFormat, fileName)
	}
	openPath, err := constrainPath(path)
	if err != nil {
		return "", err
	}
	bfile, err := os.ReadFile(openPath)
	if err != nil {
		return "", err
	}

	u := c.baseURL
	if u == "" {
		u = "http://localhost:9998"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u+"/tika", bytes.NewReader(bfile))
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("Content-Type", ct)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("op=tika.extract: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("op=tika.extract: tika status %d", resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("op=tika.extract: %w", err)
	}
	return textx.SanitizeText(string(b)), nil
}

// constrainPath restricts reads to the temp dir or the working dir,
// where upload handlers write their files.
func constrainPath(path string) (string, error) {
	if os.Getenv("TIKA_ALLOW_ABSPATHS") == "1" {
		if abs, err := filepath.Abs(path); err == nil {
			return filepath.Clean(abs), nil
		}
		return path, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	abs = filepath.Clean(abs)
	wd, _ := os.Getwd()
	for _, base := range []string{filepath.Clean(os.TempDir()), filepath.Clean(wd)} {
		if abs == base || strings.HasPrefix(abs, base+string(os.PathSeparator)) {
			return abs, nil
		}
	}
	return "", fmt.Errorf("disallowed path: %s", abs)
}

func contentTypeFromExt(ext string) string {
	ext = strings.ToLower(ext)
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".txt", ".md":
		return "text/plain"
	default:
		if ext != "" {
			return mime.TypeByExtension(ext)
		}
	}
	return ""
}
