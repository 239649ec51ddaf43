// Package qdrant persists per-field record vectors to a Qdrant
// collection over its HTTP API, for external similarity tooling.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/resume-match-engine/internal/domain"
)

// Client is a minimal Qdrant HTTP client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New constructs a Qdrant client with baseURL and optional apiKey.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// EnsureCollection creates the collection if it does not exist.
func (c *Client) EnsureCollection(ctx context.Context, name string, vectorSize int, distance string) error {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/collections/%s", c.baseURL, name), nil)
	c.setHeaders(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	payload := map[string]any{
		"vectors": map[string]any{"size": vectorSize, "distance": distance},
	}
	b, _ := json.Marshal(payload)
	req, _ = http.NewRequestWithContext(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s", c.baseURL, name), bytes.NewReader(b))
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	resp, err = c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant ensure create status %d", resp.StatusCode)
	}
	return nil
}

// UpsertPoints inserts or updates points in a collection. ids, vectors
// and payloads must have matching lengths.
func (c *Client) UpsertPoints(ctx context.Context, collection string, ids []string, vectors [][]float32, payloads []map[string]any) error {
	if len(vectors) != len(payloads) || len(vectors) != len(ids) {
		return fmt.Errorf("%w: ids, vectors and payloads length mismatch", domain.ErrInvalidArgument)
	}
	points := make([]map[string]any, 0, len(vectors))
	for i := range vectors {
		points = append(points, map[string]any{
			"id":      ids[i],
			"vector":  vectors[i],
			"payload": payloads[i],
		})
	}
	body := map[string]any{"points": points}
	b, _ := json.Marshal(body)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s/points", c.baseURL, collection), bytes.NewReader(b))
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant upsert status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}
}

// Store implements the vector store port on top of Client. One point is
// written per non-blank field, with a deterministic id so re-ingesting
// a record overwrites its previous points.
type Store struct {
	Client     *Client
	Collection string
}

// NewStore constructs a Store writing into the named collection.
func NewStore(c *Client, collection string) *Store {
	return &Store{Client: c, Collection: collection}
}

// UpsertRecord writes the record's field vectors with their field name,
// kind and content hash as payload.
func (s *Store) UpsertRecord(ctx domain.Context, rec domain.CanonicalRecord, vecs domain.FieldVectorSet) error {
	var ids []string
	var vectors [][]float32
	var payloads []map[string]any
	for _, field := range domain.CanonicalFields() {
		v, ok := vecs[field]
		if !ok || rec.Fields[field] == "" {
			continue
		}
		ids = append(ids, pointID(rec.ID, field))
		vectors = append(vectors, v)
		payloads = append(payloads, map[string]any{
			"record_id":    rec.ID,
			"kind":         rec.Kind,
			"field":        string(field),
			"content_hash": rec.ContentHash,
		})
	}
	if len(ids) == 0 {
		return nil
	}
	return s.Client.UpsertPoints(ctx, s.Collection, ids, vectors, payloads)
}

// pointID derives a stable UUID from the record id and field name.
func pointID(recordID string, field domain.Field) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(recordID+"/"+string(field))).String()
}
