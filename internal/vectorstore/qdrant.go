package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// QdrantStore implements Store against the Qdrant REST API.
type QdrantStore struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewQdrantStore creates a Qdrant-backed store
func NewQdrantStore(url, apiKey string) *QdrantStore {
	return &QdrantStore{
		baseURL: strings.TrimRight(url, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 20 * time.Second},
	}
}

func (s *QdrantStore) EnsureCollection(ctx context.Context, name string, dims int) error {
	_, err := s.doRequest(ctx, http.MethodGet, "/collections/"+name, nil)
	if err == nil {
		return nil
	}
	req := map[string]any{
		"vectors": map[string]any{
			"size":     dims,
			"distance": "Cosine",
		},
	}
	_, err = s.doRequest(ctx, http.MethodPut, "/collections/"+name, req)
	return err
}

func (s *QdrantStore) Upsert(ctx context.Context, collection string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		payload := make(map[string]any, len(rec.Metadata)+1)
		for k, v := range recordMetadata(rec) {
			payload[k] = v
		}
		payload["document"] = rec.Document
		points = append(points, map[string]any{
			"id":      rec.ID,
			"vector":  rec.Vector,
			"payload": payload,
		})
	}
	req := map[string]any{"points": points}
	_, err := s.doRequest(ctx, http.MethodPut, "/collections/"+collection+"/points?wait=true", req)
	return err
}

func (s *QdrantStore) Query(ctx context.Context, collection string, vector []float32, k int) ([]Match, error) {
	if k <= 0 {
		k = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	data, err := s.doRequest(ctx, http.MethodPost, "/collections/"+collection+"/points/search", req)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
		}
		return nil, err
	}
	var parsed struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse qdrant search response: %w", err)
	}
	matches := make([]Match, 0, len(parsed.Result))
	for _, item := range parsed.Result {
		payload := item.Payload
		document, _ := payload["document"].(string)
		metadata := make(map[string]any, len(payload))
		for key, val := range payload {
			if key == "document" {
				continue
			}
			metadata[key] = val
		}
		matches = append(matches, Match{
			ID:       fmt.Sprintf("%v", item.ID),
			Document: document,
			Metadata: metadata,
			// Qdrant reports cosine similarity; convert to the
			// lower-is-closer distance the callers expect.
			Distance: 1 - item.Score,
		})
	}
	return matches, nil
}

func (s *QdrantStore) Count(ctx context.Context, collection string) (int, error) {
	data, err := s.doRequest(ctx, http.MethodPost, "/collections/"+collection+"/points/count",
		map[string]any{"exact": true})
	if err != nil {
		if isNotFound(err) {
			return 0, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
		}
		return 0, err
	}
	var parsed struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return 0, fmt.Errorf("parse qdrant count response: %w", err)
	}
	return parsed.Result.Count, nil
}

func (s *QdrantStore) Close() error {
	return nil
}

type qdrantStatusError struct {
	StatusCode int
	Body       string
}

func (e *qdrantStatusError) Error() string {
	return fmt.Sprintf("qdrant status %d: %s", e.StatusCode, e.Body)
}

func isNotFound(err error) bool {
	statusErr, ok := err.(*qdrantStatusError)
	return ok && statusErr.StatusCode == http.StatusNotFound
}

func (s *QdrantStore) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		buf = bytes.NewBuffer(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &qdrantStatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}
	return data, nil
}
