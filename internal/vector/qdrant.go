package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hyperjump/tanya/internal/fileid"
	"github.com/hyperjump/tanya/internal/models"
)

var _ Store = (*QdrantStore)(nil)

// QdrantOptions configures a QdrantStore.
type QdrantOptions struct {
	APIKey           string
	CollectionPrefix string
	Timeout          time.Duration
}

// QdrantStore implements Store over Qdrant's REST API with one collection per namespace.
// Only collections carrying the prefix are considered namespaces.
type QdrantStore struct {
	endpoint   string
	apiKey     string
	prefix     string
	dimensions int
	client     *http.Client

	mu    sync.Mutex
	known map[string]bool
}

type qdrantPoint struct {
	ID      string        `json:"id"`
	Vector  []float32     `json:"vector"`
	Payload qdrantPayload `json:"payload"`
}

type qdrantPayload struct {
	ChunkID string `json:"chunk_id"`
	Text    string `json:"text"`
	PDFName string `json:"pdf_name"`
	Index   int    `json:"chunk_index"`
}

// NewQdrantStore creates a store talking to the Qdrant instance at endpoint.
func NewQdrantStore(endpoint string, dimensions int, opts QdrantOptions) (*QdrantStore, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("qdrant endpoint is required")
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	return &QdrantStore{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     opts.APIKey,
		prefix:     opts.CollectionPrefix,
		dimensions: dimensions,
		client:     &http.Client{Timeout: opts.Timeout},
		known:      make(map[string]bool),
	}, nil
}

// Type returns the store type identifier.
func (q *QdrantStore) Type() string {
	return string(StoreTypeQdrant)
}

func (q *QdrantStore) collectionURL(namespace string, parts ...string) string {
	u := q.endpoint + "/collections/" + url.PathEscape(q.prefix+namespace)
	if len(parts) > 0 {
		u += "/" + strings.Join(parts, "/")
	}
	return u
}

// do sends a JSON request and decodes a JSON response into out when out is non-nil.
// It returns the HTTP status so callers can treat 404 specially.
func (q *QdrantStore) do(ctx context.Context, method, u string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
	resp, err := q.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return resp.StatusCode, fmt.Errorf("qdrant %s %s: %s %s", method, u, resp.Status, strings.TrimSpace(string(b)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode qdrant response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// ensureCollection creates the namespace's collection on first use.
func (q *QdrantStore) ensureCollection(ctx context.Context, namespace string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.known[namespace] {
		return nil
	}
	status, err := q.do(ctx, http.MethodGet, q.collectionURL(namespace), nil, nil)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		body := map[string]any{
			"vectors": map[string]any{
				"size":     q.dimensions,
				"distance": "Cosine",
			},
		}
		if _, err := q.do(ctx, http.MethodPut, q.collectionURL(namespace), body, nil); err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
	}
	q.known[namespace] = true
	return nil
}

func (q *QdrantStore) forget(namespace string) {
	q.mu.Lock()
	delete(q.known, namespace)
	q.mu.Unlock()
}

// Upsert writes records as points keyed by a UUID derived from namespace and chunk id.
func (q *QdrantStore) Upsert(ctx context.Context, namespace string, records []Record) error {
	if err := checkDimensions(records, q.dimensions); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	if err := q.ensureCollection(ctx, namespace); err != nil {
		return fmt.Errorf("%w: %v", models.ErrVectorStore, err)
	}
	points := make([]qdrantPoint, 0, len(records))
	for _, r := range records {
		points = append(points, qdrantPoint{
			ID:     fileid.PointID(namespace, r.Chunk.ID),
			Vector: r.Vector,
			Payload: qdrantPayload{
				ChunkID: r.Chunk.ID,
				Text:    r.Chunk.Text,
				PDFName: r.Chunk.PDFName,
				Index:   r.Chunk.Index,
			},
		})
	}
	status, err := q.do(ctx, http.MethodPut, q.collectionURL(namespace, "points")+"?wait=true", map[string]any{"points": points}, nil)
	if err == nil && status == http.StatusNotFound {
		q.forget(namespace)
		err = fmt.Errorf("collection for %s disappeared during upsert", namespace)
	}
	if err != nil {
		return fmt.Errorf("%w: upsert into %s: %v", models.ErrVectorStore, namespace, err)
	}
	return nil
}

// Query searches the namespace's collection. A missing collection yields no matches.
func (q *QdrantStore) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]models.Match, error) {
	if len(vector) != q.dimensions {
		return nil, dimensionError(len(vector), q.dimensions)
	}
	matches := []models.Match{}
	if topK <= 0 {
		return matches, nil
	}
	var result struct {
		Result []struct {
			Score   float64       `json:"score"`
			Payload qdrantPayload `json:"payload"`
		} `json:"result"`
	}
	body := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	status, err := q.do(ctx, http.MethodPost, q.collectionURL(namespace, "points", "search"), body, &result)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: query %s: %v", models.ErrVectorStore, namespace, err)
	}
	if status == http.StatusNotFound {
		return matches, nil
	}
	for _, r := range result.Result {
		matches = append(matches, models.Match{
			ID:        r.Payload.ChunkID,
			Text:      r.Payload.Text,
			PDFName:   r.Payload.PDFName,
			Namespace: namespace,
			Score:     r.Score,
		})
	}
	return topMatches(matches, topK), nil
}

// ListNamespaces lists prefixed collections, with the prefix stripped.
func (q *QdrantStore) ListNamespaces(ctx context.Context) ([]string, error) {
	var result struct {
		Result struct {
			Collections []struct {
				Name string `json:"name"`
			} `json:"collections"`
		} `json:"result"`
	}
	if _, err := q.do(ctx, http.MethodGet, q.endpoint+"/collections", nil, &result); err != nil {
		return nil, fmt.Errorf("%w: list collections: %v", models.ErrVectorStore, err)
	}
	names := []string{}
	for _, c := range result.Result.Collections {
		if ns, ok := strings.CutPrefix(c.Name, q.prefix); ok && ns != "" {
			names = append(names, ns)
		}
	}
	sort.Strings(names)
	return names, nil
}

// DeleteNamespace drops the namespace's collection.
func (q *QdrantStore) DeleteNamespace(ctx context.Context, namespace string) error {
	defer q.forget(namespace)
	var result struct {
		Result bool `json:"result"`
	}
	status, err := q.do(ctx, http.MethodDelete, q.collectionURL(namespace), nil, &result)
	if err != nil {
		return fmt.Errorf("%w: delete namespace %s: %v", models.ErrVectorStore, namespace, err)
	}
	if status == http.StatusNotFound || !result.Result {
		return fmt.Errorf("%w: %s", models.ErrNamespaceNotFound, namespace)
	}
	return nil
}

// DeleteDocument removes all points of pdfName from the namespace's collection and drops
// the collection once it is empty.
func (q *QdrantStore) DeleteDocument(ctx context.Context, namespace, pdfName string) error {
	if err := q.deletePoints(ctx, namespace, pdfName, nil); err != nil {
		return fmt.Errorf("%w: delete document %s/%s: %v", models.ErrVectorStore, namespace, pdfName, err)
	}
	if err := q.dropIfEmpty(ctx, namespace); err != nil {
		return fmt.Errorf("%w: delete document %s/%s: %v", models.ErrVectorStore, namespace, pdfName, err)
	}
	return nil
}

// ReplaceDocument upserts records and then prunes the points of pdfName that are not part
// of the new version. Qdrant has no multi-request transaction; a failed upsert leaves the
// previous version searchable.
func (q *QdrantStore) ReplaceDocument(ctx context.Context, namespace, pdfName string, records []Record) error {
	if err := q.Upsert(ctx, namespace, records); err != nil {
		return err
	}
	keep := make([]string, 0, len(records))
	for _, r := range records {
		keep = append(keep, fileid.PointID(namespace, r.Chunk.ID))
	}
	if err := q.deletePoints(ctx, namespace, pdfName, keep); err != nil {
		return fmt.Errorf("%w: prune document %s/%s: %v", models.ErrVectorStore, namespace, pdfName, err)
	}
	if len(records) == 0 {
		if err := q.dropIfEmpty(ctx, namespace); err != nil {
			return fmt.Errorf("%w: replace document %s/%s: %v", models.ErrVectorStore, namespace, pdfName, err)
		}
	}
	return nil
}

// deletePoints removes the points of pdfName whose ids are not in keep.
func (q *QdrantStore) deletePoints(ctx context.Context, namespace, pdfName string, keep []string) error {
	filter := map[string]any{
		"must": []any{
			map[string]any{"key": "pdf_name", "match": map[string]any{"value": pdfName}},
		},
	}
	if len(keep) > 0 {
		filter["must_not"] = []any{map[string]any{"has_id": keep}}
	}
	_, err := q.do(ctx, http.MethodPost, q.collectionURL(namespace, "points", "delete")+"?wait=true",
		map[string]any{"filter": filter}, nil)
	return err
}

func (q *QdrantStore) dropIfEmpty(ctx context.Context, namespace string) error {
	var result struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	status, err := q.do(ctx, http.MethodPost, q.collectionURL(namespace, "points", "count"),
		map[string]any{"exact": true}, &result)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound || result.Result.Count > 0 {
		return nil
	}
	defer q.forget(namespace)
	_, err = q.do(ctx, http.MethodDelete, q.collectionURL(namespace), nil, nil)
	return err
}

// Close releases idle connections.
func (q *QdrantStore) Close() error {
	q.client.CloseIdleConnections()
	return nil
}
