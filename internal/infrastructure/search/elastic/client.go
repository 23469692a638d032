package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/uitchat/admissions-rag/internal/core/domain"
)

// lexicalFields are the text fields of the fused query, with the question
// field boosted.
var lexicalFields = []string{"question^2", "context", "extractive_answer", "abstractive_answer"}

// sourceFields is the projection returned by searches.
var sourceFields = []string{
	"index", "question", "context", "article", "document",
	"extractive_answer", "abstractive_answer", "yes_no", "metadata",
}

// Client talks to Elasticsearch over its JSON REST API. One client serves one
// index.
type Client struct {
	baseURL      string
	index        string
	lexicalBoost float64
	vectorBoost  float64
	dimension    int
	httpClient   *http.Client
}

func New(baseURL, index string, lexicalBoost, vectorBoost float64, dimension int) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		index:        index,
		lexicalBoost: lexicalBoost,
		vectorBoost:  vectorBoost,
		dimension:    dimension,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// FusedSearch runs one bool/should query combining a boosted multi_match
// clause with a boosted cosine-similarity script_score clause. Filters become
// term clauses on metadata subfields and never affect scoring.
func (c *Client) FusedSearch(ctx context.Context, queryText string, queryVector []float32, size int, filters domain.SearchFilters) ([]domain.Candidate, error) {
	boolQuery := map[string]any{
		"should": []map[string]any{
			{
				"multi_match": map[string]any{
					"query":  queryText,
					"fields": lexicalFields,
					"boost":  c.lexicalBoost,
				},
			},
			{
				"script_score": map[string]any{
					"query": map[string]any{"match_all": map[string]any{}},
					"script": map[string]any{
						"source": "cosineSimilarity(params.query_vector, 'question_embedding') + 1.0",
						"params": map[string]any{"query_vector": queryVector},
					},
					"boost": c.vectorBoost,
				},
			},
		},
		"minimum_should_match": 1,
	}
	if len(filters) > 0 {
		terms := make([]map[string]any, 0, len(filters))
		for key, value := range filters {
			terms = append(terms, map[string]any{
				"term": map[string]any{"metadata." + key: value},
			})
		}
		boolQuery["filter"] = terms
	}

	reqBody := map[string]any{
		"size":    size,
		"query":   map[string]any{"bool": boolQuery},
		"_source": sourceFields,
	}

	var searchResp struct {
		Hits struct {
			Hits []struct {
				ID     string          `json:"_id"`
				Score  float64         `json:"_score"`
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := c.do(ctx, http.MethodPost, c.indexURL("_search"), reqBody, &searchResp); err != nil {
		return nil, err
	}

	candidates := make([]domain.Candidate, 0, len(searchResp.Hits.Hits))
	for _, hit := range searchResp.Hits.Hits {
		var src struct {
			Question          string         `json:"question"`
			Context           string         `json:"context"`
			Article           string         `json:"article"`
			Document          string         `json:"document"`
			ExtractiveAnswer  string         `json:"extractive_answer"`
			AbstractiveAnswer string         `json:"abstractive_answer"`
			Metadata          map[string]any `json:"metadata"`
		}
		if err := json.Unmarshal(hit.Source, &src); err != nil {
			return nil, fmt.Errorf("decode hit %s: %w", hit.ID, err)
		}
		candidates = append(candidates, domain.Candidate{
			ID:                hit.ID,
			Question:          src.Question,
			Context:           src.Context,
			Article:           src.Article,
			Document:          src.Document,
			ExtractiveAnswer:  src.ExtractiveAnswer,
			AbstractiveAnswer: src.AbstractiveAnswer,
			Score:             hit.Score,
			Metadata:          src.Metadata,
		})
	}
	return candidates, nil
}

// BulkIndex writes one batch of records through the _bulk endpoint and
// returns how many documents were accepted.
func (c *Client) BulkIndex(ctx context.Context, records []domain.QARecord, vectors [][]float32) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if len(records) != len(vectors) {
		return 0, fmt.Errorf("records/vectors mismatch: %d vs %d", len(records), len(vectors))
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, rec := range records {
		action := map[string]any{
			"index": map[string]any{
				"_index": c.index,
				"_id":    fmt.Sprintf("qa_%06d", rec.Index),
			},
		}
		doc := map[string]any{
			"index":              rec.Index,
			"question":           rec.Question,
			"context":            rec.Context,
			"article":            rec.Article,
			"document":           rec.Document,
			"extractive_answer":  rec.ExtractiveAnswer,
			"abstractive_answer": rec.AbstractiveAnswer,
			"yes_no":             rec.YesNo,
			"question_embedding": vectors[i],
		}
		if err := enc.Encode(action); err != nil {
			return 0, fmt.Errorf("encode bulk action: %w", err)
		}
		if err := enc.Encode(doc); err != nil {
			return 0, fmt.Errorf("encode bulk doc: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/_bulk", &buf)
	if err != nil {
		return 0, fmt.Errorf("create bulk request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-ndjson")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("bulk request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return 0, fmt.Errorf("bulk status: %s", resp.Status)
	}

	var bulkResp struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int `json:"status"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&bulkResp); err != nil {
		return 0, fmt.Errorf("decode bulk response: %w", err)
	}

	if !bulkResp.Errors {
		return len(records), nil
	}
	indexed := 0
	for _, item := range bulkResp.Items {
		for _, result := range item {
			if result.Status < 300 {
				indexed++
			}
		}
	}
	return indexed, nil
}

// EnsureIndex creates the index with its QA mapping. With recreate set, any
// existing index is dropped first.
func (c *Client) EnsureIndex(ctx context.Context, recreate bool) error {
	if recreate {
		if err := c.deleteIndex(ctx); err != nil {
			return err
		}
	}

	mapping := map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"index":              map[string]any{"type": "integer"},
				"question":           map[string]any{"type": "text"},
				"context":            map[string]any{"type": "text"},
				"article":            map[string]any{"type": "keyword"},
				"document":           map[string]any{"type": "keyword"},
				"extractive_answer":  map[string]any{"type": "text"},
				"abstractive_answer": map[string]any{"type": "text"},
				"yes_no":             map[string]any{"type": "keyword"},
				"metadata":           map[string]any{"type": "object"},
				"question_embedding": map[string]any{
					"type":       "dense_vector",
					"dims":       c.dimension,
					"index":      true,
					"similarity": "cosine",
				},
			},
		},
	}

	body, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/"+c.index, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create index request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 300 {
		return nil
	}
	// 400 resource_already_exists_exception means a previous run created it.
	if resp.StatusCode == http.StatusBadRequest {
		raw, _ := io.ReadAll(resp.Body)
		if strings.Contains(string(raw), "resource_already_exists_exception") {
			return nil
		}
		return fmt.Errorf("create index status %s: %s", resp.Status, string(raw))
	}
	return fmt.Errorf("create index status: %s", resp.Status)
}

func (c *Client) deleteIndex(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/"+c.index, nil)
	if err != nil {
		return fmt.Errorf("create delete request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete index: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete index status: %s", resp.Status)
	}
	return nil
}

// Ping checks cluster reachability for readiness probes.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/_cluster/health", nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cluster health: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("cluster health status: %s", resp.Status)
	}
	return nil
}

func (c *Client) indexURL(endpoint string) string {
	return fmt.Sprintf("%s/%s/%s", c.baseURL, c.index, endpoint)
}

func (c *Client) do(ctx context.Context, method, url string, reqBody any, out any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("elasticsearch request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("elasticsearch status %s: %s", resp.Status, string(raw))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
