package elastic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/uitchat/admissions-rag/internal/core/domain"
)

func TestFusedSearchBuildsHybridQuery(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/admissions_qa/_search" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"hits":{"hits":[
			{"_id":"qa_000001","_score":1.42,"_source":{"question":"Học phí?","context":"30 triệu","article":"Điều 5","document":"QC 2025","metadata":{"category":"hoc_phi"}}}
		]}}`))
	}))
	defer server.Close()

	client := New(server.URL, "admissions_qa", 0.3, 0.7, 3)
	filters := domain.SearchFilters{"category": "hoc_phi"}
	got, err := client.FusedSearch(context.Background(), "học phí", []float32{0.1, 0.2, 0.3}, 5, filters)
	if err != nil {
		t.Fatalf("FusedSearch() error = %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	if got[0].ID != "qa_000001" || got[0].Score != 1.42 || got[0].Question != "Học phí?" {
		t.Fatalf("unexpected candidate: %+v", got[0])
	}
	if got[0].Metadata["category"] != "hoc_phi" {
		t.Fatalf("metadata not decoded: %+v", got[0].Metadata)
	}

	if captured["size"] != float64(5) {
		t.Fatalf("unexpected size: %v", captured["size"])
	}
	boolQuery := captured["query"].(map[string]any)["bool"].(map[string]any)
	should := boolQuery["should"].([]any)
	if len(should) != 2 {
		t.Fatalf("expected lexical and vector clauses, got %d", len(should))
	}
	multiMatch := should[0].(map[string]any)["multi_match"].(map[string]any)
	if multiMatch["boost"] != 0.3 {
		t.Fatalf("unexpected lexical boost: %v", multiMatch["boost"])
	}
	scriptScore := should[1].(map[string]any)["script_score"].(map[string]any)
	if scriptScore["boost"] != 0.7 {
		t.Fatalf("unexpected vector boost: %v", scriptScore["boost"])
	}
	script := scriptScore["script"].(map[string]any)
	if !strings.Contains(script["source"].(string), "cosineSimilarity") {
		t.Fatalf("unexpected script: %v", script["source"])
	}
	if boolQuery["minimum_should_match"] != float64(1) {
		t.Fatalf("unexpected minimum_should_match: %v", boolQuery["minimum_should_match"])
	}
	filter := boolQuery["filter"].([]any)[0].(map[string]any)["term"].(map[string]any)
	if filter["metadata.category"] != "hoc_phi" {
		t.Fatalf("unexpected filter: %v", filter)
	}
}

func TestFusedSearchErrorIncludesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "search_phase_execution_exception", http.StatusBadRequest)
	}))
	defer server.Close()

	client := New(server.URL, "admissions_qa", 0.3, 0.7, 3)
	_, err := client.FusedSearch(context.Background(), "q", []float32{0.1}, 5, nil)
	if err == nil || !strings.Contains(err.Error(), "search_phase_execution_exception") {
		t.Fatalf("expected body in error, got %v", err)
	}
}

func TestBulkIndexCountsAcceptedDocs(t *testing.T) {
	var bulkBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/_bulk" {
			http.NotFound(w, r)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		bulkBody = string(raw)
		_, _ = w.Write([]byte(`{"errors":true,"items":[
			{"index":{"status":201}},
			{"index":{"status":400,"error":{"type":"mapper_parsing_exception"}}}
		]}`))
	}))
	defer server.Close()

	client := New(server.URL, "admissions_qa", 0.3, 0.7, 2)
	records := []domain.QARecord{
		{Index: 1, Question: "Q1", Context: "C1"},
		{Index: 2, Question: "Q2", Context: "C2"},
	}
	vectors := [][]float32{{0.1, 0.2}, {0.3, 0.4}}

	indexed, err := client.BulkIndex(context.Background(), records, vectors)
	if err != nil {
		t.Fatalf("BulkIndex() error = %v", err)
	}
	if indexed != 1 {
		t.Fatalf("expected 1 accepted doc, got %d", indexed)
	}
	if !strings.Contains(bulkBody, `"_id":"qa_000001"`) {
		t.Fatalf("bulk body missing deterministic id: %s", bulkBody)
	}
	if !strings.Contains(bulkBody, `"question_embedding":[0.1,0.2]`) {
		t.Fatalf("bulk body missing embedding: %s", bulkBody)
	}
}

func TestBulkIndexVectorMismatch(t *testing.T) {
	client := New("http://localhost:9200", "admissions_qa", 0.3, 0.7, 2)
	_, err := client.BulkIndex(context.Background(), []domain.QARecord{{Index: 1}}, nil)
	if err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestEnsureIndexTreatsExistingAsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/admissions_qa" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"type":"resource_already_exists_exception"}}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, "admissions_qa", 0.3, 0.7, 2)
	if err := client.EnsureIndex(context.Background(), false); err != nil {
		t.Fatalf("EnsureIndex() error = %v", err)
	}
}

func TestEnsureIndexRecreateDeletesFirst(t *testing.T) {
	var deleted bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodDelete && r.URL.Path == "/admissions_qa":
			deleted = true
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPut && r.URL.Path == "/admissions_qa":
			if !deleted {
				t.Error("index created before delete")
			}
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "admissions_qa", 0.3, 0.7, 2)
	if err := client.EnsureIndex(context.Background(), true); err != nil {
		t.Fatalf("EnsureIndex() error = %v", err)
	}
	if !deleted {
		t.Fatal("expected delete before create")
	}
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/_cluster/health" {
			_, _ = w.Write([]byte(`{"status":"green"}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, "admissions_qa", 0.3, 0.7, 2)
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}
