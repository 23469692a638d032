package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/uitchat/admissions-rag/internal/core/domain"
	"github.com/uitchat/admissions-rag/internal/core/ports"
	"github.com/uitchat/admissions-rag/internal/observability/metrics"
)

// Pinger is a readiness-checkable dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterConfig carries the adapter-level knobs.
type RouterConfig struct {
	Service           string
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

type Router struct {
	chat      ports.ChatService
	retrieval ports.RetrievalService
	queue     ports.IngestQueue
	pingers   map[string]Pinger
	metrics   *metrics.HTTPServerMetrics
	cfg       RouterConfig
}

func NewRouter(
	chat ports.ChatService,
	retrieval ports.RetrievalService,
	queue ports.IngestQueue,
	pingers map[string]Pinger,
	m *metrics.HTTPServerMetrics,
	cfg RouterConfig,
) *Router {
	if cfg.Service == "" {
		cfg.Service = "api"
	}
	return &Router{
		chat:      chat,
		retrieval: retrieval,
		queue:     queue,
		pingers:   pingers,
		metrics:   m,
		cfg:       cfg,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/readyz", rt.readyz)
	mux.HandleFunc("/v1/chat", rt.postChat)
	mux.HandleFunc("/v1/conversations", rt.listConversations)
	mux.HandleFunc("/v1/conversations/", rt.getConversation)
	mux.HandleFunc("/v1/feedback", rt.postFeedback)
	mux.HandleFunc("/v1/search", rt.postSearch)
	mux.HandleFunc("/v1/search/compare", rt.postSearchCompare)
	mux.HandleFunc("/v1/admin/ingest", rt.postIngest)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.cfg.RateLimitEnabled {
		handler = rateLimitMiddleware(handler, rt.cfg.RateLimitRequests, rt.cfg.RateLimitWindow)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.cfg.Service, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string, len(rt.pingers))
	status := http.StatusOK
	for name, pinger := range rt.pingers {
		if err := pinger.Ping(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	writeJSON(w, status, map[string]any{"checks": checks})
}

func (rt *Router) postChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Query          string `json:"query"`
		ConversationID string `json:"conversation_id"`
		UserID         string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	start := time.Now()
	result, err := rt.chat.Ask(r.Context(), req.Query, req.ConversationID, req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	rt.observeChat(result, time.Since(start))
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) observeChat(result *domain.ChatResult, duration time.Duration) {
	if rt.metrics == nil {
		return
	}

	retrieved, _ := result.Metadata["num_documents_retrieved"].(int)
	outcome := "answered"
	if reason, _ := result.Metadata["reason"].(string); reason == "no_context_found" {
		outcome = "no_context"
	} else if _, faulted := result.Metadata["error"]; faulted {
		outcome = "fault"
	}
	rt.metrics.RecordPipelineRun(rt.cfg.Service, outcome, retrieved, duration)

	if degraded, ok := result.Metadata["rerank_warning"]; ok && degraded != "" {
		rt.metrics.RecordRerankDegradation(rt.cfg.Service)
	}
	if fallback, _ := result.Metadata["fallback_used"].(bool); fallback {
		rt.metrics.RecordFallbackAnswer(rt.cfg.Service)
	}
	if usage, ok := result.Metadata["tokens_used"].(domain.TokenUsage); ok {
		model, _ := result.Metadata["generation_model"].(string)
		rt.metrics.RecordTokenUsage(rt.cfg.Service, model, usage.Prompt, usage.Completion)
	}
}

func (rt *Router) listConversations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	summaries, err := rt.chat.Conversations(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if summaries == nil {
		summaries = []domain.ConversationSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": summaries})
}

func (rt *Router) getConversation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/conversations/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "conversation id is required"})
		return
	}

	messages, err := rt.chat.History(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversation_id": id, "messages": messages})
}

func (rt *Router) postFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		ConversationID string `json:"conversation_id"`
		MessageID      string `json:"message_id"`
		Rating         int    `json:"rating"`
		Comment        string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	fb, err := rt.chat.SubmitFeedback(r.Context(), domain.Feedback{
		ConversationID: req.ConversationID,
		MessageID:      req.MessageID,
		Rating:         req.Rating,
		Comment:        req.Comment,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, fb)
}

func (rt *Router) postSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Query     string            `json:"query"`
		TopK      int               `json:"top_k"`
		Filters   map[string]string `json:"filters"`
		UseRerank *bool             `json:"use_reranker"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	useRerank := true
	if req.UseRerank != nil {
		useRerank = *req.UseRerank
	}
	candidates, err := rt.retrieval.Retrieve(r.Context(), req.Query, req.TopK, req.Filters, useRerank)
	if err != nil && !(domain.IsKind(err, domain.ErrRerank) && len(candidates) > 0) {
		writeError(w, err)
		return
	}
	if candidates == nil {
		candidates = []domain.Candidate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": req.Query, "results": candidates})
}

func (rt *Router) postSearchCompare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Query string `json:"query"`
		TopK  int    `json:"top_k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	original, reranked, rerankMetrics, err := rt.retrieval.RetrieveWithComparison(r.Context(), req.Query, req.TopK)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":    req.Query,
		"original": original,
		"reranked": reranked,
		"metrics":  rerankMetrics,
	})
}

func (rt *Router) postIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Path     string `json:"path"`
		Recreate bool   `json:"recreate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "path is required"})
		return
	}

	job := domain.IngestJob{Path: req.Path, Recreate: req.Recreate}
	if err := rt.queue.PublishIngestJob(r.Context(), job); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "queued", "path": req.Path})
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
