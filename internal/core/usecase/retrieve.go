package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/uitchat/admissions-rag/internal/core/domain"
	"github.com/uitchat/admissions-rag/internal/core/ports"
)

var errEmptyQuery = errors.New("empty query")

// RetrieverConfig bounds the two retrieval breadths. RerankTopK is the wide
// candidate pool handed to the reranker; TopN is the final result size.
type RetrieverConfig struct {
	TopN       int
	RerankTopK int
}

// HybridRetriever embeds the query, runs one fused lexical+vector search and
// optionally narrows the pool through the reranker.
type HybridRetriever struct {
	encoder  ports.QueryEncoder
	index    ports.SearchIndex
	reranker *Reranker
	cfg      RetrieverConfig
	logger   *slog.Logger
}

func NewHybridRetriever(encoder ports.QueryEncoder, index ports.SearchIndex, reranker *Reranker, cfg RetrieverConfig, logger *slog.Logger) *HybridRetriever {
	if cfg.TopN <= 0 {
		cfg.TopN = 5
	}
	if cfg.RerankTopK <= 0 {
		cfg.RerankTopK = 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HybridRetriever{encoder: encoder, index: index, reranker: reranker, cfg: cfg, logger: logger}
}

// Retrieve returns at most topK candidates for the query. With reranking on,
// a wider pool is fetched first and the reranker picks the final head. A
// reranker failure degrades to the fused order: the head of the pool is
// returned together with an ErrRerank-kinded error so callers can record the
// degradation without losing the answerable context.
func (r *HybridRetriever) Retrieve(ctx context.Context, queryText string, topK int, filters domain.SearchFilters, useRerank bool) ([]domain.Candidate, error) {
	queryText = strings.TrimSpace(queryText)
	if queryText == "" {
		return nil, domain.WrapError(domain.ErrValidation, "retrieve", errEmptyQuery)
	}
	if topK <= 0 {
		topK = r.cfg.TopN
	}
	useRerank = useRerank && r.reranker != nil && r.reranker.Enabled()

	fetchSize := topK
	if useRerank && r.cfg.RerankTopK > fetchSize {
		fetchSize = r.cfg.RerankTopK
	}

	pool, err := r.fusedSearch(ctx, queryText, fetchSize, filters)
	if err != nil {
		return nil, err
	}
	if !useRerank {
		if topK > len(pool) {
			topK = len(pool)
		}
		return pool[:topK], nil
	}

	reranked, err := r.reranker.Rerank(ctx, queryText, pool, topK)
	if err != nil {
		r.logger.Warn("rerank failed, keeping fused order", "error", err)
		if topK > len(pool) {
			topK = len(pool)
		}
		return pool[:topK], err
	}
	return reranked, nil
}

// RetrieveWithComparison returns the fused pool, the reranked head and the
// ordering-displacement metrics for the debug comparison surface.
func (r *HybridRetriever) RetrieveWithComparison(ctx context.Context, queryText string, topK int) ([]domain.Candidate, []domain.Candidate, domain.RerankMetrics, error) {
	queryText = strings.TrimSpace(queryText)
	if queryText == "" {
		return nil, nil, domain.RerankMetrics{}, domain.WrapError(domain.ErrValidation, "retrieve comparison", errEmptyQuery)
	}
	if topK <= 0 {
		topK = r.cfg.TopN
	}

	fetchSize := topK
	if r.cfg.RerankTopK > fetchSize {
		fetchSize = r.cfg.RerankTopK
	}
	pool, err := r.fusedSearch(ctx, queryText, fetchSize, nil)
	if err != nil {
		return nil, nil, domain.RerankMetrics{}, err
	}

	reranked, metrics, err := r.reranker.RerankWithComparison(ctx, queryText, pool, topK)
	if err != nil {
		return pool, nil, domain.RerankMetrics{}, err
	}
	return pool, reranked, metrics, nil
}

func (r *HybridRetriever) fusedSearch(ctx context.Context, queryText string, size int, filters domain.SearchFilters) ([]domain.Candidate, error) {
	vector, err := r.encoder.EncodeQuery(ctx, queryText)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, "encode query", err)
	}

	candidates, err := r.index.FusedSearch(ctx, queryText, vector, size, filters)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, "fused search", err)
	}
	return candidates, nil
}
