package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/uitchat/admissions-rag/internal/core/domain"
	"github.com/uitchat/admissions-rag/internal/core/ports"
)

// Reranker reorders fused-search candidates with a cross-encoder. All pairs
// of one request are scored in a single batched call so candidate ordering
// inside the batch cannot drift.
type Reranker struct {
	scorer  ports.PairwiseScorer
	enabled bool
	topN    int
}

func NewReranker(scorer ports.PairwiseScorer, enabled bool, topN int) *Reranker {
	if topN <= 0 {
		topN = 5
	}
	return &Reranker{scorer: scorer, enabled: enabled, topN: topN}
}

func (r *Reranker) Enabled() bool {
	return r.enabled && r.scorer != nil
}

func (r *Reranker) ModelID() string {
	if r.scorer == nil {
		return ""
	}
	return r.scorer.ModelID()
}

// Rerank scores (query, passage) pairs and returns the top-n candidates in
// descending reranker-score order. Ties keep their pre-rerank order. When
// reranking is disabled the input is truncated unchanged.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []domain.Candidate, topN int) ([]domain.Candidate, error) {
	if topN <= 0 {
		topN = r.topN
	}
	if len(candidates) == 0 {
		return candidates, nil
	}
	if !r.Enabled() {
		if topN > len(candidates) {
			topN = len(candidates)
		}
		return candidates[:topN], nil
	}

	scored, err := r.score(ctx, query, candidates)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return *scored[i].RerankerScore > *scored[j].RerankerScore
	})
	if topN > len(scored) {
		topN = len(scored)
	}
	return scored[:topN], nil
}

// RerankWithComparison reranks and additionally reports how the ordering
// moved relative to the fused-search ranking.
func (r *Reranker) RerankWithComparison(ctx context.Context, query string, candidates []domain.Candidate, topN int) ([]domain.Candidate, domain.RerankMetrics, error) {
	reranked, err := r.Rerank(ctx, query, candidates, topN)
	if err != nil {
		return nil, domain.RerankMetrics{}, err
	}

	metrics := domain.RerankMetrics{
		TotalCandidates: len(candidates),
		TopNReturned:    len(reranked),
		RerankerEnabled: r.Enabled(),
		RerankerModel:   r.ModelID(),
	}
	if !r.Enabled() || len(reranked) == 0 {
		return reranked, metrics, nil
	}

	var sum float64
	metrics.ScoreMin = *reranked[0].RerankerScore
	metrics.ScoreMax = *reranked[0].RerankerScore
	for newRank, c := range reranked {
		score := *c.RerankerScore
		sum += score
		if score < metrics.ScoreMin {
			metrics.ScoreMin = score
		}
		if score > metrics.ScoreMax {
			metrics.ScoreMax = score
		}
		metrics.RankChanges = append(metrics.RankChanges, domain.RankChange{
			DocID:         c.ID,
			OriginalRank:  c.OriginalRank,
			NewRank:       newRank + 1,
			RankChange:    c.OriginalRank - (newRank + 1),
			RerankerScore: score,
		})
	}
	metrics.ScoreMean = sum / float64(len(reranked))
	return reranked, metrics, nil
}

func (r *Reranker) score(ctx context.Context, query string, candidates []domain.Candidate) ([]domain.Candidate, error) {
	passages := make([]string, len(candidates))
	for i, c := range candidates {
		passages[i] = strings.TrimSpace(c.Question + " " + c.Context)
	}

	scores, err := r.scorer.ScorePairs(ctx, query, passages)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRerank, "score pairs", err)
	}
	if len(scores) != len(candidates) {
		return nil, domain.WrapError(domain.ErrRerank, "score pairs",
			fmt.Errorf("got %d scores for %d candidates", len(scores), len(candidates)))
	}

	scored := make([]domain.Candidate, len(candidates))
	copy(scored, candidates)
	for i := range scored {
		s := scores[i]
		scored[i].RerankerScore = &s
		scored[i].OriginalRank = i + 1
	}
	return scored, nil
}
