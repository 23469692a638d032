package domain

// SearchFilters are exact-match metadata constraints ANDed together at the
// index-service level.
type SearchFilters map[string]string

// Candidate is one retrieved QA passage with its scores and provenance.
// Fields from the index are immutable after retrieval; the reranker may add
// RerankerScore and OriginalRank in place.
type Candidate struct {
	ID                string `json:"id"`
	Question          string `json:"question"`
	Context           string `json:"context"`
	Article           string `json:"article"`
	Document          string `json:"document"`
	ExtractiveAnswer  string `json:"extractive_answer"`
	AbstractiveAnswer string `json:"abstractive_answer"`

	// Score is the fused relevance score computed by the index service.
	Score float64 `json:"score"`

	// RerankerScore is set only after the candidate passed through the
	// reranker; nil means "not reranked".
	RerankerScore *float64 `json:"reranker_score,omitempty"`
	// OriginalRank is the 1-based position before reranking; zero when the
	// candidate was never reranked.
	OriginalRank int `json:"original_rank,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// AuthoritativeScore returns the score that orders the candidate in its
// current stage: reranker score post-rerank, fused score otherwise.
func (c Candidate) AuthoritativeScore() float64 {
	if c.RerankerScore != nil {
		return *c.RerankerScore
	}
	return c.Score
}

// RankChange is the displacement of one candidate caused by reranking.
// Positive values mean the candidate moved up.
type RankChange struct {
	DocID         string  `json:"doc_id"`
	OriginalRank  int     `json:"original_rank"`
	NewRank       int     `json:"new_rank"`
	RankChange    int     `json:"rank_change"`
	RerankerScore float64 `json:"reranker_score"`
}

// RerankMetrics compares the reranked ordering against the fused ordering.
type RerankMetrics struct {
	TotalCandidates int          `json:"total_candidates"`
	TopNReturned    int          `json:"top_n_returned"`
	RerankerEnabled bool         `json:"reranker_enabled"`
	RerankerModel   string       `json:"reranker_model,omitempty"`
	ScoreMin        float64      `json:"score_min"`
	ScoreMax        float64      `json:"score_max"`
	ScoreMean       float64      `json:"score_mean"`
	RankChanges     []RankChange `json:"rank_changes,omitempty"`
}

// SourceSummary is the provenance view of a candidate surfaced to callers.
type SourceSummary struct {
	Question      string   `json:"question"`
	Article       string   `json:"article"`
	Document      string   `json:"document"`
	Score         float64  `json:"score"`
	RerankerScore *float64 `json:"reranker_score,omitempty"`
}

// Summary projects the candidate onto its user-facing provenance fields.
func (c Candidate) Summary() SourceSummary {
	return SourceSummary{
		Question:      c.Question,
		Article:       c.Article,
		Document:      c.Document,
		Score:         c.Score,
		RerankerScore: c.RerankerScore,
	}
}
