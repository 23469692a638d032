package ports

import (
	"context"

	"github.com/uitchat/admissions-rag/internal/core/domain"
)

// QueryEncoder turns text into fixed-dimension vectors. The vector dimension
// must match the dimension stored in the search index.
type QueryEncoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	EncodeQuery(ctx context.Context, text string) ([]float32, error)
}

// SearchIndex is the remote index service consumed through its fused-query
// contract: one weighted lexical clause plus one weighted vector clause,
// optional equality filters, bounded size.
type SearchIndex interface {
	FusedSearch(ctx context.Context, queryText string, queryVector []float32, size int, filters domain.SearchFilters) ([]domain.Candidate, error)
	BulkIndex(ctx context.Context, records []domain.QARecord, vectors [][]float32) (int, error)
	EnsureIndex(ctx context.Context, recreate bool) error
	Ping(ctx context.Context) error
}

// PairwiseScorer returns one relevance score per (query, passage) pair, in
// input order, from a single batched call.
type PairwiseScorer interface {
	ScorePairs(ctx context.Context, query string, passages []string) ([]float64, error)
	ModelID() string
}

// ChatModel is the generation service: ordered role-tagged messages in,
// generated text plus finish reason and token usage out.
type ChatModel interface {
	Complete(ctx context.Context, messages []domain.Turn, temperature float64, maxTokens int) (domain.GenerationOutcome, error)
	ModelID() string
}

// ConversationStore persists chat turns and serves the bounded history window.
type ConversationStore interface {
	RecentTurns(ctx context.Context, conversationID string, limit int) ([]domain.Turn, error)
	AppendExchange(ctx context.Context, conversationID, userID string, userMsg, assistantMsg domain.ConversationMessage) error
	Messages(ctx context.Context, conversationID string) ([]domain.ConversationMessage, error)
	ListConversations(ctx context.Context, userID string, limit int) ([]domain.ConversationSummary, error)
	Ping(ctx context.Context) error
}

// FeedbackStore persists message ratings.
type FeedbackStore interface {
	SaveFeedback(ctx context.Context, fb domain.Feedback) error
}

// IngestQueue carries ingestion jobs from the API to the worker.
type IngestQueue interface {
	PublishIngestJob(ctx context.Context, job domain.IngestJob) error
	SubscribeIngestJobs(ctx context.Context, handler func(context.Context, domain.IngestJob) error) error
}

// DatasetReader loads QA records from a dataset file.
type DatasetReader interface {
	Read(path string) ([]domain.QARecord, error)
}

// GenerationAuditor durably records every generation request/response pair,
// successful or not. Implementations must never fail the caller.
type GenerationAuditor interface {
	AuditRequest(conversationID, query string, candidates []domain.Candidate, model string, temperature float64, maxTokens int) string
	AuditResponse(requestID, conversationID, answer string, usage domain.TokenUsage, success bool)
	AuditError(conversationID, errorType, message string)
}
