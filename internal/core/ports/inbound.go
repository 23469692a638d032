package ports

import (
	"context"

	"github.com/uitchat/admissions-rag/internal/core/domain"
)

// ChatService is the inbound contract for conversational question answering.
type ChatService interface {
	Ask(ctx context.Context, query, conversationID, userID string) (*domain.ChatResult, error)
	History(ctx context.Context, conversationID string) ([]domain.ConversationMessage, error)
	Conversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error)
	SubmitFeedback(ctx context.Context, fb domain.Feedback) (*domain.Feedback, error)
}

// RetrievalService is the inbound contract for raw retrieval, used by the
// debug search surface.
type RetrievalService interface {
	Retrieve(ctx context.Context, queryText string, topK int, filters domain.SearchFilters, useRerank bool) ([]domain.Candidate, error)
	RetrieveWithComparison(ctx context.Context, queryText string, topK int) ([]domain.Candidate, []domain.Candidate, domain.RerankMetrics, error)
}

// DatasetIngestor is the inbound contract for dataset indexing.
type DatasetIngestor interface {
	IngestFile(ctx context.Context, job domain.IngestJob) (*domain.IngestReport, error)
}
