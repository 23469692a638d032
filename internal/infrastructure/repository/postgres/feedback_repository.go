package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uitchat/admissions-rag/internal/core/domain"
)

type FeedbackRepository struct {
	db *sql.DB
}

func NewFeedbackRepository(db *sql.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

func (r *FeedbackRepository) SaveFeedback(ctx context.Context, fb domain.Feedback) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO feedback (feedback_id, conversation_id, message_id, rating, comment, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
`, fb.FeedbackID, fb.ConversationID, fb.MessageID, fb.Rating, fb.Comment, fb.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}
