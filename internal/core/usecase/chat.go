package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/uitchat/admissions-rag/internal/core/domain"
	"github.com/uitchat/admissions-rag/internal/core/ports"
)

var (
	errEmptyConversationID = errors.New("empty conversation id")
	errConversationUnknown = errors.New("conversation has no messages")
	errRatingOutOfRange    = errors.New("rating must be between 1 and 5")
	errFeedbackTarget      = errors.New("conversation id and message id are required")
)

// ChatUseCase wraps the pipeline with conversation identity, history loading
// and persistence. Storage problems never fail a chat turn: history load
// errors degrade to an empty history and save errors surface as a metadata
// warning on the returned result.
type ChatUseCase struct {
	pipeline      *Pipeline
	store         ports.ConversationStore
	feedback      ports.FeedbackStore
	historyWindow int
	logger        *slog.Logger
}

func NewChatUseCase(pipeline *Pipeline, store ports.ConversationStore, feedback ports.FeedbackStore, historyWindow int, logger *slog.Logger) *ChatUseCase {
	if historyWindow <= 0 {
		historyWindow = 6
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatUseCase{pipeline: pipeline, store: store, feedback: feedback, historyWindow: historyWindow, logger: logger}
}

func (uc *ChatUseCase) Ask(ctx context.Context, query, conversationID, userID string) (*domain.ChatResult, error) {
	if conversationID == "" {
		conversationID = newID("conv")
	}

	var history []domain.Turn
	if uc.store != nil {
		turns, err := uc.store.RecentTurns(ctx, conversationID, uc.historyWindow)
		if err != nil {
			uc.logger.Warn("history load failed, continuing without history",
				"conversation_id", conversationID, "error", err)
		} else {
			history = turns
		}
	}

	pipelineResult := uc.pipeline.Run(ctx, query, history, conversationID)

	result := &domain.ChatResult{
		PipelineResult: pipelineResult,
		ConversationID: conversationID,
		MessageID:      newID("msg"),
		Timestamp:      time.Now().UTC(),
	}

	if uc.store != nil {
		if err := uc.persistExchange(ctx, result, query, userID); err != nil {
			uc.logger.Warn("conversation save failed",
				"conversation_id", conversationID, "error", err)
			result.Metadata["save_warning"] = "Conversation not saved to database"
		}
	}
	return result, nil
}

func (uc *ChatUseCase) persistExchange(ctx context.Context, result *domain.ChatResult, query, userID string) error {
	userMsg := domain.ConversationMessage{
		MessageID:      newID("msg"),
		ConversationID: result.ConversationID,
		Role:           "user",
		Content:        strings.TrimSpace(query),
		CreatedAt:      result.Timestamp,
	}
	assistantMsg := domain.ConversationMessage{
		MessageID:      result.MessageID,
		ConversationID: result.ConversationID,
		Role:           "assistant",
		Content:        result.Answer,
		Sources:        result.Sources,
		Metadata:       result.Metadata,
		CreatedAt:      result.Timestamp,
	}
	return uc.store.AppendExchange(ctx, result.ConversationID, userID, userMsg, assistantMsg)
}

func (uc *ChatUseCase) History(ctx context.Context, conversationID string) ([]domain.ConversationMessage, error) {
	if conversationID == "" {
		return nil, domain.WrapError(domain.ErrValidation, "history", errEmptyConversationID)
	}
	messages, err := uc.store.Messages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, domain.WrapError(domain.ErrNotFound, "history", errConversationUnknown)
	}
	return messages, nil
}

func (uc *ChatUseCase) Conversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	return uc.store.ListConversations(ctx, userID, 50)
}

func (uc *ChatUseCase) SubmitFeedback(ctx context.Context, fb domain.Feedback) (*domain.Feedback, error) {
	if fb.Rating < 1 || fb.Rating > 5 {
		return nil, domain.WrapError(domain.ErrValidation, "submit feedback", errRatingOutOfRange)
	}
	if fb.ConversationID == "" || fb.MessageID == "" {
		return nil, domain.WrapError(domain.ErrValidation, "submit feedback", errFeedbackTarget)
	}
	fb.FeedbackID = newID("feedback")
	fb.CreatedAt = time.Now().UTC()
	if err := uc.feedback.SaveFeedback(ctx, fb); err != nil {
		return nil, err
	}
	return &fb, nil
}

func newID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
