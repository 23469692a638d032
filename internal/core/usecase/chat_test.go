package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/uitchat/admissions-rag/internal/core/domain"
)

type fakeConversationStore struct {
	turns      []domain.Turn
	turnsErr   error
	appendErr  error
	appended   []domain.ConversationMessage
	messages   []domain.ConversationMessage
	summaries  []domain.ConversationSummary
	lastConvID string
	lastLimit  int
}

func (f *fakeConversationStore) RecentTurns(_ context.Context, conversationID string, limit int) ([]domain.Turn, error) {
	f.lastConvID = conversationID
	f.lastLimit = limit
	if f.turnsErr != nil {
		return nil, f.turnsErr
	}
	return f.turns, nil
}

func (f *fakeConversationStore) AppendExchange(_ context.Context, _, _ string, userMsg, assistantMsg domain.ConversationMessage) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, userMsg, assistantMsg)
	return nil
}

func (f *fakeConversationStore) Messages(_ context.Context, _ string) ([]domain.ConversationMessage, error) {
	return f.messages, nil
}

func (f *fakeConversationStore) ListConversations(_ context.Context, _ string, _ int) ([]domain.ConversationSummary, error) {
	return f.summaries, nil
}

func (f *fakeConversationStore) Ping(context.Context) error { return nil }

type fakeFeedbackStore struct {
	saved []domain.Feedback
	err   error
}

func (f *fakeFeedbackStore) SaveFeedback(_ context.Context, fb domain.Feedback) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, fb)
	return nil
}

func newTestChat(store *fakeConversationStore, feedback *fakeFeedbackStore) *ChatUseCase {
	index := &fakeIndex{hits: manyHits(5)}
	model := &fakeChatModel{outcome: domain.GenerationOutcome{Answer: "câu trả lời"}}
	pipeline := newTestPipelineWith(index, model)
	return NewChatUseCase(pipeline, store, feedback, 6, nil)
}

func newTestPipelineWith(index *fakeIndex, model *fakeChatModel) *Pipeline {
	retriever := NewHybridRetriever(&fakeEncoder{}, index, NewReranker(nil, false, 5), RetrieverConfig{TopN: 5}, nil)
	generator := NewAnswerGenerator(model, nil, GeneratorConfig{Enabled: true}, nil)
	return NewPipeline(retriever, generator, 5, false, nil)
}

func TestAskGeneratesIdentity(t *testing.T) {
	store := &fakeConversationStore{}
	uc := newTestChat(store, nil)

	result, err := uc.Ask(context.Background(), "học phí bao nhiêu", "", "user_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(result.ConversationID, "conv_") {
		t.Fatalf("unexpected conversation id: %q", result.ConversationID)
	}
	if !strings.HasPrefix(result.MessageID, "msg_") {
		t.Fatalf("unexpected message id: %q", result.MessageID)
	}
	if result.Timestamp.IsZero() {
		t.Fatal("timestamp not set")
	}
}

func TestAskLoadsHistoryForExistingConversation(t *testing.T) {
	store := &fakeConversationStore{turns: []domain.Turn{{Role: "user", Content: "xin chào"}}}
	uc := newTestChat(store, nil)

	result, err := uc.Ask(context.Background(), "học phí", "conv_abc123", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ConversationID != "conv_abc123" {
		t.Fatalf("conversation id must be preserved, got %q", result.ConversationID)
	}
	if store.lastConvID != "conv_abc123" || store.lastLimit != 6 {
		t.Fatalf("unexpected history load: id=%q limit=%d", store.lastConvID, store.lastLimit)
	}
}

func TestAskHistoryLoadFailureProceeds(t *testing.T) {
	store := &fakeConversationStore{turnsErr: errors.New("db down")}
	uc := newTestChat(store, nil)

	result, err := uc.Ask(context.Background(), "học phí", "conv_abc123", "")
	if err != nil {
		t.Fatalf("history load failure must not fail the turn: %v", err)
	}
	if result.Answer == "" {
		t.Fatal("expected an answer despite history failure")
	}
}

func TestAskPersistsExchange(t *testing.T) {
	store := &fakeConversationStore{}
	uc := newTestChat(store, nil)

	result, err := uc.Ask(context.Background(), "học phí", "", "user_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.appended) != 2 {
		t.Fatalf("expected user+assistant messages saved, got %d", len(store.appended))
	}
	if store.appended[0].Role != "user" || store.appended[1].Role != "assistant" {
		t.Fatalf("unexpected roles: %s %s", store.appended[0].Role, store.appended[1].Role)
	}
	if store.appended[1].MessageID != result.MessageID {
		t.Fatal("assistant message id must match the returned message id")
	}
	if store.appended[1].Content != result.Answer {
		t.Fatal("assistant message must carry the answer")
	}
}

func TestAskSaveFailureAddsWarning(t *testing.T) {
	store := &fakeConversationStore{appendErr: errors.New("db down")}
	uc := newTestChat(store, nil)

	result, err := uc.Ask(context.Background(), "học phí", "", "")
	if err != nil {
		t.Fatalf("save failure must not fail the turn: %v", err)
	}
	if result.Metadata["save_warning"] != "Conversation not saved to database" {
		t.Fatalf("expected save warning, got %+v", result.Metadata)
	}
}

func TestHistoryValidation(t *testing.T) {
	uc := newTestChat(&fakeConversationStore{}, nil)

	if _, err := uc.History(context.Background(), ""); !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := uc.History(context.Background(), "conv_missing"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestSubmitFeedback(t *testing.T) {
	feedback := &fakeFeedbackStore{}
	uc := newTestChat(&fakeConversationStore{}, feedback)

	fb, err := uc.SubmitFeedback(context.Background(), domain.Feedback{
		ConversationID: "conv_1",
		MessageID:      "msg_1",
		Rating:         4,
		Comment:        "hữu ích",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(fb.FeedbackID, "feedback_") {
		t.Fatalf("unexpected feedback id: %q", fb.FeedbackID)
	}
	if len(feedback.saved) != 1 {
		t.Fatalf("expected saved feedback, got %d", len(feedback.saved))
	}
}

func TestSubmitFeedbackRejectsBadRating(t *testing.T) {
	uc := newTestChat(&fakeConversationStore{}, &fakeFeedbackStore{})

	for _, rating := range []int{0, 6, -1} {
		_, err := uc.SubmitFeedback(context.Background(), domain.Feedback{
			ConversationID: "conv_1", MessageID: "msg_1", Rating: rating,
		})
		if !domain.IsKind(err, domain.ErrValidation) {
			t.Fatalf("rating %d: expected validation error, got %v", rating, err)
		}
	}
}
