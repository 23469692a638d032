package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/uitchat/admissions-rag/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*ConversationRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &ConversationRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestRecentTurnsReversesToChronologicalOrder(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	// newest first from the query
	rows := sqlmock.NewRows([]string{"role", "content"}).
		AddRow("assistant", "trả lời 2").
		AddRow("user", "câu hỏi 2").
		AddRow("assistant", "trả lời 1").
		AddRow("user", "câu hỏi 1")
	mock.ExpectQuery("SELECT role, content").
		WithArgs("conv_1", 4).
		WillReturnRows(rows)

	turns, err := repo.RecentTurns(context.Background(), "conv_1", 4)
	if err != nil {
		t.Fatalf("RecentTurns() error = %v", err)
	}
	if len(turns) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(turns))
	}
	if turns[0].Content != "câu hỏi 1" || turns[3].Content != "trả lời 2" {
		t.Fatalf("turns not chronological: %+v", turns)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAppendExchangeWritesBothMessagesInOneTx(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO conversations").
		WithArgs("conv_1", "user_1", "học phí bao nhiêu", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO messages").
		WithArgs("msg_u", "conv_1", "user", "học phí bao nhiêu", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO messages").
		WithArgs("msg_a", "conv_1", "assistant", "30 triệu", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	now := time.Now().UTC()
	err := repo.AppendExchange(context.Background(), "conv_1", "user_1",
		domain.ConversationMessage{MessageID: "msg_u", Role: "user", Content: "học phí bao nhiêu", CreatedAt: now},
		domain.ConversationMessage{MessageID: "msg_a", Role: "assistant", Content: "30 triệu", CreatedAt: now},
	)
	if err != nil {
		t.Fatalf("AppendExchange() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMessagesDecodesJSONColumns(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"message_id", "conversation_id", "role", "content", "sources", "metadata", "created_at"}).
		AddRow("msg_1", "conv_1", "assistant", "30 triệu",
			[]byte(`[{"question":"Học phí?","article":"Điều 5","document":"QC","score":1.2}]`),
			[]byte(`{"generation_successful":true}`),
			now)
	mock.ExpectQuery("SELECT message_id, conversation_id, role").
		WithArgs("conv_1").
		WillReturnRows(rows)

	messages, err := repo.Messages(context.Background(), "conv_1")
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if len(messages[0].Sources) != 1 || messages[0].Sources[0].Article != "Điều 5" {
		t.Fatalf("sources not decoded: %+v", messages[0].Sources)
	}
	if messages[0].Metadata["generation_successful"] != true {
		t.Fatalf("metadata not decoded: %+v", messages[0].Metadata)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListConversations(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "user_id", "title", "last_message", "message_count", "updated_at"}).
		AddRow("conv_1", "user_1", "học phí", "30 triệu", 4, now)
	mock.ExpectQuery("SELECT c.id").
		WithArgs("user_1", 50).
		WillReturnRows(rows)

	summaries, err := repo.ListConversations(context.Background(), "user_1", 50)
	if err != nil {
		t.Fatalf("ListConversations() error = %v", err)
	}
	if len(summaries) != 1 || summaries[0].MessageCount != 4 {
		t.Fatalf("unexpected summaries: %+v", summaries)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveFeedback(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	repo := NewFeedbackRepository(db)

	mock.ExpectExec("INSERT INTO feedback").
		WithArgs("feedback_1", "conv_1", "msg_1", 5, "tốt", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.SaveFeedback(context.Background(), domain.Feedback{
		FeedbackID:     "feedback_1",
		ConversationID: "conv_1",
		MessageID:      "msg_1",
		Rating:         5,
		Comment:        "tốt",
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("SaveFeedback() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
