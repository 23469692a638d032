package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uitchat/admissions-rag/internal/core/domain"
)

type ConversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082801)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	ddl := `
CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	user_id TEXT,
	title TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	message_id TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	sources JSONB NOT NULL DEFAULT '[]'::jsonb,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL,
	seq BIGSERIAL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation_seq ON messages (conversation_id, seq);

CREATE TABLE IF NOT EXISTS feedback (
	feedback_id TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	message_id TEXT NOT NULL,
	rating INT NOT NULL,
	comment TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
`
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return tx.Commit()
}

// RecentTurns returns the last limit messages of the conversation in
// chronological order, as model-ready turns.
func (r *ConversationRepository) RecentTurns(ctx context.Context, conversationID string, limit int) ([]domain.Turn, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT role, content
FROM messages
WHERE conversation_id = $1
ORDER BY seq DESC
LIMIT $2
`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent turns query: %w", err)
	}
	defer rows.Close()

	var reversed []domain.Turn
	for rows.Next() {
		var turn domain.Turn
		if err := rows.Scan(&turn.Role, &turn.Content); err != nil {
			return nil, fmt.Errorf("recent turns scan: %w", err)
		}
		reversed = append(reversed, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recent turns rows: %w", err)
	}

	turns := make([]domain.Turn, len(reversed))
	for i, turn := range reversed {
		turns[len(reversed)-1-i] = turn
	}
	return turns, nil
}

// AppendExchange stores one user/assistant pair atomically and touches the
// conversation row. The title is seeded from the first user message.
func (r *ConversationRepository) AppendExchange(ctx context.Context, conversationID, userID string, userMsg, assistantMsg domain.ConversationMessage) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin exchange tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	title := userMsg.Content
	if len([]rune(title)) > 80 {
		title = string([]rune(title)[:80])
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO conversations (id, user_id, title, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (id) DO UPDATE SET updated_at = EXCLUDED.updated_at
`, conversationID, nullable(userID), title, now); err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}

	for _, msg := range []domain.ConversationMessage{userMsg, assistantMsg} {
		sources, err := json.Marshal(msg.Sources)
		if err != nil {
			return fmt.Errorf("marshal sources: %w", err)
		}
		metadata, err := json.Marshal(msg.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		if msg.Sources == nil {
			sources = []byte("[]")
		}
		if msg.Metadata == nil {
			metadata = []byte("{}")
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO messages (message_id, conversation_id, role, content, sources, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`, msg.MessageID, conversationID, msg.Role, msg.Content, sources, metadata, msg.CreatedAt); err != nil {
			return fmt.Errorf("insert %s message: %w", msg.Role, err)
		}
	}
	return tx.Commit()
}

func (r *ConversationRepository) Messages(ctx context.Context, conversationID string) ([]domain.ConversationMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT message_id, conversation_id, role, content, sources, metadata, created_at
FROM messages
WHERE conversation_id = $1
ORDER BY seq ASC
`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("messages query: %w", err)
	}
	defer rows.Close()

	var messages []domain.ConversationMessage
	for rows.Next() {
		var (
			msg      domain.ConversationMessage
			sources  []byte
			metadata []byte
		)
		if err := rows.Scan(&msg.MessageID, &msg.ConversationID, &msg.Role, &msg.Content, &sources, &metadata, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("messages scan: %w", err)
		}
		if len(sources) > 0 {
			if err := json.Unmarshal(sources, &msg.Sources); err != nil {
				return nil, fmt.Errorf("decode sources: %w", err)
			}
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &msg.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("messages rows: %w", err)
	}
	return messages, nil
}

func (r *ConversationRepository) ListConversations(ctx context.Context, userID string, limit int) ([]domain.ConversationSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT c.id,
	COALESCE(c.user_id, ''),
	c.title,
	COALESCE((SELECT m.content FROM messages m WHERE m.conversation_id = c.id ORDER BY m.seq DESC LIMIT 1), ''),
	(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id),
	c.updated_at
FROM conversations c
WHERE $1 = '' OR c.user_id = $1
ORDER BY c.updated_at DESC
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations query: %w", err)
	}
	defer rows.Close()

	var summaries []domain.ConversationSummary
	for rows.Next() {
		var s domain.ConversationSummary
		if err := rows.Scan(&s.ID, &s.UserID, &s.Title, &s.LastMessage, &s.MessageCount, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("list conversations scan: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list conversations rows: %w", err)
	}
	return summaries, nil
}

func (r *ConversationRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
