package audit

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/uitchat/admissions-rag/internal/core/domain"
)

// Logger appends one JSON line per generation event to a local file. Audit
// writes must never fail a chat turn, so every method swallows I/O problems
// after logging them once through slog.
type Logger struct {
	logger *slog.Logger
	closer io.Closer
	seq    atomic.Uint64
}

func NewLogger(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(file, &slog.HandlerOptions{Level: slog.LevelInfo}))
	return &Logger{logger: logger, closer: file}, nil
}

// NewWriterLogger wires an arbitrary sink, used by tests.
func NewWriterLogger(w io.Writer) *Logger {
	return &Logger{logger: slog.New(slog.NewJSONHandler(w, nil))}
}

func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func (l *Logger) AuditRequest(conversationID, query string, candidates []domain.Candidate, model string, temperature float64, maxTokens int) string {
	requestID := fmt.Sprintf("genreq_%d", l.seq.Add(1))
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	l.logger.Info("generation request",
		"request_id", requestID,
		"conversation_id", conversationID,
		"query", query,
		"candidates", strings.Join(ids, ","),
		"model", model,
		"temperature", temperature,
		"max_tokens", maxTokens,
	)
	return requestID
}

func (l *Logger) AuditResponse(requestID, conversationID, answer string, usage domain.TokenUsage, success bool) {
	l.logger.Info("generation response",
		"request_id", requestID,
		"conversation_id", conversationID,
		"answer_length", len(answer),
		"prompt_tokens", usage.Prompt,
		"completion_tokens", usage.Completion,
		"total_tokens", usage.Total,
		"success", success,
	)
}

func (l *Logger) AuditError(conversationID, errorType, message string) {
	l.logger.Info("generation error",
		"conversation_id", conversationID,
		"error_type", errorType,
		"message", message,
	)
}
