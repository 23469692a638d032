package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/uitchat/admissions-rag/internal/core/domain"
	"github.com/uitchat/admissions-rag/internal/core/ports"
)

const (
	noInfoAnswer       = "Xin lỗi, tôi không tìm thấy thông tin liên quan đến câu hỏi của bạn trong cơ sở dữ liệu."
	cannotAnswerText   = "Xin lỗi, tôi không thể tạo câu trả lời cho câu hỏi này."
	generationFaultMsg = "Xin lỗi, tôi gặp lỗi khi tạo câu trả lời. Vui lòng thử lại."

	// fallbackModelID marks answers served from stored candidate answers
	// instead of the model.
	fallbackModelID = "fallback"
)

// GeneratorConfig bounds one generation call.
type GeneratorConfig struct {
	Enabled         bool
	Temperature     float64
	MaxTokens       int
	MaxContextDocs  int
	MaxHistoryTurns int
}

// AnswerGenerator produces the final answer from retrieved candidates. It
// never returns an error: every failure path ends in a deterministic,
// user-presentable fallback answer so the pipeline always terminates with
// text.
type AnswerGenerator struct {
	model   ports.ChatModel
	auditor ports.GenerationAuditor
	cfg     GeneratorConfig
	logger  *slog.Logger
}

func NewAnswerGenerator(model ports.ChatModel, auditor ports.GenerationAuditor, cfg GeneratorConfig, logger *slog.Logger) *AnswerGenerator {
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	if cfg.MaxContextDocs <= 0 {
		cfg.MaxContextDocs = 5
	}
	if cfg.MaxHistoryTurns <= 0 {
		cfg.MaxHistoryTurns = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerGenerator{model: model, auditor: auditor, cfg: cfg, logger: logger}
}

// Generate runs the model when it is configured and falls back to the stored
// answers of the best candidate otherwise. With no candidates at all the
// outcome carries the fixed no-information answer.
func (g *AnswerGenerator) Generate(ctx context.Context, query string, candidates []domain.Candidate, history []domain.Turn, conversationID string) domain.GenerationOutcome {
	if len(candidates) == 0 {
		return domain.GenerationOutcome{
			Answer:       noInfoAnswer,
			Model:        fallbackModelID,
			FinishReason: "no_context",
			FallbackUsed: true,
		}
	}
	if !g.cfg.Enabled || g.model == nil {
		return g.fallback(candidates, "")
	}

	messages := buildMessages(query, candidates, history, g.cfg.MaxContextDocs, g.cfg.MaxHistoryTurns)

	var requestID string
	if g.auditor != nil {
		requestID = g.auditor.AuditRequest(conversationID, query, candidates, g.model.ModelID(), g.cfg.Temperature, g.cfg.MaxTokens)
	}

	outcome, err := g.model.Complete(ctx, messages, g.cfg.Temperature, g.cfg.MaxTokens)
	if err != nil {
		g.logger.Warn("generation call failed, using fallback answer", "error", err)
		if g.auditor != nil {
			g.auditor.AuditError(conversationID, "generation_call", err.Error())
		}
		return g.fallback(candidates, err.Error())
	}
	if strings.TrimSpace(outcome.Answer) == "" {
		if g.auditor != nil {
			g.auditor.AuditError(conversationID, "empty_answer", "model returned empty content")
		}
		return g.fallback(candidates, "empty model answer")
	}

	outcome.NumContextsUsed = min(len(candidates), g.cfg.MaxContextDocs)
	outcome.GenerationSuccessful = true
	if g.auditor != nil {
		g.auditor.AuditResponse(requestID, conversationID, outcome.Answer, outcome.TokensUsed, true)
	}
	return outcome
}

// fallback answers from the best candidate's stored answers, abstractive
// first, with a provenance suffix when the source is known.
func (g *AnswerGenerator) fallback(candidates []domain.Candidate, genErr string) domain.GenerationOutcome {
	best := candidates[0]
	answer := strings.TrimSpace(best.AbstractiveAnswer)
	if answer == "" {
		answer = strings.TrimSpace(best.ExtractiveAnswer)
	}
	if answer == "" {
		answer = cannotAnswerText
	} else {
		answer += sourceSuffix(best)
	}
	return domain.GenerationOutcome{
		Answer:       answer,
		Model:        fallbackModelID,
		FinishReason: "fallback",
		FallbackUsed: true,
		Error:        genErr,
	}
}

func sourceSuffix(c domain.Candidate) string {
	var parts []string
	if a := strings.TrimSpace(c.Article); a != "" {
		parts = append(parts, a)
	}
	if d := strings.TrimSpace(c.Document); d != "" {
		parts = append(parts, d)
	}
	if len(parts) == 0 {
		return ""
	}
	return "\n\n📚 Nguồn: " + strings.Join(parts, " - ")
}
