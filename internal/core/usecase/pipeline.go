package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/uitchat/admissions-rag/internal/core/domain"
)

const (
	systemFaultMsg = "Xin lỗi, hệ thống gặp lỗi. Vui lòng thử lại sau."

	noContextAnswer = `Xin lỗi, tôi không tìm thấy thông tin liên quan đến câu hỏi của bạn trong cơ sở dữ liệu tuyển sinh.

Bạn có thể hỏi về các chủ đề như:
- Điều kiện xét tuyển
- Phương thức xét tuyển
- Hồ sơ đăng ký
- Học phí và học bổng
- Thời gian tuyển sinh`
)

// pipelineState is the mutable record threaded through the stages of one
// run. Stages only append to it; no stage reads a field a later stage owns.
type pipelineState struct {
	query          string
	history        []domain.Turn
	conversationID string

	candidates []domain.Candidate
	hasContext bool
	rerankWarn string

	answer   string
	metadata map[string]any
}

// Pipeline is the question-answering state machine: validate, retrieve,
// branch on context, generate or refuse, format. Every run terminates with a
// non-empty answer; faults inside a stage surface as apology answers, never
// as errors or panics.
type Pipeline struct {
	retriever *HybridRetriever
	generator *AnswerGenerator
	topN      int
	reranking bool
	logger    *slog.Logger
}

func NewPipeline(retriever *HybridRetriever, generator *AnswerGenerator, topN int, reranking bool, logger *slog.Logger) *Pipeline {
	if topN <= 0 {
		topN = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{retriever: retriever, generator: generator, topN: topN, reranking: reranking, logger: logger}
}

// Run executes the full pipeline for one query.
func (p *Pipeline) Run(ctx context.Context, query string, history []domain.Turn, conversationID string) (result domain.PipelineResult) {
	state := &pipelineState{
		query:          strings.TrimSpace(query),
		history:        history,
		conversationID: conversationID,
		metadata:       map[string]any{},
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pipeline panicked", "panic", fmt.Sprint(r), "conversation_id", conversationID)
			result = domain.PipelineResult{
				Query:    state.query,
				Answer:   systemFaultMsg,
				Sources:  []domain.SourceSummary{},
				Metadata: map[string]any{"error": fmt.Sprint(r), "generation_successful": false},
			}
		}
	}()

	if p.validate(state) {
		p.retrieve(ctx, state)
	}
	if state.hasContext {
		p.generate(ctx, state)
	} else {
		p.refuse(state)
	}
	return p.format(state)
}

// validate records the error for a blank query and skips retrieval so the
// run lands in the no-context branch.
func (p *Pipeline) validate(state *pipelineState) bool {
	if state.query == "" {
		state.metadata["error"] = "Empty query"
		return false
	}
	return true
}

// retrieve fills candidates. A retrieval fault is recovered: the error is
// recorded, the candidate set stays empty, and the run continues into the
// no-context branch.
func (p *Pipeline) retrieve(ctx context.Context, state *pipelineState) {
	candidates, err := p.retriever.Retrieve(ctx, state.query, p.topN, nil, p.reranking)
	if err != nil {
		// Rerank failures come back with a usable fused-order head.
		if domain.IsKind(err, domain.ErrRerank) && len(candidates) > 0 {
			state.rerankWarn = err.Error()
		} else {
			p.logger.Error("retrieval failed", "error", err, "conversation_id", state.conversationID)
			state.metadata["error"] = "Retrieval error: " + err.Error()
			return
		}
	}
	state.candidates = candidates
	state.hasContext = len(candidates) > 0
}

func (p *Pipeline) generate(ctx context.Context, state *pipelineState) {
	outcome := p.generator.Generate(ctx, state.query, state.candidates, state.history, state.conversationID)

	state.answer = outcome.Answer
	state.metadata["generation_successful"] = outcome.GenerationSuccessful
	state.metadata["fallback_used"] = outcome.FallbackUsed
	state.metadata["finish_reason"] = outcome.FinishReason
	if outcome.Model != "" {
		state.metadata["generation_model"] = outcome.Model
	}
	if outcome.GenerationSuccessful {
		state.metadata["tokens_used"] = outcome.TokensUsed
		state.metadata["num_contexts_used"] = outcome.NumContextsUsed
	}
	if outcome.Error != "" {
		state.metadata["error"] = "Generation error: " + outcome.Error
	}
	if state.answer == "" {
		state.answer = generationFaultMsg
		state.metadata["generation_successful"] = false
	}
}

func (p *Pipeline) refuse(state *pipelineState) {
	state.answer = noContextAnswer
	state.metadata["generation_successful"] = false
	state.metadata["fallback_used"] = true
	state.metadata["reason"] = "no_context_found"
}

func (p *Pipeline) format(state *pipelineState) domain.PipelineResult {
	sources := make([]domain.SourceSummary, 0, 3)
	for i, c := range state.candidates {
		if i == 3 {
			break
		}
		sources = append(sources, c.Summary())
	}

	state.metadata["num_documents_retrieved"] = len(state.candidates)
	state.metadata["reranker_enabled"] = p.reranking
	if p.reranking {
		state.metadata["retrieval_method"] = "hybrid_search_with_reranking"
	} else {
		state.metadata["retrieval_method"] = "hybrid_search"
	}
	if state.rerankWarn != "" {
		state.metadata["rerank_warning"] = state.rerankWarn
	}

	return domain.PipelineResult{
		Query:    state.query,
		Answer:   state.answer,
		Sources:  sources,
		Metadata: state.metadata,
	}
}
