package usecase

import (
	"fmt"
	"strings"

	"github.com/uitchat/admissions-rag/internal/core/domain"
)

// Prompt scaffolding for the admissions assistant. All user-facing text is
// Vietnamese to match the corpus the index is built from.

const systemPrompt = `Bạn là trợ lý tư vấn tuyển sinh đại học. Nhiệm vụ của bạn là trả lời câu hỏi của thí sinh và phụ huynh dựa trên thông tin trong CONTEXT được cung cấp.

Nguyên tắc trả lời:
1. Chỉ sử dụng thông tin có trong CONTEXT. Không bịa đặt hoặc suy đoán thông tin không có trong tài liệu.
2. Trả lời ngắn gọn, rõ ràng, đúng trọng tâm câu hỏi.
3. Khi trích dẫn quy định, nêu rõ điều khoản và văn bản nguồn.
4. Nếu CONTEXT không chứa thông tin cần thiết, nói rõ là bạn không tìm thấy thông tin thay vì đoán.
5. Giữ giọng điệu thân thiện, chuyên nghiệp, phù hợp với thí sinh và phụ huynh.`

const noContextText = "Không có thông tin liên quan."

const userMessageTemplate = `Câu hỏi của người dùng: %s

CONTEXT (Thông tin từ tài liệu tuyển sinh):
%s
Hãy trả lời câu hỏi dựa trên CONTEXT trên. Nhớ tuân thủ các nguyên tắc đã được hướng dẫn.`

// formatContext renders at most maxDocs candidates as labelled blocks. Empty
// fields are skipped so the prompt never carries blank labels.
func formatContext(candidates []domain.Candidate, maxDocs int) string {
	if len(candidates) == 0 {
		return noContextText
	}
	if maxDocs > 0 && len(candidates) > maxDocs {
		candidates = candidates[:maxDocs]
	}

	var b strings.Builder
	for i, c := range candidates {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[Tài liệu %d]\n", i+1)
		writeField(&b, "Điều khoản", c.Article)
		writeField(&b, "Văn bản", c.Document)
		writeField(&b, "Câu hỏi tương tự", c.Question)
		writeField(&b, "Nội dung quy định", c.Context)
		writeField(&b, "Trích xuất", c.ExtractiveAnswer)
		writeField(&b, "Tóm tắt", c.AbstractiveAnswer)
	}
	return b.String()
}

func writeField(b *strings.Builder, label, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, value)
}

// buildMessages assembles the chat transcript sent to the model: system
// prompt, capped history oldest first, then the context-bearing user turn.
func buildMessages(query string, candidates []domain.Candidate, history []domain.Turn, maxDocs, maxHistoryTurns int) []domain.Turn {
	messages := make([]domain.Turn, 0, len(history)+2)
	messages = append(messages, domain.Turn{Role: "system", Content: systemPrompt})

	if maxHistoryTurns > 0 && len(history) > maxHistoryTurns*2 {
		history = history[len(history)-maxHistoryTurns*2:]
	}
	messages = append(messages, history...)

	userMsg := fmt.Sprintf(userMessageTemplate, query, formatContext(candidates, maxDocs))
	messages = append(messages, domain.Turn{Role: "user", Content: userMsg})
	return messages
}
