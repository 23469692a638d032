package audit

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/uitchat/admissions-rag/internal/core/domain"
)

func TestAuditRequestEmitsJSONLine(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf)

	requestID := l.AuditRequest("conv_1", "học phí", []domain.Candidate{{ID: "qa_1"}, {ID: "qa_2"}}, "gpt-4o-mini", 0.7, 500)
	if !strings.HasPrefix(requestID, "genreq_") {
		t.Fatalf("unexpected request id: %q", requestID)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("audit line is not JSON: %v", err)
	}
	if entry["candidates"] != "qa_1,qa_2" || entry["model"] != "gpt-4o-mini" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestAuditRequestIDsAreUnique(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf)

	first := l.AuditRequest("conv_1", "q", nil, "m", 0, 0)
	second := l.AuditRequest("conv_1", "q", nil, "m", 0, 0)
	if first == second {
		t.Fatalf("request ids must differ, both %q", first)
	}
}

func TestAuditResponseRecordsUsage(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf)

	l.AuditResponse("genreq_1", "conv_1", "câu trả lời", domain.TokenUsage{Prompt: 100, Completion: 20, Total: 120}, true)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("audit line is not JSON: %v", err)
	}
	if entry["total_tokens"] != float64(120) || entry["success"] != true {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}
