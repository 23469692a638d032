package domain

// Turn is one prior conversation exchange entry, oldest first in a history
// slice. Role is "user" or "assistant".
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TokenUsage mirrors the generation service's token accounting.
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// GenerationOutcome is the result of one answer-generation attempt. Exactly
// one of the model path and the fallback path produced it; FallbackUsed and
// GenerationSuccessful are never both true.
type GenerationOutcome struct {
	Answer               string     `json:"answer"`
	Model                string     `json:"model"`
	TokensUsed           TokenUsage `json:"tokens_used"`
	FinishReason         string     `json:"finish_reason"`
	NumContextsUsed      int        `json:"num_contexts_used"`
	GenerationSuccessful bool       `json:"generation_successful"`
	FallbackUsed         bool       `json:"fallback_used"`
	Error                string     `json:"error,omitempty"`
}

// PipelineResult is the terminal record a pipeline run hands back to the
// caller. Answer is always non-empty.
type PipelineResult struct {
	Query    string          `json:"query"`
	Answer   string          `json:"answer"`
	Sources  []SourceSummary `json:"sources"`
	Metadata map[string]any  `json:"metadata"`
}
