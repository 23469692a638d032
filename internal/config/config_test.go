package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.APIPort != "8080" {
		t.Fatalf("expected default api port 8080, got %s", cfg.APIPort)
	}
	if cfg.RerankerTopK != 20 || cfg.RerankerTopN != 5 {
		t.Fatalf("unexpected reranker defaults: top_k=%d top_n=%d", cfg.RerankerTopK, cfg.RerankerTopN)
	}
	if cfg.RetrievalLexicalBoost != 0.3 || cfg.RetrievalVectorBoost != 0.7 {
		t.Fatalf("unexpected retrieval boosts: %v/%v", cfg.RetrievalLexicalBoost, cfg.RetrievalVectorBoost)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RERANKER_ENABLED", "false")
	t.Setenv("RETRIEVAL_TOP_K", "9")
	t.Setenv("ANSWER_TEMPERATURE", "0.2")

	cfg := Load()
	if cfg.RerankerEnabled {
		t.Fatalf("expected reranker disabled")
	}
	if cfg.RetrievalTopK != 9 {
		t.Fatalf("expected top_k=9, got %d", cfg.RetrievalTopK)
	}
	if cfg.GenerationTemperature != 0.2 {
		t.Fatalf("expected temperature=0.2, got %v", cfg.GenerationTemperature)
	}
}

func TestInvalidEnvFallsBack(t *testing.T) {
	t.Setenv("RETRIEVAL_TOP_K", "not-a-number")
	t.Setenv("RERANKER_ENABLED", "maybe")

	cfg := Load()
	if cfg.RetrievalTopK != 5 {
		t.Fatalf("expected fallback top_k=5, got %d", cfg.RetrievalTopK)
	}
	if !cfg.RerankerEnabled {
		t.Fatalf("expected fallback reranker enabled")
	}
}
