package bootstrap

import (
	"testing"

	"github.com/uitchat/admissions-rag/internal/config"
)

func TestGenerationConfigured(t *testing.T) {
	cases := []struct {
		name    string
		enabled bool
		apiKey  string
		baseURL string
		want    bool
	}{
		{"disabled", false, "sk-test", "http://localhost:8000/v1", false},
		{"enabled with key", true, "sk-test", "", true},
		{"enabled with local base url", true, "", "http://localhost:8000/v1", true},
		{"enabled without credentials", true, "", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Config{
				GenerationEnabled: tc.enabled,
				GenerationAPIKey:  tc.apiKey,
				GenerationBaseURL: tc.baseURL,
			}
			if got := generationConfigured(cfg); got != tc.want {
				t.Fatalf("generationConfigured = %v, want %v", got, tc.want)
			}
		})
	}
}
