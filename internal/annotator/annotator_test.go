package annotator

import (
	"context"
	"testing"

	"regimen/internal/domain"
)

func TestFallbackJoinsRationales(t *testing.T) {
	res := domain.Result{
		Commander: domain.ScoredAction{ActionCandidate: domain.ActionCandidate{
			Rationale: "Recovery score at 25; pushing through makes everything worse.",
		}},
		Upcoming: []domain.ScoredAction{
			{ActionCandidate: domain.ActionCandidate{Rationale: "Roughly 1.5L behind on fluids today."}},
			{ActionCandidate: domain.ActionCandidate{Rationale: ""}},
		},
	}
	got := Fallback(res)
	want := "Recovery score at 25; pushing through makes everything worse. Roughly 1.5L behind on fluids today."
	if got != want {
		t.Fatalf("fallback = %q, want %q", got, want)
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	t.Setenv(apiKeyEnv, "")
	if _, err := New(context.Background(), "gemini-2.0-flash", nil); err == nil {
		t.Fatal("expected missing key error")
	}
}
