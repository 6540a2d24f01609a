// Package annotator produces an optional prose summary of a finished
// evaluation. It runs strictly after the council: nothing it returns can
// change a ranking, and any failure degrades to a deterministic local
// summary.
package annotator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"

	"regimen/internal/domain"
)

const apiKeyEnv = "REGIMEN_GENAI_API_KEY"

// requestTimeout bounds the model call so an evaluation request never
// hangs on the annotator.
const requestTimeout = 15 * time.Second

type Annotator struct {
	model  string
	logger *slog.Logger
	client *genai.Client
}

// New builds an annotator backed by the Gemini API. Returns an error when
// no API key is present in the environment; callers treat that as
// "annotation unavailable", not a startup failure.
func New(ctx context.Context, model string, logger *slog.Logger) (*Annotator, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%s not set", apiKeyEnv)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Annotator{model: model, logger: logger, client: client}, nil
}

// Annotate returns a short narrative for the result. On any model failure
// it falls back to a summary stitched from the ranked rationales, so the
// caller always gets usable text.
func (a *Annotator) Annotate(ctx context.Context, res domain.Result) string {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := a.client.Models.GenerateContent(ctx, a.model, genai.Text(prompt(res)), nil)
	if err != nil {
		a.logger.Warn("annotator: model call failed, using fallback", "error", err)
		return Fallback(res)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		a.logger.Warn("annotator: empty model response, using fallback")
		return Fallback(res)
	}
	return text
}

func prompt(res domain.Result) string {
	var b strings.Builder
	b.WriteString("You are a concise daily coach. Summarize this plan in 2-3 plain sentences, ")
	b.WriteString("leading with the single most important action. No markdown, no lists.\n\n")
	fmt.Fprintf(&b, "Top action: %s — %s\n", res.Commander.Title, res.Commander.Rationale)
	fmt.Fprintf(&b, "Focus area: %s\n", res.FocusDomain)
	for _, sa := range res.Upcoming {
		fmt.Fprintf(&b, "Then: %s — %s\n", sa.Title, sa.Rationale)
	}
	for _, sa := range res.Alerts {
		fmt.Fprintf(&b, "Urgent: %s\n", sa.Title)
	}
	return b.String()
}

// Fallback is the local, model-free narrative.
func Fallback(res domain.Result) string {
	parts := []string{res.Commander.Rationale}
	for _, sa := range res.Upcoming {
		if sa.Rationale != "" {
			parts = append(parts, sa.Rationale)
		}
	}
	return strings.Join(parts, " ")
}
