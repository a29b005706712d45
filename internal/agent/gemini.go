package agent

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"mcp-pilot/internal/mission"
)

const geminiDefault = "gemini-2.0-flash"

type geminiAgent struct {
	client *genai.Client
	model  string
}

func newGemini(cfg Config) (*geminiAgent, error) {
	apiKey := cfg.GeminiKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}
	c, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client init: %w", err)
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" || !strings.HasPrefix(strings.ToLower(model), "gemini-") {
		model = geminiDefault
	}
	return &geminiAgent{client: c, model: model}, nil
}

func (a *geminiAgent) NextAction(ctx context.Context, obs Observation) (mission.Action, error) {
	if a.client == nil {
		return mission.Action{}, ErrNotInitialized
	}

	gcfg := &genai.GenerateContentConfig{
		// Force JSON output in candidates
		ResponseMIMEType: "application/json",
	}
	resp, err := a.client.Models.GenerateContent(ctx, a.model, genai.Text(buildPrompt(obs)), gcfg)
	if err != nil {
		return mission.Action{}, fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return mission.Action{}, fmt.Errorf("gemini: empty response")
	}
	return parseDecision(resp.Candidates[0].Content.Parts[0].Text)
}
