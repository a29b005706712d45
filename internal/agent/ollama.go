package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"mcp-pilot/internal/mission"
)

const ollamaDefault = "phi4:latest"

type ollamaAgent struct {
	client *api.Client
	model  string
}

func newOllama(cfg Config) (*ollamaAgent, error) {
	c, err := api.ClientFromEnvironment()
	if err != nil {
		host := cfg.OllamaHost
		if host == "" {
			host = "http://localhost:11434"
		}
		u, uerr := url.Parse(host)
		if uerr != nil {
			return nil, fmt.Errorf("ollama: bad host %q: %w", host, uerr)
		}
		c = api.NewClient(u, nil)
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = ollamaDefault
	}
	return &ollamaAgent{client: c, model: model}, nil
}

func (a *ollamaAgent) NextAction(ctx context.Context, obs Observation) (mission.Action, error) {
	if a.client == nil {
		return mission.Action{}, ErrNotInitialized
	}

	stream := false
	req := &api.GenerateRequest{
		Model:  a.model,
		Prompt: buildPrompt(obs) + "\n\nReturn ONLY strict JSON. No extra text.",
		Format: json.RawMessage(`"json"`),
		Stream: &stream,
	}
	var out strings.Builder
	if err := a.client.Generate(ctx, req, func(gr api.GenerateResponse) error {
		out.WriteString(gr.Response)
		return nil
	}); err != nil {
		return mission.Action{}, fmt.Errorf("ollama generate: %w", err)
	}
	return parseDecision(out.String())
}
