package ollama

import (
	"context"
	"strings"

	"github.com/kiranshivaraju/chapternotes/internal/ai/transport"
	"github.com/kiranshivaraju/chapternotes/internal/config"
	"github.com/kiranshivaraju/chapternotes/pkg/models"
)

// Provider implements models.NoteGenerator using Ollama. The request API key
// is ignored.
type Provider struct {
	cfg    config.OllamaConfig
	client *transport.Client
}

func NewProvider(cfg config.OllamaConfig, client *transport.Client) *Provider {
	return &Provider{cfg: cfg, client: client}
}

func (p *Provider) Name() string { return "ollama" }

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (p *Provider) GenerateNotes(ctx context.Context, req models.NoteRequest) (string, error) {
	body := generateRequest{
		Model:  p.cfg.Model,
		Prompt: transport.BuildPrompt(req.Prompt, req.Text),
	}

	var resp generateResponse
	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/api/generate"
	if err := p.client.PostJSON(ctx, endpoint, nil, body, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Response) == "" {
		return "", transport.ErrEmptyResponse
	}
	return resp.Response, nil
}

var _ models.NoteGenerator = (*Provider)(nil)
