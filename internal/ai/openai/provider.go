// Package openai talks to OpenAI chat completions and compatible servers.
package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/kiranshivaraju/chapternotes/internal/ai/transport"
	"github.com/kiranshivaraju/chapternotes/internal/config"
	"github.com/kiranshivaraju/chapternotes/pkg/models"
)

// Provider implements models.NoteGenerator using /v1/chat/completions.
type Provider struct {
	name       string
	cfg        config.OpenAIConfig
	requireKey bool
	client     *transport.Client
}

func NewProvider(cfg config.OpenAIConfig, client *transport.Client) *Provider {
	return &Provider{name: "openai", cfg: cfg, requireKey: true, client: client}
}

// NewCompatible builds a provider for a self-hosted server speaking the same
// API. Such servers usually run without authentication.
func NewCompatible(name string, cfg config.OpenAIConfig, client *transport.Client) *Provider {
	return &Provider{name: name, cfg: cfg, client: client}
}

func (p *Provider) Name() string { return p.name }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

func (p *Provider) GenerateNotes(ctx context.Context, req models.NoteRequest) (string, error) {
	key := transport.KeyOr(req.APIKey, p.cfg.APIKey)
	if key == "" && p.requireKey {
		return "", fmt.Errorf("%w: no API key", transport.ErrAuthFailure)
	}

	headers := map[string]string{}
	if key != "" {
		headers["Authorization"] = "Bearer " + key
	}
	body := chatRequest{
		Model:    p.cfg.Model,
		Messages: []message{{Role: "user", Content: transport.BuildPrompt(req.Prompt, req.Text)}},
	}

	var resp chatResponse
	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/v1/chat/completions"
	if err := p.client.PostJSON(ctx, endpoint, headers, body, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", transport.ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

var _ models.NoteGenerator = (*Provider)(nil)
