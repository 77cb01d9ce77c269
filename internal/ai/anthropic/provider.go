package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/kiranshivaraju/chapternotes/internal/ai/transport"
	"github.com/kiranshivaraju/chapternotes/internal/config"
	"github.com/kiranshivaraju/chapternotes/pkg/models"
)

const (
	apiVersion = "2023-06-01"
	maxTokens  = 8192
)

// Provider implements models.NoteGenerator using the Messages API.
type Provider struct {
	cfg    config.AnthropicConfig
	client *transport.Client
}

func NewProvider(cfg config.AnthropicConfig, client *transport.Client) *Provider {
	return &Provider{cfg: cfg, client: client}
}

func (p *Provider) Name() string { return "anthropic" }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func (p *Provider) GenerateNotes(ctx context.Context, req models.NoteRequest) (string, error) {
	key := transport.KeyOr(req.APIKey, p.cfg.APIKey)
	if key == "" {
		return "", fmt.Errorf("%w: no API key", transport.ErrAuthFailure)
	}

	headers := map[string]string{
		"x-api-key":         key,
		"anthropic-version": apiVersion,
	}
	body := messagesRequest{
		Model:     p.cfg.Model,
		MaxTokens: maxTokens,
		Messages:  []message{{Role: "user", Content: transport.BuildPrompt(req.Prompt, req.Text)}},
	}

	var resp messagesResponse
	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/v1/messages"
	if err := p.client.PostJSON(ctx, endpoint, headers, body, &resp); err != nil {
		return "", err
	}

	var b strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", transport.ErrEmptyResponse
	}
	return b.String(), nil
}

var _ models.NoteGenerator = (*Provider)(nil)
