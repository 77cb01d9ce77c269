// Package gemini talks to the Google Generative Language API.
package gemini

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/kiranshivaraju/chapternotes/internal/ai/transport"
	"github.com/kiranshivaraju/chapternotes/internal/config"
	"github.com/kiranshivaraju/chapternotes/pkg/models"
)

// Provider implements models.NoteGenerator using generateContent.
type Provider struct {
	cfg    config.GeminiConfig
	client *transport.Client
}

func NewProvider(cfg config.GeminiConfig, client *transport.Client) *Provider {
	return &Provider{cfg: cfg, client: client}
}

func (p *Provider) Name() string { return "gemini" }

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

func (p *Provider) GenerateNotes(ctx context.Context, req models.NoteRequest) (string, error) {
	key := transport.KeyOr(req.APIKey, p.cfg.APIKey)
	if key == "" {
		return "", fmt.Errorf("%w: no API key", transport.ErrAuthFailure)
	}

	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") +
		"/v1beta/models/" + url.PathEscape(p.cfg.Model) + ":generateContent"
	body := generateRequest{
		Contents: []content{{
			Role:  "user",
			Parts: []part{{Text: transport.BuildPrompt(req.Prompt, req.Text)}},
		}},
	}

	var resp generateResponse
	if err := p.client.PostJSON(ctx, endpoint, map[string]string{"x-goog-api-key": key}, body, &resp); err != nil {
		return "", err
	}

	if resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked (%s)", transport.ErrEmptyResponse, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", transport.ErrEmptyResponse
	}

	var b strings.Builder
	for _, pt := range resp.Candidates[0].Content.Parts {
		b.WriteString(pt.Text)
	}
	text := b.String()
	if strings.TrimSpace(text) == "" {
		return "", transport.ErrEmptyResponse
	}
	return text, nil
}

var _ models.NoteGenerator = (*Provider)(nil)
