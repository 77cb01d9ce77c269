package vllm

import (
	"github.com/kiranshivaraju/chapternotes/internal/ai/openai"
	"github.com/kiranshivaraju/chapternotes/internal/ai/transport"
	"github.com/kiranshivaraju/chapternotes/internal/config"
)

// NewProvider returns a generator for a vLLM server through its
// OpenAI-compatible endpoint.
func NewProvider(cfg config.VLLMConfig, client *transport.Client) *openai.Provider {
	return openai.NewCompatible("vllm", config.OpenAIConfig{
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
	}, client)
}
