package ai

import (
	"fmt"

	"github.com/kiranshivaraju/chapternotes/internal/ai/anthropic"
	"github.com/kiranshivaraju/chapternotes/internal/ai/gemini"
	"github.com/kiranshivaraju/chapternotes/internal/ai/ollama"
	"github.com/kiranshivaraju/chapternotes/internal/ai/openai"
	"github.com/kiranshivaraju/chapternotes/internal/ai/transport"
	"github.com/kiranshivaraju/chapternotes/internal/ai/vllm"
	"github.com/kiranshivaraju/chapternotes/internal/config"
	"github.com/kiranshivaraju/chapternotes/pkg/models"
)

// NewProvider constructs the appropriate note generator based on config.
// Called once at startup.
func NewProvider(cfg config.AIConfig, opts ...transport.Option) (models.NoteGenerator, error) {
	client := transport.New(append([]transport.Option{transport.WithMaxRetries(cfg.MaxRetries)}, opts...)...)

	switch cfg.Provider {
	case "gemini":
		return gemini.NewProvider(cfg.Gemini, client), nil
	case "openai":
		return openai.NewProvider(cfg.OpenAI, client), nil
	case "anthropic":
		return anthropic.NewProvider(cfg.Anthropic, client), nil
	case "ollama":
		return ollama.NewProvider(cfg.Ollama, client), nil
	case "vllm":
		return vllm.NewProvider(cfg.VLLM, client), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of gemini, openai, anthropic, ollama, vllm", cfg.Provider)
	}
}
