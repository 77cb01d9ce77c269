package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/chapternotes/internal/cache"
	"github.com/kiranshivaraju/chapternotes/pkg/models"
)

// CachedGenerator remembers successful generations in the cache so the same
// chapter and prompt are not sent to the provider twice. Cache failures are
// logged and never fail a generation.
type CachedGenerator struct {
	inner models.NoteGenerator
	cache cache.Cache
	ttl   time.Duration
}

func NewCachedGenerator(inner models.NoteGenerator, c cache.Cache, ttl time.Duration) *CachedGenerator {
	return &CachedGenerator{inner: inner, cache: c, ttl: ttl}
}

func (g *CachedGenerator) Name() string { return g.inner.Name() }

func (g *CachedGenerator) GenerateNotes(ctx context.Context, req models.NoteRequest) (string, error) {
	key := cache.NotesKey(notesHash(g.inner.Name(), req.Prompt, req.Text))

	if b, found, err := g.cache.Get(ctx, key); err != nil {
		slog.Warn("notes cache read failed", "error", err)
	} else if found && len(b) > 0 {
		slog.Debug("notes cache hit", "provider", g.inner.Name())
		return string(b), nil
	}

	notes, err := g.inner.GenerateNotes(ctx, req)
	if err != nil {
		return "", err
	}

	if err := g.cache.Set(ctx, key, []byte(notes), g.ttl); err != nil {
		slog.Warn("notes cache write failed", "error", err)
	}
	return notes, nil
}

func notesHash(provider, prompt, text string) string {
	h := sha256.New()
	for _, s := range []string{provider, prompt, text} {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

var _ models.NoteGenerator = (*CachedGenerator)(nil)
