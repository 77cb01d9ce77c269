package mock

import (
	"context"
	"strings"

	"github.com/kiranshivaraju/chapternotes/internal/ai"
	"github.com/kiranshivaraju/chapternotes/pkg/models"
)

// MockProvider satisfies models.NoteGenerator for testing.
type MockProvider struct {
	Name_        string
	GenerateFunc func(ctx context.Context, req models.NoteRequest) (string, error)
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) GenerateNotes(ctx context.Context, req models.NoteRequest) (string, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return "", nil
}

// NewMockProvider returns a MockProvider that answers with a small Markdown
// document built from the first line of the chapter text.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock",
		GenerateFunc: func(_ context.Context, req models.NoteRequest) (string, error) {
			title, _, _ := strings.Cut(strings.TrimSpace(req.Text), "\n")
			if title == "" {
				title = "Chapter"
			}
			return "# " + title + "\n\n## Key Points\n\n* **Mock** notes generated for testing\n", nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		GenerateFunc: func(_ context.Context, _ models.NoteRequest) (string, error) {
			return "", err
		},
	}
}

// NewTimeoutProvider returns a MockProvider that blocks until context is cancelled.
func NewTimeoutProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock-timeout",
		GenerateFunc: func(ctx context.Context, _ models.NoteRequest) (string, error) {
			<-ctx.Done()
			return "", ai.ErrInferenceTimeout
		},
	}
}

// Compile-time check that MockProvider implements NoteGenerator.
var _ models.NoteGenerator = (*MockProvider)(nil)
