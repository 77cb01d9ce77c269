package ai

import (
	"fmt"
	"os"
	"strings"
)

// DefaultPrompt is the study-notes prompt offered when the user does not
// write their own.
const DefaultPrompt = `You are an expert at creating concise and easy-to-understand study notes from complex academic texts. Based on the following text from an NCERT chapter, generate comprehensive study notes in Markdown format. Your notes must strictly follow these rules:
1. Main Title: Start with a single Level 1 Heading (` + "`#`" + `) for the chapter's main theme.
2. Topics & Sub-topics: Use Level 2 (` + "`##`" + `) and Level 3 (` + "`###`" + `) headings to structure the main topics and sub-topics logically.
3. Key Terms: Bold all important keywords, definitions, and names using ` + "`**Term**`" + `.
4. Lists: Use bullet points (` + "`*`" + `) for important facts, features, characteristics, or steps.
5. Definitions: Enclose critical definitions or important statements in blockquotes (` + "`>`" + `).
6. Clarity: Ensure the language is simple, clear, and optimized for student revision. Do not include any conversational text or introductions like 'Here are the notes...'. The output must be pure Markdown.`

// LoadPrompt returns the contents of path, or DefaultPrompt when path is empty.
func LoadPrompt(path string) (string, error) {
	if path == "" {
		return DefaultPrompt, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading prompt file: %w", err)
	}
	p := strings.TrimSpace(string(b))
	if p == "" {
		return "", fmt.Errorf("prompt file %s is empty", path)
	}
	return p, nil
}
