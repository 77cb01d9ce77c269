package transport

import "strings"

// BuildPrompt frames the chapter text under the user's instructions.
func BuildPrompt(userPrompt, text string) string {
	var b strings.Builder
	b.Grow(len(userPrompt) + len(text) + 48)
	b.WriteString(userPrompt)
	b.WriteString("\n\nHere is the chapter text:\n---\n")
	b.WriteString(text)
	b.WriteString("\n---\n")
	return b.String()
}

// KeyOr returns the per-request key when set, else the configured one.
func KeyOr(requestKey, configured string) string {
	if requestKey != "" {
		return requestKey
	}
	return configured
}
