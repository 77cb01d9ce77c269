package cache

import (
	"github.com/google/uuid"
)

// JobStatusKey is scoped to the session: file keys are only unique within one.
func JobStatusKey(sessionID uuid.UUID, fileKey string) string {
	return "job:" + sessionID.String() + ":" + fileKey
}

// RateLimitKey takes a session token prefix, or "ip:<addr>" for callers
// without a session.
func RateLimitKey(subject string) string {
	return "ratelimit:" + subject
}

// NotesKey addresses generated notes by the hash of provider, prompt and text.
func NotesKey(hash string) string {
	return "notes:" + hash
}
