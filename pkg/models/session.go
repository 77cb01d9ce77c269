package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is a browser session. The bearer token is shown once at creation;
// only its bcrypt hash and lookup prefix are stored.
type Session struct {
	ID          uuid.UUID  `db:"id"           json:"id"`
	TokenHash   string     `db:"token_hash"   json:"-"`
	TokenPrefix string     `db:"token_prefix" json:"token_prefix"`
	LastUsedAt  *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"   json:"updated_at"`
}
