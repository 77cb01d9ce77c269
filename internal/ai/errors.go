package ai

import "github.com/kiranshivaraju/chapternotes/internal/ai/transport"

// Provider errors. Every provider wraps one of these so callers can match
// with errors.Is without importing the provider packages.
var (
	ErrAuthFailure      = transport.ErrAuthFailure
	ErrRateLimited      = transport.ErrRateLimited
	ErrRemoteFailure    = transport.ErrRemoteFailure
	ErrEmptyResponse    = transport.ErrEmptyResponse
	ErrInferenceTimeout = transport.ErrInferenceTimeout
)
