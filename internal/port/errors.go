package port

import "errors"

// Sentinel errors used across ports.
var (
	ErrBlogNotFound = errors.New("blog not found")

	// LLM call failures, classified by the provider adapter so the chat
	// service can pick the right user-facing message.
	ErrLLMUnauthorized = errors.New("llm unauthorized")
	ErrLLMBadRequest   = errors.New("llm bad request")
	ErrLLMRateLimited  = errors.New("llm rate limited")
)
