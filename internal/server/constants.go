// Package server provides HTTP and WebSocket handlers
package server

import "time"

// Server configuration constants
const (
	// Text truncation limit for API responses
	TranscriptPreviewLimit = 4000

	// Per-connection rate limiting for inbound WebSocket messages
	RateLimitMessages = 10
	RateLimitWindow   = time.Second

	// StatusPushInterval is how often live status is broadcast to clients
	StatusPushInterval = time.Second
)
