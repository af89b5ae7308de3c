// Package constants provides shared constants used across the codebase.
package constants

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100
)

// File upload constants
const (
	// MaxUploadSize is the maximum reference photo upload size in bytes (20MB)
	MaxUploadSize = 20 << 20
)

// Websocket constants
const (
	// StreamWriteTimeoutSeconds bounds control message writes to a streaming client
	StreamWriteTimeoutSeconds = 10
)
