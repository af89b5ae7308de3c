// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Media constants
const (
	// JPEGContentType is the only MIME type accepted for the reference photo
	JPEGContentType = "image/jpeg"

	// PlaceholderWidth and PlaceholderHeight size the generated default photo
	PlaceholderWidth  = 640
	PlaceholderHeight = 480
)

// Status UI constants
const (
	// FoundMessage is shown while the reference photo matches the webcam face
	FoundMessage = "Face was detected"

	// FoundBorder and NotFoundBorder style both overlays
	FoundBorder    = "4px dotted green"
	NotFoundBorder = "4px dotted red"

	// LandmarkColor is the color of drawn landmark points
	LandmarkColor = "green"

	// LandmarkLineWidth is the stroke width of landmark points
	LandmarkLineWidth = 1
)

// History constants
const (
	// DefaultHistoryLimit is the default number of match events returned by the history endpoint
	DefaultHistoryLimit = 50

	// MaxHistoryLimit caps the history endpoint page size
	MaxHistoryLimit = 500
)
