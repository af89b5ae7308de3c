// Package overlay sizes detection results to the native resolution of the media
// they are drawn over and keeps the shapes of one overlay canvas.
package overlay

import (
	"sync"

	"github.com/kozaktomas/facecheck/internal/constants"
	"github.com/kozaktomas/facecheck/internal/face"
)

// Dimensions is a native pixel size. It is itself a MediaSource.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Dimensions returns d.
func (d Dimensions) Dimensions() Dimensions {
	return d
}

// MediaSource is anything an overlay can be placed over: a webcam frame,
// the reference photo, or explicit dimensions.
type MediaSource interface {
	Dimensions() Dimensions
}

// LandmarkStyle mirrors the landmark draw options of the browser client.
type LandmarkStyle struct {
	Color     string `json:"color"`
	LineWidth int    `json:"line_width"`
	DrawLines bool   `json:"draw_lines"`
}

// DefaultLandmarkStyle draws green points without connecting lines.
var DefaultLandmarkStyle = LandmarkStyle{
	Color:     constants.LandmarkColor,
	LineWidth: constants.LandmarkLineWidth,
	DrawLines: false,
}

// Shape is one face drawn on a canvas.
type Shape struct {
	Box       *face.Box    `json:"box,omitempty"`
	Score     float64      `json:"score"`
	Landmarks []face.Point `json:"landmarks,omitempty"`
}

// Snapshot is a copy of a canvas state.
type Snapshot struct {
	Width         int           `json:"width"`
	Height        int           `json:"height"`
	Shapes        []Shape       `json:"shapes"`
	LandmarkStyle LandmarkStyle `json:"landmark_style"`
}

// Canvas is an overlay surface. It is safe for concurrent use.
type Canvas struct {
	mu     sync.RWMutex
	width  int
	height int
	shapes []Shape
}

// NewCanvas creates an empty 0x0 canvas.
func NewCanvas() *Canvas {
	return &Canvas{}
}

// Snapshot returns a copy of the canvas.
func (c *Canvas) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	shapes := make([]Shape, len(c.shapes))
	copy(shapes, c.shapes)
	return Snapshot{
		Width:         c.width,
		Height:        c.height,
		Shapes:        shapes,
		LandmarkStyle: DefaultLandmarkStyle,
	}
}

// ResizeCanvasAndResults resizes the canvas to the media's native dimensions and
// returns the results rescaled to that size.
func ResizeCanvasAndResults(src MediaSource, c *Canvas, results []face.Result) []face.Result {
	dims := src.Dimensions()

	c.mu.Lock()
	c.width = dims.Width
	c.height = dims.Height
	c.mu.Unlock()

	if results == nil {
		return nil
	}
	resized := make([]face.Result, len(results))
	for i := range results {
		resized[i] = results[i].ForSize(dims.Width, dims.Height)
	}
	return resized
}

// Draw resizes the canvas to src and replaces its content with the results,
// boxes included when withBoxes is set. It returns the resized results.
func Draw(src MediaSource, c *Canvas, results []face.Result, withBoxes bool) []face.Result {
	resized := ResizeCanvasAndResults(src, c, results)

	shapes := make([]Shape, 0, len(resized))
	for _, r := range resized {
		s := Shape{Score: r.Detection.Score}
		if withBoxes {
			box := r.Detection.Box
			s.Box = &box
		}
		if r.Landmarks != nil {
			s.Landmarks = r.Landmarks.Points
		}
		shapes = append(shapes, s)
	}

	c.mu.Lock()
	c.shapes = shapes
	c.mu.Unlock()
	return resized
}

// Clear resizes the canvas to src and removes every shape.
func Clear(src MediaSource, c *Canvas) {
	Draw(src, c, nil, true)
}
