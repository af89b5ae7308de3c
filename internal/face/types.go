// Package face holds the data model shared by the inference client, the matcher,
// the overlay renderer and the detection loops.
package face

// DescriptorSize is the length of a face descriptor produced by the recognition model.
const DescriptorSize = 128

// Point is a 2-D coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box is an axis-aligned rectangle given by its top-left corner and size.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area returns the box area, zero for degenerate boxes.
func (b Box) Area() float64 {
	if b.Width <= 0 || b.Height <= 0 {
		return 0
	}
	return b.Width * b.Height
}

// Detection is a face bounding box with its confidence score.
// ImageWidth and ImageHeight describe the coordinate space of Box.
type Detection struct {
	Box         Box     `json:"box"`
	Score       float64 `json:"score"`
	ImageWidth  int     `json:"image_width"`
	ImageHeight int     `json:"image_height"`
}

// Landmarks is the fixed set of points annotating one detected face.
type Landmarks struct {
	Points      []Point `json:"points"`
	ImageWidth  int     `json:"image_width"`
	ImageHeight int     `json:"image_height"`
}

// Descriptor is the identity embedding of a face.
type Descriptor []float32

// Result is everything the inference server returned for one face.
// Landmarks and Descriptor are nil when they were not requested.
type Result struct {
	Detection  Detection  `json:"detection"`
	Landmarks  *Landmarks `json:"landmarks,omitempty"`
	Descriptor Descriptor `json:"-"`
}

// DetectorOptions configures the face detector for one input context.
type DetectorOptions struct {
	InputSize      int     `json:"input_size" yaml:"input_size"`
	ScoreThreshold float64 `json:"score_threshold" yaml:"score_threshold"`
}
