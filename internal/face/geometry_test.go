package face

import (
	"math"
	"testing"
)

func TestDetectionForSize(t *testing.T) {
	tests := []struct {
		name     string
		det      Detection
		width    int
		height   int
		expected Box
	}{
		{
			name:     "upscale from model input",
			det:      Detection{Box: Box{X: 10, Y: 20, Width: 30, Height: 40}, ImageWidth: 256, ImageHeight: 256},
			width:    512,
			height:   1024,
			expected: Box{X: 20, Y: 80, Width: 60, Height: 160},
		},
		{
			name:     "same size is a no-op",
			det:      Detection{Box: Box{X: 10, Y: 20, Width: 30, Height: 40}, ImageWidth: 640, ImageHeight: 480},
			width:    640,
			height:   480,
			expected: Box{X: 10, Y: 20, Width: 30, Height: 40},
		},
		{
			name:     "degenerate source space keeps coordinates",
			det:      Detection{Box: Box{X: 1, Y: 2, Width: 3, Height: 4}},
			width:    640,
			height:   480,
			expected: Box{X: 1, Y: 2, Width: 3, Height: 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.det.ForSize(tt.width, tt.height)
			if got.Box != tt.expected {
				t.Errorf("ForSize() box = %+v, want %+v", got.Box, tt.expected)
			}
			if got.ImageWidth != tt.width || got.ImageHeight != tt.height {
				t.Errorf("ForSize() space = %dx%d, want %dx%d", got.ImageWidth, got.ImageHeight, tt.width, tt.height)
			}
			if got.Score != tt.det.Score {
				t.Errorf("ForSize() score = %v, want %v", got.Score, tt.det.Score)
			}
		})
	}
}

func TestResultForSize_RoundTrip(t *testing.T) {
	res := Result{
		Detection: Detection{Box: Box{X: 12, Y: 34, Width: 56, Height: 78}, Score: 0.9, ImageWidth: 256, ImageHeight: 192},
		Landmarks: &Landmarks{
			Points:      []Point{{X: 20, Y: 40}, {X: 60, Y: 80}},
			ImageWidth:  256,
			ImageHeight: 192,
		},
		Descriptor: Descriptor{0.1, 0.2},
	}

	full := res.ForSize(1280, 960)
	back := full.ForSize(256, 192)

	if math.Abs(back.Detection.Box.X-res.Detection.Box.X) > 1e-9 ||
		math.Abs(back.Detection.Box.Height-res.Detection.Box.Height) > 1e-9 {
		t.Errorf("round trip box = %+v, want %+v", back.Detection.Box, res.Detection.Box)
	}
	for i, p := range back.Landmarks.Points {
		if math.Abs(p.X-res.Landmarks.Points[i].X) > 1e-9 || math.Abs(p.Y-res.Landmarks.Points[i].Y) > 1e-9 {
			t.Errorf("round trip point %d = %+v, want %+v", i, p, res.Landmarks.Points[i])
		}
	}

	// Rescaling a full-resolution result to itself is a no-op.
	same := full.ForSize(1280, 960)
	if same.Detection != full.Detection {
		t.Errorf("identity ForSize changed detection: %+v vs %+v", same.Detection, full.Detection)
	}
	if len(same.Descriptor) != 2 {
		t.Errorf("descriptor not carried over")
	}
	if res.Landmarks.Points[0].X != 20 {
		t.Errorf("ForSize mutated the source landmarks")
	}
}

func TestResultForSize_NoLandmarks(t *testing.T) {
	res := Result{Detection: Detection{Box: Box{Width: 10, Height: 10}, ImageWidth: 10, ImageHeight: 10}}
	got := res.ForSize(20, 20)
	if got.Landmarks != nil {
		t.Error("expected nil landmarks")
	}
	if got.Detection.Box.Width != 20 {
		t.Errorf("width = %v, want 20", got.Detection.Box.Width)
	}
}

func TestLargest(t *testing.T) {
	if Largest(nil) != nil {
		t.Error("expected nil for empty input")
	}

	results := []Result{
		{Detection: Detection{Box: Box{Width: 10, Height: 10}, Score: 0.99}},
		{Detection: Detection{Box: Box{Width: 30, Height: 20}, Score: 0.6}},
		{Detection: Detection{Box: Box{Width: 20, Height: 30}, Score: 0.7}},
	}
	got := Largest(results)
	if got != &results[1] {
		t.Errorf("Largest() picked %+v, want the first 600px box", got.Detection)
	}
}

func TestBoxFromCorners(t *testing.T) {
	b := BoxFromCorners([]float64{10, 20, 40, 60})
	if b != (Box{X: 10, Y: 20, Width: 30, Height: 40}) {
		t.Errorf("BoxFromCorners() = %+v", b)
	}
	if BoxFromCorners([]float64{1, 2}) != (Box{}) {
		t.Error("expected zero box for invalid input")
	}
}

func TestEuclideanDistance(t *testing.T) {
	if d := EuclideanDistance(Descriptor{0, 0}, Descriptor{3, 4}); math.Abs(d-5) > 1e-9 {
		t.Errorf("distance = %v, want 5", d)
	}
	if d := EuclideanDistance(Descriptor{1}, Descriptor{1, 2}); !math.IsInf(d, 1) {
		t.Errorf("mismatched lengths distance = %v, want +Inf", d)
	}
}
