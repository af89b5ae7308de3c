package face

import "math"

// scaleFactors returns the ratios that map a (fromW, fromH) space onto (toW, toH).
// A degenerate source space maps with factor 1.
func scaleFactors(fromW, fromH, toW, toH int) (float64, float64) {
	sx, sy := 1.0, 1.0
	if fromW > 0 && toW > 0 {
		sx = float64(toW) / float64(fromW)
	}
	if fromH > 0 && toH > 0 {
		sy = float64(toH) / float64(fromH)
	}
	return sx, sy
}

// ForSize returns the detection rescaled to a width x height coordinate space.
func (d Detection) ForSize(width, height int) Detection {
	sx, sy := scaleFactors(d.ImageWidth, d.ImageHeight, width, height)
	return Detection{
		Box: Box{
			X:      d.Box.X * sx,
			Y:      d.Box.Y * sy,
			Width:  d.Box.Width * sx,
			Height: d.Box.Height * sy,
		},
		Score:       d.Score,
		ImageWidth:  width,
		ImageHeight: height,
	}
}

// ForSize returns the landmarks rescaled to a width x height coordinate space.
func (l Landmarks) ForSize(width, height int) Landmarks {
	sx, sy := scaleFactors(l.ImageWidth, l.ImageHeight, width, height)
	points := make([]Point, len(l.Points))
	for i, p := range l.Points {
		points[i] = Point{X: p.X * sx, Y: p.Y * sy}
	}
	return Landmarks{Points: points, ImageWidth: width, ImageHeight: height}
}

// ForSize rescales the detection and landmarks. The descriptor is shared.
func (r Result) ForSize(width, height int) Result {
	out := Result{
		Detection:  r.Detection.ForSize(width, height),
		Descriptor: r.Descriptor,
	}
	if r.Landmarks != nil {
		lm := r.Landmarks.ForSize(width, height)
		out.Landmarks = &lm
	}
	return out
}

// Largest returns the result with the largest detection area, or nil for an empty slice.
// Ties keep the first result.
func Largest(results []Result) *Result {
	var best *Result
	bestArea := -1.0
	for i := range results {
		area := results[i].Detection.Box.Area()
		if area > bestArea {
			bestArea = area
			best = &results[i]
		}
	}
	return best
}

// BoxFromCorners converts [x1, y1, x2, y2] into a Box. Invalid input yields a zero box.
func BoxFromCorners(bbox []float64) Box {
	if len(bbox) != 4 {
		return Box{}
	}
	return Box{
		X:      bbox[0],
		Y:      bbox[1],
		Width:  bbox[2] - bbox[0],
		Height: bbox[3] - bbox[1],
	}
}

// EuclideanDistance returns the L2 distance between two descriptors.
// Descriptors of different length are infinitely far apart.
func EuclideanDistance(a, b Descriptor) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
