package overlay

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/kozaktomas/facecheck/internal/face"
)

const (
	boxLineWidth   = 2
	landmarkRadius = 1.5
	circleSegments = 12
)

var (
	boxColor      = color.RGBA{R: 0, G: 0, B: 255, A: 255}
	landmarkColor = color.RGBA{R: 0, G: 128, B: 0, A: 255}
	labelColor    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Render rasterizes the snapshot onto a transparent image of the canvas size.
func (s Snapshot) Render() *image.RGBA {
	w, h := max(s.Width, 1), max(s.Height, 1)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))

	for _, shape := range s.Shapes {
		if shape.Box != nil {
			drawBox(dst, shape.Box.X, shape.Box.Y, shape.Box.Width, shape.Box.Height)
			drawLabel(dst, shape.Box.X, shape.Box.Y+shape.Box.Height, fmt.Sprintf("%.2f", shape.Score))
		}
		if len(shape.Landmarks) > 0 {
			radius := landmarkRadius * float64(max(s.LandmarkStyle.LineWidth, 1))
			drawPoints(dst, shape.Landmarks, radius)
		}
	}
	return dst
}

// EncodePNG renders the snapshot and encodes it as PNG.
func (s Snapshot) EncodePNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, s.Render()); err != nil {
		return nil, fmt.Errorf("encode overlay png: %w", err)
	}
	return buf.Bytes(), nil
}

// drawBox strokes a rectangle outline.
func drawBox(dst *image.RGBA, x, y, w, h float64) {
	x0, y0 := int(math.Round(x)), int(math.Round(y))
	x1, y1 := int(math.Round(x+w)), int(math.Round(y+h))
	src := image.NewUniform(boxColor)

	edges := []image.Rectangle{
		image.Rect(x0, y0, x1, y0+boxLineWidth),
		image.Rect(x0, y1-boxLineWidth, x1, y1),
		image.Rect(x0, y0, x0+boxLineWidth, y1),
		image.Rect(x1-boxLineWidth, y0, x1, y1),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(dst.Bounds()), src, image.Point{}, draw.Over)
	}
}

// drawLabel writes the detection score below the box.
func drawLabel(dst *image.RGBA, x, y float64, text string) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(labelColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(int(x), int(y)+basicfont.Face7x13.Ascent),
	}
	d.DrawString(text)
}

// drawPoints fills a small circle around every landmark. Circles crossing the
// image edge are clipped; circles entirely outside are skipped.
func drawPoints(dst *image.RGBA, points []face.Point, radius float64) {
	b := dst.Bounds()
	pad := int(math.Ceil(radius)) + 1
	w, h := b.Dx()+2*pad, b.Dy()+2*pad
	z := vector.NewRasterizer(w, h)
	drawn := false
	for _, p := range points {
		if p.X+radius < 0 || p.Y+radius < 0 || p.X-radius > float64(b.Dx()) || p.Y-radius > float64(b.Dy()) {
			continue
		}
		cx, cy := p.X+float64(pad), p.Y+float64(pad)
		for i := 0; i <= circleSegments; i++ {
			a := 2 * math.Pi * float64(i) / circleSegments
			px := float32(cx + radius*math.Cos(a))
			py := float32(cy + radius*math.Sin(a))
			if i == 0 {
				z.MoveTo(px, py)
			} else {
				z.LineTo(px, py)
			}
		}
		z.ClosePath()
		drawn = true
	}
	if !drawn {
		return
	}

	// The rasterizer works in padded space; the mask offset maps it back.
	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	draw.DrawMask(dst, b, image.NewUniform(landmarkColor), image.Point{}, mask, image.Pt(pad, pad), draw.Over)
}
