package photo

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// jpegQuality is used when re-encoding converted images.
const jpegQuality = 90

// ToJPEG decodes a JPEG, PNG or BMP image and re-encodes it as JPEG, scaled down
// to fit within maxSize on its longer side. A maxSize of zero keeps the size.
func ToJPEG(data []byte, maxSize int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if maxSize > 0 && (width > maxSize || height > maxSize) {
		var newWidth, newHeight int
		if width > height {
			newWidth = maxSize
			newHeight = max(1, int(float64(height)*float64(maxSize)/float64(width)))
		} else {
			newHeight = maxSize
			newWidth = max(1, int(float64(width)*float64(maxSize)/float64(height)))
		}
		resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
		draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
		img = resized
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
