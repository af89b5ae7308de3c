// Package photo holds the reference photo the webcam feed is matched against.
package photo

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"sync"

	"github.com/kozaktomas/facecheck/internal/constants"
	"github.com/kozaktomas/facecheck/internal/overlay"
)

var (
	// ErrNotJPEG is returned when an upload declares a MIME type other than image/jpeg.
	ErrNotJPEG = errors.New("reference photo must be image/jpeg")
	// ErrDecode wraps reference photos that cannot be decoded.
	ErrDecode = errors.New("invalid reference photo")
)

// Photo is one immutable version of the reference image.
type Photo struct {
	Data    []byte
	Width   int
	Height  int
	Version int
	Default bool
}

// Dimensions returns the native photo resolution.
func (p *Photo) Dimensions() overlay.Dimensions {
	return overlay.Dimensions{Width: p.Width, Height: p.Height}
}

// DataURL returns the photo as a data:image/jpeg;base64 URL.
func (p *Photo) DataURL() string {
	return "data:" + constants.JPEGContentType + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}

// Store keeps the current reference photo. It is safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	current     *Photo
	defaultData []byte
	version     int
}

// NewStore creates a store showing the default image. The default is read from
// defaultPath (JPEG, PNG or BMP) when set, otherwise a neutral placeholder is generated.
func NewStore(defaultPath string) (*Store, error) {
	data, err := loadDefault(defaultPath)
	if err != nil {
		return nil, err
	}
	s := &Store{defaultData: data}
	if err := s.setLocked(data, true); err != nil {
		return nil, fmt.Errorf("default photo: %w", err)
	}
	return s, nil
}

func loadDefault(path string) ([]byte, error) {
	if path == "" {
		return Placeholder(constants.PlaceholderWidth, constants.PlaceholderHeight)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading default photo: %w", err)
	}
	// The default may be any supported format; it is served as JPEG.
	return ToJPEG(data, 0)
}

// Placeholder generates a flat gray JPEG of the given size.
func Placeholder(width, height int) ([]byte, error) {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 0xd0
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("encoding placeholder: %w", err)
	}
	return buf.Bytes(), nil
}

// Current returns the current photo.
func (s *Store) Current() *Photo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Set replaces the reference photo. A content type other than image/jpeg
// resets the store to the default image and returns ErrNotJPEG.
func (s *Store) Set(contentType string, data []byte) (*Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if contentType != constants.JPEGContentType {
		if err := s.setLocked(s.defaultData, true); err != nil {
			return nil, err
		}
		return s.current, fmt.Errorf("%w: got %q", ErrNotJPEG, contentType)
	}
	if err := s.setLocked(data, false); err != nil {
		return nil, err
	}
	return s.current, nil
}

// Reset restores the default image.
func (s *Store) Reset() *Photo {
	s.mu.Lock()
	defer s.mu.Unlock()
	// The default was validated by NewStore.
	_ = s.setLocked(s.defaultData, true)
	return s.current
}

// setLocked decodes the header of data and makes it current. Caller holds mu.
func (s *Store) setLocked(data []byte, isDefault bool) error {
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	s.version++
	s.current = &Photo{
		Data:    data,
		Width:   cfg.Width,
		Height:  cfg.Height,
		Version: s.version,
		Default: isDefault,
	}
	return nil
}
