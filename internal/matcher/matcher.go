// Package matcher classifies a probe descriptor against a gallery of labeled face descriptors.
package matcher

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kozaktomas/facecheck/internal/face"
)

const (
	// UnknownLabel is returned when no gallery entry is closer than the distance threshold.
	UnknownLabel = "unknown"

	// DefaultDistanceThreshold bounds the euclidean distance, exclusive, for two
	// descriptors to be considered the same person.
	DefaultDistanceThreshold = 0.6

	labelPrefix = "person"
)

// ErrEmptyGallery is returned when a matcher is built without any usable descriptor.
var ErrEmptyGallery = errors.New("matcher: gallery has no descriptors")

// Match is the outcome of a best-match query.
type Match struct {
	Label    string  `json:"label"`
	Distance float64 `json:"distance"`
}

// IsUnknown reports whether the probe matched nothing.
func (m Match) IsUnknown() bool {
	return m.Label == UnknownLabel
}

// LabeledDescriptor is a gallery entry.
type LabeledDescriptor struct {
	Label      string
	Descriptor face.Descriptor
}

// FaceMatcher is a nearest-neighbor matcher over a fixed gallery.
type FaceMatcher struct {
	gallery   []LabeledDescriptor
	threshold float64
	index     *annIndex
}

// LabelFor returns the gallery label of the face at the given 0-based position.
func LabelFor(index int) string {
	return fmt.Sprintf("%s %d", labelPrefix, index+1)
}

// ParsePersonIndex parses a "person N" label into the 0-based gallery position.
// It returns false for "unknown" and for anything that is not a positive integer after the prefix.
func ParsePersonIndex(label string) (int, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(label), labelPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil || n < 1 {
		return 0, false
	}
	return n - 1, true
}

// New builds a matcher over the given results. Each result with a descriptor
// becomes the gallery entry "person N", N being its 1-based position in results.
// A threshold <= 0 selects DefaultDistanceThreshold.
func New(results []face.Result, threshold float64) (*FaceMatcher, error) {
	gallery := make([]LabeledDescriptor, 0, len(results))
	for i, r := range results {
		if len(r.Descriptor) == 0 {
			continue
		}
		gallery = append(gallery, LabeledDescriptor{Label: LabelFor(i), Descriptor: r.Descriptor})
	}
	return NewFromLabeled(gallery, threshold)
}

// NewFromLabeled builds a matcher over an explicit gallery.
func NewFromLabeled(gallery []LabeledDescriptor, threshold float64) (*FaceMatcher, error) {
	if len(gallery) == 0 {
		return nil, ErrEmptyGallery
	}
	if threshold <= 0 {
		threshold = DefaultDistanceThreshold
	}

	m := &FaceMatcher{
		gallery:   gallery,
		threshold: threshold,
	}
	if len(gallery) >= ANNMinGallery {
		m.index = newANNIndex(gallery)
	}
	return m, nil
}

// Size returns the number of gallery entries.
func (m *FaceMatcher) Size() int {
	return len(m.gallery)
}

// FindBestMatch returns the closest gallery entry, or UnknownLabel with the
// nearest distance when that entry is not strictly within the threshold.
func (m *FaceMatcher) FindBestMatch(probe face.Descriptor) Match {
	best := -1
	bestDist := 0.0

	if m.index != nil {
		best, bestDist = m.index.nearest(probe)
	} else {
		for i := range m.gallery {
			d := face.EuclideanDistance(m.gallery[i].Descriptor, probe)
			if best < 0 || d < bestDist {
				best = i
				bestDist = d
			}
		}
	}

	if best < 0 || bestDist >= m.threshold {
		return Match{Label: UnknownLabel, Distance: bestDist}
	}
	return Match{Label: m.gallery[best].Label, Distance: bestDist}
}
