package matcher

import (
	"github.com/coder/hnsw"

	"github.com/kozaktomas/facecheck/internal/face"
)

// HNSW parameters for large galleries.
const (
	// ANNMinGallery is the gallery size from which queries go through the HNSW graph
	// instead of a linear scan. Group photos rarely get close to it.
	ANNMinGallery = 64

	annMaxNeighbors = 16
	annEfSearch     = 64
	annCandidates   = 4
)

// annIndex wraps an HNSW graph keyed by gallery position.
type annIndex struct {
	graph   *hnsw.Graph[int]
	gallery []LabeledDescriptor
}

func newANNIndex(gallery []LabeledDescriptor) *annIndex {
	g := hnsw.NewGraph[int]()
	g.M = annMaxNeighbors
	g.Ml = 1.0 / float64(annMaxNeighbors)
	g.EfSearch = annEfSearch
	g.Distance = hnsw.EuclideanDistance

	dim := len(gallery[0].Descriptor)
	for i := range gallery {
		// The graph requires a uniform dimension; mismatched entries are unreachable anyway.
		if len(gallery[i].Descriptor) != dim {
			continue
		}
		g.Add(hnsw.MakeNode(i, []float32(gallery[i].Descriptor)))
	}
	return &annIndex{graph: g, gallery: gallery}
}

// nearest returns the gallery position and exact distance of the closest candidate.
// The graph narrows the search; the distance is recomputed in float64.
func (a *annIndex) nearest(probe face.Descriptor) (int, float64) {
	if a.graph.Len() == 0 || len(probe) != len(a.gallery[0].Descriptor) {
		return -1, 0
	}

	best := -1
	bestDist := 0.0
	for _, n := range a.graph.Search([]float32(probe), annCandidates) {
		d := face.EuclideanDistance(a.gallery[n.Key].Descriptor, probe)
		if best < 0 || d < bestDist {
			best = n.Key
			bestDist = d
		}
	}
	return best, bestDist
}
