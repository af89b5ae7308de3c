package pipeline

import (
	"context"
	"errors"

	"github.com/kozaktomas/facecheck/internal/capture"
	"github.com/kozaktomas/facecheck/internal/inference"
	"github.com/kozaktomas/facecheck/internal/photo"
)

// Kind classifies pipeline failures.
type Kind string

// Error kinds.
const (
	KindPermission Kind = "permission"
	KindNetwork    Kind = "network"
	KindDecode     Kind = "decode"
	KindInference  Kind = "inference"
	KindCapture    Kind = "capture"
	KindCancelled  Kind = "cancelled"
	KindUnknown    Kind = "unknown"
)

// Classify maps an error to its kind by the sentinel it wraps.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, capture.ErrPermissionDenied):
		return KindPermission
	case errors.Is(err, inference.ErrNetwork):
		return KindNetwork
	case errors.Is(err, capture.ErrDecode), errors.Is(err, photo.ErrDecode), errors.Is(err, photo.ErrNotJPEG):
		return KindDecode
	case errors.Is(err, inference.ErrInference):
		return KindInference
	case errors.Is(err, capture.ErrNoFrame):
		return KindCapture
	case errors.Is(err, context.Canceled):
		return KindCancelled
	default:
		return KindUnknown
	}
}

// Recoverable reports whether a loop may skip the failed iteration and carry on.
// A bad or missing frame is transient; everything else restarts the pipeline.
func (k Kind) Recoverable() bool {
	return k == KindDecode || k == KindCapture
}
