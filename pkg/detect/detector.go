// Package detect provides asynchronous landmark detectors and the
// dispatch that fans frames out to them. Detectors are black boxes:
// they accept a frame with a timestamp and invoke a completion callback
// at most once, from their own goroutine, at an unpredictable time.
package detect

import (
	"github.com/blossom-robotics/go-mimetic/pkg/camera"
)

// Kind tags a detection result by the detector that produced it.
type Kind string

const (
	// KindFace results carry head angles and gaze.
	KindFace Kind = "face"
	// KindPose results carry the body height estimate.
	KindPose Kind = "pose"
)

// Gaze is a horizontal gaze estimate: a label and the smoothed ratio
// behind it (0 = far left, 1 = far right, 0.5 = center).
type Gaze struct {
	Label string  `json:"label"`
	Ratio float64 `json:"ratio"`
}

// Result is the accessor view of a detection. The underlying landmark
// data stays inside the detector; downstream code only reads these
// derived fields.
type Result interface {
	Kind() Kind
	Timestamp() int64
	// Angles returns head pitch, roll and yaw in degrees.
	Angles() (pitch, roll, yaw float64)
	// Height returns the body height estimate in the 0-100 range.
	Height() float64
	Gaze() Gaze
}

// Callback receives a completed detection. It is invoked from the
// detector's goroutine; implementations must not block.
type Callback func(Result)

// Detector is an asynchronous detection backend.
type Detector interface {
	Kind() Kind
	// Detect submits a frame. The callback fires at most once; a
	// detector saturated with work silently drops the frame instead.
	Detect(frame camera.Frame, timestamp int64, cb Callback)
	// Close releases detector resources.
	Close() error
}
