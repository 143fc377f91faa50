package detect

import "math"

// FaceResult carries head angles and gaze derived from face landmarks.
type FaceResult struct {
	Pitch     float64
	Roll      float64
	Yaw       float64
	GazeValue Gaze
	Stamp     int64
}

// Kind returns KindFace.
func (r FaceResult) Kind() Kind { return KindFace }

// Timestamp returns the frame timestamp in milliseconds.
func (r FaceResult) Timestamp() int64 { return r.Stamp }

// Angles returns head pitch, roll and yaw in degrees.
func (r FaceResult) Angles() (float64, float64, float64) {
	return r.Pitch, r.Roll, r.Yaw
}

// Height is not produced by the face detector.
func (r FaceResult) Height() float64 { return math.NaN() }

// Gaze returns the gaze estimate.
func (r FaceResult) Gaze() Gaze { return r.GazeValue }

// PoseResult carries the body height estimate.
type PoseResult struct {
	HeightValue float64
	Stamp       int64
}

// Kind returns KindPose.
func (r PoseResult) Kind() Kind { return KindPose }

// Timestamp returns the frame timestamp in milliseconds.
func (r PoseResult) Timestamp() int64 { return r.Stamp }

// Angles are not produced by the pose detector.
func (r PoseResult) Angles() (float64, float64, float64) {
	return math.NaN(), math.NaN(), math.NaN()
}

// Height returns the body height estimate in the 0-100 range.
func (r PoseResult) Height() float64 { return r.HeightValue }

// Gaze is not produced by the pose detector.
func (r PoseResult) Gaze() Gaze { return Gaze{Label: "center", Ratio: 0.5} }
