package mimetic

import (
	"github.com/blossom-robotics/go-mimetic/pkg/detect"
)

// State is the session lifecycle phase.
type State int32

const (
	// StateIdle is the state before Start.
	StateIdle State = iota
	// StateInitializing covers the first-frame wait.
	StateInitializing
	// StateCalibrating covers an explicit Calibrate call.
	StateCalibrating
	// StateRunning is the steady control loop.
	StateRunning
	// StateStopping covers the ordered component shutdown.
	StateStopping
	// StateStopped is terminal.
	StateStopped
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateCalibrating:
		return "calibrating"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Axes is a raw pitch/roll/yaw triple in degrees.
type Axes struct {
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
	Yaw   float64 `json:"yaw"`
}

// Snapshot is one control-loop iteration's worth of telemetry for the
// dashboard feed.
type Snapshot struct {
	SessionID string             `json:"session_id"`
	State     string             `json:"state"`
	Axes      Axes               `json:"axes"`
	Smoothed  map[string]float64 `json:"smoothed"`
	Height    float64            `json:"height"`
	Gaze      detect.Gaze        `json:"gaze"`
	FPS       float64            `json:"fps"`
	Sent      bool               `json:"sent"`
	Timestamp int64              `json:"timestamp_ms"`
}
