package detect

import (
	"sync/atomic"
	"time"

	"github.com/blossom-robotics/go-mimetic/pkg/camera"
)

// MockDetector replays scripted results for tests and camera-less
// development. Each accepted frame consumes the next scripted result;
// when the script runs out the last result repeats.
type MockDetector struct {
	kind    Kind
	results []Result
	// Latency delays the callback to mimic inference time.
	Latency time.Duration
	// Silent drops every frame without invoking the callback.
	Silent bool

	calls  atomic.Int64
	closed atomic.Bool
}

// NewMockDetector creates a mock producing the given results in order.
func NewMockDetector(kind Kind, results ...Result) *MockDetector {
	return &MockDetector{kind: kind, results: results}
}

// Kind returns the configured kind.
func (m *MockDetector) Kind() Kind { return m.kind }

// Detect invokes the callback asynchronously with the next scripted
// result, stamped with the submitted timestamp.
func (m *MockDetector) Detect(_ camera.Frame, timestamp int64, cb Callback) {
	n := m.calls.Add(1)
	if m.Silent || len(m.results) == 0 {
		return
	}

	idx := int(n) - 1
	if idx >= len(m.results) {
		idx = len(m.results) - 1
	}
	res := restamp(m.results[idx], timestamp)

	go func() {
		if m.Latency > 0 {
			time.Sleep(m.Latency)
		}
		cb(res)
	}()
}

// Calls returns how many frames the mock has accepted.
func (m *MockDetector) Calls() int64 { return m.calls.Load() }

// Closed reports whether Close has been called.
func (m *MockDetector) Closed() bool { return m.closed.Load() }

// Close marks the mock closed.
func (m *MockDetector) Close() error {
	m.closed.Store(true)
	return nil
}

func restamp(r Result, ts int64) Result {
	switch v := r.(type) {
	case FaceResult:
		v.Stamp = ts
		return v
	case PoseResult:
		v.Stamp = ts
		return v
	default:
		return r
	}
}
