package mimetic

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blossom-robotics/go-mimetic/pkg/blossom"
	"github.com/blossom-robotics/go-mimetic/pkg/camera"
	"github.com/blossom-robotics/go-mimetic/pkg/detect"
	"github.com/blossom-robotics/go-mimetic/pkg/fusion"
	"github.com/blossom-robotics/go-mimetic/pkg/motion"
)

// fakeFrames is an in-memory FrameProvider.
type fakeFrames struct {
	mu      sync.Mutex
	ready   bool
	stopped bool
}

func (f *fakeFrames) Latest(camera.Options) (camera.Frame, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.ready {
		return camera.Frame{}, false
	}
	return camera.Frame{JPEG: []byte{0xff, 0xd8}, Width: 2, Height: 2}, true
}

func (f *fakeFrames) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeFrames) Join() {}

func (f *fakeFrames) Stopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.FrameInterval = 5 * time.Millisecond
	cfg.InitTimeout = time.Second
	cfg.InitPollInterval = time.Millisecond
	cfg.CalibrationWindow = 500 * time.Millisecond
	cfg.CalibrationMaxSamples = 5
	cfg.StopTimeout = time.Second
	return cfg
}

// newTestSession wires a session around mock detectors and a fake
// frame source. The face mock replays the given result forever.
func newTestSession(cfg Config, face detect.Result, slots *SlotTable) (*Session, *fakeFrames) {
	frames := &fakeFrames{ready: true}
	buffer := fusion.NewBuffer(fusion.DefaultConfig())
	dispatch := detect.NewDispatch(buffer.Add, detect.NewMockDetector(detect.KindFace, face))
	smoother := motion.NewSmoother(motion.DefaultConfig())
	if slots == nil {
		slots = NewSlotTable()
	}
	return NewSession(cfg, frames, dispatch, buffer, smoother, slots), frames
}

func TestSession_Lifecycle(t *testing.T) {
	s, frames := newTestSession(fastConfig(), detect.FaceResult{Pitch: 2}, nil)

	snapshots := make(chan Snapshot, 64)
	s.OnSnapshot = func(snap Snapshot) {
		select {
		case snapshots <- snap:
		default:
		}
	}

	if got := s.State(); got != StateIdle {
		t.Fatalf("new session should be idle, got %s", got)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := s.State(); got != StateRunning {
		t.Errorf("after Start want running, got %s", got)
	}
	if err := s.Start(); err == nil {
		t.Error("second Start should fail")
	}

	select {
	case snap := <-snapshots:
		if snap.SessionID != s.ID {
			t.Errorf("snapshot session id %q, want %q", snap.SessionID, s.ID)
		}
		if snap.State != "running" {
			t.Errorf("snapshot state %q, want running", snap.State)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot from the control loop")
	}

	s.Stop()
	s.Stop() // idempotent
	if got := s.State(); got != StateStopped {
		t.Errorf("after Stop want stopped, got %s", got)
	}
	if !frames.Stopped() {
		t.Error("Stop should stop the frame source")
	}
}

func TestSession_InitTimeout(t *testing.T) {
	cfg := fastConfig()
	cfg.InitTimeout = 50 * time.Millisecond
	s, frames := newTestSession(cfg, detect.FaceResult{}, nil)
	frames.mu.Lock()
	frames.ready = false
	frames.mu.Unlock()

	if err := s.Start(); err == nil {
		t.Fatal("Start should fail when the camera never produces a frame")
	}
	if got := s.State(); got != StateStopped {
		t.Errorf("failed init should end stopped, got %s", got)
	}
}

func TestSession_CalibrateComputesMeanOffset(t *testing.T) {
	s, _ := newTestSession(fastConfig(), detect.FaceResult{Pitch: 10, Roll: 4, Yaw: -2}, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	if err := s.Calibrate(); err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	off := s.Offset()
	if math.Abs(off.Pitch-10) > 1e-9 || math.Abs(off.Roll-4) > 1e-9 || math.Abs(off.Yaw+2) > 1e-9 {
		t.Errorf("offset should equal the constant pose, got %+v", off)
	}
	if got := s.State(); got != StateRunning {
		t.Errorf("calibration should return to running, got %s", got)
	}
}

func TestSession_CalibrateWithoutSamples(t *testing.T) {
	cfg := fastConfig()
	cfg.CalibrationWindow = 100 * time.Millisecond

	frames := &fakeFrames{ready: true}
	buffer := fusion.NewBuffer(fusion.DefaultConfig())
	silent := detect.NewMockDetector(detect.KindFace)
	silent.Silent = true
	dispatch := detect.NewDispatch(buffer.Add, silent)
	s := NewSession(cfg, frames, dispatch, buffer,
		motion.NewSmoother(motion.DefaultConfig()), NewSlotTable())

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	if err := s.Calibrate(); err == nil {
		t.Error("Calibrate should fail when no samples arrive")
	}
	if got := s.State(); got != StateRunning {
		t.Errorf("failed calibration should return to running, got %s", got)
	}
}

func TestSession_CalibrateRequiresRunning(t *testing.T) {
	s, _ := newTestSession(fastConfig(), detect.FaceResult{}, nil)
	if err := s.Calibrate(); err == nil {
		t.Error("Calibrate before Start should fail")
	}
}

func TestSession_SendsToAttachedSlot(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p blossom.Payload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		hits.Add(1)
	}))
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	host, portStr, _ := net.SplitHostPort(u.Host)
	port, _ := strconv.Atoi(portStr)
	senderCfg := blossom.DefaultConfig(host, port)
	senderCfg.MinInterval = time.Millisecond

	slots := NewSlotTable()
	if err := slots.Attach(SlotOne, blossom.NewSender(senderCfg)); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	// A pitch far from neutral guarantees the change threshold fires.
	s, _ := newTestSession(fastConfig(), detect.FaceResult{Pitch: 25}, slots)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for hits.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hits.Load() == 0 {
		t.Fatal("no payload reached the robot endpoint")
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StateInitializing, "initializing"},
		{StateCalibrating, "calibrating"},
		{StateRunning, "running"},
		{StateStopping, "stopping"},
		{StateStopped, "stopped"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("%d: want %q, got %q", int(tt.state), tt.want, got)
		}
	}
}
