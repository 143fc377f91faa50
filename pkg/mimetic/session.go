// Package mimetic runs the control loop that turns fused pose samples
// into rate-limited robot commands: acquire frame, fan out to the
// detectors, read the latest fused sample, smooth, gate, send.
package mimetic

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/blossom-robotics/go-mimetic/internal/log"
	"github.com/blossom-robotics/go-mimetic/pkg/blossom"
	"github.com/blossom-robotics/go-mimetic/pkg/camera"
	"github.com/blossom-robotics/go-mimetic/pkg/detect"
	"github.com/blossom-robotics/go-mimetic/pkg/fusion"
	"github.com/blossom-robotics/go-mimetic/pkg/motion"
)

// FrameProvider is the session's view of the frame source.
type FrameProvider interface {
	Latest(opts camera.Options) (camera.Frame, bool)
	Stop()
	Join()
}

// Config holds session tuning.
type Config struct {
	// FrameInterval is the control loop period (33ms targets 30 FPS).
	FrameInterval time.Duration
	// DetectWidth and DetectHeight downsize frames before detection.
	DetectWidth  int
	DetectHeight int
	// Mirror flips frames so the robot mirrors the user.
	Mirror bool
	// InitTimeout bounds the first-frame wait; exceeding it means the
	// camera or its driver is broken, not slow.
	InitTimeout      time.Duration
	InitPollInterval time.Duration
	// CalibrationWindow and CalibrationMaxSamples bound the blocking
	// calibration routine.
	CalibrationWindow     time.Duration
	CalibrationMaxSamples int
	// AngleClamp bounds each axis in degrees after offset subtraction.
	AngleClamp float64
	// StopTimeout bounds each component join during shutdown.
	StopTimeout time.Duration
}

// DefaultConfig returns the recommended session configuration.
func DefaultConfig() Config {
	return Config{
		FrameInterval:         33 * time.Millisecond,
		DetectWidth:           320,
		DetectHeight:          180,
		Mirror:                true,
		InitTimeout:           5 * time.Second,
		InitPollInterval:      10 * time.Millisecond,
		CalibrationWindow:     2 * time.Second,
		CalibrationMaxSamples: 10,
		AngleClamp:            30,
		StopTimeout:           2 * time.Second,
	}
}

// Offset is the calibration offset subtracted from every sample.
type Offset struct {
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
	Yaw   float64 `json:"yaw"`
}

// Session owns one run of the pipeline from camera to robot.
type Session struct {
	ID  string
	cfg Config

	frames   FrameProvider
	dispatch *detect.Dispatch
	buffer   *fusion.Buffer
	smoother *motion.Smoother
	slots    *SlotTable
	logger   *slog.Logger

	// OnSnapshot, when set before Start, receives one telemetry
	// snapshot per loop iteration. It must not block.
	OnSnapshot func(Snapshot)

	state atomic.Int32

	offsetMu sync.Mutex
	offset   Offset

	started  atomic.Bool
	stopOnce sync.Once
	stopping chan struct{}
	done     chan struct{}
}

// NewSession wires a session from its components. The dispatch must
// already be connected to the buffer's Add.
func NewSession(cfg Config, frames FrameProvider, dispatch *detect.Dispatch,
	buffer *fusion.Buffer, smoother *motion.Smoother, slots *SlotTable) *Session {
	id := uuid.NewString()
	return &Session{
		ID:       id,
		cfg:      cfg,
		frames:   frames,
		dispatch: dispatch,
		buffer:   buffer,
		smoother: smoother,
		slots:    slots,
		logger:   log.With("component", "session", "session_id", id),
		stopping: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Offset returns the current calibration offset.
func (s *Session) Offset() Offset {
	s.offsetMu.Lock()
	defer s.offsetMu.Unlock()
	return s.offset
}

// Slots returns the sender slot table.
func (s *Session) Slots() *SlotTable { return s.slots }

// Start waits for the first frame, starts the detector dispatch and
// launches the control loop. An initialization failure is fatal: it
// signals a hardware or driver problem, not a transient condition.
func (s *Session) Start() error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateInitializing)) {
		return fmt.Errorf("session already started (state %s)", s.State())
	}

	deadline := time.Now().Add(s.cfg.InitTimeout)
	for {
		if _, ok := s.frames.Latest(camera.Options{}); ok {
			break
		}
		if time.Now().After(deadline) {
			s.state.Store(int32(StateStopped))
			return fmt.Errorf("no frame from camera within %s", s.cfg.InitTimeout)
		}
		select {
		case <-s.stopping:
			s.state.Store(int32(StateStopped))
			return fmt.Errorf("stopped during initialization")
		case <-time.After(s.cfg.InitPollInterval):
		}
	}

	s.dispatch.Start()
	s.state.Store(int32(StateRunning))
	s.started.Store(true)
	go s.run()

	s.logger.Info("session running", "frame_interval", s.cfg.FrameInterval)
	return nil
}

// Calibrate blocks for the calibration window, averaging fused angle
// triples into the session offset. The user should hold a neutral pose.
// Zero collected samples is a fatal calibration failure: there is
// nothing sane to average.
func (s *Session) Calibrate() error {
	if !s.state.CompareAndSwap(int32(StateRunning), int32(StateCalibrating)) {
		return fmt.Errorf("cannot calibrate in state %s", s.State())
	}
	defer s.state.CompareAndSwap(int32(StateCalibrating), int32(StateRunning))

	s.logger.Info("calibrating, hold a neutral pose",
		"window", s.cfg.CalibrationWindow)

	var (
		pitches, rolls, yaws []float64
		lastTS               int64
	)
	deadline := time.Now().Add(s.cfg.CalibrationWindow)
	for time.Now().Before(deadline) && len(pitches) < s.cfg.CalibrationMaxSamples {
		if frame, ok := s.frames.Latest(s.detectOpts()); ok {
			s.dispatch.Submit(frame)
		}
		if sample, ok := s.buffer.Latest(); ok && sample.Timestamp != lastTS {
			lastTS = sample.Timestamp
			pitches = append(pitches, sample.Pitch)
			rolls = append(rolls, sample.Roll)
			yaws = append(yaws, sample.Yaw)
		}
		select {
		case <-s.stopping:
			return fmt.Errorf("stopped during calibration")
		case <-time.After(s.cfg.InitPollInterval):
		}
	}

	if len(pitches) == 0 {
		return fmt.Errorf("calibration failed: no valid samples in %s", s.cfg.CalibrationWindow)
	}

	off := Offset{Pitch: mean(pitches), Roll: mean(rolls), Yaw: mean(yaws)}
	s.offsetMu.Lock()
	s.offset = off
	s.offsetMu.Unlock()

	s.logger.Info("calibration complete", "samples", len(pitches),
		"pitch_offset", off.Pitch, "roll_offset", off.Roll, "yaw_offset", off.Yaw)
	return nil
}

func (s *Session) detectOpts() camera.Options {
	return camera.Options{
		Width:  s.cfg.DetectWidth,
		Height: s.cfg.DetectHeight,
		Mirror: s.cfg.Mirror,
	}
}

// run is the fixed-period control loop. Best-effort real time: when an
// iteration overruns the frame budget the next one starts immediately.
func (s *Session) run() {
	defer close(s.done)

	prev := time.Now()
	for {
		select {
		case <-s.stopping:
			return
		default:
		}

		iterStart := time.Now()

		if frame, ok := s.frames.Latest(s.detectOpts()); ok {
			s.dispatch.Submit(frame)
		}

		sample, ok := s.buffer.Latest()
		if !ok {
			// No fused sample yet; don't spin.
			select {
			case <-s.stopping:
				return
			case <-time.After(s.cfg.InitPollInterval):
			}
			continue
		}

		fps := 0.0
		now := time.Now()
		if dt := now.Sub(prev).Seconds(); dt > 0 {
			fps = 1 / dt
		}
		prev = now

		s.step(sample, fps)

		if rest := s.cfg.FrameInterval - time.Since(iterStart); rest > 0 {
			select {
			case <-s.stopping:
				return
			case <-time.After(rest):
			}
		}
	}
}

// step processes one fused sample: offset, clamp, smooth, gate, send.
func (s *Session) step(sample fusion.Sample, fps float64) {
	off := s.Offset()
	pitch := clampf(sample.Pitch-off.Pitch, -s.cfg.AngleClamp, s.cfg.AngleClamp)
	roll := clampf(sample.Roll-off.Roll, -s.cfg.AngleClamp, s.cfg.AngleClamp)
	yaw := clampf(sample.Yaw-off.Yaw, -s.cfg.AngleClamp, s.cfg.AngleClamp)

	x, okX := s.smoother.Smooth(motion.ChX, pitch)
	y, okY := s.smoother.Smooth(motion.ChY, roll)
	z, okZ := s.smoother.Smooth(motion.ChZ, yaw)
	h, okH := s.smoother.Smooth(motion.ChH, sample.Height)
	e, _ := s.smoother.Smooth(motion.ChE, sample.Height)
	if !okX || !okY || !okZ || !okH {
		return
	}

	shouldSend, dur := s.smoother.ShouldEmit([]motion.Channel{
		motion.ChX, motion.ChY, motion.ChZ, motion.ChH,
	})

	durationMs := 500
	if shouldSend {
		durationMs = int(dur.Milliseconds())
	}
	payload := blossom.NewPayload(radians(x), radians(y), radians(z), h, e, durationMs)

	if shouldSend {
		s.slots.Broadcast(payload)
	}

	if s.OnSnapshot != nil {
		s.OnSnapshot(Snapshot{
			SessionID: s.ID,
			State:     s.State().String(),
			Axes:      Axes{Pitch: pitch, Roll: roll, Yaw: yaw},
			Smoothed:  map[string]float64{"x": x, "y": y, "z": z, "h": h, "e": e},
			Height:    sample.Height,
			Gaze:      sample.Gaze,
			FPS:       fps,
			Sent:      shouldSend,
			Timestamp: sample.Timestamp,
		})
	}
}

// Stop shuts the pipeline down: control loop first, then the frame
// source, the detector dispatch and the senders, in that order, each
// with a bounded join. A component that misses its deadline is logged
// and abandoned so it cannot hold up the rest.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.state.Store(int32(StateStopping))
		close(s.stopping)

		if s.started.Load() {
			s.joinWithTimeout("control-loop", func() { <-s.done })
		}

		s.frames.Stop()
		s.joinWithTimeout("camera", s.frames.Join)

		s.dispatch.Stop()
		s.joinWithTimeout("dispatch", s.dispatch.Join)

		s.joinWithTimeout("senders", s.slots.StopAll)

		s.state.Store(int32(StateStopped))
		s.logger.Info("session stopped")
	})
}

func (s *Session) joinWithTimeout(name string, join func()) {
	done := make(chan struct{})
	go func() {
		join()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.cfg.StopTimeout):
		s.logger.Error("component did not stop in time", "target", name,
			"timeout", s.cfg.StopTimeout)
	}
}

func mean(vs []float64) float64 {
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

func clampf(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
