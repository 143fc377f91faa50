// Package fusion reconciles independently-arriving detector results
// into fused pose samples.
//
// Pairing policy: independent-latest fusion. Each arriving result is
// merged against the most recent result of the other kind, regardless
// of exact timestamp equality, subject to a per-kind validity window.
// A kind that has gone stale is excluded from fusion until refreshed.
// This trades strict timestamp pairing for lower latency, which is the
// right call for a live control signal.
package fusion

import (
	"log/slog"
	"sync"
	"time"

	"github.com/blossom-robotics/go-mimetic/internal/log"
	"github.com/blossom-robotics/go-mimetic/pkg/detect"
)

// DefaultRingSize bounds the retained fused samples.
const DefaultRingSize = 30

// Sample is a fused pose reading: head angles and gaze from the face
// detector, body height from the pose detector.
type Sample struct {
	Pitch     float64     `json:"pitch"`
	Roll      float64     `json:"roll"`
	Yaw       float64     `json:"yaw"`
	Height    float64     `json:"height"`
	Gaze      detect.Gaze `json:"gaze"`
	Timestamp int64       `json:"timestamp_ms"`
}

// Config holds fusion tuning.
type Config struct {
	RingSize int
	// FaceTimeout and PoseTimeout are the per-kind validity windows.
	// The pose window runs longer because person detection is the
	// slower of the two backends.
	FaceTimeout time.Duration
	PoseTimeout time.Duration
	// AllowPartial fuses face-only samples with FallbackHeight while
	// the pose detector is stale, instead of publishing nothing.
	AllowPartial   bool
	FallbackHeight float64
}

// DefaultConfig returns the recommended fusion configuration.
func DefaultConfig() Config {
	return Config{
		RingSize:       DefaultRingSize,
		FaceTimeout:    300 * time.Millisecond,
		PoseTimeout:    1500 * time.Millisecond,
		AllowPartial:   true,
		FallbackHeight: 50,
	}
}

type entry struct {
	result     detect.Result
	validUntil time.Time
}

// Buffer is the thread-safe correlation point between the detector
// callbacks and the control loop. A single mutex guards the per-kind
// entries and the fused ring; it is held only for O(1) work.
type Buffer struct {
	cfg    Config
	logger *slog.Logger

	mu            sync.Mutex
	latestByKind  map[detect.Kind]entry
	ring          []Sample
	lastTimestamp int64
	lastFusedAt   time.Time
}

// NewBuffer creates an empty buffer.
func NewBuffer(cfg Config) *Buffer {
	if cfg.RingSize <= 0 {
		cfg.RingSize = DefaultRingSize
	}
	return &Buffer{
		cfg:          cfg,
		logger:       log.With("component", "fusion"),
		latestByKind: make(map[detect.Kind]entry),
	}
}

// Add records a detector result and publishes a fused sample when a
// valid counterpart is available. Safe to call from any goroutine.
func (b *Buffer) Add(res detect.Result) {
	now := time.Now()

	b.mu.Lock()
	defer b.mu.Unlock()

	timeout := b.cfg.FaceTimeout
	if res.Kind() == detect.KindPose {
		timeout = b.cfg.PoseTimeout
	}
	b.latestByKind[res.Kind()] = entry{result: res, validUntil: now.Add(timeout)}

	face, haveFace := b.valid(detect.KindFace, now)
	if !haveFace {
		// Angles and gaze come from the face stream; nothing to
		// publish without them.
		return
	}

	height := b.cfg.FallbackHeight
	pose, havePose := b.valid(detect.KindPose, now)
	if havePose {
		height = pose.Height()
	} else if !b.cfg.AllowPartial {
		return
	} else {
		b.logger.Debug("no valid pose, fusing with fallback height",
			"fallback", height, "timestamp", res.Timestamp())
	}

	pitch, roll, yaw := face.Angles()

	ts := res.Timestamp()
	if ts <= b.lastTimestamp {
		ts = b.lastTimestamp + 1
	}
	b.lastTimestamp = ts

	b.ring = append(b.ring, Sample{
		Pitch:     pitch,
		Roll:      roll,
		Yaw:       yaw,
		Height:    height,
		Gaze:      face.Gaze(),
		Timestamp: ts,
	})
	if len(b.ring) > b.cfg.RingSize {
		b.ring = b.ring[len(b.ring)-b.cfg.RingSize:]
	}
	b.lastFusedAt = now
}

// valid returns the stored result for a kind if its window has not
// expired.
func (b *Buffer) valid(kind detect.Kind, now time.Time) (detect.Result, bool) {
	e, ok := b.latestByKind[kind]
	if !ok || now.After(e.validUntil) {
		return nil, false
	}
	return e.result, true
}

// Latest returns the most recent fused sample, or false if none has
// been published yet.
func (b *Buffer) Latest() (Sample, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.ring) == 0 {
		return Sample{}, false
	}
	return b.ring[len(b.ring)-1], true
}

// IsFresh reports whether a fused sample was published within maxAge.
func (b *Buffer) IsFresh(maxAge time.Duration) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.ring) == 0 {
		return false
	}
	return time.Since(b.lastFusedAt) <= maxAge
}

// Len returns the number of retained fused samples.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ring)
}

// Recent returns a copy of the retained samples, oldest first.
func (b *Buffer) Recent() []Sample {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Sample, len(b.ring))
	copy(out, b.ring)
	return out
}

// Clear drops all state: pending per-kind results and the fused ring.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.latestByKind = make(map[detect.Kind]entry)
	b.ring = nil
	b.lastTimestamp = 0
	b.lastFusedAt = time.Time{}
}
