// Package motion smooths per-channel pose values and gates how often
// the result is allowed to reach the actuator.
package motion

import (
	"fmt"
	"math"
	"time"
)

// Channel identifies one logical actuator axis.
type Channel string

const (
	// ChX is head pitch.
	ChX Channel = "x"
	// ChY is head roll.
	ChY Channel = "y"
	// ChZ is head yaw.
	ChZ Channel = "z"
	// ChH is body height.
	ChH Channel = "h"
	// ChE drives the ears from the height signal.
	ChE Channel = "e"
)

// Channels lists every axis in emission order.
var Channels = []Channel{ChX, ChY, ChZ, ChH, ChE}

// Config holds smoothing and gating parameters.
type Config struct {
	// Alphas are per-channel EMA weights; higher trusts new readings
	// more.
	Alphas map[Channel]float64
	// RateHz caps emissions per second.
	RateHz float64
	// Threshold is the minimum max-channel change that justifies an
	// emission, measured on the smoothed (unscaled) values.
	Threshold float64
	// MinDuration and MaxDuration clamp the transition time sent to
	// the actuator.
	MinDuration time.Duration
	MaxDuration time.Duration
}

// DefaultConfig returns the recommended smoothing configuration.
func DefaultConfig() Config {
	return Config{
		Alphas: map[Channel]float64{
			ChX: 0.3,
			ChY: 0.2,
			ChZ: 0.1,
			ChH: 0.3,
			ChE: 0.2,
		},
		RateHz:      10,
		Threshold:   2.0,
		MinDuration: 100 * time.Millisecond,
		MaxDuration: 400 * time.Millisecond,
	}
}

// channelScale is the fixed clamp-and-scale mapping applied after
// smoothing, per channel's physical domain. Values map linearly from
// [inMin, inMax] into the actuator's 0-6 unit range; input is clamped
// to [clampMin, clampMax] first.
type channelScale struct {
	clampMin, clampMax float64
	inMin, inMax       float64
}

var scaleTable = map[Channel]channelScale{
	ChX: {clampMin: -150, clampMax: 150, inMin: -150, inMax: 150},
	ChY: {clampMin: -150, clampMax: 150, inMin: -150, inMax: 150},
	ChZ: {clampMin: -40, clampMax: 40, inMin: 0, inMax: 100},
	ChH: {clampMin: 0, clampMax: 100, inMin: 0, inMax: 100},
	ChE: {clampMin: 50, clampMax: 130, inMin: 50, inMax: 130},
}

// neutralPose seeds the EMA state. Height and ears rest at meaningful
// non-zero values; seeding them with zero would make the first seconds
// of a session crouch the robot.
var neutralPose = map[Channel]float64{
	ChX: 0,
	ChY: 0,
	ChZ: 0,
	ChH: 50,
	ChE: 70,
}

// Smoother keeps one EMA per channel and decides when the combined
// state has changed enough to be worth sending. It belongs to a single
// session goroutine and is not safe for concurrent use.
type Smoother struct {
	cfg         Config
	minInterval time.Duration

	smoothed    map[Channel]float64
	lastEmitted map[Channel]float64
	lastEmit    time.Time
}

// NewSmoother creates a smoother seeded with the neutral pose.
func NewSmoother(cfg Config) *Smoother {
	if cfg.RateHz <= 0 {
		cfg.RateHz = DefaultConfig().RateHz
	}
	s := &Smoother{
		cfg:         cfg,
		minInterval: time.Duration(float64(time.Second) / cfg.RateHz),
		smoothed:    make(map[Channel]float64, len(Channels)),
		lastEmitted: make(map[Channel]float64, len(Channels)),
	}
	for ch, v := range neutralPose {
		s.smoothed[ch] = v
		s.lastEmitted[ch] = v
	}
	return s
}

// Smooth folds value into the channel's running average and returns the
// scaled result. NaN input is a "no update": the running average is
// left untouched and ok is false. An unknown channel is a contract
// violation and panics.
func (s *Smoother) Smooth(ch Channel, value float64) (scaled float64, ok bool) {
	scale, known := scaleTable[ch]
	if !known {
		panic(fmt.Sprintf("motion: unknown channel %q", ch))
	}
	if math.IsNaN(value) {
		return 0, false
	}

	alpha := s.cfg.Alphas[ch]
	if alpha <= 0 {
		alpha = 0.3
	}
	smoothed := alpha*value + (1-alpha)*s.smoothed[ch]
	s.smoothed[ch] = smoothed

	return toSixUnitRange(clamp(smoothed, scale.clampMin, scale.clampMax), scale.inMin, scale.inMax), true
}

// Smoothed returns the channel's current unscaled EMA value.
func (s *Smoother) Smoothed(ch Channel) float64 {
	if _, known := scaleTable[ch]; !known {
		panic(fmt.Sprintf("motion: unknown channel %q", ch))
	}
	return s.smoothed[ch]
}

// ShouldEmit applies the rate gate and change threshold over the given
// channels. When it fires it snapshots the emitted values and returns
// the transition duration for the actuator: maxChange/100 seconds,
// clamped, so bigger pose changes animate over a longer window.
func (s *Smoother) ShouldEmit(channels []Channel) (bool, time.Duration) {
	now := time.Now()
	if !s.lastEmit.IsZero() && now.Sub(s.lastEmit) < s.minInterval {
		return false, 0
	}

	maxChange := 0.0
	for _, ch := range channels {
		if _, known := scaleTable[ch]; !known {
			panic(fmt.Sprintf("motion: unknown channel %q", ch))
		}
		if change := math.Abs(s.smoothed[ch] - s.lastEmitted[ch]); change > maxChange {
			maxChange = change
		}
	}
	if maxChange <= s.cfg.Threshold {
		return false, 0
	}

	s.lastEmit = now
	for _, ch := range channels {
		s.lastEmitted[ch] = s.smoothed[ch]
	}

	dur := time.Duration(maxChange / 100 * float64(time.Second))
	if dur < s.cfg.MinDuration {
		dur = s.cfg.MinDuration
	}
	if dur > s.cfg.MaxDuration {
		dur = s.cfg.MaxDuration
	}
	return true, dur
}

// Reset restores the neutral pose and clears the emission gate.
func (s *Smoother) Reset() {
	for ch, v := range neutralPose {
		s.smoothed[ch] = v
		s.lastEmitted[ch] = v
	}
	s.lastEmit = time.Time{}
}

// toSixUnitRange maps value in [min, max] to [0, 6] linearly.
func toSixUnitRange(value, min, max float64) float64 {
	return clamp((value-min)/(max-min), 0, 1) * 6
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
