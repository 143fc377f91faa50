package detect

import (
	"math"
	"testing"
)

func TestGazeEstimator_Labels(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
		want  string
	}{
		{"far left", 0.1, "left"},
		{"just under left threshold", 0.39, "left"},
		{"center low", 0.45, "center"},
		{"center high", 0.55, "center"},
		{"just over right threshold", 0.61, "right"},
		{"far right", 0.9, "right"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// alpha 1 so the label reflects the raw ratio.
			g := NewGazeEstimator(1.0, 0.4, 0.6, false)
			got := g.Update(tt.ratio)
			if got.Label != tt.want {
				t.Errorf("ratio %v: want %q, got %q", tt.ratio, tt.want, got.Label)
			}
		})
	}
}

func TestGazeEstimator_MirrorSwapsLabels(t *testing.T) {
	g := NewGazeEstimator(1.0, 0.4, 0.6, true)
	if got := g.Update(0.1); got.Label != "right" {
		t.Errorf("mirrored left should read right, got %q", got.Label)
	}
	if got := g.Update(0.9); got.Label != "left" {
		t.Errorf("mirrored right should read left, got %q", got.Label)
	}
	if got := g.Update(0.5); got.Label != "center" {
		t.Errorf("center is unaffected by mirroring, got %q", got.Label)
	}
}

func TestGazeEstimator_Smoothing(t *testing.T) {
	g := NewGazeEstimator(0.5, 0.4, 0.6, false)

	// First sample seeds the average directly.
	if got := g.Update(0.2); got.Ratio != 0.2 {
		t.Errorf("first sample should seed the average, got %v", got.Ratio)
	}
	// 0.5*1.0 + 0.5*0.2 = 0.6.
	if got := g.Update(1.0); math.Abs(got.Ratio-0.6) > 1e-9 {
		t.Errorf("want smoothed 0.6, got %v", got.Ratio)
	}
}

func TestGazeEstimator_NaNKeepsPrevious(t *testing.T) {
	g := NewGazeEstimator(0.5, 0.4, 0.6, false)
	g.Update(0.9)

	got := g.Update(math.NaN())
	if got.Ratio != 0.9 || got.Label != "right" {
		t.Errorf("NaN should keep the previous estimate, got %+v", got)
	}
}

func TestGazeEstimator_NaNFirstSampleIsCenter(t *testing.T) {
	g := NewGazeEstimator(0.5, 0.4, 0.6, false)
	got := g.Update(math.NaN())
	if got.Label != "center" || got.Ratio != 0.5 {
		t.Errorf("no data yet should read center 0.5, got %+v", got)
	}
}

func TestGazeEstimator_ClampsRatio(t *testing.T) {
	g := NewGazeEstimator(1.0, 0.4, 0.6, false)
	if got := g.Update(1.7); got.Ratio != 1.0 {
		t.Errorf("ratio should clamp to 1, got %v", got.Ratio)
	}
	if got := g.Update(-0.3); got.Ratio != 0.0 {
		t.Errorf("ratio should clamp to 0, got %v", got.Ratio)
	}
}
