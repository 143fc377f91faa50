package detect

import "math"

// GazeEstimator smooths a horizontal gaze ratio and maps it to a
// left/center/right label. One instance lives inside each face
// detector; it is not safe for concurrent use.
type GazeEstimator struct {
	alpha          float64
	leftThreshold  float64
	rightThreshold float64
	mirror         bool

	smoothRatio float64
	hasRatio    bool
}

// NewGazeEstimator creates an estimator. Ratios below leftThreshold
// label "left", above rightThreshold label "right". With mirror set the
// labels are swapped so they match a mirrored preview.
func NewGazeEstimator(alpha, leftThreshold, rightThreshold float64, mirror bool) *GazeEstimator {
	return &GazeEstimator{
		alpha:          alpha,
		leftThreshold:  leftThreshold,
		rightThreshold: rightThreshold,
		mirror:         mirror,
	}
}

// Update folds a new raw ratio into the running average and returns the
// current gaze. NaN input returns the previous estimate unchanged.
func (g *GazeEstimator) Update(ratio float64) Gaze {
	if math.IsNaN(ratio) {
		if !g.hasRatio {
			g.smoothRatio = 0.5
			g.hasRatio = true
		}
		return g.current()
	}

	ratio = math.Min(1, math.Max(0, ratio))
	if g.hasRatio {
		g.smoothRatio = g.alpha*ratio + (1-g.alpha)*g.smoothRatio
	} else {
		g.smoothRatio = ratio
		g.hasRatio = true
	}
	return g.current()
}

func (g *GazeEstimator) current() Gaze {
	label := "center"
	switch {
	case g.smoothRatio < g.leftThreshold:
		label = "left"
	case g.smoothRatio > g.rightThreshold:
		label = "right"
	}
	if g.mirror {
		switch label {
		case "left":
			label = "right"
		case "right":
			label = "left"
		}
	}
	return Gaze{Label: label, Ratio: g.smoothRatio}
}
