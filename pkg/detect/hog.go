package detect

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"gocv.io/x/gocv"

	"github.com/blossom-robotics/go-mimetic/internal/log"
	"github.com/blossom-robotics/go-mimetic/pkg/camera"
)

// HOGDetector estimates body height from an upper-body bounding box
// found with OpenCV's HOG person detector. It is the slow detector of
// the pair: inference takes noticeably longer than face detection, so
// the fusion buffer's per-kind validity window matters here.
type HOGDetector struct {
	hog    gocv.HOGDescriptor
	logger *slog.Logger

	busy sync.Mutex
}

// NewHOG creates a HOG-backed pose detector using the built-in people
// detector weights. No model file is needed.
func NewHOG() (*HOGDetector, error) {
	hog := gocv.NewHOGDescriptor()
	if err := hog.SetSVMDetector(gocv.HOGDefaultPeopleDetector()); err != nil {
		hog.Close()
		return nil, fmt.Errorf("set people detector: %w", err)
	}
	return &HOGDetector{
		hog:    hog,
		logger: log.With("component", "hog"),
	}, nil
}

// Kind returns KindPose.
func (d *HOGDetector) Kind() Kind { return KindPose }

// Detect runs person detection asynchronously. The callback fires once
// on success and never fires when nothing is found or an inference is
// already in flight.
func (d *HOGDetector) Detect(frame camera.Frame, timestamp int64, cb Callback) {
	if !d.busy.TryLock() {
		d.logger.Debug("inference in flight, dropping frame", "timestamp", timestamp)
		return
	}

	go func() {
		defer d.busy.Unlock()

		height, found, err := d.estimateHeight(frame.JPEG)
		if err != nil {
			d.logger.Error("pose detection failed", "error", err)
			return
		}
		if !found {
			d.logger.Debug("no person detected", "timestamp", timestamp)
			return
		}
		cb(PoseResult{HeightValue: height, Stamp: timestamp})
	}()
}

func (d *HOGDetector) estimateHeight(jpeg []byte) (float64, bool, error) {
	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return 0, false, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return 0, false, fmt.Errorf("empty image")
	}

	rects := d.hog.DetectMultiScale(img)
	if len(rects) == 0 {
		return 0, false, nil
	}

	// Largest box wins; the closest person dominates the frame.
	best := rects[0]
	for _, r := range rects[1:] {
		if r.Dx()*r.Dy() > best.Dx()*best.Dy() {
			best = r
		}
	}

	// Map the box top to 0-100: a head near the frame top reads as
	// standing tall, near the bottom as crouched.
	imgH := float64(img.Rows())
	height := (1 - float64(best.Min.Y)/imgH) * 100
	return math.Min(100, math.Max(0, height)), true, nil
}

// Close releases the descriptor.
func (d *HOGDetector) Close() error {
	d.busy.Lock()
	defer d.busy.Unlock()
	return d.hog.Close()
}
