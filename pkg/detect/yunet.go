package detect

import (
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"gocv.io/x/gocv"

	"github.com/blossom-robotics/go-mimetic/internal/log"
	"github.com/blossom-robotics/go-mimetic/pkg/camera"
)

// YuNetConfig holds face detector settings.
type YuNetConfig struct {
	ModelPath        string  // Path to the YuNet ONNX model
	ConfidenceThresh float64 // Minimum face score
	LeftThreshold    float64 // Gaze ratio below this labels "left"
	RightThreshold   float64 // Gaze ratio above this labels "right"
	Mirror           bool    // Swap gaze labels for mirrored frames
}

// DefaultYuNetConfig returns production defaults.
func DefaultYuNetConfig(modelDir string) YuNetConfig {
	return YuNetConfig{
		ModelPath:        filepath.Join(modelDir, "face_detection_yunet.onnx"),
		ConfidenceThresh: 0.5,
		LeftThreshold:    0.45,
		RightThreshold:   0.55,
	}
}

// YuNetDetector detects the user's face with OpenCV's FaceDetectorYN
// and derives head angles and gaze from the five returned landmarks.
// Detection runs on its own goroutine; a frame arriving while one is
// still in flight is dropped, never queued.
type YuNetDetector struct {
	detector gocv.FaceDetectorYN
	cfg      YuNetConfig
	gaze     *GazeEstimator
	logger   *slog.Logger

	busy sync.Mutex // held for the duration of one inference
}

// NewYuNet creates a YuNet-backed face detector.
func NewYuNet(cfg YuNetConfig) (*YuNetDetector, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}

	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.ModelPath,
		"", // No config file needed for ONNX
		image.Pt(320, 320),
		float32(cfg.ConfidenceThresh),
		0.3,  // NMS threshold
		5000, // Top K
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	return &YuNetDetector{
		detector: detector,
		cfg:      cfg,
		gaze:     NewGazeEstimator(0.5, cfg.LeftThreshold, cfg.RightThreshold, cfg.Mirror),
		logger:   log.With("component", "yunet"),
	}, nil
}

// Kind returns KindFace.
func (d *YuNetDetector) Kind() Kind { return KindFace }

// Detect runs face detection asynchronously. The callback fires once on
// success and never fires when no face is found or the detector is busy.
func (d *YuNetDetector) Detect(frame camera.Frame, timestamp int64, cb Callback) {
	if !d.busy.TryLock() {
		d.logger.Debug("inference in flight, dropping frame", "timestamp", timestamp)
		return
	}

	go func() {
		defer d.busy.Unlock()

		res, found, err := d.detectFace(frame.JPEG)
		if err != nil {
			d.logger.Error("face detection failed", "error", err)
			return
		}
		if !found {
			d.logger.Debug("no face detected", "timestamp", timestamp)
			return
		}
		res.Stamp = timestamp
		cb(res)
	}()
}

// faceBox is one YuNet detection row: bounding box, the five landmarks
// and the face score.
type faceBox struct {
	x, y, w, h float64
	rightEye   point
	leftEye    point
	nose       point
	score      float64
}

type point struct{ x, y float64 }

func (b faceBox) area() float64 { return b.w * b.h }

func (d *YuNetDetector) detectFace(jpeg []byte) (FaceResult, bool, error) {
	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return FaceResult{}, false, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return FaceResult{}, false, fmt.Errorf("empty image")
	}

	imgW := float64(img.Cols())
	imgH := float64(img.Rows())

	d.detector.SetInputSize(image.Pt(img.Cols(), img.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()
	d.detector.Detect(img, &faces)

	var boxes []faceBox
	for r := 0; r < faces.Rows(); r++ {
		// YuNet output row (15 columns): bbox x,y,w,h; landmarks
		// right eye, left eye, nose tip, mouth corners; face score.
		boxes = append(boxes, faceBox{
			x:        float64(faces.GetFloatAt(r, 0)),
			y:        float64(faces.GetFloatAt(r, 1)),
			w:        float64(faces.GetFloatAt(r, 2)),
			h:        float64(faces.GetFloatAt(r, 3)),
			rightEye: point{float64(faces.GetFloatAt(r, 4)), float64(faces.GetFloatAt(r, 5))},
			leftEye:  point{float64(faces.GetFloatAt(r, 6)), float64(faces.GetFloatAt(r, 7))},
			nose:     point{float64(faces.GetFloatAt(r, 8)), float64(faces.GetFloatAt(r, 9))},
			score:    float64(faces.GetFloatAt(r, 14)),
		})
	}

	best := selectBest(boxes)
	if best == nil {
		return FaceResult{}, false, nil
	}

	pitch, roll, yaw := headAngles(*best, imgW, imgH)
	gaze := d.gaze.Update(gazeRatio(*best))

	return FaceResult{
		Pitch:     pitch,
		Roll:      roll,
		Yaw:       yaw,
		GazeValue: gaze,
	}, true, nil
}

// selectBest picks one face from multiple detections, weighting
// confidence over size (confidence*0.7 + area*0.3).
func selectBest(boxes []faceBox) *faceBox {
	if len(boxes) == 0 {
		return nil
	}
	if len(boxes) == 1 {
		return &boxes[0]
	}

	maxArea := 0.0
	for _, b := range boxes {
		if b.area() > maxArea {
			maxArea = b.area()
		}
	}

	bestScore := -1.0
	var best *faceBox
	for i := range boxes {
		score := boxes[i].score*0.7 + (boxes[i].area()/maxArea)*0.3
		if score > bestScore {
			bestScore = score
			best = &boxes[i]
		}
	}
	return best
}

// headAngles derives approximate head angles in degrees from the eye
// and nose landmarks. Roll comes from the eye line, yaw from the nose
// offset against the eye midpoint, pitch from how far the nose sits
// below the eye line relative to face height.
func headAngles(b faceBox, imgW, imgH float64) (pitch, roll, yaw float64) {
	roll = math.Atan2(b.leftEye.y-b.rightEye.y, b.leftEye.x-b.rightEye.x) * 180 / math.Pi

	eyeDist := math.Hypot(b.leftEye.x-b.rightEye.x, b.leftEye.y-b.rightEye.y)
	if eyeDist < 1 {
		return 0, roll, 0
	}

	midX := (b.leftEye.x + b.rightEye.x) / 2
	midY := (b.leftEye.y + b.rightEye.y) / 2
	yaw = math.Atan2(b.nose.x-midX, eyeDist) * 180 / math.Pi

	if b.h > 1 {
		// Nose sits ~45% of face height below the eye line when the
		// head is level.
		ratio := (b.nose.y - midY) / b.h
		pitch = (ratio - 0.45) * 90
	}
	return pitch, roll, yaw
}

// gazeRatio places the nose between the two eye landmarks as a proxy
// for iris position: 0 at the right eye, 1 at the left.
func gazeRatio(b faceBox) float64 {
	lo, hi := b.rightEye.x, b.leftEye.x
	if lo > hi {
		lo, hi = hi, lo
	}
	denom := hi - lo
	if denom <= 1e-6 {
		return 0.5
	}
	r := (b.nose.x - lo) / denom
	return math.Min(1, math.Max(0, r))
}

// Close releases the underlying detector.
func (d *YuNetDetector) Close() error {
	d.busy.Lock()
	defer d.busy.Unlock()
	d.detector.Close()
	return nil
}
