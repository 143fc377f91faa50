package camera

import (
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/blossom-robotics/go-mimetic/internal/log"
)

// readRetryDelay paces retries after a failed device read so a wedged
// device cannot pin a core.
const readRetryDelay = 10 * time.Millisecond

// Frame is a JPEG-encoded raster plus its dimensions. Frames returned
// by Latest are independent copies; callers may hold them indefinitely.
type Frame struct {
	JPEG   []byte
	Width  int
	Height int
}

// Empty reports whether the frame carries no image data.
func (f Frame) Empty() bool {
	return len(f.JPEG) == 0
}

// Options controls how Latest prepares the returned copy.
// Zero Width/Height means no resize.
type Options struct {
	Width  int
	Height int
	Mirror bool
}

// Source continuously reads frames from a capture device on its own
// goroutine and exposes only the most recent one.
type Source struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	latest   gocv.Mat
	hasFrame bool

	cap *gocv.VideoCapture
	// read acquires one frame into the scratch Mat. Start points it at
	// the capture device; tests substitute their own.
	read func(m *gocv.Mat) bool

	started  atomic.Bool
	stopOnce sync.Once
	stopping chan struct{}
	done     chan struct{}
}

// NewSource creates a frame source for the configured device.
// Call Start to open the device and begin capturing.
func NewSource(cfg Config) *Source {
	return &Source{
		cfg:      cfg,
		logger:   log.With("component", "camera"),
		latest:   gocv.NewMat(),
		stopping: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start opens the capture device and begins the capture loop.
func (s *Source) Start() error {
	if err := s.cfg.Validate(); err != nil {
		return fmt.Errorf("camera config: %w", err)
	}

	cap, err := gocv.OpenVideoCapture(s.cfg.Index)
	if err != nil {
		return fmt.Errorf("open capture device %d: %w", s.cfg.Index, err)
	}
	cap.Set(gocv.VideoCaptureFrameWidth, float64(s.cfg.Width))
	cap.Set(gocv.VideoCaptureFrameHeight, float64(s.cfg.Height))
	cap.Set(gocv.VideoCaptureFPS, float64(s.cfg.FPS))

	s.cap = cap
	s.read = func(m *gocv.Mat) bool { return cap.Read(m) }
	s.started.Store(true)
	go s.run()

	s.logger.Info("capture started", "device", s.cfg.Index,
		"width", s.cfg.Width, "height", s.cfg.Height)
	return nil
}

// run is the capture loop. It checks the stop flag once per acquisition
// cycle, so Stop is observed within one device read.
func (s *Source) run() {
	defer close(s.done)

	scratch := gocv.NewMat()
	defer scratch.Close()
	defer func() {
		s.mu.Lock()
		s.latest.Close()
		s.hasFrame = false
		s.mu.Unlock()
		if s.cap != nil {
			if err := s.cap.Close(); err != nil {
				s.logger.Error("close capture device", "error", err)
			}
		}
	}()

	for {
		select {
		case <-s.stopping:
			return
		default:
		}

		if ok := s.read(&scratch); !ok || scratch.Empty() {
			select {
			case <-s.stopping:
				return
			case <-time.After(readRetryDelay):
			}
			continue
		}

		s.mu.Lock()
		scratch.CopyTo(&s.latest)
		s.hasFrame = true
		s.mu.Unlock()
	}
}

// Latest returns a copy of the newest frame, optionally resized and
// mirrored. The second return is false while no frame has arrived yet.
func (s *Source) Latest(opts Options) (Frame, bool) {
	s.mu.Lock()
	if !s.hasFrame {
		s.mu.Unlock()
		return Frame{}, false
	}
	work := s.latest.Clone()
	s.mu.Unlock()
	defer work.Close()

	if opts.Width > 0 && opts.Height > 0 &&
		(opts.Width != work.Cols() || opts.Height != work.Rows()) {
		gocv.Resize(work, &work, image.Pt(opts.Width, opts.Height), 0, 0, gocv.InterpolationLinear)
	}
	if opts.Mirror {
		gocv.Flip(work, &work, 1)
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, work)
	if err != nil {
		s.logger.Error("encode frame", "error", err)
		return Frame{}, false
	}
	defer buf.Close()

	jpeg := make([]byte, buf.Len())
	copy(jpeg, buf.GetBytes())

	return Frame{JPEG: jpeg, Width: work.Cols(), Height: work.Rows()}, true
}

// Stop signals the capture loop to exit and is safe to call more than
// once, concurrently, or before Start.
func (s *Source) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopping)
	})
}

// Join blocks until the capture loop has released the device.
// Returns immediately if Start was never called.
func (s *Source) Join() {
	if !s.started.Load() {
		return
	}
	<-s.done
}
