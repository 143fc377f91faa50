package detect

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blossom-robotics/go-mimetic/internal/log"
	"github.com/blossom-robotics/go-mimetic/pkg/camera"
)

// DefaultQueueSize bounds the frames waiting for detector hand-off.
const DefaultQueueSize = 8

type queuedFrame struct {
	frame     camera.Frame
	timestamp int64
}

// Dispatch stamps frames with strictly increasing millisecond
// timestamps and forwards them to every registered detector. Submit
// never blocks: frames arriving faster than the worker drains them are
// dropped, because a newer frame is always about to replace them.
type Dispatch struct {
	detectors []Detector
	callback  Callback
	logger    *slog.Logger

	queue chan queuedFrame

	mu            sync.Mutex
	lastTimestamp int64

	dropped atomic.Uint64

	started   atomic.Bool
	stopOnce  sync.Once
	closeOnce sync.Once
	stopping  chan struct{}
	done      chan struct{}
}

// NewDispatch creates a dispatch feeding the given detectors. Every
// completed detection, from any detector, is delivered to cb.
func NewDispatch(cb Callback, detectors ...Detector) *Dispatch {
	return &Dispatch{
		detectors: detectors,
		callback:  cb,
		logger:    log.With("component", "dispatch"),
		queue:     make(chan queuedFrame, DefaultQueueSize),
		stopping:  make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the hand-off worker.
func (d *Dispatch) Start() {
	d.started.Store(true)
	go d.run()
}

// Submit stamps the frame and enqueues it for the detectors. A full
// queue drops the frame with a debug log rather than blocking.
func (d *Dispatch) Submit(frame camera.Frame) {
	d.mu.Lock()
	ts := time.Now().UnixMilli()
	if ts <= d.lastTimestamp {
		ts = d.lastTimestamp + 1
	}
	d.lastTimestamp = ts
	d.mu.Unlock()

	select {
	case d.queue <- queuedFrame{frame: frame, timestamp: ts}:
	default:
		d.dropped.Add(1)
		d.logger.Debug("detector queue full, dropping frame", "timestamp", ts)
	}
}

// Dropped returns how many frames were discarded by a full queue.
func (d *Dispatch) Dropped() uint64 {
	return d.dropped.Load()
}

func (d *Dispatch) run() {
	defer close(d.done)
	defer d.closeDetectors()
	for {
		select {
		case <-d.stopping:
			return
		case item := <-d.queue:
			// Stop may have fired while this item was already ready;
			// re-check before handing frames out so a detector is
			// never used on the way to being closed.
			select {
			case <-d.stopping:
				return
			default:
			}
			for _, det := range d.detectors {
				det.Detect(item.frame, item.timestamp, d.callback)
			}
		}
	}
}

// closeDetectors releases the detectors exactly once.
func (d *Dispatch) closeDetectors() {
	d.closeOnce.Do(func() {
		for _, det := range d.detectors {
			if err := det.Close(); err != nil {
				d.logger.Error("close detector", "kind", det.Kind(), "error", err)
			}
		}
	})
}

// Stop halts the worker. The detectors are closed by the worker on its
// way out, after the last possible hand-off; when Start was never
// called Stop closes them directly. Idempotent.
func (d *Dispatch) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopping)
		if !d.started.Load() {
			d.closeDetectors()
		}
	})
}

// Join waits for the worker to exit and the detectors to be closed.
// Returns immediately if Start was never called.
func (d *Dispatch) Join() {
	if !d.started.Load() {
		return
	}
	<-d.done
}
