package detect

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blossom-robotics/go-mimetic/pkg/camera"
)

func testFrame() camera.Frame {
	return camera.Frame{JPEG: []byte{0xff, 0xd8}, Width: 4, Height: 4}
}

func TestDispatch_TimestampsStrictlyIncrease(t *testing.T) {
	var mu sync.Mutex
	var stamps []int64
	cb := func(r Result) {
		mu.Lock()
		stamps = append(stamps, r.Timestamp())
		mu.Unlock()
	}

	face := NewMockDetector(KindFace, FaceResult{Pitch: 1})
	d := NewDispatch(cb, face)
	d.Start()
	defer func() {
		d.Stop()
		d.Join()
	}()

	// One frame at a time, waiting for each result, so recorded order
	// matches submit order. Submitting faster than the millisecond
	// clock ticks exercises the bump path.
	for i := 0; i < 20; i++ {
		d.Submit(testFrame())
		deadline := time.Now().Add(time.Second)
		for {
			mu.Lock()
			n := len(stamps)
			mu.Unlock()
			if n > i {
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("no result for frame %d", i)
			}
			time.Sleep(100 * time.Microsecond)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(stamps) != 20 {
		t.Fatalf("want 20 results, got %d", len(stamps))
	}
	for i := 1; i < len(stamps); i++ {
		if stamps[i] <= stamps[i-1] {
			t.Fatalf("timestamps not strictly increasing: %d then %d",
				stamps[i-1], stamps[i])
		}
	}
}

func TestDispatch_FansOutToAllDetectors(t *testing.T) {
	results := make(chan Result, 4)
	face := NewMockDetector(KindFace, FaceResult{Pitch: 1})
	pose := NewMockDetector(KindPose, PoseResult{HeightValue: 60})

	d := NewDispatch(func(r Result) { results <- r }, face, pose)
	d.Start()
	defer func() {
		d.Stop()
		d.Join()
	}()

	d.Submit(testFrame())

	seen := map[Kind]bool{}
	for i := 0; i < 2; i++ {
		select {
		case r := <-results:
			seen[r.Kind()] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for detector results")
		}
	}
	if !seen[KindFace] || !seen[KindPose] {
		t.Errorf("expected results from both detectors, got %v", seen)
	}
	if face.Calls() != 1 || pose.Calls() != 1 {
		t.Errorf("each detector should see the frame once, got %d and %d",
			face.Calls(), pose.Calls())
	}
}

func TestDispatch_DropsWhenSaturated(t *testing.T) {
	// Worker never started, so the queue fills and stays full.
	d := NewDispatch(func(Result) {}, NewMockDetector(KindFace))

	for i := 0; i < DefaultQueueSize+5; i++ {
		d.Submit(testFrame())
	}
	if got := d.Dropped(); got != 5 {
		t.Errorf("want 5 dropped frames, got %d", got)
	}
}

func TestDispatch_StopClosesDetectors(t *testing.T) {
	face := NewMockDetector(KindFace)
	pose := NewMockDetector(KindPose)
	d := NewDispatch(func(Result) {}, face, pose)
	d.Start()

	d.Stop()
	d.Stop() // idempotent

	done := make(chan struct{})
	go func() {
		d.Join()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Join did not return after Stop")
	}

	if !face.Closed() || !pose.Closed() {
		t.Error("Stop should close every detector")
	}
}

func TestDispatch_StopBeforeStart(t *testing.T) {
	d := NewDispatch(func(Result) {}, NewMockDetector(KindFace))
	d.Stop()
	d.Join() // must not hang
}

// closeSequenceDetector records whether a frame ever reached it after
// Close, which must never happen.
type closeSequenceDetector struct {
	closed           atomic.Bool
	detectAfterClose atomic.Bool
}

func (d *closeSequenceDetector) Kind() Kind { return KindFace }

func (d *closeSequenceDetector) Detect(_ camera.Frame, _ int64, _ Callback) {
	if d.closed.Load() {
		d.detectAfterClose.Store(true)
	}
}

func (d *closeSequenceDetector) Close() error {
	d.closed.Store(true)
	return nil
}

func joinWithin(t *testing.T, d *Dispatch) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		d.Join()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Join did not return")
	}
}

func TestDispatch_NeverDetectsAfterClose(t *testing.T) {
	for i := 0; i < 200; i++ {
		det := &closeSequenceDetector{}
		d := NewDispatch(func(Result) {}, det)

		// Fill the queue before the worker exists, then start it
		// with the stop already signalled.
		for j := 0; j < DefaultQueueSize; j++ {
			d.Submit(testFrame())
		}
		d.Stop()
		d.Start()
		joinWithin(t, d)

		if det.detectAfterClose.Load() {
			t.Fatalf("iteration %d: frame handed to a closed detector", i)
		}
	}
}

func TestDispatch_StopDuringDrain(t *testing.T) {
	for i := 0; i < 200; i++ {
		det := &closeSequenceDetector{}
		d := NewDispatch(func(Result) {}, det)
		d.Start()
		for j := 0; j < DefaultQueueSize; j++ {
			d.Submit(testFrame())
		}
		d.Stop()
		joinWithin(t, d)

		if det.detectAfterClose.Load() {
			t.Fatalf("iteration %d: frame handed to a closed detector", i)
		}
	}
}
