package blossom

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blossom-robotics/go-mimetic/internal/config"
	"github.com/blossom-robotics/go-mimetic/internal/httpc"
	"github.com/blossom-robotics/go-mimetic/internal/log"
)

// Config holds sender settings.
type Config struct {
	Host string
	Port int
	// QueueSize bounds payloads waiting for the worker.
	QueueSize int
	// MinInterval is the minimum gap between network sends.
	MinInterval time.Duration
	// Timeout bounds each HTTP request.
	Timeout time.Duration
}

// DefaultConfig returns the recommended sender configuration.
func DefaultConfig(host string, port int) Config {
	return Config{
		Host:        host,
		Port:        port,
		QueueSize:   32,
		MinInterval: 100 * time.Millisecond,
		Timeout:     time.Second,
	}
}

// Sender delivers payloads to the robot without ever blocking the
// producer. A full queue drops the payload: by the time the backlog
// drained, the dropped pose would describe where the user was, not
// where they are.
type Sender struct {
	cfg    Config
	url    string
	client *http.Client
	logger *slog.Logger

	queue chan Payload

	sent    atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64

	started  atomic.Bool
	stopOnce sync.Once
	stopping chan struct{}
	done     chan struct{}
}

// NewSender creates a sender for the given endpoint.
func NewSender(cfg Config) *Sender {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 32
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Second
	}
	return &Sender{
		cfg:      cfg,
		url:      config.BlossomURL(cfg.Host, cfg.Port) + "/position",
		client:   httpc.NewClient(cfg.Timeout),
		logger:   log.With("component", "sender", "host", cfg.Host, "port", cfg.Port),
		queue:    make(chan Payload, cfg.QueueSize),
		stopping: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the background worker.
func (s *Sender) Start() {
	s.started.Store(true)
	go s.run()
	s.logger.Info("sender started", "url", s.url)
}

// Send enqueues a payload without blocking. A full queue drops it and
// bumps the drop counter.
func (s *Sender) Send(p Payload) {
	select {
	case s.queue <- p:
	default:
		n := s.dropped.Add(1)
		s.logger.Warn("send queue full, dropping payload", "dropped_total", n)
	}
}

// QueueLen returns the number of queued payloads.
func (s *Sender) QueueLen() int { return len(s.queue) }

// Sent returns how many payloads reached the robot.
func (s *Sender) Sent() uint64 { return s.sent.Load() }

// Dropped returns how many payloads a full queue discarded.
func (s *Sender) Dropped() uint64 { return s.dropped.Load() }

// Failed returns how many network sends errored.
func (s *Sender) Failed() uint64 { return s.failed.Load() }

func (s *Sender) run() {
	defer close(s.done)

	var lastSend time.Time
	for {
		select {
		case <-s.stopping:
			return
		case p := <-s.queue:
			if wait := s.cfg.MinInterval - time.Since(lastSend); wait > 0 {
				// The rate-limit sleep also watches the stop
				// channel so shutdown latency stays bounded.
				select {
				case <-s.stopping:
					return
				case <-time.After(wait):
				}
			}
			if s.post(p) {
				lastSend = time.Now()
			}
		}
	}
}

// post performs one delivery. Failures are logged and the payload is
// abandoned; retrying a stale pose would only move the robot to where
// the user used to be.
func (s *Sender) post(p Payload) bool {
	body, err := json.Marshal(p)
	if err != nil {
		s.logger.Error("marshal payload", "error", err)
		return false
	}

	resp, err := s.client.Post(s.url, "application/json", bytes.NewReader(body))
	if err != nil {
		s.failed.Add(1)
		s.logger.Warn("send failed", "error", err)
		return false
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.failed.Add(1)
		s.logger.Warn("robot rejected payload", "status", resp.StatusCode)
		return false
	}

	s.sent.Add(1)
	s.logger.Debug("sent",
		"x", p.X, "y", p.Y, "z", p.Z, "h", p.H,
		"duration_ms", p.DurationMs)
	return true
}

// Stop signals the worker to exit. Idempotent, safe before Start and
// from concurrent callers.
func (s *Sender) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopping)
	})
}

// Join waits for the worker to exit. Returns immediately if Start was
// never called.
func (s *Sender) Join() {
	if !s.started.Load() {
		return
	}
	<-s.done
}
