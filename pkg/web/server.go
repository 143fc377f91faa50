// Package web provides the control and telemetry surface for a
// mimetic session: status and calibration over HTTP, sender slot
// management, and a live state feed over websocket.
package web

import (
	"log/slog"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/blossom-robotics/go-mimetic/internal/log"
	"github.com/blossom-robotics/go-mimetic/pkg/blossom"
	"github.com/blossom-robotics/go-mimetic/pkg/fusion"
	"github.com/blossom-robotics/go-mimetic/pkg/hub"
	"github.com/blossom-robotics/go-mimetic/pkg/mimetic"
)

// Server exposes one session over HTTP and websocket.
type Server struct {
	app    *fiber.App
	port   string
	logger *slog.Logger

	session *mimetic.Session
	buffer  *fusion.Buffer

	stateHub *hub.Hub
}

// NewServer creates the server for a session.
func NewServer(port string, session *mimetic.Session, buffer *fusion.Buffer) *Server {
	s := &Server{
		port:     port,
		logger:   log.With("component", "web"),
		session:  session,
		buffer:   buffer,
		stateHub: hub.New("state"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "go-mimetic",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/samples", s.handleSamples)
	api.Post("/calibrate", s.handleCalibrate)
	api.Post("/senders/:slot/enable", s.handleEnableSender)
	api.Post("/senders/:slot/disable", s.handleDisableSender)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/state", websocket.New(s.handleStateWS))

	s.app = app
	return s
}

// PublishSnapshot broadcasts one telemetry snapshot to feed clients.
// Wire it to the session's OnSnapshot hook.
func (s *Server) PublishSnapshot(snap mimetic.Snapshot) {
	if err := s.stateHub.BroadcastJSON(snap); err != nil {
		s.logger.Error("encode snapshot", "error", err)
	}
}

// Start runs the hub and listens on the configured port. Blocks.
func (s *Server) Start() error {
	go s.stateHub.Run()
	s.logger.Info("dashboard listening", "port", s.port)
	return s.app.Listen(":" + s.port)
}

// Serve runs the hub and serves on the given listener. Blocks. Used by
// tests that need an ephemeral port.
func (s *Server) Serve(ln net.Listener) error {
	go s.stateHub.Run()
	return s.app.Listener(ln)
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("web server", "error", err)
		}
	}()
}

// Shutdown stops the HTTP server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

type statusResponse struct {
	SessionID string          `json:"session_id"`
	State     string          `json:"state"`
	Offset    mimetic.Offset  `json:"offset"`
	Slots     map[string]bool `json:"slots"`
	Samples   int             `json:"samples"`
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(statusResponse{
		SessionID: s.session.ID,
		State:     s.session.State().String(),
		Offset:    s.session.Offset(),
		Slots: map[string]bool{
			mimetic.SlotOne.String(): s.session.Slots().Enabled(mimetic.SlotOne),
			mimetic.SlotTwo.String(): s.session.Slots().Enabled(mimetic.SlotTwo),
		},
		Samples: s.buffer.Len(),
	})
}

func (s *Server) handleSamples(c *fiber.Ctx) error {
	return c.JSON(s.buffer.Recent())
}

func (s *Server) handleCalibrate(c *fiber.Ctx) error {
	// Blocks for the calibration window; the client is expected to
	// wait for the resulting offset.
	if err := s.session.Calibrate(); err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"offset": s.session.Offset()})
}

type enableSenderRequest struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func (s *Server) handleEnableSender(c *fiber.Ctx) error {
	slot, err := mimetic.ParseSlotID(c.Params("slot"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var req enableSenderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if req.Host == "" || req.Port <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "host and port required"})
	}

	sender := blossom.NewSender(blossom.DefaultConfig(req.Host, req.Port))
	if err := s.session.Slots().Attach(slot, sender); err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}

	s.logger.Info("sender enabled", "slot", slot.String(), "host", req.Host, "port", req.Port)
	return c.JSON(fiber.Map{"slot": slot.String(), "enabled": true})
}

func (s *Server) handleDisableSender(c *fiber.Ctx) error {
	slot, err := mimetic.ParseSlotID(c.Params("slot"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	s.session.Slots().Detach(slot)
	s.logger.Info("sender disabled", "slot", slot.String())
	return c.JSON(fiber.Map{"slot": slot.String(), "enabled": false})
}

func (s *Server) handleStateWS(conn *websocket.Conn) {
	client := hub.NewClient(s.stateHub, conn)
	client.Run()
}
