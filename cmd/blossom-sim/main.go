// Command blossom-sim is a stand-in for a Blossom robot: it accepts
// POST /position payloads and logs them. Useful for developing without
// hardware on the desk.
package main

import (
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"

	"github.com/blossom-robotics/go-mimetic/internal/log"
	"github.com/blossom-robotics/go-mimetic/pkg/blossom"
)

func main() {
	godotenv.Load()
	log.Init(os.Getenv("LOG_LEVEL"))

	port := os.Getenv("SIM_PORT")
	if port == "" {
		port = "8000"
	}

	app := fiber.New(fiber.Config{
		AppName:               "blossom-sim",
		DisableStartupMessage: true,
	})

	app.Post("/position", func(c *fiber.Ctx) error {
		var p blossom.Payload
		if err := c.BodyParser(&p); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
		}
		log.Info("position",
			"x", p.X, "y", p.Y, "z", p.Z,
			"h", p.H, "ears", p.Ears,
			"duration_ms", p.DurationMs)
		return c.JSON(fiber.Map{"status": "ok"})
	})

	log.Info("blossom-sim listening", "port", port)
	if err := app.Listen(":" + port); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}
