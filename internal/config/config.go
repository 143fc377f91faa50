// Package config provides environment configuration helpers for go-mimetic commands.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Default endpoints and devices.
const (
	DefaultBlossomHost = "localhost"
	DefaultBlossomPort = 8000
	DefaultWebPort     = "8080"
	DefaultCameraIndex = 0
)

// BlossomHost returns the robot host from BLOSSOM_HOST, or the default.
func BlossomHost() string {
	if host := os.Getenv("BLOSSOM_HOST"); host != "" {
		return host
	}
	return DefaultBlossomHost
}

// BlossomPort returns the robot port from BLOSSOM_PORT, or the default.
func BlossomPort() int {
	return envInt("BLOSSOM_PORT", DefaultBlossomPort)
}

// BlossomTwoPort returns the second robot's port from BLOSSOM_TWO_PORT.
// The second sender slot stays disabled unless this is set.
func BlossomTwoPort() (int, bool) {
	v := os.Getenv("BLOSSOM_TWO_PORT")
	if v == "" {
		return 0, false
	}
	port, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return port, true
}

// WebPort returns the dashboard port from WEB_PORT, or the default.
func WebPort() string {
	if port := os.Getenv("WEB_PORT"); port != "" {
		return port
	}
	return DefaultWebPort
}

// CameraIndex returns the capture device index from CAMERA_INDEX.
func CameraIndex() int {
	return envInt("CAMERA_INDEX", DefaultCameraIndex)
}

// MirrorVideo reports whether frames should be mirrored before detection.
// Mirroring makes the robot move like a reflection of the user.
func MirrorVideo() bool {
	return os.Getenv("MIRROR_VIDEO") != "false"
}

// LogLevel returns the log level from LOG_LEVEL, defaulting to info.
func LogLevel() string {
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		return lvl
	}
	return "info"
}

// ModelDir returns the detector model directory from MODEL_DIR.
func ModelDir() string {
	if dir := os.Getenv("MODEL_DIR"); dir != "" {
		return dir
	}
	return "models"
}

// BlossomURL returns the actuator base URL for a host and port.
func BlossomURL(host string, port int) string {
	return fmt.Sprintf("http://%s:%d", host, port)
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
