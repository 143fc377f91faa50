// Package camera provides continuous frame acquisition with latest-wins
// semantics: the capture loop overwrites a single frame slot and readers
// receive independent copies. There is no queue; a frame overwritten
// before being read is lost, which is the right contract for a live
// control signal where only the newest visual state matters.
package camera

import "fmt"

// Config holds capture device settings.
type Config struct {
	Index  int // Capture device index
	Width  int // Requested capture width in pixels
	Height int // Requested capture height in pixels
	FPS    int // Requested capture rate
}

// DefaultConfig returns the recommended capture configuration.
func DefaultConfig() Config {
	return Config{
		Index:  0,
		Width:  640,
		Height: 480,
		FPS:    30,
	}
}

// Validate checks the config values.
func (c Config) Validate() error {
	if c.Index < 0 {
		return fmt.Errorf("camera index must be >= 0, got %d", c.Index)
	}
	if c.Width < 160 || c.Height < 120 {
		return fmt.Errorf("resolution too small: %dx%d", c.Width, c.Height)
	}
	if c.FPS < 1 || c.FPS > 120 {
		return fmt.Errorf("fps must be between 1 and 120, got %d", c.FPS)
	}
	return nil
}
