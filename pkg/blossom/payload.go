// Package blossom delivers pose payloads to a Blossom robot's HTTP
// endpoint through a bounded, rate-limited background sender.
package blossom

// Orientation constants sent with every payload. The accelerometer
// frame is fixed for a desk-mounted robot: gravity along -z.
const (
	AccelX = 0.0
	AccelY = 0.0
	AccelZ = -1.0
)

// Payload is one pose command for the robot. x/y/z are head pitch,
// roll and yaw in radians of the scaled unit range, h and ears are in
// actuator units, and DurationMs tells the robot how long to animate
// the transition.
type Payload struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	H          float64 `json:"h"`
	Ears       float64 `json:"ears"`
	AX         float64 `json:"ax"`
	AY         float64 `json:"ay"`
	AZ         float64 `json:"az"`
	DurationMs int     `json:"duration_ms"`
}

// NewPayload builds a payload with the fixed orientation constants set.
func NewPayload(x, y, z, h, ears float64, durationMs int) Payload {
	return Payload{
		X:          x,
		Y:          y,
		Z:          z,
		H:          h,
		Ears:       ears,
		AX:         AccelX,
		AY:         AccelY,
		AZ:         AccelZ,
		DurationMs: durationMs,
	}
}
