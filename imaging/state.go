// Package imaging implements the TDI acquisition orchestrator: Take and
// Autofocus, the two sequences that coordinate motion, optics, and the
// camera pair into a single atomic operation.
package imaging

// State is an instrument position/power snapshot captured at the start of
// an acquisition, intended for embedding as image metadata.
type State struct {
	X          int
	Y          int
	ZTilt      [3]int
	ZObj       int
	LaserGPowerMW int
	LaserRPowerMW int
}
