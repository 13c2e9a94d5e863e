// Package camera implements the two line-scan camera driver boundary: a
// single dedicated worker goroutine per vendor driver context (the native
// library is not reentrant), scoped allocate/capture resources, and the
// transfer-info polling loop that drains bundles as both cameras report
// them. The vendor entry points are modeled as a driver interface with two
// backends: a cgo-wrapped real driver (build tag "dcam") and a pure-Go
// simulated one used by default and by tests, mirroring the teacher's own
// split between lepton.Dev (real SPI/I2C) and leptontest.LeptonFake.
package camera

import "context"

// Status mirrors the vendor driver's coarse camera state.
type Status int

const (
	StatusError Status = iota
	StatusBusy
	StatusReady
	StatusStable
	StatusUnstable
)

// SensorMode selects the camera's readout mode.
type SensorMode int

const (
	ModeArea SensorMode = iota
	ModeLine
	ModeTDI
	ModePartialArea
	ModeFocusSweep
)

const (
	// ImageWidth is the sensor's native column count.
	ImageWidth = 4096
	// BundleHeight is the row count per DMA transfer unit.
	BundleHeight = 128

	// TDIExposureSeconds and AreaExposureSeconds are the per-line exposure
	// times the vendor driver reports for each sensor mode.
	TDIExposureSeconds  = 0.002568533333333333
	AreaExposureSeconds = 0.005025378
)

// handle identifies an open driver context.
type handle int

// driver is the vendor camera SDK boundary. Every method call must happen
// on the owning Camera's dedicated worker goroutine.
type driver interface {
	Open(ctx context.Context) (handle, error)
	Close(ctx context.Context, h handle) error
	SetProperty(ctx context.Context, h handle, name string, v float64) error
	GetProperty(ctx context.Context, h handle, name string) (float64, error)
	Precapture(ctx context.Context, h handle, mode SensorMode) error
	AllocFrame(ctx context.Context, h handle, nBundles int) error
	FreeFrame(ctx context.Context, h handle) error
	StartCapture(ctx context.Context, h handle) error
	Idle(ctx context.Context, h handle) error
	Status(ctx context.Context, h handle) (Status, error)
	TransferInfo(ctx context.Context, h handle) (frameCount int, err error)
	LockBundle(ctx context.Context, h handle, bundleIdx int) ([]uint16, error)
	UnlockBundle(ctx context.Context, h handle, bundleIdx int) error
}
