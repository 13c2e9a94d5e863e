package motion

import (
	"context"

	"github.com/nygctech/imagecore/serialbus"
)

// YAxis is the stage axis the TDI scan rides on; in addition to the usual
// Move/Pos/Home it exposes a sensor-synchronized mode switch.
type YAxis struct {
	*Axis
}

// Mode enumerates the Y-stage's operating modes.
type Mode string

const (
	ModeDefault Mode = "DEFAULT"
	ModeImaging Mode = "IMAGING"
)

// NewYAxis wraps an Axis with mode control.
func NewYAxis(a *Axis) *YAxis { return &YAxis{Axis: a} }

// SetMode switches the stage's operating mode, used to put the Y-stage into
// IMAGING mode immediately before a TDI capture begins.
func (y *YAxis) SetMode(ctx context.Context, m Mode) error {
	cmd := serialbus.Cmd[string]{
		Name:   "MODE",
		Format: func(args ...int) (string, error) { return "MODE " + string(m), nil },
		Lines:  1,
		Parse:  func(s string) (string, error) { return s, nil },
	}
	_, err := serialbus.Send(ctx, y.ch, cmd)
	return err
}

// MoveSlowly drives the stage to target at the reduced velocity TDI capture
// requires, distinct from a normal positioning Move.
func (y *YAxis) MoveSlowly(ctx context.Context, target int) error {
	// The slow-move command reuses the MOVETO protocol line; the hardware
	// applies the reduced velocity programmed for IMAGING mode.
	return y.Axis.Move(ctx, target)
}
