// Package motion implements the FPGA-driven linear and rotary stages: the
// X and Y stages, the three-motor Z-tilt trio, and the Z-objective with its
// autofocus sweep arm. All motors speak a small ASCII protocol over a
// shared serial channel; the response to a move command is withheld by the
// hardware until the mechanical move completes, which is what makes
// Channel.Wait usable as a motion-idle barrier.
package motion

import (
	"context"
	"fmt"
	"regexp"

	"github.com/nygctech/imagecore/internal/ierr"
	"github.com/nygctech/imagecore/serialbus"
)

// Axis is a single linear stage addressed by an optional command prefix
// ("" for X/Y, "T1"/"T2"/"T3" for the tilt trio, "ZOBJ" for the objective).
type Axis struct {
	Name       string
	Prefix     string
	StepMin    int
	StepMax    int
	HomeStep   int
	StepsPerUm float64

	ch *serialbus.Channel
}

// NewAxis builds an Axis bound to ch.
func NewAxis(name, prefix string, ch *serialbus.Channel, stepMin, stepMax, home int, stepsPerUm float64) *Axis {
	return &Axis{Name: name, Prefix: prefix, StepMin: stepMin, StepMax: stepMax, HomeStep: home, StepsPerUm: stepsPerUm, ch: ch}
}

func (a *Axis) cmd(suffix string) string { return a.Prefix + suffix }

// Channel returns the serial channel this axis is bound to, so a caller can
// wait on it directly (e.g. as part of a multi-device idle barrier).
func (a *Axis) Channel() *serialbus.Channel { return a.ch }

func posRegexFor(prefix string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `RD (\d+)$`)
}

// Home drives the axis to its hardware reference position.
func (a *Axis) Home(ctx context.Context) error {
	cmd := serialbus.Cmd[string]{
		Name:   a.cmd("HM"),
		Format: serialbus.Fixed(a.cmd("HM")),
		Lines:  1,
		Parse:  func(s string) (string, error) { return s, nil },
	}
	_, err := serialbus.Send(ctx, a.ch, cmd)
	return err
}

// Pos reads the current step position.
func (a *Axis) Pos(ctx context.Context) (int, error) {
	cmd := serialbus.Cmd[int]{
		Name:   a.cmd("RD"),
		Format: serialbus.Fixed(a.cmd("RD")),
		Lines:  1,
		Parse:  serialbus.ParseInt(posRegexFor(a.Prefix)),
	}
	pos, err := serialbus.Send(ctx, a.ch, cmd)
	if err != nil {
		return 0, err
	}
	if pos == 0 && a.Prefix != "" {
		return 0, ierr.New(ierr.InvariantBroken, a.Name, a.cmd("RD"), "0", fmt.Errorf("register not cleared"))
	}
	return pos, nil
}

// Move issues a bounded move to target and blocks until the hardware
// acknowledges completion (the response to MOVETO is withheld until the
// mechanical move finishes).
func (a *Axis) Move(ctx context.Context, target int) error {
	if target < a.StepMin || target > a.StepMax {
		return ierr.New(ierr.Validation, a.Name, "", "", fmt.Errorf("target %d out of [%d,%d]", target, a.StepMin, a.StepMax))
	}
	cmd := serialbus.Cmd[string]{
		Name:   a.cmd("MOVETO"),
		Format: serialbus.IntArg(a.cmd("MOVETO")+" %d", a.StepMin, a.StepMax),
		Lines:  1,
		Parse:  func(s string) (string, error) { return s, nil },
	}
	_, err := serialbus.Send(ctx, a.ch, cmd, target)
	return err
}

// ClearRegisters resets the motor's step counter; required once at cold
// boot before Move/Pos are meaningful.
func (a *Axis) ClearRegisters(ctx context.Context) error {
	cmd := serialbus.Cmd[string]{
		Name:   a.cmd("CR"),
		Format: serialbus.Fixed(a.cmd("CR")),
		Lines:  1,
		Parse:  func(s string) (string, error) { return s, nil },
	}
	_, err := serialbus.Send(ctx, a.ch, cmd)
	return err
}

// SetVelocity programs the motor's move velocity.
func (a *Axis) SetVelocity(ctx context.Context, v int) error {
	cmd := serialbus.Cmd[string]{
		Name:   a.cmd("VL"),
		Format: serialbus.IntArg(a.cmd("VL")+" %d", 0, 1<<20),
		Lines:  1,
		Parse:  func(s string) (string, error) { return s, nil },
	}
	_, err := serialbus.Send(ctx, a.ch, cmd, v)
	return err
}

// SetCurrent programs the motor's drive current.
func (a *Axis) SetCurrent(ctx context.Context, c int) error {
	cmd := serialbus.Cmd[string]{
		Name:   a.cmd("CUR"),
		Format: serialbus.IntArg(a.cmd("CUR")+" %d", 0, 1<<20),
		Lines:  1,
		Parse:  func(s string) (string, error) { return s, nil },
	}
	_, err := serialbus.Send(ctx, a.ch, cmd, c)
	return err
}
