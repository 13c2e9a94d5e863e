// Package optics implements the shutters and filters that sit behind the
// FPGA serial channel, and the lasers, each on its own serial channel. The
// shutter follows the same scoped-resource shape (open, run, always close)
// used by fluidics.ValvePair.PortSafety.
package optics

import (
	"context"

	"github.com/nygctech/imagecore/serialbus"
)

var (
	shutterOpenCmd = serialbus.Cmd[string]{
		Name:   "SHUTTER_OPEN",
		Format: serialbus.Fixed("SHUTTEROPEN"),
		Lines:  1,
		Parse:  func(s string) (string, error) { return s, nil },
	}
	shutterCloseCmd = serialbus.Cmd[string]{
		Name:   "SHUTTER_CLOSE",
		Format: serialbus.Fixed("SHUTTERCLOSE"),
		Lines:  1,
		Parse:  func(s string) (string, error) { return s, nil },
	}
)

// Shutter controls the excitation-light shutter.
type Shutter struct {
	ch *serialbus.Channel
}

// NewShutter wraps ch as a Shutter.
func NewShutter(ch *serialbus.Channel) *Shutter { return &Shutter{ch: ch} }

func (s *Shutter) open(ctx context.Context) error {
	_, err := serialbus.Send(ctx, s.ch, shutterOpenCmd)
	return err
}

func (s *Shutter) close(ctx context.Context) error {
	_, err := serialbus.Send(ctx, s.ch, shutterCloseCmd)
	return err
}

// Open opens the shutter, runs fn, and closes the shutter on every exit
// path including a panic or error from fn.
func (s *Shutter) Open(ctx context.Context, fn func(context.Context) error) (err error) {
	if err := s.open(ctx); err != nil {
		return err
	}
	defer func() {
		if cerr := s.close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(ctx)
}
