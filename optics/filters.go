package optics

import (
	"context"
	"fmt"

	"github.com/nygctech/imagecore/internal/ierr"
	"github.com/nygctech/imagecore/serialbus"
)

// EmissionFilter selects the emission filter wheel position.
type EmissionFilter int

const (
	EmissionOpen EmissionFilter = iota
	EmissionRed
	EmissionGreen
	EmissionBlocked
)

// ExcitationFilter selects the excitation filter for one laser line.
type ExcitationFilter int

const (
	ExcitationOpen ExcitationFilter = iota
	ExcitationND1
	ExcitationND2
	ExcitationBlocked
)

// FilterWheel controls the shared emission filter and the per-laser
// excitation filters, all addressed over the FPGA channel.
type FilterWheel struct {
	ch *serialbus.Channel
}

// NewFilterWheel wraps ch as a FilterWheel.
func NewFilterWheel(ch *serialbus.Channel) *FilterWheel { return &FilterWheel{ch: ch} }

// SetEmission selects f as the emission filter.
func (w *FilterWheel) SetEmission(ctx context.Context, f EmissionFilter) error {
	if f < EmissionOpen || f > EmissionBlocked {
		return ierr.New(ierr.Validation, "emission_filter", "", "", fmt.Errorf("unknown filter %d", f))
	}
	cmd := serialbus.Cmd[string]{
		Name:   "EM_FILTER",
		Format: serialbus.IntArg("EMFILTER %d", int(EmissionOpen), int(EmissionBlocked)),
		Lines:  1,
		Parse:  func(s string) (string, error) { return s, nil },
	}
	_, err := serialbus.Send(ctx, w.ch, cmd, int(f))
	return err
}

// SetExcitation selects f as the excitation filter for the given laser
// color ("g" or "r").
func (w *FilterWheel) SetExcitation(ctx context.Context, color string, f ExcitationFilter) error {
	if f < ExcitationOpen || f > ExcitationBlocked {
		return ierr.New(ierr.Validation, "excitation_filter_"+color, "", "", fmt.Errorf("unknown filter %d", f))
	}
	cmd := serialbus.Cmd[string]{
		Name:   "EX_FILTER",
		Format: serialbus.IntArg("EXFILTER"+color+" %d", int(ExcitationOpen), int(ExcitationBlocked)),
		Lines:  1,
		Parse:  func(s string) (string, error) { return s, nil },
	}
	_, err := serialbus.Send(ctx, w.ch, cmd, int(f))
	return err
}
