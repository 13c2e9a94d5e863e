package motion

import (
	"context"

	"github.com/nygctech/imagecore/serialbus"
)

// ZObjective is the objective-lens focus axis. In addition to ordinary
// moves, it supports an autofocus sweep: a triggered linear motion between
// two bounds, synchronized with a fixed-count frame capture on the camera
// side.
type ZObjective struct {
	*Axis
}

// NewZObjective wraps an Axis as the objective focus stage.
func NewZObjective(a *Axis) *ZObjective { return &ZObjective{Axis: a} }

// AfArm configures a triggered sweep from zMin to zMax and returns a
// startMove thunk plus a release func that must be deferred by the caller
// to return the stage to its pre-sweep position. This mirrors the scoped
// shutter/port-safety resource shape used elsewhere in this module.
func (z *ZObjective) AfArm(ctx context.Context, zMin, zMax int) (startMove func(context.Context) error, release func(), err error) {
	pre, err := z.Pos(ctx)
	if err != nil {
		return nil, nil, err
	}
	cmd := serialbus.Cmd[string]{
		Name:   z.cmd("ARM"),
		Format: serialbus.IntArg(z.cmd("ARM")+" %d", z.StepMin, z.StepMax),
		Lines:  1,
		Parse:  func(s string) (string, error) { return s, nil },
	}
	if _, err := serialbus.Send(ctx, z.ch, cmd, zMin); err != nil {
		return nil, nil, err
	}
	startMove = func(ctx context.Context) error { return z.Move(ctx, zMax) }
	release = func() {
		_ = z.Move(ctx, pre)
	}
	return startMove, release, nil
}
