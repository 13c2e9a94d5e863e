package motion

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ZTilt is the three-motor tilt stage (T1, T2, T3) that levels the flow
// cell. Moves and reads fan out to all three motors in parallel; a position
// readback is a 3-tuple.
type ZTilt struct {
	motors [3]*Axis
}

// NewZTilt builds a ZTilt from three already-constructed per-motor Axis
// values (prefixes "T1", "T2", "T3").
func NewZTilt(m1, m2, m3 *Axis) *ZTilt {
	return &ZTilt{motors: [3]*Axis{m1, m2, m3}}
}

// Boot performs the required cold-boot sequence: clear registers, set
// current, set velocity, then home -- in that order, for every motor.
func (z *ZTilt) Boot(ctx context.Context, current, velocity int) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, m := range z.motors {
		m := m
		g.Go(func() error {
			if err := m.ClearRegisters(gctx); err != nil {
				return err
			}
			if err := m.SetCurrent(gctx, current); err != nil {
				return err
			}
			if err := m.SetVelocity(gctx, velocity); err != nil {
				return err
			}
			return m.Home(gctx)
		})
	}
	return g.Wait()
}

// Pos returns the three motors' current step positions.
func (z *ZTilt) Pos(ctx context.Context) ([3]int, error) {
	var out [3]int
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range z.motors {
		i, m := i, m
		g.Go(func() error {
			p, err := m.Pos(gctx)
			out[i] = p
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}

// Move drives all three motors to the same target step position.
func (z *ZTilt) Move(ctx context.Context, target int) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, m := range z.motors {
		m := m
		g.Go(func() error { return m.Move(gctx, target) })
	}
	return g.Wait()
}
