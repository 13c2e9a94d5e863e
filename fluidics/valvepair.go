package fluidics

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nygctech/imagecore/internal/ierr"
)

// ValvePair composes two 10-port valves into an 18-port logical reagent
// path, plus the reserved SafePort. Logical port p maps to valve[0]=p for
// p<=8; for p>=10, valve[0]=10 (a bridge position) and valve[1]=p-9.
type ValvePair struct {
	name        string
	v0, v1      *Valve
	mu          sync.Mutex
}

// NewValvePair builds a ValvePair from two already-constructed Valves.
func NewValvePair(name string, v0, v1 *Valve) *ValvePair {
	return &ValvePair{name: name, v0: v0, v1: v1}
}

// Initialize initializes both underlying valves concurrently.
func (p *ValvePair) Initialize(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.v0.Initialize(gctx) })
	g.Go(func() error { return p.v1.Initialize(gctx) })
	return g.Wait()
}

// Pos returns the merged logical position.
func (p *ValvePair) Pos(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos(ctx)
}

func (p *ValvePair) pos(ctx context.Context) (int, error) {
	p0, err := p.v0.Pos(ctx)
	if err != nil {
		return 0, err
	}
	if p0 == numPorts {
		p1, err := p.v1.Pos(ctx)
		if err != nil {
			return 0, err
		}
		return SafePort + p1, nil
	}
	return p0, nil
}

// Move selects logical port target, which must be in {1..8} union
// {10..18}; SafePort (9) is rejected here and is reachable only through
// PortSafety.
func (p *ValvePair) Move(ctx context.Context, target int) error {
	if target == SafePort || target < 1 || target > 18 {
		return ierr.New(ierr.Validation, p.name, "", "", fmt.Errorf("logical position %d not directly selectable", target))
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if target <= 8 {
		if err := p.v0.Move(ctx, target); err != nil {
			return err
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return p.v0.Move(gctx, numPorts) })
		g.Go(func() error { return p.v1.Move(gctx, target-SafePort) })
		if err := g.Wait(); err != nil {
			return err
		}
	}
	got, err := p.pos(ctx)
	if err != nil {
		return err
	}
	if got != target {
		return ierr.New(ierr.PositionVerify, p.name, "", fmt.Sprintf("%d", got), nil)
	}
	return nil
}

// PortSafety moves to port, runs fn, and unconditionally returns the pair to
// SafePort on every exit path -- the fluidic analog of the optics package's
// scoped shutter.
func (p *ValvePair) PortSafety(ctx context.Context, port int, fn func(context.Context) error) (err error) {
	if err := p.Move(ctx, port); err != nil {
		return err
	}
	defer func() {
		if herr := p.moveToSafe(ctx); herr != nil && err == nil {
			err = herr
		}
	}()
	return fn(ctx)
}

// moveToSafe drives valve 0 directly to SafePort, bypassing Move's rejection
// of SafePort as a directly-selectable logical position.
func (p *ValvePair) moveToSafe(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.v0.moveForce(ctx, SafePort)
}
