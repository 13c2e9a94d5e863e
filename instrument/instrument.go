// Package instrument wires every component into the top-level sequencer:
// construction from a config.Config and concurrent initialization under an
// instrument-level lock. Take and Autofocus serialize on the
// imaging.Orchestrator's own lock, which Initialize does not hold, so
// Initialize is not serialized against them.
package instrument

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nygctech/imagecore/camera"
	"github.com/nygctech/imagecore/config"
	"github.com/nygctech/imagecore/fluidics"
	"github.com/nygctech/imagecore/imaging"
	"github.com/nygctech/imagecore/internal/logs"
	"github.com/nygctech/imagecore/motion"
	"github.com/nygctech/imagecore/optics"
	"github.com/nygctech/imagecore/serialbus"
)

// Instrument is the fully wired sequencer: fluidics, motion, optics,
// cameras, and the imaging orchestrator built on top of them.
type Instrument struct {
	FluidicsA *fluidics.ValvePair
	FluidicsB *fluidics.ValvePair
	Imaging   *imaging.Orchestrator

	channels []*serialbus.Channel
	cams     *camera.Pair

	mu sync.Mutex
}

// Build constructs every channel and device from cfg but does not
// initialize them; call Initialize next.
func Build(ctx context.Context, cfg *config.Config) (*Instrument, error) {
	const minSpacing = 10 * time.Millisecond
	open := func(name, path string, sep byte) (*serialbus.Channel, error) {
		p, err := serialbus.OpenPort(path, cfg.Baud)
		if err != nil {
			return nil, err
		}
		return serialbus.NewChannel(name, p, serialbus.Options{Sep: sep, MinSpacing: minSpacing}), nil
	}

	xCh, err := open("x", cfg.Ports.X, '\n')
	if err != nil {
		return nil, err
	}
	yCh, err := open("y", cfg.Ports.Y, '\n')
	if err != nil {
		return nil, err
	}
	fpgaCh, err := open("fpga", cfg.Ports.FPGACmd, '\n')
	if err != nil {
		return nil, err
	}
	laserGCh, err := open("laser_g", cfg.Ports.LaserG, '\n')
	if err != nil {
		return nil, err
	}
	laserRCh, err := open("laser_r", cfg.Ports.LaserR, '\n')
	if err != nil {
		return nil, err
	}
	va1Ch, err := open("valve_a1", cfg.Ports.ValveA1, '\r')
	if err != nil {
		return nil, err
	}
	va2Ch, err := open("valve_a2", cfg.Ports.ValveA2, '\r')
	if err != nil {
		return nil, err
	}
	vb1Ch, err := open("valve_b1", cfg.Ports.ValveB1, '\r')
	if err != nil {
		return nil, err
	}
	vb2Ch, err := open("valve_b2", cfg.Ports.ValveB2, '\r')
	if err != nil {
		return nil, err
	}

	x := motion.NewAxis("x", "", xCh, -5_000_000, 5_000_000, 0, 10)
	y := motion.NewYAxis(motion.NewAxis("y", "", yCh, -7_000_000, 7_000_000, 0, 10))
	zt := motion.NewZTilt(
		motion.NewAxis("ztilt1", "T1", fpgaCh, 0, 60000, 0, 1),
		motion.NewAxis("ztilt2", "T2", fpgaCh, 0, 60000, 0, 1),
		motion.NewAxis("ztilt3", "T3", fpgaCh, 0, 60000, 0, 1),
	)
	zobj := motion.NewZObjective(motion.NewAxis("zobj", "ZOBJ", fpgaCh, 0, 60292, 0, 1))
	shut := optics.NewShutter(fpgaCh)
	laserG := optics.NewLaser("g", laserGCh)
	laserR := optics.NewLaser("r", laserRCh)

	cams, err := camera.NewPair(ctx)
	if err != nil {
		return nil, err
	}

	orch := imaging.NewOrchestrator(x, y, zt, zobj, shut, laserG, laserR, cams, fpgaCh)

	fa := fluidics.NewValvePair("fluidics_a", fluidics.NewValve("valve_a1", va1Ch), fluidics.NewValve("valve_a2", va2Ch))
	fb := fluidics.NewValvePair("fluidics_b", fluidics.NewValve("valve_b1", vb1Ch), fluidics.NewValve("valve_b2", vb2Ch))

	return &Instrument{
		FluidicsA: fa,
		FluidicsB: fb,
		Imaging:   orch,
		cams:      cams,
		channels:  []*serialbus.Channel{xCh, yCh, fpgaCh, laserGCh, laserRCh, va1Ch, va2Ch, vb1Ch, vb2Ch},
	}, nil
}

// Initialize runs every device's initialization concurrently under the
// instrument lock.
func (in *Instrument) Initialize(ctx context.Context) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	log := logs.For("instrument")
	log.Info("initializing instrument")

	const (
		ztiltCurrent  = 50
		ztiltVelocity = 1000
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return in.FluidicsA.Initialize(gctx) })
	g.Go(func() error { return in.FluidicsB.Initialize(gctx) })
	g.Go(func() error { return in.Imaging.X.Home(gctx) })
	g.Go(func() error { return in.Imaging.Y.Home(gctx) })
	g.Go(func() error { return in.Imaging.ZTilt.Boot(gctx, ztiltCurrent, ztiltVelocity) })
	g.Go(func() error { return in.Imaging.LaserG.Initialize(gctx) })
	g.Go(func() error { return in.Imaging.LaserR.Initialize(gctx) })
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("instrument initialized")
	return nil
}

// WaitReady blocks until every motion-bearing channel has drained.
func (in *Instrument) WaitReady(ctx context.Context) error {
	return in.Imaging.WaitReady(ctx)
}

// Halt tears down every owned channel and the camera pair.
func (in *Instrument) Halt(ctx context.Context) error {
	var firstErr error
	for _, ch := range in.channels {
		if err := ch.Halt(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := in.cams.Halt(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
