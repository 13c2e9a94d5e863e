package imaging

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/nygctech/imagecore/camera"
	"github.com/nygctech/imagecore/internal/ierr"
	"github.com/nygctech/imagecore/internal/logs"
	"github.com/nygctech/imagecore/motion"
	"github.com/nygctech/imagecore/optics"
	"github.com/nygctech/imagecore/serialbus"
)

// channelMap converts a logical fluorescence channel (0..3) to a physical
// channel (0..3); optical layout is not wavelength-sorted so this mapping
// is fixed hardware fact, not a runtime computation.
var channelMap = [4]int{1, 3, 2, 0}

const (
	stepsPerUmY       = 10.0 // grounded by original_source's imager.py STEPS_PER_UM
	overshootSteps    = 100000
	minEndY           = -7_000_000
	pollInterval      = 50 * time.Millisecond
	afNumBundles      = 232
	afHeight          = 5
	afZMin            = 2621
	afZMax            = 60292
	afTargetWarnLow   = 10000
	afTargetWarnHigh  = 50000
)

// Image is the final acquisition result: one ChannelImage per requested
// logical channel, keyed by that logical channel, with the TDI flush
// bundle already dropped and values clipped/flipped.
type Image struct {
	Channels map[int]camera.ChannelImage
}

// ChannelSet is the set of logical channels (0..3) requested for a Take.
type ChannelSet []int

func (cs ChannelSet) needsCam0() bool {
	for _, l := range cs {
		if p := channelMap[l]; p == 0 || p == 1 {
			return true
		}
	}
	return false
}

func (cs ChannelSet) needsCam1() bool {
	for _, l := range cs {
		if p := channelMap[l]; p == 2 || p == 3 {
			return true
		}
	}
	return false
}

func (cs ChannelSet) selector() camera.Selector {
	n0, n1 := cs.needsCam0(), cs.needsCam1()
	switch {
	case n0 && n1:
		return camera.SelectBoth
	case n0:
		return camera.SelectCam0
	default:
		return camera.SelectCam1
	}
}

// Orchestrator coordinates the X/Y/Z-tilt/Z-objective axes, optics, and
// camera pair into Take and Autofocus.
type Orchestrator struct {
	X      *motion.Axis
	Y      *motion.YAxis
	ZTilt  *motion.ZTilt
	ZObj   *motion.ZObjective
	Shut   *optics.Shutter
	LaserG *optics.Laser
	LaserR *optics.Laser
	Cams   *camera.Pair
	FPGA   *serialbus.Channel

	mu  sync.Mutex
	log *log.Logger
}

// NewOrchestrator builds an Orchestrator from its already-constructed
// component dependencies.
func NewOrchestrator(x *motion.Axis, y *motion.YAxis, zt *motion.ZTilt, zo *motion.ZObjective,
	shut *optics.Shutter, laserG, laserR *optics.Laser, cams *camera.Pair, fpga *serialbus.Channel) *Orchestrator {
	return &Orchestrator{
		X: x, Y: y, ZTilt: zt, ZObj: zo,
		Shut: shut, LaserG: laserG, LaserR: laserR, Cams: cams, FPGA: fpga,
		log: logs.For("imaging"),
	}
}

var tdiPrepareCmd = serialbus.Cmd[string]{
	Name:   "TDIPREPARE",
	Format: serialbus.IntArg("TDIPREPARE %d", 0, 1<<24),
	Lines:  1,
	Parse:  func(s string) (string, error) { return s, nil },
}

func (o *Orchestrator) prepareTDI(ctx context.Context, nPxY int) error {
	_, err := serialbus.Send(ctx, o.FPGA, tdiPrepareCmd, nPxY)
	return err
}

// snapshot captures x, y, z-tilt, z-objective, and laser power atomically
// enough for metadata purposes (concurrent reads, no cross-device lock).
func (o *Orchestrator) snapshot(ctx context.Context) (State, error) {
	var st State
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { st.X, err = o.X.Pos(gctx); return })
	g.Go(func() (err error) { st.Y, err = o.Y.Pos(gctx); return })
	g.Go(func() (err error) { st.ZTilt, err = o.ZTilt.Pos(gctx); return })
	g.Go(func() (err error) { st.ZObj, err = o.ZObj.Pos(gctx); return })
	g.Go(func() (err error) { st.LaserGPowerMW, err = o.LaserG.Power(gctx); return })
	g.Go(func() (err error) { st.LaserRPowerMW, err = o.LaserR.Power(gctx); return })
	if err := g.Wait(); err != nil {
		return State{}, err
	}
	return st, nil
}

// WaitReady blocks until the X, Y, and FPGA channels have no in-flight
// requests, the barrier every acquisition starts behind.
func (o *Orchestrator) WaitReady(ctx context.Context) error {
	for _, ch := range []*serialbus.Channel{o.X.Channel(), o.Y.Channel(), o.FPGA} {
		if err := ch.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Take runs one TDI acquisition: nBundles bundles of image rows across
// channels, optionally without illumination (dark) and optionally
// returning the Y-stage to its pre-acquisition position afterward.
func (o *Orchestrator) Take(ctx context.Context, nBundles int, dark bool, channels ChannelSet, moveBackToStart bool) (Image, State, error) {
	if nBundles <= 0 || nBundles >= 1500 {
		return Image{}, State{}, ierr.New(ierr.Validation, "imaging", "", "", fmt.Errorf("n_bundles %d out of (0,1500)", nBundles))
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.WaitReady(ctx); err != nil {
		return Image{}, State{}, err
	}

	st, err := o.snapshot(ctx)
	if err != nil {
		return Image{}, State{}, err
	}

	capturedBundles := nBundles + 1 // +1 flush bundle, dropped after capture
	nPxY := capturedBundles * camera.BundleHeight
	delta := int(math.Floor(float64(nPxY) * 0.375 * stepsPerUmY))
	endY := st.Y - delta - overshootSteps
	if endY <= minEndY {
		return Image{}, State{}, ierr.New(ierr.InvariantBroken, "imaging", "", "", fmt.Errorf("end_y %d would exceed travel limit", endY))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return o.prepareTDI(gctx, nPxY) })
	g.Go(func() error { return o.Y.SetMode(gctx, motion.ModeImaging) })
	if err := g.Wait(); err != nil {
		return Image{}, State{}, err
	}

	startMotion := func(ctx context.Context) error { return o.Y.MoveSlowly(ctx, endY) }

	var res camera.Result
	capture := func(ctx context.Context) error {
		var err error
		res, err = o.Cams.Capture(ctx, capturedBundles, startMotion, pollInterval, channels.selector())
		return err
	}
	if dark {
		err = capture(ctx)
	} else {
		err = o.Shut.Open(ctx, capture)
	}
	if err != nil {
		return Image{}, State{}, err
	}

	if moveBackToStart {
		if err := o.Y.Move(ctx, st.Y); err != nil {
			return Image{}, State{}, err
		}
	} else {
		if err := o.Y.Move(ctx, endY+overshootSteps); err != nil {
			return Image{}, State{}, err
		}
	}

	img := Image{Channels: map[int]camera.ChannelImage{}}
	for _, l := range channels {
		phys := channelMap[l]
		cam, half := phys/2, phys%2
		img.Channels[l] = postProcess(res[cam][half])
	}
	return img, st, nil
}

// postProcess drops the flush bundle's rows, flips along the row axis, and
// clips values to at most 4096.
func postProcess(raw camera.ChannelImage) camera.ChannelImage {
	rows := raw.Rows - camera.BundleHeight
	if rows < 0 {
		rows = 0
	}
	out := camera.ChannelImage{Rows: rows, Cols: raw.Cols, Data: make([]uint16, rows*raw.Cols)}
	for r := 0; r < rows; r++ {
		srcRow := raw.Rows - 1 - r
		for c := 0; c < raw.Cols; c++ {
			v := raw.At(srcRow, c)
			if v > 4096 {
				v = 4096
			}
			out.Data[r*raw.Cols+c] = v
		}
	}
	return out
}

// Autofocus sweeps the Z-objective across its focus range while capturing
// on the camera serving channel, returning the step position of peak
// intensity and the per-step intensity curve it was derived from.
func (o *Orchestrator) Autofocus(ctx context.Context, channel int) (target int, intensity []float64, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	startMove, release, err := o.ZObj.AfArm(ctx, afZMin, afZMax)
	if err != nil {
		return 0, nil, err
	}
	defer release()

	phys := channelMap[channel]
	cam, half := phys/2, phys%2
	sel := camera.SelectCam0
	if cam == 1 {
		sel = camera.SelectCam1
	}

	var res camera.Result
	capture := func(ctx context.Context) error {
		var err error
		res, err = o.Cams.Capture(ctx, afNumBundles, startMove, pollInterval, sel)
		return err
	}
	if err := o.Shut.Open(ctx, capture); err != nil {
		return 0, nil, err
	}

	img := res[cam][half]
	intensity = make([]float64, afNumBundles)
	rowsPerStep := img.Rows / afNumBundles
	if rowsPerStep == 0 {
		rowsPerStep = 1
	}
	best, bestIdx := -1.0, 0
	for step := 0; step < afNumBundles; step++ {
		sum, n := 0.0, 0
		for r := step * rowsPerStep; r < (step+1)*rowsPerStep && r < img.Rows; r++ {
			for c := 0; c < img.Cols; c++ {
				sum += float64(img.At(r, c))
				n++
			}
		}
		if n > 0 {
			intensity[step] = sum / float64(n)
		}
		if intensity[step] > best {
			best, bestIdx = intensity[step], step
		}
	}

	inner := (float64(afZMax-afZMin)/float64(afNumBundles))*float64(bestIdx) + float64(afZMin)
	target = int(float64(afZMax) - inner)
	if target <= afTargetWarnLow || target >= afTargetWarnHigh {
		o.log.Warn("autofocus target near sweep edge", "target", target)
	}
	return target, intensity, nil
}
