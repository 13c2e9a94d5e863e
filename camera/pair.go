package camera

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nygctech/imagecore/internal/ierr"
	"github.com/nygctech/imagecore/internal/logs"
)

// Selector picks which camera(s) a capture must read from.
type Selector int

const (
	SelectBoth Selector = iota
	SelectCam0
	SelectCam1
)

// Pair owns both line-scan cameras and the single worker goroutine that
// serializes every call into the (non-reentrant) vendor driver they share.
type Pair struct {
	cam0, cam1 *Camera
	w          *worker
	log        *log.Logger
}

// NewPair opens both cameras on one shared worker.
func NewPair(ctx context.Context) (*Pair, error) {
	w := newWorker()
	c0, err := newCamera(ctx, "cam0", w)
	if err != nil {
		return nil, err
	}
	c1, err := newCamera(ctx, "cam1", w)
	if err != nil {
		return nil, err
	}
	return &Pair{cam0: c0, cam1: c1, w: w, log: logs.For("camera_pair")}, nil
}

func (p *Pair) cameras(sel Selector) []*Camera {
	switch sel {
	case SelectCam0:
		return []*Camera{p.cam0}
	case SelectCam1:
		return []*Camera{p.cam1}
	default:
		return []*Camera{p.cam0, p.cam1}
	}
}

// SetProperty writes name=v to both cameras; GetProperty reads from cam0 and
// cam1 and raises if they disagree, per the merged-properties contract.
func (p *Pair) SetProperty(ctx context.Context, name string, v float64) error {
	if err := p.cam0.SetProperty(ctx, name, v); err != nil {
		return err
	}
	return p.cam1.SetProperty(ctx, name, v)
}

func (p *Pair) GetProperty(ctx context.Context, name string) (float64, error) {
	v0, err := p.cam0.GetProperty(ctx, name)
	if err != nil {
		return 0, err
	}
	v1, err := p.cam1.GetProperty(ctx, name)
	if err != nil {
		return 0, err
	}
	if v0 != v1 {
		return 0, ierr.New(ierr.Driver, "camera_pair", name, "", fmt.Errorf("cameras disagree: %v vs %v", v0, v1))
	}
	return v0, nil
}

// SetMode reprograms both cameras' sensor mode.
func (p *Pair) SetMode(ctx context.Context, mode SensorMode) error {
	if err := p.cam0.SetMode(ctx, mode); err != nil {
		return err
	}
	return p.cam1.SetMode(ctx, mode)
}

// Result is the per-camera, per-half set of images produced by Capture, in
// driver order: Result[camera][half].
type Result [2][2]ChannelImage

// Capture allocates nBundles of host memory on the selected cameras, arms
// capture, invokes startMotion once capture is armed (motion must never
// start before the driver is ready to receive frames), then polls
// TransferInfo and copies bundles out of driver memory as they become
// available on the slower of the two cameras, terminating once nBundles
// have been drained on both.
func (p *Pair) Capture(ctx context.Context, nBundles int, startMotion func(context.Context) error, pollInterval time.Duration, sel Selector) (Result, error) {
	var result Result
	cams := p.cameras(sel)

	releases := make([]func(), 0, 2*len(cams))
	defer func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}()

	for _, c := range cams {
		rel, err := c.alloc(ctx, nBundles)
		if err != nil {
			return result, err
		}
		releases = append(releases, rel)
	}
	for _, c := range cams {
		rel, err := c.capture(ctx)
		if err != nil {
			return result, err
		}
		releases = append(releases, rel)
	}

	if err := startMotion(ctx); err != nil {
		return result, err
	}

	full := map[*Camera][]uint16{}
	for _, c := range cams {
		full[c] = make([]uint16, 0, nBundles*BundleHeight*ImageWidth)
	}
	taken := 0
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for taken < nBundles {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return result, ctx.Err()
		}
		curr := nBundles
		counts := make(map[*Camera]int, len(cams))
		for _, c := range cams {
			n, err := c.nFramesTaken(ctx)
			if err != nil {
				return result, err
			}
			counts[c] = n
			if n < curr {
				curr = n
			}
		}
		if len(cams) == 2 && counts[p.cam0] != counts[p.cam1] {
			p.log.Debug("cameras diverging", "cam0", counts[p.cam0], "cam1", counts[p.cam1])
		}
		for idx := taken; idx < curr; idx++ {
			for _, c := range cams {
				b, err := c.readBundle(ctx, idx)
				if err != nil {
					return result, err
				}
				full[c] = append(full[c], b...)
			}
		}
		taken = curr
	}

	for i, c := range []*Camera{p.cam0, p.cam1} {
		buf, ok := full[c]
		if !ok {
			continue
		}
		left, right := splitColumns(nBundles*BundleHeight, buf)
		result[i][0], result[i][1] = left, right
	}
	return result, nil
}

// Halt closes both cameras and stops the shared worker.
func (p *Pair) Halt(ctx context.Context) error {
	err0 := p.cam0.Halt(ctx)
	err1 := p.cam1.Halt(ctx)
	p.w.stop()
	if err0 != nil {
		return err0
	}
	return err1
}
