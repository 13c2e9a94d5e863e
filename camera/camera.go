package camera

import (
	"context"
	"fmt"

	"github.com/nygctech/imagecore/internal/ierr"
	"github.com/nygctech/imagecore/internal/logs"
)

// Camera is one line-scan camera. Every method dispatches onto the worker
// it was constructed with (shared across both cameras in a Pair) so that
// the non-reentrant vendor driver never sees concurrent calls.
type Camera struct {
	name string
	drv  driver
	h    handle
	w    *worker
}

func newCamera(ctx context.Context, name string, w *worker) (*Camera, error) {
	c := &Camera{name: name, drv: newDriver(), w: w}
	err := w.do(ctx, func() error {
		h, err := c.drv.Open(ctx)
		if err != nil {
			return err
		}
		c.h = h
		return c.drv.SetProperty(ctx, c.h, "sensor_mode", float64(ModeArea))
	})
	if err != nil {
		return nil, ierr.New(ierr.Driver, name, "open", "", err)
	}
	return c, nil
}

// SetMode reprograms the sensor mode and line-bundle height, then arms a
// SNAP-style precapture, matching the vendor initialization sequence.
func (c *Camera) SetMode(ctx context.Context, mode SensorMode) error {
	return c.w.do(ctx, func() error {
		if err := c.drv.SetProperty(ctx, c.h, "sensor_mode", float64(mode)); err != nil {
			return err
		}
		if err := c.drv.SetProperty(ctx, c.h, "sensor_mode_line_bundle_height", float64(BundleHeight)); err != nil {
			return err
		}
		return c.drv.Precapture(ctx, c.h, mode)
	})
}

// GetProperty / SetProperty expose the vendor's named-property bag.
func (c *Camera) GetProperty(ctx context.Context, name string) (float64, error) {
	var v float64
	err := c.w.do(ctx, func() error {
		var err error
		v, err = c.drv.GetProperty(ctx, c.h, name)
		return err
	})
	return v, err
}

func (c *Camera) SetProperty(ctx context.Context, name string, v float64) error {
	return c.w.do(ctx, func() error { return c.drv.SetProperty(ctx, c.h, name, v) })
}

// alloc reserves host/device memory for nBundles frames and frees it on
// scope exit.
func (c *Camera) alloc(ctx context.Context, nBundles int) (release func(), err error) {
	err = c.w.do(ctx, func() error { return c.drv.AllocFrame(ctx, c.h, nBundles) })
	if err != nil {
		return nil, ierr.New(ierr.Driver, c.name, "allocframe", "", err)
	}
	return func() {
		_ = c.w.do(ctx, func() error { return c.drv.FreeFrame(ctx, c.h) })
	}, nil
}

// capture arms the sensor and idles it on scope exit.
func (c *Camera) capture(ctx context.Context) (release func(), err error) {
	err = c.w.do(ctx, func() error { return c.drv.StartCapture(ctx, c.h) })
	if err != nil {
		return nil, ierr.New(ierr.Driver, c.name, "capture", "", err)
	}
	return func() {
		_ = c.w.do(ctx, func() error { return c.drv.Idle(ctx, c.h) })
	}, nil
}

// nFramesTaken reports the driver's running transfer count.
func (c *Camera) nFramesTaken(ctx context.Context) (int, error) {
	var n int
	err := c.w.do(ctx, func() error {
		var err error
		n, err = c.drv.TransferInfo(ctx, c.h)
		return err
	})
	if err != nil {
		return 0, ierr.New(ierr.Driver, c.name, "gettransferinfo", "", err)
	}
	return n, nil
}

// readBundle copies one bundle's worth of rows out of driver-locked memory.
func (c *Camera) readBundle(ctx context.Context, idx int) ([]uint16, error) {
	var buf []uint16
	err := c.w.do(ctx, func() error {
		b, err := c.drv.LockBundle(ctx, c.h, idx)
		if err != nil {
			return err
		}
		defer c.drv.UnlockBundle(ctx, c.h, idx)
		buf = make([]uint16, len(b))
		copy(buf, b)
		return nil
	})
	if err != nil {
		return nil, ierr.New(ierr.Driver, c.name, fmt.Sprintf("lockdata(%d)", idx), "", err)
	}
	return buf, nil
}

// Halt closes the driver handle.
func (c *Camera) Halt(ctx context.Context) error {
	logs.For(c.name).Debug("closing camera")
	return c.w.do(ctx, func() error { return c.drv.Close(ctx, c.h) })
}
