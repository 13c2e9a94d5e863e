//go:build dcam

// Package camera's cgo backend wraps the vendor DCAM-API the same way the
// nasa-jpl-golaborate andor package wraps the Andor SDK: a thin cgo shim
// translating status codes to Go errors, with every call still required to
// happen on the Camera's dedicated worker goroutine.
package camera

/*
#cgo CFLAGS: -I/usr/local/include/dcamapi
#cgo LDFLAGS: -ldcamapi
#include <dcamapi.h>
#include <dcamprop.h>
*/
import "C"

import (
	"context"
	"fmt"
	"unsafe"
)

func newDriver() driver { return &dcamDriver{} }

type dcamDriver struct{}

func statusErr(op string, rc C.int32) error {
	if rc < 0 {
		return fmt.Errorf("dcam: %s failed: %d", op, int(rc))
	}
	return nil
}

func toHDCAM(h handle) C.HDCAM { return C.HDCAM(unsafe.Pointer(uintptr(h))) }

func unsafePointer(h C.HDCAM) unsafe.Pointer { return unsafe.Pointer(h) }

// propID maps a named property to the vendor's numeric property id table;
// the mapping itself lives in the vendor's dcamprop.h constants.
func propID(name string) C.int32 {
	switch name {
	case "sensor_mode":
		return C.DCAM_IDPROP_SENSORMODE
	case "sensor_mode_line_bundle_height":
		return C.DCAM_IDPROP_SENSORMODE_LINEBUNDLEHEIGHT
	default:
		return 0
	}
}

func copyFromC(dst []uint16, src *C.uint16, n int) {
	s := unsafe.Slice((*uint16)(unsafe.Pointer(src)), n)
	copy(dst, s)
}

func (d *dcamDriver) Open(ctx context.Context) (handle, error) {
	var h C.HDCAM
	rc := C.dcam_open(&h, 0, nil)
	if err := statusErr("dcam_open", C.int32(rc)); err != nil {
		return 0, err
	}
	return handle(uintptr(unsafePointer(h))), nil
}

func (d *dcamDriver) Close(ctx context.Context, h handle) error {
	return statusErr("dcam_close", C.int32(C.dcam_close(toHDCAM(h))))
}

func (d *dcamDriver) SetProperty(ctx context.Context, h handle, name string, v float64) error {
	return statusErr("dcam_setpropertyvalue", C.int32(C.dcam_setpropertyvalue(toHDCAM(h), propID(name), C.double(v))))
}

func (d *dcamDriver) GetProperty(ctx context.Context, h handle, name string) (float64, error) {
	var v C.double
	rc := C.dcam_getpropertyvalue(toHDCAM(h), propID(name), &v)
	if err := statusErr("dcam_getpropertyvalue", C.int32(rc)); err != nil {
		return 0, err
	}
	return float64(v), nil
}

func (d *dcamDriver) Precapture(ctx context.Context, h handle, mode SensorMode) error {
	return statusErr("dcam_precapture", C.int32(C.dcam_precapture(toHDCAM(h), C.DCAM_CAPTUREMODE_SNAP)))
}

func (d *dcamDriver) AllocFrame(ctx context.Context, h handle, nBundles int) error {
	return statusErr("dcam_allocframe", C.int32(C.dcam_allocframe(toHDCAM(h), C.int32(nBundles))))
}

func (d *dcamDriver) FreeFrame(ctx context.Context, h handle) error {
	return statusErr("dcam_freeframe", C.int32(C.dcam_freeframe(toHDCAM(h))))
}

func (d *dcamDriver) StartCapture(ctx context.Context, h handle) error {
	return statusErr("dcam_capture", C.int32(C.dcam_capture(toHDCAM(h))))
}

func (d *dcamDriver) Idle(ctx context.Context, h handle) error {
	return statusErr("dcam_idle", C.int32(C.dcam_idle(toHDCAM(h))))
}

func (d *dcamDriver) Status(ctx context.Context, h handle) (Status, error) {
	var s C.int32
	rc := C.dcam_getstatus(toHDCAM(h), &s)
	if err := statusErr("dcam_getstatus", C.int32(rc)); err != nil {
		return StatusError, err
	}
	return Status(s), nil
}

func (d *dcamDriver) TransferInfo(ctx context.Context, h handle) (int, error) {
	var bIndex, fCount C.int32
	rc := C.dcam_gettransferinfo(toHDCAM(h), &bIndex, &fCount)
	if err := statusErr("dcam_gettransferinfo", C.int32(rc)); err != nil {
		return 0, err
	}
	if bIndex == -1 || fCount == -1 {
		return 0, fmt.Errorf("dcam: transfer info not ready")
	}
	return int(fCount), nil
}

func (d *dcamDriver) LockBundle(ctx context.Context, h handle, idx int) ([]uint16, error) {
	var ptr *C.uint16
	var rowBytes C.int32
	rc := C.dcam_lockdata(toHDCAM(h), (*C.void)(unsafe.Pointer(&ptr)), &rowBytes, C.int32(idx))
	if err := statusErr("dcam_lockdata", C.int32(rc)); err != nil {
		return nil, err
	}
	out := make([]uint16, ImageWidth*BundleHeight)
	copyFromC(out, ptr, len(out))
	return out, nil
}

func (d *dcamDriver) UnlockBundle(ctx context.Context, h handle, idx int) error {
	return statusErr("dcam_unlockdata", C.int32(C.dcam_unlockdata(toHDCAM(h))))
}
