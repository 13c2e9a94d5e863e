package optics_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nygctech/imagecore/optics"
	"github.com/nygctech/imagecore/serialbus"
	"github.com/nygctech/imagecore/serialbus/serialtest"
)

func newChan(t *testing.T, ops []serialtest.Op) *serialbus.Channel {
	t.Helper()
	pb := &serialtest.Playback{DontPanic: true, Ops: ops}
	ch := serialbus.NewChannel("fpga", pb, serialbus.Options{Sep: '\n', MinSpacing: time.Microsecond})
	t.Cleanup(func() { ch.Halt() })
	return ch
}

func TestShutter_OpenClosesOnSuccess(t *testing.T) {
	ch := newChan(t, []serialtest.Op{
		{Write: []byte("SHUTTEROPEN\n"), Read: []byte("OK\n")},
		{Write: []byte("SHUTTERCLOSE\n"), Read: []byte("OK\n")},
	})
	s := optics.NewShutter(ch)
	called := false
	err := s.Open(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	require.True(t, called)
}

func TestShutter_ClosesOnError(t *testing.T) {
	ch := newChan(t, []serialtest.Op{
		{Write: []byte("SHUTTEROPEN\n"), Read: []byte("OK\n")},
		{Write: []byte("SHUTTERCLOSE\n"), Read: []byte("OK\n")},
	})
	s := optics.NewShutter(ch)
	err := s.Open(context.Background(), func(ctx context.Context) error {
		return context.Canceled
	})
	require.Error(t, err)
}

func TestLaser_SetPowerValidatesRange(t *testing.T) {
	ch := newChan(t, nil)
	l := optics.NewLaser("g", ch)
	require.Error(t, l.SetPower(context.Background(), 501))
}

func TestLaser_SetPowerConverges(t *testing.T) {
	ch := newChan(t, []serialtest.Op{
		{Write: []byte("POWER=100\n"), Read: []byte("OK\n")},
		{Write: []byte("POWER?\n"), Read: []byte("100\n")},
	})
	l := optics.NewLaser("g", ch)
	require.NoError(t, l.SetPower(context.Background(), 100))
}
