package motion_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nygctech/imagecore/motion"
	"github.com/nygctech/imagecore/serialbus"
	"github.com/nygctech/imagecore/serialbus/serialtest"
)

func newChan(t *testing.T, name string, ops []serialtest.Op) *serialbus.Channel {
	t.Helper()
	pb := &serialtest.Playback{DontPanic: true, Ops: ops}
	ch := serialbus.NewChannel(name, pb, serialbus.Options{Sep: '\n', MinSpacing: time.Microsecond})
	t.Cleanup(func() { ch.Halt() })
	return ch
}

func TestAxis_MoveRejectsOutOfRange(t *testing.T) {
	ch := newChan(t, "y", nil)
	a := motion.NewAxis("y", "", ch, 0, 1000, 0, 1.0)
	err := a.Move(context.Background(), 5000)
	require.Error(t, err)
}

func TestAxis_PosParsesPrefixedResponse(t *testing.T) {
	ch := newChan(t, "ztilt1", []serialtest.Op{
		{Write: []byte("T1RD\n"), Read: []byte("T1RD 1200\n")},
	})
	a := motion.NewAxis("ztilt1", "T1", ch, 0, 60000, 0, 1.0)
	pos, err := a.Pos(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1200, pos)
}

func TestAxis_PosZeroIsInvariantBroken(t *testing.T) {
	ch := newChan(t, "ztilt1", []serialtest.Op{
		{Write: []byte("T1RD\n"), Read: []byte("T1RD 0\n")},
	})
	a := motion.NewAxis("ztilt1", "T1", ch, 0, 60000, 0, 1.0)
	_, err := a.Pos(context.Background())
	require.Error(t, err)
}

func TestYAxis_SetMode(t *testing.T) {
	ch := newChan(t, "y", []serialtest.Op{
		{Write: []byte("MODE IMAGING\n"), Read: []byte("MODE IMAGING\n")},
	})
	y := motion.NewYAxis(motion.NewAxis("y", "", ch, 0, 1000, 0, 1.0))
	require.NoError(t, y.SetMode(context.Background(), motion.ModeImaging))
}
