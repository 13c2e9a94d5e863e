package fluidics_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nygctech/imagecore/fluidics"
	"github.com/nygctech/imagecore/serialbus"
	"github.com/nygctech/imagecore/serialbus/serialtest"
)

func newTestValve(t *testing.T, name string, ops []serialtest.Op) *fluidics.Valve {
	t.Helper()
	pb := &serialtest.Playback{DontPanic: true, Ops: ops}
	ch := serialbus.NewChannel(name, pb, serialbus.Options{Sep: '\r', MinSpacing: time.Microsecond})
	t.Cleanup(func() { ch.Halt() })
	return fluidics.NewValve(name, ch)
}

func TestValve_MoveIsNoopWhenAlreadyThere(t *testing.T) {
	v := newTestValve(t, "valve_a1", []serialtest.Op{
		{Write: []byte("CP\r"), Read: []byte("Position is  = 4\r")},
	})
	require.NoError(t, v.Move(context.Background(), 4))
}

func TestValve_MoveVerifiesPosition(t *testing.T) {
	v := newTestValve(t, "valve_a1", []serialtest.Op{
		{Write: []byte("CP\r"), Read: []byte("Position is  = 1\r")},
		{Write: []byte("GO4\r"), Read: []byte("GO4\r")},
		{Write: []byte("CP\r"), Read: []byte("Position is  = 4\r")},
	})
	require.NoError(t, v.Move(context.Background(), 4))
}

func TestValve_RejectsOutOfRange(t *testing.T) {
	v := newTestValve(t, "valve_a1", nil)
	err := v.Move(context.Background(), 99)
	require.Error(t, err)
}

func TestValvePair_HighPortMovesBoth(t *testing.T) {
	v0 := newTestValve(t, "valve_a1", []serialtest.Op{
		{Write: []byte("CP\r"), Read: []byte("Position is  = 5\r")},
		{Write: []byte("GO10\r"), Read: []byte("GO10\r")},
		{Write: []byte("CP\r"), Read: []byte("Position is  = 10\r")},
		{Write: []byte("CP\r"), Read: []byte("Position is  = 10\r")},
		{Write: []byte("CP\r"), Read: []byte("Position is  = 10\r")},
	})
	v1 := newTestValve(t, "valve_a2", []serialtest.Op{
		{Write: []byte("CP\r"), Read: []byte("Position is  = 1\r")},
		{Write: []byte("GO3\r"), Read: []byte("GO3\r")},
		{Write: []byte("CP\r"), Read: []byte("Position is  = 3\r")},
		{Write: []byte("CP\r"), Read: []byte("Position is  = 3\r")},
		{Write: []byte("CP\r"), Read: []byte("Position is  = 3\r")},
	})
	pair := fluidics.NewValvePair("fluidics_a", v0, v1)
	require.NoError(t, pair.Move(context.Background(), 12))
	pos, err := pair.Pos(context.Background())
	require.NoError(t, err)
	require.Equal(t, 12, pos)
}

func TestValvePair_RejectsSafePortDirectly(t *testing.T) {
	v0 := newTestValve(t, "valve_a1", nil)
	v1 := newTestValve(t, "valve_a2", nil)
	pair := fluidics.NewValvePair("fluidics_a", v0, v1)
	require.Error(t, pair.Move(context.Background(), fluidics.SafePort))
}

func TestValvePair_PortSafetyReturnsToSafe(t *testing.T) {
	v0 := newTestValve(t, "valve_a1", []serialtest.Op{
		{Write: []byte("CP\r"), Read: []byte("Position is  = 9\r")},
		{Write: []byte("GO3\r"), Read: []byte("GO3\r")},
		{Write: []byte("CP\r"), Read: []byte("Position is  = 3\r")},
		{Write: []byte("CP\r"), Read: []byte("Position is  = 3\r")},
		{Write: []byte("GO9\r"), Read: []byte("GO9\r")},
		{Write: []byte("CP\r"), Read: []byte("Position is  = 9\r")},
		{Write: []byte("CP\r"), Read: []byte("Position is  = 9\r")},
	})
	v1 := newTestValve(t, "valve_a2", nil)
	pair := fluidics.NewValvePair("fluidics_a", v0, v1)

	called := false
	err := pair.PortSafety(context.Background(), 3, func(ctx context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	require.True(t, called)
	pos, err := pair.Pos(context.Background())
	require.NoError(t, err)
	require.Equal(t, 9, pos)
}

// TestValvePair_PortSafetyReturnsToSafeOnError is seed test S3: when fn
// raises, PortSafety still drives back to SafePort before propagating fn's
// error.
func TestValvePair_PortSafetyReturnsToSafeOnError(t *testing.T) {
	v0 := newTestValve(t, "valve_a1", []serialtest.Op{
		{Write: []byte("CP\r"), Read: []byte("Position is  = 9\r")},
		{Write: []byte("GO3\r"), Read: []byte("GO3\r")},
		{Write: []byte("CP\r"), Read: []byte("Position is  = 3\r")},
		{Write: []byte("CP\r"), Read: []byte("Position is  = 3\r")},
		{Write: []byte("GO9\r"), Read: []byte("GO9\r")},
		{Write: []byte("CP\r"), Read: []byte("Position is  = 9\r")},
		{Write: []byte("CP\r"), Read: []byte("Position is  = 9\r")},
	})
	v1 := newTestValve(t, "valve_a2", nil)
	pair := fluidics.NewValvePair("fluidics_a", v0, v1)

	wantErr := fmt.Errorf("reagent pump failure")
	err := pair.PortSafety(context.Background(), 3, func(ctx context.Context) error {
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)

	pos, err := pair.Pos(context.Background())
	require.NoError(t, err)
	require.Equal(t, 9, pos)
}
