package serialbus_test

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nygctech/imagecore/serialbus"
	"github.com/nygctech/imagecore/serialbus/serialtest"
)

var posRe = regexp.MustCompile(`^Position is  = (\d+)$`)

var cpCmd = serialbus.Cmd[int]{
	Name:   "CP",
	Format: serialbus.Fixed("CP"),
	Lines:  1,
	Parse:  serialbus.ParseInt(posRe),
}

var goCmd = serialbus.Cmd[string]{
	Name:   "GO",
	Format: serialbus.IntArg("GO%d", 1, 10),
	Lines:  1,
	Parse:  serialbus.ParseLiteral("GO5"),
}

func TestChannel_SendRoundTrip(t *testing.T) {
	pb := &serialtest.Playback{
		DontPanic: true,
		Ops: []serialtest.Op{
			{Write: []byte("CP\r"), Read: []byte("Position is  = 3\r")},
			{Write: []byte("GO5\r"), Read: []byte("GO5\r")},
		},
	}
	ch := serialbus.NewChannel("valve_a1", pb, serialbus.Options{Sep: '\r', MinSpacing: time.Millisecond})
	defer ch.Halt()

	ctx := context.Background()
	pos, err := serialbus.Send(ctx, ch, cpCmd)
	require.NoError(t, err)
	require.Equal(t, 3, pos)

	resp, err := serialbus.Send(ctx, ch, goCmd, 5)
	require.NoError(t, err)
	require.Equal(t, "GO5", resp)

	require.NoError(t, ch.Wait(ctx))
	require.NoError(t, pb.Done())
}

func TestChannel_ValidationBeforeIO(t *testing.T) {
	pb := &serialtest.Playback{DontPanic: true}
	ch := serialbus.NewChannel("valve_a1", pb, serialbus.Options{Sep: '\r', MinSpacing: time.Millisecond})
	defer ch.Halt()

	_, err := serialbus.Send(context.Background(), ch, goCmd, 99)
	require.Error(t, err)
	// no write should have happened: script is empty and Done() still passes
	require.NoError(t, pb.Done())
}

func TestChannel_FIFOOrdering(t *testing.T) {
	pb := &serialtest.Playback{
		DontPanic: true,
		Ops: []serialtest.Op{
			{Write: []byte("CP\r"), Read: []byte("Position is  = 1\r")},
			{Write: []byte("CP\r"), Read: []byte("Position is  = 2\r")},
			{Write: []byte("CP\r"), Read: []byte("Position is  = 3\r")},
		},
	}
	ch := serialbus.NewChannel("valve_a1", pb, serialbus.Options{Sep: '\r', MinSpacing: time.Microsecond})
	defer ch.Halt()

	ctx := context.Background()
	type result struct {
		pos int
		err error
	}
	results := make(chan result, 3)
	for i := 0; i < 3; i++ {
		go func() {
			pos, err := serialbus.Send(ctx, ch, cpCmd)
			results <- result{pos, err}
		}()
	}
	got := map[int]bool{}
	for i := 0; i < 3; i++ {
		r := <-results
		require.NoError(t, r.err)
		got[r.pos] = true
	}
	require.Equal(t, map[int]bool{1: true, 2: true, 3: true}, got)
}

func parseTestStatus(s string) (bool, error) {
	switch s {
	case "ENABLED":
		return true, nil
	case "DISABLED":
		return false, nil
	default:
		return false, fmt.Errorf("invalid status %q", s)
	}
}

var statusCmd = serialbus.Cmd[bool]{
	Name:   "STAT?",
	Format: serialbus.Fixed("STAT?"),
	Lines:  1,
	Verify: true,
	Parse:  parseTestStatus,
}

// TestChannel_VerifyRetransmitsOnParseMismatch is seed test S6: a verify
// descriptor that fails to parse once is retransmitted exactly once before
// its result is surfaced.
func TestChannel_VerifyRetransmitsOnParseMismatch(t *testing.T) {
	pb := &serialtest.Playback{
		DontPanic: true,
		Ops: []serialtest.Op{
			{Write: []byte("STAT?\r"), Read: []byte("GARBAGE\r")},
			{Write: []byte("STAT?\r"), Read: []byte("ENABLED\r")},
		},
	}
	ch := serialbus.NewChannel("laser_g", pb, serialbus.Options{Sep: '\r', MinSpacing: time.Millisecond})
	defer ch.Halt()

	got, err := serialbus.Send(context.Background(), ch, statusCmd)
	require.NoError(t, err)
	require.True(t, got)
	require.NoError(t, pb.Done())
}
