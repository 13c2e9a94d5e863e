package fluidics_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/nygctech/imagecore/fluidics"
	"github.com/nygctech/imagecore/serialbus"
)

// statefulValvePort is a minimal stateful fake (rather than a fixed
// Playback script) so the rapid property test can drive arbitrary move
// sequences without pre-scripting every command.
type statefulValvePort struct {
	pos      int
	lastResp string
}

func (p *statefulValvePort) Write(b []byte) (int, error) {
	s := string(b)
	switch {
	case s == "CP\r":
		p.lastResp = fmt.Sprintf("Position is  = %d\r", p.pos)
	case len(s) > 2 && s[:2] == "GO":
		var target int
		fmt.Sscanf(s, "GO%d\r", &target)
		p.pos = target
		p.lastResp = s
	case s == "ID\r":
		p.lastResp = "ID = not used\r"
	case s == "NP\r":
		p.lastResp = "NP = 10\r"
	}
	return len(b), nil
}

func (p *statefulValvePort) Read(b []byte) (int, error) {
	n := copy(b, p.lastResp)
	p.lastResp = p.lastResp[n:]
	return n, nil
}

func (p *statefulValvePort) Close() error { return nil }

// TestValvePair_MoveThenPosRoundTrips checks invariant 2 from the testable
// properties: every successful Move(p) is followed by a Pos() returning p,
// across the full legal port range on both sides of the pair.
func TestValvePair_MoveThenPosRoundTrips(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		target := rapid.SampledFrom([]int{1, 2, 3, 4, 5, 6, 7, 8, 10, 11, 12, 13, 14, 15, 16, 17, 18}).Draw(t, "target")

		p0 := &statefulValvePort{pos: 1}
		p1 := &statefulValvePort{pos: 1}
		ch0 := serialbus.NewChannel("a1", p0, serialbus.Options{Sep: '\r', MinSpacing: time.Microsecond})
		ch1 := serialbus.NewChannel("a2", p1, serialbus.Options{Sep: '\r', MinSpacing: time.Microsecond})
		defer ch0.Halt()
		defer ch1.Halt()

		pair := fluidics.NewValvePair("fluidics_a", fluidics.NewValve("a1", ch0), fluidics.NewValve("a2", ch1))
		ctx := context.Background()
		if err := pair.Move(ctx, target); err != nil {
			t.Fatalf("move(%d): %v", target, err)
		}
		got, err := pair.Pos(ctx)
		if err != nil {
			t.Fatalf("pos: %v", err)
		}
		if got != target {
			t.Fatalf("after move(%d), pos() = %d", target, got)
		}
	})
}
