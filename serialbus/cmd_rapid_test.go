package serialbus_test

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/nygctech/imagecore/serialbus"
)

// TestIntArg_BoundsProperty exercises the validation-before-I/O invariant:
// IntArg must reject any value outside [lo, hi] without producing a
// formatted command, and must accept every value inside it.
func TestIntArg_BoundsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		lo := rapid.IntRange(-1000, 1000).Draw(t, "lo")
		hi := rapid.IntRange(lo, lo+2000).Draw(t, "hi")
		v := rapid.IntRange(lo-500, hi+500).Draw(t, "v")

		format := serialbus.IntArg("CMD%d", lo, hi)
		s, err := format(v)
		if v < lo || v > hi {
			if err == nil {
				t.Fatalf("expected validation error for %d outside [%d,%d], got %q", v, lo, hi, s)
			}
			return
		}
		if err != nil {
			t.Fatalf("unexpected error for in-range %d: %v", v, err)
		}
	})
}
