package optics

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/nygctech/imagecore/internal/ierr"
	"github.com/nygctech/imagecore/serialbus"
)

const (
	laserMinPowerMW = 0
	laserMaxPowerMW = 500
	convergeTol     = 3
	pollInterval    = time.Second
)

var powerRe = regexp.MustCompile(`^(\d+)$`)

var onCmd = serialbus.Cmd[string]{
	Name:   "ON",
	Format: serialbus.Fixed("ON"),
	Lines:  1,
	Parse:  func(s string) (string, error) { return s, nil },
}

var statusCmd = serialbus.Cmd[bool]{
	Name:   "STAT?",
	Format: serialbus.Fixed("STAT?"),
	Lines:  1,
	Verify: true,
	Parse:  parseLaserStatus,
}

func parseLaserStatus(s string) (bool, error) {
	switch s {
	case "ENABLED":
		return true, nil
	case "DISABLED":
		return false, nil
	default:
		return false, fmt.Errorf("invalid laser status %q", s)
	}
}

// Laser controls one excitation laser's output power over its own serial
// channel.
type Laser struct {
	Name string
	ch   *serialbus.Channel
}

// NewLaser wraps ch as a named Laser ("g" or "r").
func NewLaser(name string, ch *serialbus.Channel) *Laser { return &Laser{Name: name, ch: ch} }

// Initialize turns the laser on and drops it to a 1mW holding power, the
// cold-boot sequence every other call assumes has already run.
func (l *Laser) Initialize(ctx context.Context) error {
	if _, err := serialbus.Send(ctx, l.ch, onCmd); err != nil {
		return err
	}
	return l.SetPower(ctx, 1)
}

// Status reports whether the laser is currently enabled. STAT? is a verify
// descriptor: a malformed response is retransmitted once before failing.
func (l *Laser) Status(ctx context.Context) (bool, error) {
	return serialbus.Send(ctx, l.ch, statusCmd)
}

// Power reads the current output power in milliwatts.
func (l *Laser) Power(ctx context.Context) (int, error) {
	cmd := serialbus.Cmd[int]{
		Name:   "POWER?",
		Format: serialbus.Fixed("POWER?"),
		Lines:  1,
		Parse:  serialbus.ParseInt(powerRe),
	}
	return serialbus.Send(ctx, l.ch, cmd)
}

// SetPower commands mW of output and blocks until the read-back power has
// converged to within convergeTol, polling at pollInterval.
func (l *Laser) SetPower(ctx context.Context, mW int) error {
	if mW < laserMinPowerMW || mW > laserMaxPowerMW {
		return ierr.New(ierr.Validation, "laser_"+l.Name, "", "", fmt.Errorf("power %d out of [%d,%d]", mW, laserMinPowerMW, laserMaxPowerMW))
	}
	cmd := serialbus.Cmd[string]{
		Name:   "POWER=",
		Format: serialbus.IntArg("POWER=%d", laserMinPowerMW, laserMaxPowerMW),
		Lines:  1,
		Parse:  func(s string) (string, error) { return s, nil },
	}
	if _, err := serialbus.Send(ctx, l.ch, cmd, mW); err != nil {
		return err
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		cur, err := l.Power(ctx)
		if err != nil {
			return err
		}
		if abs(cur-mW) <= convergeTol {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
