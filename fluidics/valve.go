// Package fluidics implements the rotary selector valves that route reagent
// flow, and their composition into an 18-port logical path with a "safe"
// home position, grounded on the teacher's register-polling command
// discipline (lepton/bus.go's GetAttribute/SetAttribute) generalized to an
// ASCII line protocol.
package fluidics

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nygctech/imagecore/internal/ierr"
	"github.com/nygctech/imagecore/internal/logs"
	"github.com/nygctech/imagecore/serialbus"
)

const (
	// SafePort is the logical valve-pair position left selected when no
	// reagent line is in use; assumed (not independently confirmed) to be a
	// flush/buffer line based on the original instrument's default teardown
	// behavior.
	SafePort  = 9
	numPorts  = 10
	moveCooldown = 10 * time.Second
)

var posRe = regexp.MustCompile(`^Position is  = (\d+)$`)

var (
	idCmd = serialbus.Cmd[string]{
		Name:   "ID",
		Format: serialbus.Fixed("ID"),
		Lines:  1,
		Parse:  serialbus.ParseLiteral("ID = not used"),
	}
	npCmd = serialbus.Cmd[string]{
		Name:   "NP",
		Format: serialbus.Fixed("NP"),
		Lines:  1,
		Parse:  serialbus.ParseLiteral(fmt.Sprintf("NP = %d", numPorts)),
	}
	cpCmd = serialbus.Cmd[int]{
		Name:   "CP",
		Format: serialbus.Fixed("CP"),
		Lines:  1,
		Parse:  serialbus.ParseInt(posRe),
	}
	goCmd = serialbus.Cmd[string]{
		Name:   "GO",
		Format: serialbus.IntArg("GO%d", 1, numPorts),
		Lines:  1,
		Parse:  func(s string) (string, error) { return s, nil },
	}
)

// Valve is a single 10-port rotary selector.
type Valve struct {
	name string
	ch   *serialbus.Channel
	log  *log.Logger

	mu       sync.Mutex
	lastMove time.Time
}

// NewValve wraps ch as a Valve named name (used in log lines and errors).
func NewValve(name string, ch *serialbus.Channel) *Valve {
	return &Valve{name: name, ch: ch, log: logs.For(name)}
}

// Initialize confirms the valve is present and reports the expected port
// count, failing with ProtocolViolation on any mismatch.
func (v *Valve) Initialize(ctx context.Context) error {
	return v.ch.WithBigLock(func() error {
		if _, err := serialbus.Send(ctx, v.ch, idCmd); err != nil {
			return ierr.New(ierr.ProtocolViolation, v.name, "ID", "", err)
		}
		if _, err := serialbus.Send(ctx, v.ch, npCmd); err != nil {
			return ierr.New(ierr.ProtocolViolation, v.name, "NP", "", err)
		}
		return nil
	})
}

// Pos reads the current position, 1..10.
func (v *Valve) Pos(ctx context.Context) (int, error) {
	return serialbus.Send(ctx, v.ch, cpCmd)
}

// Move selects port p, a no-op if already there. Proceeding within 10s of the
// previous move is allowed but logged, per vendor guidance that frequent
// moves stress the mechanism.
func (v *Valve) Move(ctx context.Context, p int) error {
	if p < 1 || p > numPorts {
		return ierr.New(ierr.Validation, v.name, "", "", fmt.Errorf("position %d out of [1,%d]", p, numPorts))
	}
	return v.ch.WithBigLock(func() error {
		v.mu.Lock()
		if !v.lastMove.IsZero() && time.Since(v.lastMove) < moveCooldown {
			v.log.Warn("moving again soon after last move", "since", time.Since(v.lastMove))
		}
		v.mu.Unlock()

		cur, err := serialbus.Send(ctx, v.ch, cpCmd)
		if err != nil {
			return err
		}
		if cur == p {
			return nil
		}
		if _, err := serialbus.Send(ctx, v.ch, goCmd, p); err != nil {
			return err
		}
		v.mu.Lock()
		v.lastMove = time.Now()
		v.mu.Unlock()

		got, err := serialbus.Send(ctx, v.ch, cpCmd)
		if err != nil {
			return err
		}
		if got != p {
			return ierr.New(ierr.PositionVerify, v.name, fmt.Sprintf("GO%d", p), fmt.Sprintf("%d", got), nil)
		}
		return nil
	})
}

// moveForce selects port p unconditionally, skipping the already-there
// check; used for the teardown move back to SafePort where the caller has no
// reason to read the current position first.
func (v *Valve) moveForce(ctx context.Context, p int) error {
	if p < 1 || p > numPorts {
		return ierr.New(ierr.Validation, v.name, "", "", fmt.Errorf("position %d out of [1,%d]", p, numPorts))
	}
	return v.ch.WithBigLock(func() error {
		if _, err := serialbus.Send(ctx, v.ch, goCmd, p); err != nil {
			return err
		}
		v.mu.Lock()
		v.lastMove = time.Now()
		v.mu.Unlock()

		got, err := serialbus.Send(ctx, v.ch, cpCmd)
		if err != nil {
			return err
		}
		if got != p {
			return ierr.New(ierr.PositionVerify, v.name, fmt.Sprintf("GO%d", p), fmt.Sprintf("%d", got), nil)
		}
		return nil
	})
}
