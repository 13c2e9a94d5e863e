package serialbus

import (
	"fmt"
	"regexp"

	"github.com/nygctech/imagecore/internal/ierr"
)

// Cmd is an immutable command descriptor: how to format an outgoing line (or
// lines) from integer parameters, how many response lines to gather, and how
// to parse the joined response into a T. A Verify descriptor is retried once
// on a parse failure; a plain descriptor fails immediately.
type Cmd[T any] struct {
	Name   string
	Format func(args ...int) (string, error)
	Lines  int
	Parse  func(joined string) (T, error)
	Verify bool
}

func (c Cmd[T]) lines() int {
	if c.Lines <= 0 {
		return 1
	}
	return c.Lines
}

// Fixed returns a Format function for a parameterless command.
func Fixed(s string) func(args ...int) (string, error) {
	return func(args ...int) (string, error) { return s, nil }
}

// IntArg returns a Format function that substitutes a single bounded integer
// argument into template (e.g. "GO%d"), rejecting values outside [lo, hi]
// with a validation error before any I/O happens.
func IntArg(template string, lo, hi int) func(args ...int) (string, error) {
	return func(args ...int) (string, error) {
		if len(args) != 1 {
			return "", fmt.Errorf("%s: expected 1 argument, got %d", template, len(args))
		}
		v := args[0]
		if v < lo || v > hi {
			return "", ierr.New(ierr.Validation, "", fmt.Sprintf(template, v), "",
				fmt.Errorf("%d out of range [%d,%d]", v, lo, hi))
		}
		return fmt.Sprintf(template, v), nil
	}
}

// ParseInt returns a Parse function matching joined against re, which must
// declare exactly one capturing group, and converting it to an int.
func ParseInt(re *regexp.Regexp) func(string) (int, error) {
	return func(joined string) (int, error) {
		m := re.FindStringSubmatch(joined)
		if m == nil {
			return 0, fmt.Errorf("response %q does not match %s", joined, re.String())
		}
		var v int
		if _, err := fmt.Sscanf(m[1], "%d", &v); err != nil {
			return 0, fmt.Errorf("response %q: %w", joined, err)
		}
		return v, nil
	}
}

// ParseLiteral returns a Parse function that requires joined to equal want
// exactly, used for startup handshake checks (valve ID, port count).
func ParseLiteral(want string) func(string) (string, error) {
	return func(joined string) (string, error) {
		if joined != want {
			return "", fmt.Errorf("expected %q, got %q", want, joined)
		}
		return joined, nil
	}
}
