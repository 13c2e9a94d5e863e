// Package serialtest provides a scripted-IO fake serial port for testing
// serialbus.Channel, adapted from periph's i2ctest/spitest Playback
// pattern (a table of expected operations) to a byte-stream transport
// instead of fixed-size register transactions.
package serialtest

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// Op is one expected write/response pair. Write is the exact bytes (command
// plus separator) the code under test is expected to send; Read is the
// bytes played back in response.
type Op struct {
	Write []byte
	Read  []byte
}

// Playback is a Port that replays a fixed script of Ops in order, failing
// loudly on a write mismatch the way periph's Playback does for SPI/I2C.
type Playback struct {
	mu    sync.Mutex
	Ops   []Op
	wi    int
	rbuf  bytes.Buffer
	DontPanic bool
	err   error
}

func (p *Playback) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.wi >= len(p.Ops) {
		err := fmt.Errorf("serialtest: unexpected write %q, script exhausted", b)
		p.err = err
		if !p.DontPanic {
			panic(err)
		}
		return 0, err
	}
	op := p.Ops[p.wi]
	if !bytes.Equal(op.Write, b) {
		err := fmt.Errorf("serialtest: write %d mismatch: got %q, want %q", p.wi, b, op.Write)
		p.err = err
		if !p.DontPanic {
			panic(err)
		}
		return 0, err
	}
	p.rbuf.Write(op.Read)
	p.wi++
	return len(b), nil
}

func (p *Playback) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rbuf.Len() == 0 {
		return 0, io.EOF
	}
	return p.rbuf.Read(b)
}

func (p *Playback) Close() error { return nil }

// Done reports whether every scripted Op was consumed.
func (p *Playback) Done() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.wi != len(p.Ops) {
		return fmt.Errorf("serialtest: %d of %d ops consumed", p.wi, len(p.Ops))
	}
	return nil
}
