// Package serialbus implements the line-oriented request/response transport
// shared by every serial-attached device in this instrument: valves, motion
// axes, and optics all issue ASCII commands and expect one or more
// separator-terminated response lines back, matched to the request that
// produced them in strict FIFO order.
package serialbus

import (
	"bufio"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/nygctech/imagecore/internal/ierr"
	"github.com/nygctech/imagecore/internal/logs"
)

// pendingReq is queued by the writer right after a command is written and
// consumed by the reader in the same order, giving FIFO response matching
// even across concurrent senders.
type pendingReq struct {
	cmdName  string
	rawCmd   string
	lines    int
	verify   bool
	resend   func() error // rewrites rawCmd to the port; nil if Verify is false
	parse    func(joined string) (any, error)
	resultCh chan asyncResult
}

type asyncResult struct {
	value any
	err   error
}

// Channel owns one serial link: a single writer goroutine enforcing minimum
// inter-command spacing, and a single reader goroutine gathering response
// lines and completing requests in submission order.
type Channel struct {
	name    string
	port    Port
	sep     byte
	limiter *rate.Limiter
	log     *log.Logger

	writeCh chan *pendingReq
	pending chan *pendingReq

	bigLock sync.Mutex
	wg      sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	closeErr error
}

// Options configures a Channel.
type Options struct {
	// Sep is the line terminator: '\r' for valves, '\n' for everything else.
	Sep byte
	// MinSpacing is the minimum interval enforced between writes.
	MinSpacing time.Duration
}

// NewChannel wraps port with the request/response discipline described
// above. The channel owns port for its lifetime; Halt closes it.
func NewChannel(name string, port Port, opts Options) *Channel {
	if opts.Sep == 0 {
		opts.Sep = '\n'
	}
	c := &Channel{
		name:    name,
		port:    port,
		sep:     opts.Sep,
		limiter: rate.NewLimiter(rate.Every(opts.MinSpacing), 1),
		log:     logs.For(name),
		writeCh: make(chan *pendingReq, 64),
		pending: make(chan *pendingReq, 64),
	}
	go c.writeLoop()
	go c.readLoop()
	return c
}

func (c *Channel) writeLoop() {
	for req := range c.writeCh {
		c.mu.Lock()
		closeErr := c.closeErr
		c.mu.Unlock()
		if closeErr != nil {
			// The channel already broke; fail the request without writing it.
			req.resultCh <- asyncResult{err: closeErr}
			c.wg.Done()
			continue
		}
		if err := c.limiter.Wait(context.Background()); err != nil {
			c.failAndClose(req, ierr.New(ierr.Cancelled, c.name, req.rawCmd, "", err))
			continue
		}
		if _, err := c.port.Write(append([]byte(req.rawCmd), c.sep)); err != nil {
			c.failAndClose(req, ierr.New(ierr.Timeout, c.name, req.rawCmd, "", err))
			continue
		}
		c.pending <- req
	}
	close(c.pending)
}

func (c *Channel) readLoop() {
	r := bufio.NewReader(c.port)
	var broken error
	for req := range c.pending {
		if broken != nil {
			req.resultCh <- asyncResult{err: broken}
			c.wg.Done()
			continue
		}
		joined, err := c.readLines(r, req.lines)
		if err != nil {
			// A transport read failure breaks the channel: this request and
			// every later one fail with the same error.
			broken = ierr.New(ierr.Timeout, c.name, req.rawCmd, joined, err)
			c.failAndClose(req, broken)
			continue
		}
		v, perr := req.parse(joined)
		if perr != nil && req.verify && req.resend != nil {
			// A verify descriptor gets one retransmission on a parse failure
			// before the error is surfaced to the caller.
			joined, err = c.retryOnce(r, req)
			if err != nil {
				perr = err
			} else {
				v, perr = req.parse(joined)
			}
		}
		if perr != nil {
			req.resultCh <- asyncResult{err: ierr.New(ierr.Parse, c.name, req.rawCmd, joined, perr)}
		} else {
			req.resultCh <- asyncResult{value: v}
		}
		c.wg.Done()
	}
	c.drainBroken()
}

func (c *Channel) retryOnce(r *bufio.Reader, req *pendingReq) (string, error) {
	op := func() error { return req.resend() }
	if err := backoff.Retry(op, backoff.WithMaxRetries(backoff.NewConstantBackOff(0), 1)); err != nil {
		return "", err
	}
	return c.readLines(r, req.lines)
}

func (c *Channel) readLines(r *bufio.Reader, n int) (string, error) {
	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		line, err := r.ReadString(c.sep)
		if err != nil {
			return "", err
		}
		lines = append(lines, trimSep(line, c.sep))
	}
	joined := lines[0]
	for _, l := range lines[1:] {
		joined += "\n" + l
	}
	return joined, nil
}

func trimSep(s string, sep byte) string {
	for len(s) > 0 && (s[len(s)-1] == sep || s[len(s)-1] == '\r' || s[len(s)-1] == '\n') {
		s = s[:len(s)-1]
	}
	return s
}

func (c *Channel) failAndClose(req *pendingReq, err error) {
	c.mu.Lock()
	c.closed = true
	c.closeErr = err
	c.mu.Unlock()
	req.resultCh <- asyncResult{err: err}
	c.wg.Done()
	c.log.Error("channel failed", "err", err)
}

func (c *Channel) drainBroken() {
	c.mu.Lock()
	closeErr := c.closeErr
	c.mu.Unlock()
	if closeErr == nil {
		closeErr = ierr.New(ierr.Timeout, c.name, "", "", fmt.Errorf("channel closed"))
	}
	// Any requests still sitting in writeCh lost their race with a transport
	// failure; fail them the same way rather than leaving callers hanging.
	for req := range c.writeCh {
		req.resultCh <- asyncResult{err: closeErr}
		c.wg.Done()
	}
}

// Send issues cmd with args, blocking until the response is parsed, ctx is
// done, or the channel fails. Send is a free function (not a method) because
// Go methods cannot carry their own type parameters.
func Send[T any](ctx context.Context, c *Channel, cmd Cmd[T], args ...int) (T, error) {
	var zero T
	c.mu.Lock()
	if c.closed {
		err := c.closeErr
		c.mu.Unlock()
		return zero, err
	}
	c.mu.Unlock()

	line, err := cmd.Format(args...)
	if err != nil {
		return zero, err
	}
	req := &pendingReq{
		cmdName:  cmd.Name,
		rawCmd:   line,
		lines:    cmd.lines(),
		verify:   cmd.Verify,
		resultCh: make(chan asyncResult, 1),
		parse: func(joined string) (any, error) {
			return cmd.Parse(joined)
		},
	}
	if cmd.Verify {
		req.resend = func() error {
			_, werr := c.port.Write(append([]byte(line), c.sep))
			return werr
		}
	}
	c.wg.Add(1)
	select {
	case c.writeCh <- req:
	case <-ctx.Done():
		c.wg.Done()
		return zero, ctx.Err()
	}

	select {
	case res := <-req.resultCh:
		if res.err != nil {
			return zero, res.err
		}
		return res.value.(T), nil
	case <-ctx.Done():
		// The reader still drains this request's response lines in the
		// background so the channel doesn't desynchronize; we just stop
		// waiting for it.
		return zero, ctx.Err()
	}
}

// Wait blocks until every request submitted so far has completed, used as
// the motion-idle barrier before starting a new acquisition.
func (c *Channel) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WithBigLock runs fn while holding the channel's big lock, making a
// multi-command sequence atomic with respect to other callers of the same
// channel (e.g. a valve's read-then-move).
func (c *Channel) WithBigLock(fn func() error) error {
	c.bigLock.Lock()
	defer c.bigLock.Unlock()
	return fn()
}

// Halt closes the underlying port. Safe to call once; implements the
// Resource-style teardown convention used throughout this module.
func (c *Channel) Halt() error {
	close(c.writeCh)
	return c.port.Close()
}
