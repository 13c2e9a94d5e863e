package camera

import "context"

// worker serializes every call into one driver context onto a single
// goroutine, required because the vendor driver is not reentrant.
type worker struct {
	jobs chan func()
}

func newWorker() *worker {
	w := &worker{jobs: make(chan func(), 32)}
	go w.run()
	return w
}

func (w *worker) run() {
	for j := range w.jobs {
		j()
	}
}

// do runs fn on the worker goroutine and blocks for its result.
func (w *worker) do(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	select {
	case w.jobs <- func() { done <- fn() }:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *worker) stop() { close(w.jobs) }
