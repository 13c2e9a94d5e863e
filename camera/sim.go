//go:build !dcam

package camera

import (
	"context"
	"math"
	"sync"
)

// newDriver returns the default pure-Go simulated backend, used whenever
// the vendor SDK is unavailable (including every test in this repo).
func newDriver() driver { return &simDriver{} }

// simDriver fabricates plausible bundle data and a bounded transfer count,
// standing in for the real dcam_* entry points the way fake_lepton.go
// fabricates a VoSPI frame stream for lepton.Dev's tests.
type simDriver struct {
	mu       sync.Mutex
	next     handle
	nBundles map[handle]int
	produced map[handle]int
	props    map[handle]map[string]float64
}

func (s *simDriver) Open(ctx context.Context) (handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nBundles == nil {
		s.nBundles = map[handle]int{}
		s.produced = map[handle]int{}
		s.props = map[handle]map[string]float64{}
	}
	s.next++
	h := s.next
	s.props[h] = map[string]float64{}
	return h, nil
}

func (s *simDriver) Close(ctx context.Context, h handle) error { return nil }

func (s *simDriver) SetProperty(ctx context.Context, h handle, name string, v float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.props[h][name] = v
	return nil
}

func (s *simDriver) GetProperty(ctx context.Context, h handle, name string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.props[h][name], nil
}

func (s *simDriver) Precapture(ctx context.Context, h handle, mode SensorMode) error { return nil }

func (s *simDriver) AllocFrame(ctx context.Context, h handle, nBundles int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nBundles[h] = nBundles
	s.produced[h] = 0
	return nil
}

func (s *simDriver) FreeFrame(ctx context.Context, h handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nBundles, h)
	return nil
}

func (s *simDriver) StartCapture(ctx context.Context, h handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Simulated acquisition completes instantly; TransferInfo reports the
	// full bundle count on first poll.
	s.produced[h] = s.nBundles[h]
	return nil
}

func (s *simDriver) Idle(ctx context.Context, h handle) error { return nil }

func (s *simDriver) Status(ctx context.Context, h handle) (Status, error) { return StatusReady, nil }

func (s *simDriver) TransferInfo(ctx context.Context, h handle) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.produced[h], nil
}

func (s *simDriver) LockBundle(ctx context.Context, h handle, idx int) ([]uint16, error) {
	buf := make([]uint16, ImageWidth*BundleHeight)
	for row := 0; row < BundleHeight; row++ {
		for col := 0; col < ImageWidth; col++ {
			v := 2048 + 100*math.Sin(float64(idx*BundleHeight+row)/37.0)
			buf[row*ImageWidth+col] = uint16(v)
		}
	}
	return buf, nil
}

func (s *simDriver) UnlockBundle(ctx context.Context, h handle, idx int) error { return nil }
