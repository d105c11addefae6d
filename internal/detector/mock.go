package detector

import (
	"errors"
	"image"
	"sync"

	"github.com/MeKo-Tech/arsl/internal/landmarks"
)

// Mock is a scripted Detector for tests and dry runs.
type Mock struct {
	// DetectFunc, when set, replaces the scripted hands.
	DetectFunc func(img image.Image) (landmarks.Detection, error)

	mu     sync.Mutex
	hands  []landmarks.Hand
	err    error
	calls  int
	closed bool
}

// NewMock returns a mock that detects no hands.
func NewMock() *Mock {
	return &Mock{}
}

// SetHands scripts the hands returned by every Detect call.
func (m *Mock) SetHands(hands ...landmarks.Hand) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError makes every Detect call fail with err.
func (m *Mock) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the number of Detect calls.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Closed reports whether Close was called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Detect implements Detector.
func (m *Mock) Detect(img image.Image) (landmarks.Detection, error) {
	m.mu.Lock()
	m.calls++
	closed, err, fn := m.closed, m.err, m.DetectFunc
	hands := append([]landmarks.Hand(nil), m.hands...)
	m.mu.Unlock()

	if closed {
		return landmarks.Detection{}, ErrClosed
	}
	if img == nil {
		return landmarks.Detection{}, errors.New("input image is nil")
	}
	if err != nil {
		return landmarks.Detection{}, err
	}
	if fn != nil {
		return fn(img)
	}

	b := img.Bounds()
	return landmarks.Detection{Hands: hands, Width: b.Dx(), Height: b.Dy()}, nil
}

// Close implements Detector.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
