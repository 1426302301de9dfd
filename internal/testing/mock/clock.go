package mock

import (
	"sync"
	"time"

	"tokenwarden/internal/clock"
)

var _ clock.Clock = (*MockClock)(nil)

// MockClock is a clock.Clock that only moves when told to.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockClock returns a clock frozen at start, or at the wall time when
// start is zero.
func NewMockClock(start time.Time) *MockClock {
	if start.IsZero() {
		start = time.Now()
	}
	return &MockClock{now: start}
}

func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d and returns the new time.
func (m *MockClock) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
	return m.now
}

// Set jumps to t, which may be in the past.
func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

// ExpiresIn returns the epoch-millisecond timestamp d from the clock's
// current time, in the form token records store it.
func (m *MockClock) ExpiresIn(d time.Duration) int64 {
	return m.Now().Add(d).UnixMilli()
}
