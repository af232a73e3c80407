package auth

import (
	"sync/atomic"
	"time"
)

// NonceSource issues strictly increasing nonces close to the wall clock,
// in microseconds since the Unix epoch.
//
// When two calls land in the same microsecond, or the clock steps back,
// the next value is last+1 instead of the clock reading.
type NonceSource struct {
	last atomic.Int64
	now  func() time.Time
}

// NewNonceSource returns a source reading the system clock.
func NewNonceSource() *NonceSource {
	return &NonceSource{now: time.Now}
}

// newNonceSourceWithClock is used by tests to freeze or rewind time.
func newNonceSourceWithClock(now func() time.Time) *NonceSource {
	return &NonceSource{now: now}
}

// Next returns a nonce greater than every nonce previously returned by s.
// Safe for concurrent use.
func (s *NonceSource) Next() int64 {
	for {
		last := s.last.Load()
		next := s.now().UnixMicro()
		if next <= last {
			next = last + 1
		}
		if s.last.CompareAndSwap(last, next) {
			return next
		}
	}
}

// Last returns the most recently issued nonce, or 0.
func (s *NonceSource) Last() int64 {
	return s.last.Load()
}
