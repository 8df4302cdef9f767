package hyperliquid

import (
	"sync/atomic"
	"time"
)

// NonceManager issues strictly increasing nonces derived from wall-clock milliseconds.
//
// Policy: next = max(now_ms, last+1). When the clock stalls or steps backwards the
// manager degrades to a counter on top of the last issued value, so a nonce is never
// reused and never decreases within the process. Share one manager per signing key.
type NonceManager struct {
	last  atomic.Uint64
	clock func() time.Time
}

// NewNonceManager returns a manager using clock (time.Now when nil).
func NewNonceManager(clock func() time.Time) *NonceManager {
	if clock == nil {
		clock = time.Now
	}
	return &NonceManager{clock: clock}
}

// Next reads and advances the counter atomically.
func (m *NonceManager) Next() uint64 {
	for {
		now := uint64(m.clock().UnixMilli())
		prev := m.last.Load()
		next := now
		if next <= prev {
			next = prev + 1
		}
		if m.last.CompareAndSwap(prev, next) {
			return next
		}
	}
}

// Last returns the most recently issued nonce (0 before the first call).
func (m *NonceManager) Last() uint64 {
	return m.last.Load()
}
