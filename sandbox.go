package capfs

import "sync/atomic"

// Mode is the process-wide sandbox flag: false at start, settable to true
// exactly once, never resettable. The atomic store gives every thread a
// consistent view of the transition before Enter returns.
type Mode struct {
	entered atomic.Bool
}

// Enter sets the flag. Calling it when already entered is a no-op, and
// reports whether this call performed the transition.
func (m *Mode) Enter() bool {
	return m.entered.CompareAndSwap(false, true)
}

// Entered reports whether sandbox mode is active.
func (m *Mode) Entered() bool {
	return m.entered.Load()
}
