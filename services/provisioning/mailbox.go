package provisioning

import "sync/atomic"

const (
	slotEmpty uint32 = iota
	slotWriting
	slotFull
)

// Mailbox hands one payload from the radio task to the main loop. Offer is
// the only producer call and Take the only consumer call; the state word
// orders the buffer accesses between them.
type Mailbox struct {
	state   atomic.Uint32
	buf     []byte
	n       int
	dropped atomic.Uint32
}

func NewMailbox(size int) *Mailbox {
	if size <= 0 {
		size = 1024
	}
	return &Mailbox{buf: make([]byte, size)}
}

// Offer copies p into the slot. Empty, oversize, and while-full writes are
// dropped and counted.
func (m *Mailbox) Offer(p []byte) bool {
	if len(p) == 0 || len(p) > len(m.buf) {
		m.dropped.Add(1)
		return false
	}
	if !m.state.CompareAndSwap(slotEmpty, slotWriting) {
		m.dropped.Add(1)
		return false
	}
	m.n = copy(m.buf, p)
	m.state.Store(slotFull)
	return true
}

// Take returns a copy of the pending payload and frees the slot.
func (m *Mailbox) Take() ([]byte, bool) {
	if m.state.Load() != slotFull {
		return nil, false
	}
	out := append([]byte(nil), m.buf[:m.n]...)
	m.state.Store(slotEmpty)
	return out, true
}

func (m *Mailbox) Dropped() uint32 { return m.dropped.Load() }
func (m *Mailbox) Cap() int        { return len(m.buf) }
