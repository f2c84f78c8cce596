package store

import (
	"errors"
	"sync"
)

var (
	ErrReadOnly = errors.New("read_only")
	ErrClosed   = errors.New("closed")
)

// Mem is an in-memory Backend. Committed values survive for the lifetime of
// the value, which is how tests model power-cycles: keep the Mem, rebuild
// everything else.
type Mem struct {
	mu   sync.Mutex
	data map[string]map[string]string

	// FailCommit makes the next Commit fail (tests).
	FailCommit error
}

func NewMem() *Mem {
	return &Mem{data: map[string]map[string]string{}}
}

func (m *Mem) Open(ns string, readOnly bool) (Handle, error) {
	return &memHandle{m: m, ns: ns, ro: readOnly, staged: map[string]*string{}}, nil
}

// Snapshot returns a copy of the committed namespace.
func (m *Mem) Snapshot(ns string) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]string{}
	for k, v := range m.data[ns] {
		out[k] = v
	}
	return out
}

type memHandle struct {
	m      *Mem
	ns     string
	ro     bool
	closed bool
	staged map[string]*string // nil value = removal
}

func (h *memHandle) Get(key string) (string, bool) {
	if v, ok := h.staged[key]; ok {
		if v == nil {
			return "", false
		}
		return *v, true
	}
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	v, ok := h.m.data[h.ns][key]
	return v, ok
}

func (h *memHandle) Put(key, value string) error {
	if h.closed {
		return ErrClosed
	}
	if h.ro {
		return ErrReadOnly
	}
	h.staged[key] = &value
	return nil
}

func (h *memHandle) Remove(key string) error {
	if h.closed {
		return ErrClosed
	}
	if h.ro {
		return ErrReadOnly
	}
	h.staged[key] = nil
	return nil
}

func (h *memHandle) Commit() error {
	if h.closed {
		return ErrClosed
	}
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	if err := h.m.FailCommit; err != nil {
		h.m.FailCommit = nil
		return err
	}
	ns := h.m.data[h.ns]
	if ns == nil {
		ns = map[string]string{}
		h.m.data[h.ns] = ns
	}
	for k, v := range h.staged {
		if v == nil {
			delete(ns, k)
		} else {
			ns[k] = *v
		}
	}
	h.staged = map[string]*string{}
	return nil
}

func (h *memHandle) Close() error {
	h.closed = true
	h.staged = nil
	return nil
}
