// Package halt owns the only two ways a boot ends on purpose: a restart and
// a timed deep sleep. On hardware neither call returns. On the host they are
// recorded and the first request is latched so callers can unwind.
package halt

import (
	"sync"
	"time"

	"einkcode-go/x/logx"
)

// Hardware performs the final action.
type Hardware interface {
	DeepSleep(d time.Duration)
	Restart()
}

type Kind uint8

const (
	None Kind = iota
	Restart
	DeepSleep
)

func (k Kind) String() string {
	switch k {
	case Restart:
		return "restart"
	case DeepSleep:
		return "deep_sleep"
	default:
		return "none"
	}
}

type Request struct {
	Kind   Kind
	Sleep  time.Duration
	Reason string
}

// Controller serialises halt requests. Flush hooks run, in registration
// order, before the hardware is told to stop.
type Controller struct {
	hw  Hardware
	log *logx.Logger

	mu      sync.Mutex
	flush   []func() error
	pending Request
}

func New(hw Hardware) *Controller {
	return &Controller{hw: hw, log: logx.New("halt")}
}

// OnFlush registers a durable-write hook.
func (c *Controller) OnFlush(fn func() error) {
	c.mu.Lock()
	c.flush = append(c.flush, fn)
	c.mu.Unlock()
}

// Restart flushes and restarts. Later requests in the same boot are ignored.
func (c *Controller) Restart(reason string) {
	if !c.latch(Request{Kind: Restart, Reason: reason}) {
		return
	}
	c.log.Info("restarting", "reason", reason)
	c.hw.Restart()
}

// DeepSleep flushes and sleeps for d.
func (c *Controller) DeepSleep(d time.Duration, reason string) {
	if !c.latch(Request{Kind: DeepSleep, Sleep: d, Reason: reason}) {
		return
	}
	c.log.Info("entering deep sleep", "seconds", int64(d/time.Second), "reason", reason)
	c.hw.DeepSleep(d)
}

// Pending reports the latched request, if any.
func (c *Controller) Pending() (Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending, c.pending.Kind != None
}

func (c *Controller) latch(r Request) bool {
	c.mu.Lock()
	if c.pending.Kind != None {
		c.mu.Unlock()
		c.log.Warn("halt already pending", "have", c.pending.Kind.String(), "ignored", r.Kind.String())
		return false
	}
	c.pending = r
	hooks := append([]func() error(nil), c.flush...)
	c.mu.Unlock()

	for _, fn := range hooks {
		if err := fn(); err != nil {
			c.log.Error("flush failed", "err", err)
		}
	}
	return true
}
