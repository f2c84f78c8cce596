// Package radio arbitrates the single antenna shared by BLE and the WiFi
// station. Only one owner holds it; a new owner first tears down the old.
package radio

import (
	"sync"

	"einkcode-go/errcode"
	"einkcode-go/x/logx"
)

type Owner string

const (
	Free    Owner = ""
	BLE     Owner = "ble"
	Station Owner = "station"
)

type Arbiter struct {
	mu       sync.Mutex
	holder   Owner
	teardown func() error
	log      *logx.Logger
}

func NewArbiter() *Arbiter {
	return &Arbiter{log: logx.New("radio")}
}

// Acquire hands the radio to owner. If another owner holds it, that owner's
// teardown runs first; if teardown fails the holder is unchanged and
// radio_in_use is returned. Re-acquiring by the current holder replaces its
// teardown.
func (a *Arbiter) Acquire(owner Owner, teardown func() error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.holder != Free && a.holder != owner {
		if a.teardown != nil {
			if err := a.teardown(); err != nil {
				a.log.Warn("teardown failed", "holder", string(a.holder), "want", string(owner), "err", err)
				return errcode.Wrap(errcode.RadioInUse, "radio.acquire", err)
			}
		}
		a.log.Debug("radio handed over", "from", string(a.holder), "to", string(owner))
	}
	a.holder = owner
	a.teardown = teardown
	return nil
}

// Release frees the radio if owner holds it. The teardown is not run; the
// caller has already shut its side down.
func (a *Arbiter) Release(owner Owner) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.holder == owner {
		a.holder = Free
		a.teardown = nil
	}
}

func (a *Arbiter) Holder() Owner {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.holder
}
