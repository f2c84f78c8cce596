// Package wifi brings the station interface up for one duty cycle and takes
// it down again before sleep.
package wifi

import (
	"context"
	"time"

	"einkcode-go/errcode"
	"einkcode-go/services/config"
	"einkcode-go/services/radio"
	"einkcode-go/services/store"
	"einkcode-go/x/logx"
	"einkcode-go/x/timex"
)

type Status uint8

const (
	Idle Status = iota
	Connecting
	Connected
	NoSSID
	Failed
	Disconnected
)

func (s Status) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case NoSSID:
		return "no_ssid"
	case Failed:
		return "failed"
	case Disconnected:
		return "disconnected"
	default:
		return "idle"
	}
}

// Radio is the station driver.
type Radio interface {
	Begin(ssid, password string) error
	Status() Status
	RSSI() int
	LocalIP() string
	Off() error
}

// Policy bounds association polling.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

func DefaultPolicy() Policy {
	return Policy{Attempts: 10, Delay: 500 * time.Millisecond}
}

type Manager struct {
	radio  Radio
	store  store.Backend
	arb    *radio.Arbiter
	policy Policy
	log    *logx.Logger

	up bool
}

func NewManager(r Radio, b store.Backend, arb *radio.Arbiter, p Policy) *Manager {
	d := DefaultPolicy()
	if p.Attempts <= 0 {
		p.Attempts = d.Attempts
	}
	if p.Delay <= 0 {
		p.Delay = d.Delay
	}
	return &Manager{radio: r, store: b, arb: arb, policy: p, log: logx.New("wifi")}
}

// Connect joins the stored network. A missing SSID is unconfigured; running
// out of attempts is offline. Either way the radio is switched off again.
func (m *Manager) Connect(ctx context.Context) error {
	if m.up && m.radio.Status() == Connected {
		return nil
	}
	ssid, pass, err := config.Credentials(m.store)
	if err != nil {
		return err
	}
	if ssid == "" {
		return errcode.New(errcode.Unconfigured, "wifi.connect", "no ssid stored")
	}

	if err := m.arb.Acquire(radio.Station, m.off); err != nil {
		return err
	}
	m.log.Info("connecting", "ssid", ssid)
	if err := m.radio.Begin(ssid, pass); err != nil {
		m.shutdown()
		return errcode.Wrap(errcode.Offline, "wifi.begin", err)
	}

	for i := 0; i < m.policy.Attempts; i++ {
		if m.radio.Status() == Connected {
			m.up = true
			m.log.Info("connected", "ip", m.radio.LocalIP(), "rssi", m.radio.RSSI())
			return nil
		}
		if !timex.Sleep(ctx, m.policy.Delay) {
			m.shutdown()
			return errcode.Wrap(errcode.Timeout, "wifi.connect", ctx.Err())
		}
	}
	st := m.radio.Status()
	if st == Connected {
		m.up = true
		return nil
	}
	m.log.Warn("association failed", "status", st.String(), "attempts", m.policy.Attempts)
	m.shutdown()
	return errcode.New(errcode.Offline, "wifi.connect", st.String())
}

func (m *Manager) Connected() bool {
	return m.up && m.radio.Status() == Connected
}

func (m *Manager) RSSI() int {
	if !m.Connected() {
		return 0
	}
	return m.radio.RSSI()
}

func (m *Manager) LocalIP() string {
	if !m.Connected() {
		return ""
	}
	return m.radio.LocalIP()
}

// Disconnect drops the association and releases the antenna.
func (m *Manager) Disconnect() {
	m.shutdown()
}

// Quiesce is the pre-sleep hook.
func (m *Manager) Quiesce() error {
	m.shutdown()
	return nil
}

func (m *Manager) shutdown() {
	_ = m.off()
	m.arb.Release(radio.Station)
}

func (m *Manager) off() error {
	m.up = false
	return m.radio.Off()
}
