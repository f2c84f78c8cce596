// Package provisioning runs the cold-boot BLE configuration window.
//
// The radio task only copies bytes into a Mailbox and flips an atomic flag.
// Everything else (parsing, flash writes, the restart) happens on the main
// loop in Poll.
package provisioning

import (
	"context"
	"sync/atomic"
	"time"

	"einkcode-go/bus"
	"einkcode-go/errcode"
	"einkcode-go/services/config"
	"einkcode-go/services/halt"
	"einkcode-go/services/radio"
	"einkcode-go/services/store"
	"einkcode-go/types"
	"einkcode-go/x/logx"
)

type State uint8

const (
	Dormant State = iota
	Advertising
	Connected
	TimedOut
)

func (s State) String() string {
	switch s {
	case Advertising:
		return "advertising"
	case Connected:
		return "connected"
	case TimedOut:
		return "timed_out"
	default:
		return "dormant"
	}
}

var TopicState = bus.T("prov", "state")

// Status frames sent on the notify characteristic.
var (
	notifyApplied = []byte("applied")
	notifyInvalid = []byte("invalid")
	notifyError   = []byte("error")
)

// Screen shows the "provisioning mode" message.
type Screen interface {
	ShowProvisioning(deviceName string) error
}

type Deps struct {
	Peripheral Peripheral
	Store      store.Backend
	Arbiter    *radio.Arbiter
	Halt       *halt.Controller
	Screen     Screen
	Conn       *bus.Connection
}

type Machine struct {
	cfg Config
	d   Deps
	log *logx.Logger
	box *Mailbox

	state      State
	opened     time.Time
	lastStatus time.Time
	lastDrops  uint32
	connected  atomic.Bool
	radioUp    bool
	now        func() time.Time
}

func New(cfg Config, d Deps) *Machine {
	cfg = cfg.withDefaults()
	return &Machine{
		cfg: cfg,
		d:   d,
		log: logx.New("prov"),
		box: NewMailbox(cfg.BufferSize),
		now: time.Now,
	}
}

func (m *Machine) State() State { return m.state }

// Begin decides whether this boot provisions. The skip flag is consumed
// unconditionally so it never outlives the restart that set it. Only a cold
// boot with the flag clear opens the window.
func (m *Machine) Begin(wake types.WakeCause) bool {
	skip, err := config.ConsumeSkipFlag(m.d.Store)
	if err != nil {
		m.log.Warn("skip flag read failed", "err", err)
	}
	if !wake.ColdBoot() {
		m.log.Info("skipping provisioning", "wake", wake.String())
		return false
	}
	if skip {
		m.log.Info("skipping provisioning after config restart")
		return false
	}
	return m.open(m.now()) == nil
}

func (m *Machine) open(now time.Time) error {
	if err := m.d.Arbiter.Acquire(radio.BLE, m.teardown); err != nil {
		m.log.Error("radio unavailable", "err", err)
		return err
	}
	if err := m.d.Peripheral.Init(m.cfg.DeviceName); err != nil {
		m.close()
		m.log.Error("ble init failed", "err", err)
		return errcode.Wrap(errcode.Error, "prov.init", err)
	}
	m.radioUp = true
	cb := Callbacks{
		OnConnect:    func() { m.connected.Store(true) },
		OnDisconnect: func() { m.connected.Store(false) },
		OnWrite:      func(p []byte) { m.box.Offer(p) },
	}
	if err := m.d.Peripheral.Serve(Table(m.cfg.Manufacturer, m.cfg.Model, m.cfg.FirmwareVersion), cb); err != nil {
		m.close()
		m.log.Error("gatt serve failed", "err", err)
		return errcode.Wrap(errcode.Error, "prov.serve", err)
	}
	if m.d.Screen != nil {
		if err := m.d.Screen.ShowProvisioning(m.cfg.DeviceName); err != nil {
			m.log.Warn("provisioning screen failed", "err", err)
		}
	}
	m.opened = now
	m.lastStatus = now
	m.setState(Advertising, "")
	m.log.Info("advertising", "name", m.cfg.DeviceName, "service", ServiceUUID.String(), "window_s", int64(m.cfg.Window/time.Second))
	return nil
}

// Poll is one pass of the main loop. It returns the state after the pass.
func (m *Machine) Poll(now time.Time) State {
	if m.state == Dormant || m.state == TimedOut {
		return m.state
	}

	if d := m.box.Dropped(); d != m.lastDrops {
		m.log.Warn("provisioning writes dropped", "total", d)
		m.lastDrops = d
	}
	if raw, ok := m.box.Take(); ok {
		if m.apply(raw) {
			return m.state
		}
	}

	conn := m.connected.Load()
	switch {
	case conn && m.state == Advertising:
		m.log.Info("client connected")
		m.setState(Connected, "")
	case !conn && m.state == Connected:
		m.log.Info("client disconnected")
		m.setState(Advertising, "")
	}

	elapsed := now.Sub(m.opened)
	if now.Sub(m.lastStatus) >= m.cfg.StatusEvery {
		m.lastStatus = now
		m.log.Info("still advertising", "connected", conn, "remaining_s", int64((m.cfg.Window-elapsed)/time.Second))
	}
	if elapsed >= m.cfg.Window && !conn {
		m.setState(TimedOut, "")
		m.log.Info("window elapsed")
		m.close()
	}
	return m.state
}

// apply processes one payload. It reports true when the device is
// restarting.
func (m *Machine) apply(raw []byte) bool {
	rec, err := ParsePayload(raw)
	if err != nil {
		m.log.Warn("payload rejected", "bytes", len(raw), "err", err)
		m.notify(notifyInvalid)
		m.publish(m.state, "invalid payload")
		return false
	}
	if err := config.Persist(m.d.Store, rec, true); err != nil {
		m.log.Error("persist failed", "err", err)
		m.notify(notifyError)
		m.publish(m.state, "persist failed")
		return false
	}
	m.log.Info("configuration applied", "mode", rec.Mode)
	m.notify(notifyApplied)
	m.publish(m.state, "applied")
	if m.d.Halt != nil {
		m.d.Halt.Restart("provisioned")
	}
	return true
}

// Run drives Poll until the window closes, a restart is pending, or ctx is
// done. The radio is always de-initialised before Run returns.
func (m *Machine) Run(ctx context.Context) error {
	defer m.close()
	if m.state == Dormant {
		return nil
	}
	tick := time.NewTicker(m.cfg.PollEvery)
	defer tick.Stop()
	for {
		if m.Poll(m.now()) == Dormant {
			return nil
		}
		if m.d.Halt != nil {
			if _, ok := m.d.Halt.Pending(); ok {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
}

// Offer feeds a write as if it came from the radio task.
func (m *Machine) Offer(p []byte) bool { return m.box.Offer(p) }

func (m *Machine) notify(p []byte) {
	if !m.radioUp {
		return
	}
	if err := m.d.Peripheral.Notify(p); err != nil {
		m.log.Debug("notify failed", "err", err)
	}
}

// teardown is handed to the arbiter: another owner taking the radio shuts
// BLE down.
func (m *Machine) teardown() error {
	if !m.radioUp {
		return nil
	}
	m.radioUp = false
	m.connected.Store(false)
	return m.d.Peripheral.Deinit()
}

func (m *Machine) close() {
	if err := m.teardown(); err != nil {
		m.log.Warn("ble deinit failed", "err", err)
	}
	m.d.Arbiter.Release(radio.BLE)
	if m.state != Dormant {
		m.setState(Dormant, "")
	}
}

func (m *Machine) setState(s State, detail string) {
	m.state = s
	m.publish(s, detail)
}

func (m *Machine) publish(s State, detail string) {
	if m.d.Conn == nil {
		return
	}
	var remaining int64
	if s == Advertising || s == Connected {
		remaining = int64(m.cfg.Window / time.Millisecond)
		if !m.opened.IsZero() {
			remaining = int64((m.cfg.Window - m.now().Sub(m.opened)) / time.Millisecond)
			if remaining < 0 {
				remaining = 0
			}
		}
	}
	m.d.Conn.PublishRetained(TopicState, types.ProvisioningState{
		State:     s.String(),
		Connected: m.connected.Load(),
		Remaining: remaining,
		Detail:    detail,
	})
}
