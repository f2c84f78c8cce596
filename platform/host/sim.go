//go:build !tinygo

package host

import (
	"errors"
	"image/color"
	"os"
	"sync"
	"time"

	"einkcode-go/drivers/sht31"
	"einkcode-go/services/halt"
	"einkcode-go/services/power"
	"einkcode-go/services/wifi"
)

// -----------------------------------------------------------------------------
// Station radio
// -----------------------------------------------------------------------------

// AccessPoint is a network the simulated radio can see.
type AccessPoint struct {
	SSID     string
	Password string
	RSSI     int
}

// SimRadio associates after JoinPolls status polls if the credentials match
// a visible access point.
type SimRadio struct {
	JoinPolls int

	mu     sync.Mutex
	aps    []AccessPoint
	status wifi.Status
	target wifi.Status
	polls  int
	joined AccessPoint
	begins int
}

func NewSimRadio(aps ...AccessPoint) *SimRadio {
	return &SimRadio{JoinPolls: 2, aps: aps}
}

// SetAccessPoints replaces the visible networks.
func (r *SimRadio) SetAccessPoints(aps ...AccessPoint) {
	r.mu.Lock()
	r.aps = aps
	r.mu.Unlock()
}

func (r *SimRadio) Begin(ssid, password string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.begins++
	r.status, r.polls, r.target = wifi.Connecting, 0, wifi.NoSSID
	for _, ap := range r.aps {
		if ap.SSID != ssid {
			continue
		}
		r.target = wifi.Failed
		if ap.Password == password {
			r.target, r.joined = wifi.Connected, ap
		}
	}
	return nil
}

func (r *SimRadio) Status() wifi.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == wifi.Connecting {
		r.polls++
		if r.polls >= r.JoinPolls {
			r.status = r.target
		}
	}
	return r.status
}

func (r *SimRadio) RSSI() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != wifi.Connected {
		return 0
	}
	return r.joined.RSSI
}

func (r *SimRadio) LocalIP() string {
	if r.Status() != wifi.Connected {
		return ""
	}
	return "192.168.4.23"
}

func (r *SimRadio) Off() error {
	r.mu.Lock()
	r.status = wifi.Idle
	r.mu.Unlock()
	return nil
}

// Begins counts association attempts.
func (r *SimRadio) Begins() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.begins
}

// -----------------------------------------------------------------------------
// Battery
// -----------------------------------------------------------------------------

// ScriptADC reports the divider pin voltage for a scripted battery level.
// Advance moves to the next level; the last level repeats.
type ScriptADC struct {
	R1Ohms uint32
	R2Ohms uint32
	Err    error

	mu     sync.Mutex
	levels []int32
	i      int
}

func NewScriptADC(batteryMilliVolts ...int32) *ScriptADC {
	d := power.DefaultConfig()
	return &ScriptADC{R1Ohms: d.R1Ohms, R2Ohms: d.R2Ohms, levels: batteryMilliVolts}
}

func (a *ScriptADC) Advance() {
	a.mu.Lock()
	if a.i+1 < len(a.levels) {
		a.i++
	}
	a.mu.Unlock()
}

// Battery is the current scripted level.
func (a *ScriptADC) Battery() int32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.levels) == 0 {
		return 0
	}
	return a.levels[a.i]
}

func (a *ScriptADC) ReadMilliVolts() (int32, error) {
	if a.Err != nil {
		return 0, a.Err
	}
	b := int64(a.Battery())
	return int32(b * int64(a.R2Ohms) / (int64(a.R1Ohms) + int64(a.R2Ohms))), nil
}

// Divider counts enable cycles of the divider switch.
type Divider struct {
	mu      sync.Mutex
	on      bool
	Enables int
}

func (d *Divider) Enable() {
	d.mu.Lock()
	d.on = true
	d.Enables++
	d.mu.Unlock()
}

func (d *Divider) Disable() {
	d.mu.Lock()
	d.on = false
	d.mu.Unlock()
}

func (d *Divider) On() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.on
}

// -----------------------------------------------------------------------------
// Panel
// -----------------------------------------------------------------------------

// MemPanel is a 1-bit framebuffer with refresh and sleep counters.
type MemPanel struct {
	w, h      int16
	buf       []bool
	Refreshes int
	Sleeps    int
	Err       error
}

func NewMemPanel(w, h int16) *MemPanel {
	return &MemPanel{w: w, h: h, buf: make([]bool, int(w)*int(h))}
}

func (p *MemPanel) Size() (int16, int16) { return p.w, p.h }

func (p *MemPanel) SetPixel(x, y int16, c color.RGBA) {
	if x < 0 || y < 0 || x >= p.w || y >= p.h {
		return
	}
	p.buf[int(y)*int(p.w)+int(x)] = c.R < 0x80
}

func (p *MemPanel) Display() error {
	if p.Err != nil {
		return p.Err
	}
	p.Refreshes++
	return nil
}

func (p *MemPanel) Sleep() error {
	p.Sleeps++
	return nil
}

// Ink counts black pixels.
func (p *MemPanel) Ink() int {
	n := 0
	for _, b := range p.buf {
		if b {
			n++
		}
	}
	return n
}

// Pins counts Park calls.
type Pins struct{ Parked int }

func (p *Pins) Park() error {
	p.Parked++
	return nil
}

// -----------------------------------------------------------------------------
// RTC region
// -----------------------------------------------------------------------------

// MemRegion survives simulated deep sleep. With a path it also survives the
// simulator process.
type MemRegion struct {
	path string
	mu   sync.Mutex
	buf  []byte
}

func NewMemRegion(path string) *MemRegion {
	r := &MemRegion{path: path}
	if path != "" {
		if b, err := os.ReadFile(path); err == nil {
			r.buf = b
		}
	}
	return r
}

func (r *MemRegion) Load() ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.buf == nil {
		return nil, false
	}
	return append([]byte(nil), r.buf...), true
}

func (r *MemRegion) Store(b []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = append(r.buf[:0], b...)
	if r.path != "" {
		return os.WriteFile(r.path, r.buf, 0o644)
	}
	return nil
}

// PowerLoss clears the region, as removing the battery would.
func (r *MemRegion) PowerLoss() {
	r.mu.Lock()
	r.buf = nil
	r.mu.Unlock()
	if r.path != "" {
		_ = os.Remove(r.path)
	}
}

// -----------------------------------------------------------------------------
// Halt
// -----------------------------------------------------------------------------

// HaltEvent is one recorded terminal action.
type HaltEvent struct {
	Kind  halt.Kind
	Sleep time.Duration
}

// RecordingHardware records restarts and deep sleeps instead of performing
// them.
type RecordingHardware struct {
	mu     sync.Mutex
	events []HaltEvent
}

func (h *RecordingHardware) DeepSleep(d time.Duration) {
	h.mu.Lock()
	h.events = append(h.events, HaltEvent{Kind: halt.DeepSleep, Sleep: d})
	h.mu.Unlock()
}

func (h *RecordingHardware) Restart() {
	h.mu.Lock()
	h.events = append(h.events, HaltEvent{Kind: halt.Restart})
	h.mu.Unlock()
}

func (h *RecordingHardware) Events() []HaltEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]HaltEvent(nil), h.events...)
}

// -----------------------------------------------------------------------------
// Climate sensor
// -----------------------------------------------------------------------------

var ErrSensorAbsent = errors.New("sht31: no response")

// SimSensor returns a fixed sample and counts bus power-downs.
type SimSensor struct {
	Sample   sht31.Sample
	Err      error
	Quiesced int
}

func (s *SimSensor) Quiesce() error {
	s.Quiesced++
	return nil
}

func (s *SimSensor) Read() (sht31.Sample, error) {
	if s.Err != nil {
		return sht31.Sample{}, s.Err
	}
	return s.Sample, nil
}
