// Package display owns the e-ink panel for the duration of a boot.
package display

import (
	"image/color"
	"strconv"

	"tinygo.org/x/drivers"

	"einkcode-go/x/logx"
)

// Panel is the e-ink controller: a drivers.Displayer that can also be put
// into deep sleep.
type Panel interface {
	drivers.Displayer
	Sleep() error
}

// Screen is one full-screen layout.
type Screen struct {
	Title  string
	Lines  []string
	Footer string
}

// Renderer lays a Screen out onto the panel buffer. Word wrapping and fonts
// live behind this interface.
type Renderer interface {
	Render(p Panel, s Screen) error
}

// PinParker drives the SPI lines to a non-driving state for sleep.
type PinParker interface {
	Park() error
}

var (
	White = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	Black = color.RGBA{A: 0xff}
)

type Manager struct {
	panel Panel
	r     Renderer
	park  PinParker
	log   *logx.Logger

	awake bool
	last  Screen
	shows int
}

// NewManager wires a panel. r and park may be nil; a nil renderer uses
// PlainRenderer.
func NewManager(p Panel, r Renderer, park PinParker) *Manager {
	if r == nil {
		r = PlainRenderer{}
	}
	return &Manager{panel: p, r: r, park: park, log: logx.New("display")}
}

func (m *Manager) Begin() error {
	if m.panel == nil {
		return errNoPanel
	}
	m.awake = true
	return nil
}

// Show renders s and refreshes the panel.
func (m *Manager) Show(s Screen) error {
	if !m.awake {
		if err := m.Begin(); err != nil {
			return err
		}
	}
	if err := m.r.Render(m.panel, s); err != nil {
		return err
	}
	if err := m.panel.Display(); err != nil {
		m.log.Warn("refresh failed", "err", err)
		return err
	}
	m.last = s
	m.shows++
	return nil
}

func (m *Manager) ShowLowBattery(percent int) error {
	return m.Show(Screen{
		Title:  "Low battery",
		Lines:  []string{"Battery at " + strconv.Itoa(percent) + "%", "Please charge the device"},
		Footer: "Checking again in 5 minutes",
	})
}

func (m *Manager) ShowProvisioning(deviceName string) error {
	return m.Show(Screen{
		Title: "Setup mode",
		Lines: []string{"Connect with the companion app", "Device: " + deviceName},
	})
}

// Hibernate puts the controller to sleep. The image stays on the glass.
func (m *Manager) Hibernate() error {
	if !m.awake {
		return nil
	}
	m.awake = false
	return m.panel.Sleep()
}

// Quiesce is the pre-sleep hook.
func (m *Manager) Quiesce() error {
	err := m.Hibernate()
	if m.park != nil {
		if perr := m.park.Park(); perr != nil && err == nil {
			err = perr
		}
	}
	return err
}

// Last returns the most recent screen shown.
func (m *Manager) Last() (Screen, int) { return m.last, m.shows }
