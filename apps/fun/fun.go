// Package fun is the default workload: it rotates through a handful of
// public data feeds, falling back to the room climate when offline.
package fun

import (
	"context"
	"time"

	"einkcode-go/apps/internal/appcfg"
	"einkcode-go/apps/internal/screens"
	"einkcode-go/drivers/sht31"
	"einkcode-go/errcode"
	"einkcode-go/services/appmgr"
	"einkcode-go/services/display"
	"einkcode-go/types"
	"einkcode-go/x/logx"
)

const (
	Name            = "fun"
	DefaultInterval = 15 * time.Minute
)

// Mode indexes the rotation. The current mode lives in RTC memory so it
// advances across deep sleep.
type Mode uint8

const (
	RoomData Mode = iota
	Earthquake
	CatFacts
	ISS
	UselessFacts
	numModes
)

var modeKeys = [numModes]string{"room_data", "earthquake", "cat_facts", "iss", "useless_facts"}

func (m Mode) String() string {
	if m < numModes {
		return modeKeys[m]
	}
	return "unknown"
}

// Source fetches one online mode as a screen.
type Source interface {
	Fetch(ctx context.Context, m Mode) (display.Screen, error)
}

type App struct {
	appmgr.Base
	src     Source
	sampler sht31.Sampler
	log     *logx.Logger

	interval time.Duration
	enabled  [numModes]bool
}

// New builds the workload; a nil source uses NewHTTPSource.
func New(src Source, s sht31.Sampler) *App {
	if src == nil {
		src = NewHTTPSource(nil)
	}
	a := &App{src: src, sampler: s, log: logx.New(Name), interval: DefaultInterval}
	for i := range a.enabled {
		a.enabled[i] = true
	}
	return a
}

func (a *App) Name() string            { return Name }
func (a *App) Start() error            { return nil }
func (a *App) Interval() time.Duration { return a.interval }

// Enabled reports whether m is part of the rotation.
func (a *App) Enabled(m Mode) bool { return m < numModes && a.enabled[m] }

func (a *App) Stop() {
	if n := a.Net(); n != nil {
		n.Disconnect()
	}
	if d := a.Display(); d != nil {
		_ = d.Hibernate()
	}
}

// Configure reads refreshInterval and the apis toggles. Toggles not named
// keep their current value.
func (a *App) Configure(cfg types.DeviceConfiguration) error {
	a.interval = appcfg.Interval(cfg, a.interval)
	for k, on := range appcfg.Bools(cfg, "apis") {
		for i, key := range modeKeys {
			if key == k {
				a.enabled[i] = on
			}
		}
	}
	return nil
}

// RunDutyCycle shows the current mode, advances the rotation and, when
// online, runs the firmware check.
func (a *App) RunDutyCycle(ctx context.Context) (time.Duration, error) {
	mode := a.current()

	net := a.Net()
	online := net != nil && net.Connect(ctx) == nil
	if net != nil {
		defer net.Disconnect()
	}

	var scr display.Screen
	var err error
	if mode != RoomData && online {
		scr, err = a.src.Fetch(ctx, mode)
		if err != nil {
			a.log.Warn("feed failed, showing room data", "mode", mode.String(), "err", err)
		}
	}
	if mode == RoomData || !online || err != nil {
		scr = a.room(net)
	}
	scr.Footer = screens.BatteryFooter(a.Power())
	if d := a.Display(); d != nil {
		if derr := d.Show(scr); derr != nil {
			a.log.Error("display failed", "err", derr)
		}
	}
	a.advance()

	if online && a.Updater() != nil {
		installed, uerr := a.Updater().CheckAndInstall(ctx)
		if uerr != nil && !errcode.Is(uerr, errcode.NoUpdate) {
			a.log.Warn("update check failed", "err", uerr)
		}
		if installed {
			return 0, nil
		}
	}
	return a.interval, nil
}

func (a *App) room(net appmgr.Network) display.Screen {
	var s sht31.Sample
	err := sht31.ErrNoBus
	if a.sampler != nil {
		s, err = a.sampler.Read()
	}
	scr := screens.Climate("Room Temp & Humidity", s, err, false)
	if w := screens.WifiLine(net); w != "" {
		scr.Lines = append(scr.Lines, w)
	}
	return scr
}

// current skips forward past disabled modes. With nothing enabled it is
// room data.
func (a *App) current() Mode {
	st := a.State()
	if st == nil {
		return RoomData
	}
	m := Mode(st.DisplayMode % uint8(numModes))
	for i := 0; i < int(numModes); i++ {
		if a.enabled[m] {
			st.DisplayMode = uint8(m)
			return m
		}
		m = (m + 1) % numModes
	}
	st.DisplayMode = uint8(RoomData)
	return RoomData
}

// advance moves to the next enabled mode, or room data if none are.
func (a *App) advance() {
	st := a.State()
	if st == nil {
		return
	}
	for i := 0; i < int(numModes); i++ {
		if a.enabled[st.NextDisplayMode(uint8(numModes))] {
			return
		}
	}
	st.DisplayMode = uint8(RoomData)
}
