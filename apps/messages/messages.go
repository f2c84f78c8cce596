// Package messages shows a fixed list of notes set at provisioning time.
package messages

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"einkcode-go/apps/internal/screens"
	"einkcode-go/services/appmgr"
	"einkcode-go/services/config"
	"einkcode-go/services/display"
	"einkcode-go/types"
	"einkcode-go/x/logx"
)

const (
	Name            = "messages"
	Title           = "Messages"
	DefaultInterval = 60 * time.Minute
)

// Placeholder is shown when no message is configured.
var Placeholder = []string{"No messages configured", "Add messages via BLE config"}

type App struct {
	appmgr.Base
	log *logx.Logger

	interval time.Duration
	msgs     []string
}

func New() *App {
	return &App{log: logx.New(Name), interval: DefaultInterval}
}

func (a *App) Name() string            { return Name }
func (a *App) Start() error            { return nil }
func (a *App) Interval() time.Duration { return a.interval }

// Messages returns the configured list as given, blanks included.
func (a *App) Messages() []string { return a.msgs }

func (a *App) Stop() {
	if d := a.Display(); d != nil {
		_ = d.Hibernate()
	}
}

// Configure replaces the message list with messages (or message1..N) and
// reads refreshInterval. An interval below one minute is raised to one.
func (a *App) Configure(cfg types.DeviceConfiguration) error {
	a.msgs = config.ParseMessages(cfg)
	if v, ok := cfg["refreshInterval"]; ok {
		if n, ok := config.ParseInterval(v); ok {
			a.interval = time.Duration(n) * time.Minute
		} else if isNumber(v) {
			a.interval = time.Minute
		}
	}
	a.log.Info("configured", "messages", len(a.msgs), "interval", a.interval)
	return nil
}

func (a *App) RunDutyCycle(ctx context.Context) (time.Duration, error) {
	scr := a.Screen()
	scr.Footer = screens.BatteryFooter(a.Power())
	if d := a.Display(); d != nil {
		if err := d.Show(scr); err != nil {
			a.log.Error("display failed", "err", err)
		}
	}
	return a.interval, nil
}

// Screen lays out the non-empty messages one per line, or the placeholder.
func (a *App) Screen() display.Screen {
	lines := make([]string, 0, len(a.msgs))
	for _, m := range a.msgs {
		if m != "" {
			lines = append(lines, m)
		}
	}
	if len(lines) == 0 {
		lines = append(lines, Placeholder...)
	}
	return screens.Message(Title, lines...)
}

func isNumber(v any) bool {
	switch x := v.(type) {
	case float64, int64, int:
		return true
	case json.Number:
		_, err := x.Float64()
		return err == nil
	case string:
		_, err := strconv.ParseFloat(x, 64)
		return err == nil
	}
	return false
}
