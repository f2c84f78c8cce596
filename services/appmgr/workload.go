package appmgr

import (
	"context"
	"time"

	"einkcode-go/services/display"
	"einkcode-go/services/rtcmem"
	"einkcode-go/types"
)

// Workload is one duty-cycle program. The set is small and fixed at build
// time; each is registered once at boot.
type Workload interface {
	Name() string
	Start() error
	// RunDutyCycle does one unit of work and returns how long to sleep
	// before the next one.
	RunDutyCycle(ctx context.Context) (time.Duration, error)
	Stop()
	Configure(cfg types.DeviceConfiguration) error
	Inject(c Capabilities)
}

// Network is the station link as seen by a workload.
type Network interface {
	Connect(ctx context.Context) error
	Connected() bool
	Disconnect()
	RSSI() int
}

// Display is the shared panel.
type Display interface {
	Show(s display.Screen) error
	Hibernate() error
}

// Power lets a workload read the battery.
type Power interface {
	ClassifyBattery() (types.BatteryState, error)
}

// Updater runs the OTA check and, when newer firmware exists, installs it.
// On success it does not return control in a meaningful way: a restart is
// pending.
type Updater interface {
	CheckAndInstall(ctx context.Context) (installed bool, err error)
}

// Capabilities are pushed into every workload at registration.
type Capabilities struct {
	Net     Network
	Display Display
	Power   Power
	Updater Updater
	State   *rtcmem.State
}

// Base implements Inject; embed it.
type Base struct {
	caps Capabilities
}

func (b *Base) Inject(c Capabilities) { b.caps = c }
func (b *Base) Caps() Capabilities    { return b.caps }
func (b *Base) Net() Network          { return b.caps.Net }
func (b *Base) Display() Display      { return b.caps.Display }
func (b *Base) Power() Power          { return b.caps.Power }
func (b *Base) Updater() Updater      { return b.caps.Updater }
func (b *Base) State() *rtcmem.State  { return b.caps.State }
