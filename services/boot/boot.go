// Package boot assembles one boot's worth of services and walks the
// lifecycle: wake, battery gate, provisioning, configuration, one duty
// cycle, sleep.
//
// A boot ends in a restart or deep sleep, both of which end the process on
// the device. Nothing here survives except what the Board's store, flash
// and RTC region keep.
package boot

import (
	"context"
	"io"
	"time"

	"einkcode-go/apps/fun"
	"einkcode-go/apps/messages"
	"einkcode-go/apps/sensor"
	"einkcode-go/apps/shelf"
	"einkcode-go/bus"
	"einkcode-go/drivers/sht31"
	"einkcode-go/errcode"
	"einkcode-go/services/appmgr"
	"einkcode-go/services/config"
	"einkcode-go/services/display"
	"einkcode-go/services/halt"
	"einkcode-go/services/monitor"
	"einkcode-go/services/ota"
	"einkcode-go/services/power"
	"einkcode-go/services/provisioning"
	"einkcode-go/services/radio"
	"einkcode-go/services/rtcmem"
	"einkcode-go/services/store"
	"einkcode-go/services/wifi"
	"einkcode-go/types"
	"einkcode-go/x/logx"
)

// Board is the hardware a boot runs on.
type Board struct {
	Wake    types.WakeCause
	Region  rtcmem.Region
	Store   store.Backend
	ADC     power.ADC
	Divider power.DividerSwitch
	Station wifi.Radio
	BLE     provisioning.Peripheral
	Panel   display.Panel
	Parker  display.PinParker
	Flash   ota.Flash
	Fetch   ota.Fetcher // nil: HTTPS with the pinned root CA
	Halt    halt.Hardware
	Sensor  sht31.Sampler // powered down before sleep if it is a power.Quiescer
}

type Options struct {
	Power        power.Config
	WiFi         wifi.Policy
	Provisioning provisioning.Config
	OTA          ota.Config
	Profile      string // embedded config profile
	DefaultApp   string // activated when the document cannot be applied

	// FallbackSleep is used when no workload ran.
	FallbackSleep time.Duration

	// Workloads replaces the built-in set when non-nil.
	Workloads func(b Board) []appmgr.Workload

	// Journal, when set, receives every bus message of the boot as JSON
	// lines.
	Journal io.Writer
}

// DefaultWorkloads is the firmware's fixed workload set.
func DefaultWorkloads(b Board) []appmgr.Workload {
	return []appmgr.Workload{
		fun.New(nil, b.Sensor),
		sensor.New(b.Sensor, nil),
		shelf.New(nil),
		messages.New(),
	}
}

// System is every service for one boot, wired together.
type System struct {
	Board Board
	Opts  Options

	Bus     *bus.Bus
	State   *rtcmem.State
	Halt    *halt.Controller
	Arbiter *radio.Arbiter
	WiFi    *wifi.Manager
	Display *display.Manager
	Power   *power.Controller
	Prov    *provisioning.Machine
	Config  *config.Service
	OTA     *ota.Updater
	Apps    *appmgr.Orchestrator
	Monitor *monitor.Service // nil without a journal
	log     *logx.Logger
}

// New recovers RTC state and builds the services. It touches no hardware
// beyond reading the RTC region.
func New(b Board, o Options) *System {
	if o.Profile == "" {
		o.Profile = config.DefaultProfile
	}
	if o.DefaultApp == "" {
		o.DefaultApp = fun.Name
	}
	if o.FallbackSleep <= 0 {
		o.FallbackSleep = fun.DefaultInterval
	}
	if o.WiFi.Attempts == 0 {
		o.WiFi = wifi.DefaultPolicy()
	}

	s := &System{Board: b, Opts: o, Bus: bus.NewBus(16), log: logx.New("boot")}
	if o.Journal != nil {
		s.Monitor = monitor.New(s.Bus.NewConnection("monitor"), o.Journal)
	}
	s.State = rtcmem.Recover(b.Region, b.Wake)
	s.Halt = halt.New(b.Halt)
	s.Halt.OnFlush(s.State.Save)
	s.Arbiter = radio.NewArbiter()

	s.WiFi = wifi.NewManager(b.Station, b.Store, s.Arbiter, o.WiFi)
	s.Display = display.NewManager(b.Panel, nil, b.Parker)
	s.Power = power.New(o.Power, power.Deps{
		ADC:    b.ADC,
		Switch: b.Divider,
		Halt:   s.Halt,
		Notice: s.Display,
		State:  s.State,
		Conn:   s.Bus.NewConnection("power"),
	})
	s.Power.RegisterQuiescer(s.WiFi)
	s.Power.RegisterQuiescer(s.Display)
	if q, ok := b.Sensor.(power.Quiescer); ok {
		s.Power.RegisterQuiescer(q)
	}

	s.Prov = provisioning.New(o.Provisioning, provisioning.Deps{
		Peripheral: b.BLE,
		Store:      b.Store,
		Arbiter:    s.Arbiter,
		Halt:       s.Halt,
		Screen:     s.Display,
		Conn:       s.Bus.NewConnection("prov"),
	})
	s.Config = config.NewService(b.Store, s.Bus.NewConnection("config"))
	s.OTA = ota.New(o.OTA, ota.Deps{
		Link:  s.WiFi,
		Fetch: b.Fetch,
		Flash: b.Flash,
		Halt:  s.Halt,
		Conn:  s.Bus.NewConnection("ota"),
	})

	s.Apps = appmgr.New(appmgr.Capabilities{
		Net:     s.WiFi,
		Display: s.Display,
		Power:   s.Power,
		Updater: s.OTA,
		State:   s.State,
	}, s.Bus.NewConnection("appmgr"))
	mk := DefaultWorkloads
	if o.Workloads != nil {
		mk = o.Workloads
	}
	for _, w := range mk(b) {
		s.Apps.Register(w, w.Name())
	}
	return s
}

// Stage is how far a boot got.
type Stage uint8

const (
	StageVeto Stage = iota
	StageProvisioning
	StageConfig
	StageDutyCycle
	StageSleep
	StageCancelled
)

func (s Stage) String() string {
	switch s {
	case StageVeto:
		return "veto"
	case StageProvisioning:
		return "provisioning"
	case StageConfig:
		return "config"
	case StageDutyCycle:
		return "duty_cycle"
	case StageSleep:
		return "sleep"
	default:
		return "cancelled"
	}
}

// Outcome summarises one Run.
type Outcome struct {
	Wake      types.WakeCause
	Stage     Stage
	Advertise bool          // provisioning window opened
	Source    config.Source // where the app document came from
	App       string
	Cycles    int
	Halt      halt.Request // Kind None if the process would keep running
	Err       error
}

// Run performs the boot. It returns when a restart or deep sleep is
// latched or ctx is done. With deep sleep disabled it loops duty cycles.
func (s *System) Run(ctx context.Context) Outcome {
	out := Outcome{Wake: s.Board.Wake}
	if s.Monitor != nil {
		s.Monitor.Start()
		defer s.Monitor.Stop()
	}
	s.log.Info("boot", "wake", s.Board.Wake.String(), "count", s.State.BootCount)

	if err := s.Display.Begin(); err != nil {
		s.log.Warn("display init failed", "err", err)
	}

	if s.Power.Veto(ctx, s.Board.Wake) {
		s.halted(&out)
		out.Stage = StageVeto
		return out
	}

	if s.Prov.Begin(s.Board.Wake) {
		out.Advertise = true
		if err := s.Prov.Run(ctx); err != nil {
			out.Stage, out.Err = StageCancelled, err
			return out
		}
		if s.halted(&out) {
			out.Stage = StageProvisioning
			return out
		}
	}

	out.Source = s.configure()
	out.App = s.Apps.ActiveName()

	for {
		out.Stage = StageDutyCycle
		next, ran, err := s.Apps.RunActiveDutyCycle(ctx)
		if err != nil {
			s.log.Error("duty cycle failed", "app", s.Apps.ActiveName(), "err", err)
		}
		if ran {
			out.Cycles++
		}
		if s.halted(&out) {
			return out
		}
		if !ran || next <= 0 {
			next = s.Opts.FallbackSleep
		}

		out.Stage = StageSleep
		s.Power.Sleep(ctx, next, "duty cycle")
		if s.halted(&out) {
			return out
		}
		if err := ctx.Err(); err != nil {
			out.Stage, out.Err = StageCancelled, err
			return out
		}
	}
}

// configure loads the app document and activates its workload. Anything
// short of a configure failure in the workload itself leaves the default
// app active.
func (s *System) configure() config.Source {
	raw, src, err := s.Config.Load(s.Opts.Profile)
	if err == nil {
		err = s.Apps.ApplyConfiguration(raw)
	}
	switch {
	case err == nil:
	case errcode.Is(err, errcode.ConfigureFailed):
		s.log.Warn("workload rejected its config", "app", s.Apps.ActiveName(), "err", err)
	default:
		s.log.Warn("config not applied, using default app", "default", s.Opts.DefaultApp, "err", err)
		if !s.Apps.Activate(s.Opts.DefaultApp) {
			s.Apps.ActivateIndex(0)
		}
	}
	return src
}

func (s *System) halted(out *Outcome) bool {
	r, ok := s.Halt.Pending()
	if ok {
		out.Halt = r
	}
	return ok
}
