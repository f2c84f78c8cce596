// Package power gates each boot on battery health and owns the transition
// into deep sleep.
package power

import (
	"context"
	"time"

	"einkcode-go/bus"
	"einkcode-go/errcode"
	"einkcode-go/services/halt"
	"einkcode-go/services/rtcmem"
	"einkcode-go/types"
	"einkcode-go/x/logx"
	"einkcode-go/x/mathx"
	"einkcode-go/x/timex"
)

var TopicBattery = bus.T("power", "battery")

// ADC reads the divider tap in millivolts.
type ADC interface {
	ReadMilliVolts() (int32, error)
}

// DividerSwitch gates current through the divider (V_SWITCH, active low on
// the board). Left disabled between reads.
type DividerSwitch interface {
	Enable()
	Disable()
}

// Notifier puts the low-battery warning on screen.
type Notifier interface {
	ShowLowBattery(percent int) error
}

// Quiescer parks a peripheral before sleep.
type Quiescer interface {
	Quiesce() error
}

type QuiescerFunc func() error

func (f QuiescerFunc) Quiesce() error { return f() }

// Deps are the controller's collaborators. Only ADC is required for
// classification; Halt is required for a real deep sleep.
type Deps struct {
	ADC    ADC
	Switch DividerSwitch
	Halt   *halt.Controller
	Notice Notifier
	State  *rtcmem.State
	Conn   *bus.Connection
}

type Controller struct {
	cfg Config
	d   Deps
	log *logx.Logger

	quiescers []Quiescer
	delay     func(time.Duration)
	wait      func(context.Context, time.Duration) bool
}

func New(cfg Config, d Deps) *Controller {
	return &Controller{
		cfg:   cfg.withDefaults(),
		d:     d,
		log:   logx.New("power"),
		delay: time.Sleep,
		wait:  timex.Sleep,
	}
}

func (c *Controller) Config() Config { return c.cfg }

// RegisterQuiescer adds a pre-sleep hook. Hooks run in registration order.
func (c *Controller) RegisterQuiescer(q Quiescer) {
	if q != nil {
		c.quiescers = append(c.quiescers, q)
	}
}

// ReadVoltage returns the averaged battery voltage.
func (c *Controller) ReadVoltage() (int32, error) {
	if c.d.ADC == nil {
		return 0, errcode.New(errcode.Unconfigured, "power.read", "no adc")
	}
	if c.d.Switch != nil {
		c.d.Switch.Enable()
		defer c.d.Switch.Disable()
		c.delay(c.cfg.Settle)
	}
	samples := make([]int32, 0, c.cfg.Samples)
	for i := 0; i < c.cfg.Samples; i++ {
		mv, err := c.d.ADC.ReadMilliVolts()
		if err != nil {
			return 0, errcode.Wrap(errcode.Error, "power.read", err)
		}
		samples = append(samples, mv)
		if i+1 < c.cfg.Samples {
			c.delay(c.cfg.SampleGap)
		}
	}
	pin := int64(mathx.AvgInt32(samples))
	total := int64(c.cfg.R1Ohms) + int64(c.cfg.R2Ohms)
	return int32(pin * total / int64(c.cfg.R2Ohms)), nil
}

// Percent maps a battery voltage onto 0..100, clamped.
func (c *Controller) Percent(mv int32) int {
	return int(mathx.ScaleRound(mv, c.cfg.EmptyMilliVolts, c.cfg.FullMilliVolts, 100))
}

func (c *Controller) Classify(pct int) types.BatteryClass {
	switch {
	case pct <= c.cfg.LowPercent:
		return types.BatteryCritical
	case pct < c.cfg.ResumePercent:
		return types.BatteryLow
	default:
		return types.BatteryNormal
	}
}

// ClassifyBattery samples and classifies. Never cached.
func (c *Controller) ClassifyBattery() (types.BatteryState, error) {
	mv, err := c.ReadVoltage()
	if err != nil {
		return types.BatteryState{}, err
	}
	pct := c.Percent(mv)
	st := types.BatteryState{MilliVolts: mv, Percent: pct, Class: c.Classify(pct)}
	if c.d.Conn != nil {
		c.d.Conn.PublishRetained(TopicBattery, st)
	}
	return st, nil
}

// Veto runs the boot-time battery gate. It returns true when the boot must
// not continue: the warning is shown and the low-battery sleep is issued.
// Critical always vetoes; Low vetoes only on a timer wake so the device has
// to climb past the resume threshold before normal operation returns. An
// unreadable battery does not veto.
func (c *Controller) Veto(ctx context.Context, wake types.WakeCause) bool {
	st, err := c.ClassifyBattery()
	if err != nil {
		c.log.Error("battery read failed", "err", err)
		return false
	}
	c.log.Info("battery", "mV", st.MilliVolts, "percent", st.Percent, "class", st.Class.String(), "wake", wake.String())

	hold := st.Class == types.BatteryCritical ||
		(st.Class == types.BatteryLow && wake == types.WakeTimer)
	if !hold {
		if c.d.State != nil {
			c.d.State.LowBatteryHolds = 0
		}
		return false
	}

	if c.d.State != nil {
		c.d.State.LowBatteryHolds++
	}
	if c.d.Notice != nil {
		if err := c.d.Notice.ShowLowBattery(st.Percent); err != nil {
			c.log.Warn("low battery screen failed", "err", err)
		}
	}
	c.Sleep(ctx, c.cfg.LowBatterySleep, "low battery")
	return true
}

// Sleep is the terminal action of a boot. Peripherals are quiesced, then
// the device deep sleeps for d. With DisableDeepSleep the call waits d
// instead and returns false so the caller can loop.
func (c *Controller) Sleep(ctx context.Context, d time.Duration, reason string) (halted bool) {
	for _, q := range c.quiescers {
		if err := q.Quiesce(); err != nil {
			c.log.Warn("quiesce failed", "err", err)
		}
	}
	if c.cfg.DisableDeepSleep || c.d.Halt == nil {
		c.log.Info("deep sleep disabled, waiting", "seconds", int64(d/time.Second), "reason", reason)
		c.wait(ctx, d)
		return false
	}
	c.d.Halt.DeepSleep(d, reason)
	return true
}
