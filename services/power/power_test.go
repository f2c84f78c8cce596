package power

import (
	"context"
	"errors"
	"testing"
	"time"

	"einkcode-go/bus"
	"einkcode-go/services/halt"
	"einkcode-go/services/rtcmem"
	"einkcode-go/types"
)

// fakeADC returns the tap voltage for a given battery voltage.
type fakeADC struct {
	batteryMV int32
	err       error
	reads     int
}

func (f *fakeADC) ReadMilliVolts() (int32, error) {
	f.reads++
	if f.err != nil {
		return 0, f.err
	}
	// round to nearest on the tap so the divider round-trips
	return (f.batteryMV*68 + 57) / 115, nil
}

type fakeSwitch struct{ on, enables int }

func (s *fakeSwitch) Enable()  { s.on++; s.enables++ }
func (s *fakeSwitch) Disable() { s.on-- }

type fakeHW struct {
	sleeps []time.Duration
}

func (f *fakeHW) DeepSleep(d time.Duration) { f.sleeps = append(f.sleeps, d) }
func (f *fakeHW) Restart()                  {}

type fakeNotice struct{ shown []int }

func (n *fakeNotice) ShowLowBattery(p int) error { n.shown = append(n.shown, p); return nil }

// percentMV is the battery voltage that reads as pct.
func percentMV(pct int32) int32 { return 2800 + (1350*pct+50)/100 }

func newTestController(adc ADC, d Deps) (*Controller, *fakeHW) {
	hw := &fakeHW{}
	d.ADC = adc
	if d.Halt == nil {
		d.Halt = halt.New(hw)
	}
	c := New(Config{}, d)
	c.delay = func(time.Duration) {}
	c.wait = func(context.Context, time.Duration) bool { return true }
	return c, hw
}

func TestPercentClampsAndIsMonotonic(t *testing.T) {
	c, _ := newTestController(&fakeADC{}, Deps{})
	if c.Percent(2500) != 0 || c.Percent(2800) != 0 {
		t.Fatal("at or below empty must be 0")
	}
	if c.Percent(4150) != 100 || c.Percent(4400) != 100 {
		t.Fatal("at or above full must be 100")
	}
	prev := -1
	for mv := int32(2700); mv <= 4250; mv += 7 {
		p := c.Percent(mv)
		if p < prev || p < 0 || p > 100 {
			t.Fatalf("percent(%d) = %d after %d", mv, p, prev)
		}
		prev = p
	}
}

func TestClassifyThresholds(t *testing.T) {
	c, _ := newTestController(&fakeADC{}, Deps{})
	cases := map[int]types.BatteryClass{
		0: types.BatteryCritical, 5: types.BatteryCritical,
		6: types.BatteryLow, 14: types.BatteryLow,
		15: types.BatteryNormal, 100: types.BatteryNormal,
	}
	for pct, want := range cases {
		if got := c.Classify(pct); got != want {
			t.Fatalf("classify(%d) = %s, want %s", pct, got, want)
		}
	}
}

func TestReadVoltageAveragesThroughDivider(t *testing.T) {
	adc := &fakeADC{batteryMV: 3700}
	sw := &fakeSwitch{}
	c, _ := newTestController(adc, Deps{Switch: sw})
	mv, err := c.ReadVoltage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if mv < 3695 || mv > 3705 {
		t.Fatalf("mv = %d, want ~3700", mv)
	}
	if adc.reads != 10 {
		t.Fatalf("reads = %d, want 10", adc.reads)
	}
	if sw.enables != 1 || sw.on != 0 {
		t.Fatal("divider not switched on then off")
	}
}

// Critical battery: warning, 300 s sleep, no workload. Next timer wake at
// 20 % resumes normal operation.
func TestLowBatteryHoldThenResume(t *testing.T) {
	region := &rtcmem.Mem{}
	st := rtcmem.Recover(region, types.WakeTimer)
	adc := &fakeADC{batteryMV: percentMV(3)}
	notice := &fakeNotice{}
	c, hw := newTestController(adc, Deps{Notice: notice, State: st})

	if !c.Veto(context.Background(), types.WakeTimer) {
		t.Fatal("3% battery did not veto")
	}
	if len(notice.shown) != 1 || notice.shown[0] != 3 {
		t.Fatalf("notice = %v, want [3]", notice.shown)
	}
	if len(hw.sleeps) != 1 || hw.sleeps[0] != 300*time.Second {
		t.Fatalf("sleeps = %v, want [5m]", hw.sleeps)
	}
	if st.LowBatteryHolds != 1 {
		t.Fatalf("holds = %d", st.LowBatteryHolds)
	}

	adc.batteryMV = percentMV(20)
	c2, hw2 := newTestController(adc, Deps{State: st})
	if c2.Veto(context.Background(), types.WakeTimer) {
		t.Fatal("20% battery vetoed")
	}
	if len(hw2.sleeps) != 0 || st.LowBatteryHolds != 0 {
		t.Fatal("resume did not clear the hold")
	}
}

func TestLowVetoesOnlyOnTimerWake(t *testing.T) {
	adc := &fakeADC{batteryMV: percentMV(10)}
	c, _ := newTestController(adc, Deps{})
	if c.Veto(context.Background(), types.WakeUndefined) {
		t.Fatal("low battery vetoed a cold boot")
	}
	c, _ = newTestController(adc, Deps{})
	if !c.Veto(context.Background(), types.WakeTimer) {
		t.Fatal("low battery did not veto a timer wake")
	}
}

func TestADCFailureDoesNotVeto(t *testing.T) {
	c, hw := newTestController(&fakeADC{err: errors.New("adc")}, Deps{})
	if c.Veto(context.Background(), types.WakeTimer) {
		t.Fatal("read failure vetoed")
	}
	if len(hw.sleeps) != 0 {
		t.Fatal("slept on read failure")
	}
}

func TestSleepQuiescesFirst(t *testing.T) {
	var order []string
	c, hw := newTestController(&fakeADC{}, Deps{})
	c.RegisterQuiescer(QuiescerFunc(func() error { order = append(order, "display"); return nil }))
	c.RegisterQuiescer(QuiescerFunc(func() error { order = append(order, "wifi"); return errors.New("x") }))

	if !c.Sleep(context.Background(), 10*time.Minute, "duty cycle") {
		t.Fatal("sleep did not halt")
	}
	if len(order) != 2 || order[0] != "display" || order[1] != "wifi" {
		t.Fatalf("order = %v", order)
	}
	if len(hw.sleeps) != 1 || hw.sleeps[0] != 10*time.Minute {
		t.Fatalf("sleeps = %v", hw.sleeps)
	}
}

func TestSleepDisabledWaits(t *testing.T) {
	hw := &fakeHW{}
	c := New(Config{DisableDeepSleep: true}, Deps{ADC: &fakeADC{}, Halt: halt.New(hw)})
	var waited time.Duration
	c.wait = func(_ context.Context, d time.Duration) bool { waited = d; return true }
	if c.Sleep(context.Background(), time.Minute, "test") {
		t.Fatal("disabled sleep halted")
	}
	if waited != time.Minute || len(hw.sleeps) != 0 {
		t.Fatalf("waited=%v sleeps=%v", waited, hw.sleeps)
	}
}

func TestBatteryPublishedRetained(t *testing.T) {
	b := bus.NewBus(4)
	c, _ := newTestController(&fakeADC{batteryMV: 3900}, Deps{Conn: b.NewConnection("power")})
	if _, err := c.ClassifyBattery(); err != nil {
		t.Fatalf("classify: %v", err)
	}
	m, ok := b.Retained(TopicBattery)
	if !ok {
		t.Fatal("battery state not retained")
	}
	if st := m.Payload.(types.BatteryState); st.Class != types.BatteryNormal {
		t.Fatalf("class = %s", st.Class)
	}
}
