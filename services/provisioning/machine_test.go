package provisioning

import (
	"context"
	"testing"
	"time"

	"einkcode-go/bus"
	"einkcode-go/services/config"
	"einkcode-go/services/halt"
	"einkcode-go/services/radio"
	"einkcode-go/services/store"
	"einkcode-go/types"
)

type fakePeripheral struct {
	name     string
	gatt     GATT
	cb       Callbacks
	notified []string
	inits    int
	deinits  int
}

func (f *fakePeripheral) Init(name string) error { f.name = name; f.inits++; return nil }
func (f *fakePeripheral) Serve(g GATT, cb Callbacks) error {
	f.gatt, f.cb = g, cb
	return nil
}
func (f *fakePeripheral) Notify(p []byte) error {
	f.notified = append(f.notified, string(p))
	return nil
}
func (f *fakePeripheral) Deinit() error { f.deinits++; return nil }

type fakeScreen struct{ shown int }

func (s *fakeScreen) ShowProvisioning(string) error { s.shown++; return nil }

type fakeHW struct{ restarts int }

func (h *fakeHW) DeepSleep(time.Duration) {}
func (h *fakeHW) Restart()                { h.restarts++ }

type rig struct {
	m      *Machine
	p      *fakePeripheral
	st     *store.Mem
	arb    *radio.Arbiter
	hw     *fakeHW
	halt   *halt.Controller
	screen *fakeScreen
	bus    *bus.Bus
	clock  time.Time
}

func newRig(st *store.Mem) *rig {
	r := &rig{
		p:      &fakePeripheral{},
		st:     st,
		arb:    radio.NewArbiter(),
		hw:     &fakeHW{},
		screen: &fakeScreen{},
		bus:    bus.NewBus(8),
		clock:  time.Unix(1_700_000_000, 0),
	}
	r.halt = halt.New(r.hw)
	r.m = New(Config{}, Deps{
		Peripheral: r.p,
		Store:      st,
		Arbiter:    r.arb,
		Halt:       r.halt,
		Screen:     r.screen,
		Conn:       r.bus.NewConnection("prov-test"),
	})
	r.m.now = func() time.Time { return r.clock }
	return r
}

func (r *rig) advance(d time.Duration) State {
	r.clock = r.clock.Add(d)
	return r.m.Poll(r.clock)
}

func TestColdBootOpensWindow(t *testing.T) {
	r := newRig(store.NewMem())
	stationDown := 0
	_ = r.arb.Acquire(radio.Station, func() error { stationDown++; return nil })

	if !r.m.Begin(types.WakeUndefined) {
		t.Fatal("cold boot did not open provisioning")
	}
	if r.m.State() != Advertising {
		t.Fatalf("state = %s", r.m.State())
	}
	if stationDown != 1 || r.arb.Holder() != radio.BLE {
		t.Fatal("station not torn down before BLE")
	}
	if r.p.name != "E-Ink Display" || r.p.gatt.Service != ServiceUUID {
		t.Fatalf("served %q %s", r.p.name, r.p.gatt.Service)
	}
	if r.screen.shown != 1 {
		t.Fatal("provisioning screen not shown")
	}
	m, ok := r.bus.Retained(TopicState)
	if !ok || m.Payload.(types.ProvisioningState).State != "advertising" {
		t.Fatalf("retained state = %+v", m)
	}
}

func TestNonColdWakeSkips(t *testing.T) {
	st := store.NewMem()
	_ = config.Persist(st, config.Record{Mode: "fun"}, true)
	for _, w := range []types.WakeCause{types.WakeTimer, types.WakeExt0, types.WakeExt1, types.WakeTouchpad, types.WakeULP} {
		r := newRig(st)
		if r.m.Begin(w) {
			t.Fatalf("%s opened provisioning", w)
		}
		if r.p.inits != 0 {
			t.Fatalf("%s initialised BLE", w)
		}
	}
	if store.GetBool(readerOf(st), store.KeySkipBLE) {
		t.Fatal("skip flag not consumed on timer wake")
	}
}

func TestSkipFlagRoundTrip(t *testing.T) {
	st := store.NewMem()
	_ = config.Persist(st, config.Record{Mode: "fun"}, true)

	if newRig(st).m.Begin(types.WakeUndefined) {
		t.Fatal("provisioning opened with skip flag set")
	}
	if !newRig(st).m.Begin(types.WakeUndefined) {
		t.Fatal("provisioning stayed disabled after the flag was consumed")
	}
}

func TestInvalidPayloadsKeepAdvertising(t *testing.T) {
	r := newRig(store.NewMem())
	r.m.Begin(types.WakeUndefined)

	for _, p := range []string{" ", "[]", `"hello"`, "{not json", `{"a":1}{"b":2}`, "[{}]"} {
		r.p.cb.OnWrite([]byte(p))
		if s := r.advance(time.Second); s != Advertising {
			t.Fatalf("%q: state = %s", p, s)
		}
	}
	if len(r.st.Snapshot(store.Namespace)) != 0 {
		t.Fatalf("store mutated: %v", r.st.Snapshot(store.Namespace))
	}
	if _, ok := r.halt.Pending(); ok {
		t.Fatal("restart requested for invalid payload")
	}
	if len(r.p.notified) != 6 || r.p.notified[0] != "invalid" {
		t.Fatalf("notified = %v", r.p.notified)
	}
}

// Cold boot, payload written, persisted with the skip flag, restart.
func TestValidPayloadPersistsAndRestarts(t *testing.T) {
	st := store.NewMem()
	r := newRig(st)
	r.m.Begin(types.WakeUndefined)

	r.p.cb.OnConnect()
	r.p.cb.OnWrite([]byte(`{"wifiSSID":"X","wifiPassword":"Y","mode":"sensor","refreshInterval":10}`))
	r.advance(100 * time.Millisecond)

	snap := st.Snapshot(store.Namespace)
	if snap[store.KeyMode] != "sensor" || snap[store.KeyRefreshInterval] != "10" {
		t.Fatalf("record = %v", snap)
	}
	if snap[store.KeyWiFiSSID] != "X" || snap[store.KeyWiFiPassword] != "Y" {
		t.Fatalf("credentials = %v", snap)
	}
	if snap[store.KeySkipBLE] != "1" || snap[store.KeyConfigJSON] == "" {
		t.Fatalf("skip flag / raw missing: %v", snap)
	}
	req, ok := r.halt.Pending()
	if !ok || req.Kind != halt.Restart || r.hw.restarts != 1 {
		t.Fatalf("restart not requested: %+v", req)
	}
	if len(r.p.notified) != 1 || r.p.notified[0] != "applied" {
		t.Fatalf("notified = %v", r.p.notified)
	}

	// next boot applies the config without provisioning
	if newRig(st).m.Begin(types.WakeUndefined) {
		t.Fatal("provisioning re-entered after config restart")
	}
}

func TestTimeoutDeferredWhileConnected(t *testing.T) {
	r := newRig(store.NewMem())
	r.m.Begin(types.WakeUndefined)

	r.p.cb.OnConnect()
	if s := r.advance(time.Second); s != Connected {
		t.Fatalf("state = %s, want connected", s)
	}
	if s := r.advance(5 * time.Minute); s != Connected {
		t.Fatalf("expired mid-conversation: %s", s)
	}
	r.p.cb.OnDisconnect()
	if s := r.advance(time.Second); s != Dormant {
		t.Fatalf("state = %s, want dormant after disconnect past window", s)
	}
	if r.p.deinits != 1 || r.arb.Holder() != radio.Free {
		t.Fatal("radio not released on timeout")
	}
}

func TestWindowElapsesWithoutClient(t *testing.T) {
	r := newRig(store.NewMem())
	r.m.Begin(types.WakeUndefined)
	if s := r.advance(2*time.Minute + 59*time.Second); s != Advertising {
		t.Fatalf("early timeout: %s", s)
	}
	if s := r.advance(time.Second); s != Dormant {
		t.Fatalf("state = %s at 3m", s)
	}
}

func TestRunReleasesRadioAfterRestart(t *testing.T) {
	r := newRig(store.NewMem())
	r.m.cfg.PollEvery = time.Millisecond
	r.m.Begin(types.WakeUndefined)
	r.m.Offer([]byte(`{"mode":"fun"}`))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.m.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if r.p.deinits != 1 || r.arb.Holder() != radio.Free {
		t.Fatalf("deinits = %d holder = %q", r.p.deinits, r.arb.Holder())
	}
}

func TestRunHonoursContext(t *testing.T) {
	r := newRig(store.NewMem())
	r.m.cfg.PollEvery = time.Millisecond
	r.m.Begin(types.WakeUndefined)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := r.m.Run(ctx); err == nil {
		t.Fatal("run ignored cancellation")
	}
	if r.p.deinits != 1 {
		t.Fatal("radio left up after cancellation")
	}
}

func readerOf(m *store.Mem) store.Reader {
	h, _ := m.Open(store.Namespace, true)
	return h
}
