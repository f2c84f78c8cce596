package appmgr

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"einkcode-go/bus"
	"einkcode-go/errcode"
	"einkcode-go/services/rtcmem"
	"einkcode-go/types"
)

type fakeWorkload struct {
	Base
	name     string
	log      *[]string
	cfg      types.DeviceConfiguration
	cfgErr   error
	startErr error
	every    time.Duration
	cycles   int
}

func newFake(name string, log *[]string) *fakeWorkload {
	return &fakeWorkload{name: name, log: log, every: time.Minute}
}

func (f *fakeWorkload) Name() string { return f.name }
func (f *fakeWorkload) Start() error {
	*f.log = append(*f.log, "start:"+f.name)
	return f.startErr
}
func (f *fakeWorkload) Stop() { *f.log = append(*f.log, "stop:"+f.name) }
func (f *fakeWorkload) Configure(c types.DeviceConfiguration) error {
	f.cfg = c
	return f.cfgErr
}
func (f *fakeWorkload) RunDutyCycle(context.Context) (time.Duration, error) {
	f.cycles++
	return f.every, nil
}

func setup(names ...string) (*Orchestrator, map[string]*fakeWorkload, *[]string) {
	var log []string
	o := New(Capabilities{State: &rtcmem.State{}}, nil)
	ws := map[string]*fakeWorkload{}
	for _, n := range names {
		w := newFake(n, &log)
		ws[n] = w
		o.Register(w, n)
	}
	return o, ws, &log
}

func TestRegisterFirstBecomesActive(t *testing.T) {
	o, ws, log := setup("fun", "sensor", "shelf")
	if o.ActiveName() != "fun" || o.Count() != 3 {
		t.Fatalf("active=%q count=%d", o.ActiveName(), o.Count())
	}
	if len(*log) != 0 {
		t.Fatalf("register started something: %v", *log)
	}
	if ws["sensor"].State() == nil {
		t.Fatal("capabilities not injected at registration")
	}
}

func TestRegisterRejects(t *testing.T) {
	o, _, _ := setup("a")
	var log []string
	if o.Register(nil, "x") || o.Register(newFake("y", &log), "") || o.Register(newFake("a", &log), "a") {
		t.Fatal("bad registration accepted")
	}
	for i := 1; i < MaxWorkloads; i++ {
		n := "w" + strconv.Itoa(i)
		if !o.Register(newFake(n, &log), n) {
			t.Fatalf("register %s failed below capacity", n)
		}
	}
	if o.Register(newFake("overflow", &log), "overflow") {
		t.Fatal("registry accepted an eleventh workload")
	}
	if o.Count() != MaxWorkloads || o.Has("overflow") {
		t.Fatalf("count = %d", o.Count())
	}
}

func TestActivateEndsBeforeBegin(t *testing.T) {
	o, _, log := setup("fun", "sensor", "shelf")
	for _, n := range []string{"fun", "sensor", "shelf"} {
		if !o.Activate(n) || o.ActiveName() != n {
			t.Fatalf("activate(%s) -> %q", n, o.ActiveName())
		}
	}
	want := []string{"start:fun", "stop:fun", "start:sensor", "stop:sensor", "start:shelf"}
	if len(*log) != len(want) {
		t.Fatalf("log = %v", *log)
	}
	for i := range want {
		if (*log)[i] != want[i] {
			t.Fatalf("log = %v, want %v", *log, want)
		}
	}
}

func TestActivateUnknownKeepsActive(t *testing.T) {
	o, _, log := setup("fun", "sensor")
	o.Activate("sensor")
	n := len(*log)
	if o.Activate("nonexistent") || o.ActivateIndex(7) {
		t.Fatal("unknown target accepted")
	}
	if o.ActiveName() != "sensor" || len(*log) != n {
		t.Fatalf("state changed: %q %v", o.ActiveName(), *log)
	}
}

func TestActivateSameIsIdempotent(t *testing.T) {
	o, _, log := setup("fun")
	o.Activate("fun")
	o.Activate("fun")
	if len(*log) != 1 {
		t.Fatalf("log = %v", *log)
	}
}

func TestApplyConfiguration(t *testing.T) {
	o, ws, _ := setup("fun", "sensor")
	err := o.ApplyConfiguration([]byte(`{"app":"sensor","config":{"refreshInterval":10,"units":"metric"}}`))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if o.ActiveName() != "sensor" {
		t.Fatalf("active = %q", o.ActiveName())
	}
	if ws["sensor"].cfg["units"] != "metric" || ws["sensor"].cfg["refreshInterval"] != float64(10) {
		t.Fatalf("configure saw %v", ws["sensor"].cfg)
	}
}

func TestApplyConfigurationFailuresKeepActive(t *testing.T) {
	o, _, _ := setup("fun", "sensor")
	o.Activate("sensor")
	cases := map[string]errcode.Code{
		`{"config":{}}`:   errcode.MissingField,
		`{"app":"ghost"}`: errcode.NotFound,
		`{"app":42}`:      errcode.InvalidPayload,
		`{"app":""}`:      errcode.InvalidPayload,
		`not json`:        errcode.InvalidPayload,
		`["app","fun"]`:   errcode.InvalidPayload,
	}
	for doc, want := range cases {
		err := o.ApplyConfiguration([]byte(doc))
		if errcode.Of(err) != want {
			t.Fatalf("%s: code = %q, want %q", doc, errcode.Of(err), want)
		}
		if o.ActiveName() != "sensor" {
			t.Fatalf("%s: active changed to %q", doc, o.ActiveName())
		}
	}
}

func TestConfigureFailureDoesNotRollBack(t *testing.T) {
	o, ws, _ := setup("fun", "shelf")
	ws["shelf"].cfgErr = errors.New("binId missing")
	err := o.ApplyConfiguration([]byte(`{"app":"shelf","config":{}}`))
	if !errcode.Is(err, errcode.ConfigureFailed) {
		t.Fatalf("err = %v", err)
	}
	if o.ActiveName() != "shelf" {
		t.Fatal("activation rolled back")
	}
}

func TestRunActiveDutyCycle(t *testing.T) {
	o := New(Capabilities{}, nil)
	if _, ran, _ := o.RunActiveDutyCycle(context.Background()); ran {
		t.Fatal("ran with nothing registered")
	}

	o, ws, log := setup("fun")
	ws["fun"].every = 15 * time.Minute
	next, ran, err := o.RunActiveDutyCycle(context.Background())
	if err != nil || !ran || next != 15*time.Minute {
		t.Fatalf("next=%v ran=%v err=%v", next, ran, err)
	}
	if (*log)[0] != "start:fun" || ws["fun"].cycles != 1 {
		t.Fatalf("log = %v cycles = %d", *log, ws["fun"].cycles)
	}
}

func TestActivePublishedRetained(t *testing.T) {
	b := bus.NewBus(4)
	var log []string
	o := New(Capabilities{}, b.NewConnection("appmgr"))
	o.Register(newFake("fun", &log), "fun")
	o.Register(newFake("shelf", &log), "shelf")
	o.Activate("shelf")
	m, ok := b.Retained(TopicActive)
	if !ok {
		t.Fatal("no retained app state")
	}
	if st := m.Payload.(types.AppState); st.Name != "shelf" || st.Index != 1 {
		t.Fatalf("state = %+v", st)
	}
}
