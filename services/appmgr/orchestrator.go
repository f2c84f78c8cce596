// Package appmgr holds the workload registry and drives exactly one active
// workload per boot.
package appmgr

import (
	"context"
	"encoding/json"
	"time"

	"einkcode-go/bus"
	"einkcode-go/errcode"
	"einkcode-go/types"
	"einkcode-go/x/logx"
)

const MaxWorkloads = 10

var TopicActive = bus.T("app", "active")

type entry struct {
	name string
	w    Workload
}

type Orchestrator struct {
	caps    Capabilities
	conn    *bus.Connection
	log     *logx.Logger
	entries []entry
	active  int
	started bool
}

// New builds an empty registry. conn may be nil.
func New(caps Capabilities, conn *bus.Connection) *Orchestrator {
	return &Orchestrator{
		caps:    caps,
		conn:    conn,
		log:     logx.New("appmgr"),
		entries: make([]entry, 0, MaxWorkloads),
		active:  -1,
	}
}

// Register adds w under name and injects capabilities into it. Failures
// (full, nil, empty or duplicate name) are logged and ignored. The first
// workload registered becomes active but is not started.
func (o *Orchestrator) Register(w Workload, name string) bool {
	switch {
	case w == nil:
		o.log.Error("register: nil workload", "name", name)
		return false
	case name == "":
		o.log.Error("register: empty name")
		return false
	case len(o.entries) >= MaxWorkloads:
		o.log.Error("register: registry full", "name", name, "max", MaxWorkloads)
		return false
	case o.index(name) >= 0:
		o.log.Error("register: duplicate name", "name", name)
		return false
	}
	w.Inject(o.caps)
	o.entries = append(o.entries, entry{name: name, w: w})
	o.log.Debug("registered", "name", name, "index", len(o.entries)-1)
	if o.active < 0 {
		o.active = 0
		o.publish()
	}
	return true
}

// Activate makes name the active workload. Unknown names are logged and
// change nothing.
func (o *Orchestrator) Activate(name string) bool {
	i := o.index(name)
	if i < 0 {
		o.log.Warn("activate: unknown workload", "name", name)
		return false
	}
	o.switchTo(i)
	return true
}

func (o *Orchestrator) ActivateIndex(i int) bool {
	if i < 0 || i >= len(o.entries) {
		o.log.Warn("activate: index out of range", "index", i)
		return false
	}
	o.switchTo(i)
	return true
}

// switchTo always stops the previous workload before starting the next.
func (o *Orchestrator) switchTo(i int) {
	if i == o.active && o.started {
		return
	}
	if i != o.active && o.active >= 0 && o.started {
		prev := o.entries[o.active]
		o.log.Info("stopping", "name", prev.name)
		prev.w.Stop()
	}
	o.active = i
	o.started = false
	next := o.entries[i]
	if err := next.w.Start(); err != nil {
		o.log.Error("start failed", "name", next.name, "err", err)
	} else {
		o.started = true
		o.log.Info("started", "name", next.name)
	}
	o.publish()
}

// ApplyConfiguration applies {"app": name, "config": {...}}. A missing,
// non-string or unregistered app leaves the current workload untouched. A
// configure failure is reported without undoing the activation.
func (o *Orchestrator) ApplyConfiguration(doc []byte) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(doc, &top); err != nil {
		return errcode.Wrap(errcode.InvalidPayload, "appmgr.apply", err)
	}
	rawApp, ok := top["app"]
	if !ok {
		return errcode.New(errcode.MissingField, "appmgr.apply", "app")
	}
	var name string
	if err := json.Unmarshal(rawApp, &name); err != nil || name == "" {
		return errcode.New(errcode.InvalidPayload, "appmgr.apply", "app is not a name")
	}
	if o.index(name) < 0 {
		return errcode.New(errcode.NotFound, "appmgr.apply", name)
	}

	o.Activate(name)

	rawCfg, ok := top["config"]
	if !ok {
		return nil
	}
	var cfg types.DeviceConfiguration
	if err := json.Unmarshal(rawCfg, &cfg); err != nil || cfg == nil {
		o.log.Warn("config is not an object, ignored", "app", name)
		return nil
	}
	if err := o.entries[o.active].w.Configure(cfg); err != nil {
		o.log.Error("configure failed", "app", name, "err", err)
		return errcode.Wrap(errcode.ConfigureFailed, "appmgr.apply", err)
	}
	return nil
}

// RunActiveDutyCycle runs one cycle of the active workload. ran is false
// when nothing is active.
func (o *Orchestrator) RunActiveDutyCycle(ctx context.Context) (next time.Duration, ran bool, err error) {
	if o.active < 0 {
		return 0, false, nil
	}
	e := o.entries[o.active]
	if !o.started {
		o.switchTo(o.active)
	}
	next, err = e.w.RunDutyCycle(ctx)
	if err != nil {
		o.log.Warn("duty cycle error", "name", e.name, "err", err)
	}
	return next, true, err
}

// Shutdown stops the active workload if it was started.
func (o *Orchestrator) Shutdown() {
	if o.active >= 0 && o.started {
		o.entries[o.active].w.Stop()
		o.started = false
	}
}

func (o *Orchestrator) ActiveName() string {
	if o.active < 0 {
		return ""
	}
	return o.entries[o.active].name
}

func (o *Orchestrator) ActiveIndex() int { return o.active }
func (o *Orchestrator) Count() int       { return len(o.entries) }

func (o *Orchestrator) NameAt(i int) string {
	if i < 0 || i >= len(o.entries) {
		return ""
	}
	return o.entries[i].name
}

func (o *Orchestrator) Has(name string) bool { return o.index(name) >= 0 }

func (o *Orchestrator) index(name string) int {
	for i, e := range o.entries {
		if e.name == name {
			return i
		}
	}
	return -1
}

func (o *Orchestrator) publish() {
	if o.conn == nil || o.active < 0 {
		return
	}
	o.conn.PublishRetained(TopicActive, types.AppState{Name: o.entries[o.active].name, Index: o.active})
}
