// Package ota checks a version endpoint and installs newer firmware into the
// inactive partition.
//
// The running partition is never touched. An image becomes the boot target
// only after every byte is written, the optional digest matches, and the
// writer finalises cleanly.
package ota

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"hash"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"einkcode-go/bus"
	"einkcode-go/errcode"
	"einkcode-go/services/halt"
	"einkcode-go/types"
	"einkcode-go/x/logx"
)

type State uint8

const (
	Idle State = iota
	CheckingVersion
	UpToDate
	UpdateAvailable
	Downloading
	Installed
	Failed
)

func (s State) String() string {
	switch s {
	case CheckingVersion:
		return "checking_version"
	case UpToDate:
		return "up_to_date"
	case UpdateAvailable:
		return "update_available"
	case Downloading:
		return "downloading"
	case Installed:
		return "installed"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

var TopicState = bus.T("ota", "state")

const (
	HeaderPassword  = "X-OTA-Password"
	maxManifestSize = 4096
)

type Config struct {
	VersionURL     string
	RootCA         []byte // PEM
	Password       string
	CurrentVersion string
	ChunkSize      int
	Timeout        time.Duration // version check total; download idle gap
}

// Link reports station connectivity.
type Link interface {
	Connected() bool
}

type Deps struct {
	Link  Link
	Fetch Fetcher // nil: built from Config.RootCA on first use
	Flash Flash
	Halt  *halt.Controller
	Conn  *bus.Connection
}

type Updater struct {
	cfg Config
	d   Deps
	log *logx.Logger

	state    State
	manifest *types.UpdateManifest
}

func New(cfg Config, d Deps) *Updater {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1024
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.CurrentVersion == "" {
		cfg.CurrentVersion = "0.0.0"
	}
	return &Updater{cfg: cfg, d: d, log: logx.New("ota")}
}

func (u *Updater) State() State { return u.state }

// Manifest returns the manifest retained by the last successful check.
func (u *Updater) Manifest() (types.UpdateManifest, bool) {
	if u.manifest == nil {
		return types.UpdateManifest{}, false
	}
	return *u.manifest, true
}

func (u *Updater) header() map[string]string {
	if u.cfg.Password == "" {
		return nil
	}
	return map[string]string{HeaderPassword: u.cfg.Password}
}

func (u *Updater) fetcher() (Fetcher, error) {
	if u.d.Fetch != nil {
		return u.d.Fetch, nil
	}
	f, err := NewHTTPFetcher(u.cfg.RootCA, u.cfg.Timeout)
	if err != nil {
		return nil, err
	}
	u.d.Fetch = f
	return f, nil
}

func (u *Updater) ready(op string) error {
	if u.d.Link == nil || !u.d.Link.Connected() {
		return errcode.New(errcode.Offline, op, "wifi not connected")
	}
	if u.cfg.VersionURL == "" {
		return errcode.New(errcode.Unconfigured, op, "version url not set")
	}
	if len(u.cfg.RootCA) == 0 && u.d.Fetch == nil {
		return errcode.New(errcode.Unconfigured, op, "root ca not set")
	}
	return nil
}

// CheckForUpdate asks the version endpoint for a manifest. It reports true
// only for a strictly newer version, in which case the manifest is kept for
// PerformUpdate. Every failure reports false with the reason.
func (u *Updater) CheckForUpdate(ctx context.Context) (bool, error) {
	u.manifest = nil
	if err := u.ready("ota.check"); err != nil {
		u.log.Info("update check skipped", "err", err)
		return false, err
	}
	f, err := u.fetcher()
	if err != nil {
		return false, err
	}
	u.setState(CheckingVersion, nil)

	ctx, cancel := context.WithTimeout(ctx, u.cfg.Timeout)
	defer cancel()
	resp, err := f.Get(ctx, u.cfg.VersionURL, u.header())
	if err != nil {
		return u.checkFailed(errcode.Wrap(errcode.Unreachable, "ota.check", err))
	}
	defer resp.Body.Close()
	if resp.Status != http.StatusOK {
		return u.checkFailed(errcode.New(errcode.BadStatus, "ota.check", http.StatusText(resp.Status)))
	}
	var m types.UpdateManifest
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxManifestSize)).Decode(&m); err != nil {
		return u.checkFailed(errcode.Wrap(errcode.InvalidPayload, "ota.check", err))
	}
	if m.Version == "" || m.URL == "" {
		return u.checkFailed(errcode.New(errcode.MissingField, "ota.check", "version or url"))
	}

	u.log.Info("version check", "current", u.cfg.CurrentVersion, "server", m.Version)
	if CompareVersions(m.Version, u.cfg.CurrentVersion) <= 0 {
		u.setState(UpToDate, &m)
		u.state = Idle
		return false, nil
	}
	u.manifest = &m
	u.setState(UpdateAvailable, &m)
	return true, nil
}

func (u *Updater) checkFailed(err error) (bool, error) {
	u.log.Warn("version check failed", "err", err)
	u.fail(err, nil)
	return false, err
}

// PerformUpdate streams the manifest's image into the next partition. Any
// failure aborts the writer and leaves the boot partition as it was. On
// success the new partition is selected and a restart is requested.
func (u *Updater) PerformUpdate(ctx context.Context) error {
	m := u.manifest
	u.manifest = nil
	if m == nil {
		return errcode.New(errcode.NoUpdate, "ota.perform", "no pending manifest")
	}
	if err := u.ready("ota.perform"); err != nil {
		return err
	}
	f, err := u.fetcher()
	if err != nil {
		return err
	}
	var want []byte
	if m.SHA256 != "" {
		if want, err = hex.DecodeString(strings.TrimSpace(m.SHA256)); err != nil || len(want) != sha256.Size {
			return u.fail(errcode.New(errcode.InvalidPayload, "ota.perform", "bad sha256"), m)
		}
	}

	part, err := u.d.Flash.NextUpdatePartition()
	if err != nil {
		return u.fail(errcode.Wrap(errcode.NoPartition, "ota.perform", err), m)
	}
	u.log.Info("starting update", "version", m.Version, "partition", part.Label, "url", m.URL)
	w, err := u.d.Flash.Begin(part)
	if err != nil {
		return u.fail(errcode.Wrap(errcode.WriteFailed, "ota.begin", err), m)
	}

	written, err := u.download(ctx, f, m, w, want)
	if err != nil {
		if aerr := w.Abort(); aerr != nil {
			u.log.Error("abort failed", "err", aerr)
		}
		u.log.Error("update failed", "written", written, "err", err)
		return u.fail(err, m)
	}
	if err := u.d.Flash.SetBootPartition(part); err != nil {
		return u.fail(errcode.Wrap(errcode.WriteFailed, "ota.set_boot", err), m)
	}

	u.state = Installed
	u.publish(types.OTAState{State: Installed.String(), Version: m.Version, Written: written, Total: written})
	u.log.Info("update installed", "version", m.Version, "bytes", written)
	if u.d.Halt != nil {
		u.d.Halt.Restart("ota " + m.Version)
	}
	return nil
}

// download streams the body in fixed chunks. It returns the bytes written.
// Config.Timeout is an idle limit: the transfer is cancelled only when no
// bytes arrive for that long, however long the whole image takes.
func (u *Updater) download(ctx context.Context, f Fetcher, m *types.UpdateManifest, w ImageWriter, want []byte) (int64, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var stalled atomic.Bool
	idle := time.AfterFunc(u.cfg.Timeout, func() {
		stalled.Store(true)
		cancel()
	})
	defer idle.Stop()
	readErr := func(op string, err error) error {
		if stalled.Load() {
			return errcode.New(errcode.Timeout, op, "no data for "+u.cfg.Timeout.String())
		}
		return errcode.Wrap(errcode.Unreachable, op, err)
	}

	resp, err := f.Get(ctx, m.URL, u.header())
	if err != nil {
		return 0, readErr("ota.download", err)
	}
	defer resp.Body.Close()
	if resp.Status != http.StatusOK {
		return 0, errcode.New(errcode.BadStatus, "ota.download", http.StatusText(resp.Status))
	}

	var h hash.Hash
	if want != nil {
		h = sha256.New()
	}
	total := resp.Length
	u.state = Downloading
	u.publish(types.OTAState{State: Downloading.String(), Version: m.Version, Total: total})

	buf := make([]byte, u.cfg.ChunkSize)
	var written int64
	nextPct := int64(10)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			idle.Reset(u.cfg.Timeout)
			if _, err := w.Write(buf[:n]); err != nil {
				return written, errcode.Wrap(errcode.WriteFailed, "ota.write", err)
			}
			if h != nil {
				h.Write(buf[:n])
			}
			written += int64(n)
			if total > 0 && written*100/total >= nextPct {
				u.log.Debug("progress", "percent", written*100/total)
				u.publish(types.OTAState{State: Downloading.String(), Version: m.Version, Written: written, Total: total})
				nextPct = written*100/total + 10
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return written, readErr("ota.read", rerr)
		}
	}

	if total >= 0 && written != total {
		return written, errcode.New(errcode.WriteFailed, "ota.download", "short body")
	}
	if written == 0 {
		return 0, errcode.New(errcode.WriteFailed, "ota.download", "empty image")
	}
	if h != nil && subtle.ConstantTimeCompare(h.Sum(nil), want) != 1 {
		return written, errcode.New(errcode.VerifyFailed, "ota.verify", "sha256 mismatch")
	}
	if err := w.Finalize(); err != nil {
		return written, errcode.Wrap(errcode.VerifyFailed, "ota.finalize", err)
	}
	return written, nil
}

// CheckAndInstall is the workload entry point.
func (u *Updater) CheckAndInstall(ctx context.Context) (bool, error) {
	ok, err := u.CheckForUpdate(ctx)
	if !ok {
		return false, err
	}
	if err := u.PerformUpdate(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (u *Updater) fail(err error, m *types.UpdateManifest) error {
	u.state = Failed
	st := types.OTAState{State: Failed.String(), Error: string(errcode.Of(err))}
	if m != nil {
		st.Version = m.Version
	}
	u.publish(st)
	u.state = Idle
	return err
}

func (u *Updater) setState(s State, m *types.UpdateManifest) {
	u.state = s
	st := types.OTAState{State: s.String()}
	if m != nil {
		st.Version = m.Version
	}
	u.publish(st)
}

func (u *Updater) publish(st types.OTAState) {
	if u.d.Conn != nil {
		u.d.Conn.PublishRetained(TopicState, st)
	}
}
