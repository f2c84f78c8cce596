// Package shelf shows who owns a storage bin, looked up from a LAN server.
package shelf

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"einkcode-go/apps/internal/appcfg"
	"einkcode-go/apps/internal/screens"
	"einkcode-go/errcode"
	"einkcode-go/services/appmgr"
	"einkcode-go/services/display"
	"einkcode-go/types"
	"einkcode-go/x/httpx"
	"einkcode-go/x/logx"
	"einkcode-go/x/strx"
)

const (
	Name            = "shelf"
	DefaultInterval = 5 * time.Minute
	DefaultHost     = "192.168.1.100"
	DefaultPort     = 8080
)

type Owner struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Bin is the lookup server's reply.
type Bin struct {
	ID    string `json:"bin_id"`
	Name  string `json:"bin_name"`
	Owner *Owner `json:"owner"`
}

// BinLookup fetches one bin record.
type BinLookup interface {
	Lookup(ctx context.Context, baseURL, binID string) (Bin, error)
}

// HTTPLookup does GET <baseURL>/bin/<id>.
type HTTPLookup struct {
	Client *http.Client
}

func (h HTTPLookup) Lookup(ctx context.Context, baseURL, binID string) (Bin, error) {
	c := h.Client
	if c == nil {
		c = httpx.NewClient(10 * time.Second)
	}
	var b Bin
	err := httpx.GetJSON(ctx, c, baseURL+"/bin/"+binID, nil, &b)
	return b, err
}

type App struct {
	appmgr.Base
	lookup BinLookup
	log    *logx.Logger

	interval time.Duration
	host     string
	port     int
	binID    string
}

// New builds the workload; a nil lookup uses HTTPLookup.
func New(l BinLookup) *App {
	if l == nil {
		l = HTTPLookup{}
	}
	return &App{
		lookup:   l,
		log:      logx.New(Name),
		interval: DefaultInterval,
		host:     DefaultHost,
		port:     DefaultPort,
	}
}

func (a *App) Name() string            { return Name }
func (a *App) Start() error            { return nil }
func (a *App) Interval() time.Duration { return a.interval }

// BaseURL is http://host:port.
func (a *App) BaseURL() string {
	return "http://" + a.host + ":" + strconv.Itoa(a.port)
}

func (a *App) Stop() {
	if n := a.Net(); n != nil {
		n.Disconnect()
	}
	if d := a.Display(); d != nil {
		_ = d.Hibernate()
	}
}

// Configure reads binId, serverHost, serverPort and refreshInterval.
func (a *App) Configure(cfg types.DeviceConfiguration) error {
	a.interval = appcfg.Interval(cfg, a.interval)
	if v, ok := appcfg.String(cfg, "binId", "bin_id"); ok {
		a.binID = v
	}
	if v, ok := appcfg.String(cfg, "serverHost"); ok && v != "" {
		host, port := strx.SplitHostPort(strx.StripScheme(v))
		a.host = host
		if p, err := strconv.Atoi(port); err == nil && p > 0 {
			a.port = p
		}
	}
	if v, ok := appcfg.String(cfg, "serverPort"); ok {
		if p, err := strconv.Atoi(v); err == nil && p > 0 && p < 65536 {
			a.port = p
		}
	}
	return nil
}

func (a *App) RunDutyCycle(ctx context.Context) (time.Duration, error) {
	scr := a.fetch(ctx)
	scr.Footer = screens.BatteryFooter(a.Power())
	if d := a.Display(); d != nil {
		if err := d.Show(scr); err != nil {
			a.log.Error("display failed", "err", err)
		}
	}
	return a.interval, nil
}

func (a *App) fetch(ctx context.Context) display.Screen {
	net := a.Net()
	if net == nil || net.Connect(ctx) != nil {
		return screens.Message("WiFi Error", "Not connected")
	}
	defer net.Disconnect()
	if a.binID == "" {
		return screens.Message("Config Error", "Bin ID not set")
	}

	b, err := a.lookup.Lookup(ctx, a.BaseURL(), a.binID)
	switch errcode.Of(err) {
	case errcode.OK:
	case errcode.NotFound:
		return screens.Message("Bin Not Found", "ID: "+a.binID)
	case errcode.InvalidPayload:
		return screens.Message("API Error", "Invalid JSON")
	case errcode.BadStatus:
		return screens.Message("API Error", "Server error")
	default:
		a.log.Warn("bin lookup failed", "bin", a.binID, "err", err)
		return screens.Message("API Error", "Connection failed")
	}
	return binScreen(a.binID, b)
}

func binScreen(id string, b Bin) display.Screen {
	s := screens.Message("Bin: " + id)
	if b.Owner == nil {
		s.Lines = append(s.Lines, "No owner assigned")
	} else {
		name := strx.Coalesce(b.Owner.Name, b.Owner.Username)
		if name == "" {
			name = "User " + strconv.Itoa(b.Owner.ID)
		}
		s.Lines = append(s.Lines, "Owner: "+name)
		if b.Owner.Email != "" {
			s.Lines = append(s.Lines, b.Owner.Email)
		}
	}
	if b.Name != "" && b.Name != id {
		s.Lines = append(s.Lines, b.Name)
	}
	return s
}
