// Package sensor is the climate-logging workload: it shows the SHT31
// reading and, when online, posts it to the Nemo telemetry endpoint.
package sensor

import (
	"context"
	"net/http"
	"strings"
	"time"

	"einkcode-go/apps/internal/appcfg"
	"einkcode-go/apps/internal/screens"
	"einkcode-go/drivers/sht31"
	"einkcode-go/errcode"
	"einkcode-go/services/appmgr"
	"einkcode-go/types"
	"einkcode-go/x/httpx"
	"einkcode-go/x/logx"
)

const (
	Name            = "sensor"
	DefaultInterval = 10 * time.Minute
	DefaultNemoURL  = "https://nemo.stanford.edu/api/sensors/sensor_data/"
)

// Reading is the telemetry body.
type Reading struct {
	SensorID    string  `json:"sensor_id"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

// Poster delivers one reading.
type Poster interface {
	Post(ctx context.Context, url, token string, r Reading) error
}

// HTTPPoster posts JSON with "Authorization: Token <t>".
type HTTPPoster struct {
	Client *http.Client
}

func (p HTTPPoster) Post(ctx context.Context, url, token string, r Reading) error {
	c := p.Client
	if c == nil {
		c = httpx.NewClient(0)
	}
	return httpx.PostJSON(ctx, c, url, map[string]string{"Authorization": "Token " + token}, r, nil)
}

type App struct {
	appmgr.Base
	sampler sht31.Sampler
	poster  Poster
	log     *logx.Logger

	interval time.Duration
	celsius  bool
	token    string
	url      string
	tempID   string
	humID    string
	location string
}

// New builds the workload; a nil poster uses HTTPPoster.
func New(s sht31.Sampler, p Poster) *App {
	if p == nil {
		p = HTTPPoster{}
	}
	return &App{
		sampler:  s,
		poster:   p,
		log:      logx.New(Name),
		interval: DefaultInterval,
		url:      DefaultNemoURL,
	}
}

func (a *App) Name() string            { return Name }
func (a *App) Start() error            { return nil }
func (a *App) Interval() time.Duration { return a.interval }

func (a *App) Stop() {
	if n := a.Net(); n != nil {
		n.Disconnect()
	}
	if d := a.Display(); d != nil {
		_ = d.Hibernate()
	}
}

// Configure reads units, refreshInterval and the Nemo settings. Unknown
// keys are ignored.
func (a *App) Configure(cfg types.DeviceConfiguration) error {
	a.interval = appcfg.Interval(cfg, a.interval)
	if u, ok := appcfg.String(cfg, "units"); ok {
		a.celsius = celsius(u)
	}
	if v, ok := appcfg.String(cfg, "nemoToken"); ok {
		a.token = v
	}
	if v, ok := appcfg.String(cfg, "nemoUrl"); ok && v != "" {
		a.url = v
	}
	if v, ok := appcfg.String(cfg, "temperatureSensorId"); ok {
		a.tempID = v
	}
	if v, ok := appcfg.String(cfg, "humiditySensorId"); ok {
		a.humID = v
	}
	if v, ok := appcfg.String(cfg, "sensorLocation"); ok {
		a.location = v
	}
	return nil
}

func celsius(u string) bool {
	switch strings.ToLower(u) {
	case "c", "celsius", "metric":
		return true
	}
	return false
}

// RunDutyCycle reads the sensor, shows it, posts telemetry and checks for
// firmware when online.
func (a *App) RunDutyCycle(ctx context.Context) (time.Duration, error) {
	var s sht31.Sample
	err := sht31.ErrNoBus
	if a.sampler != nil {
		s, err = a.sampler.Read()
	}
	if err != nil {
		a.log.Warn("sensor read failed", "err", err)
	}

	net := a.Net()
	online := net != nil && net.Connect(ctx) == nil
	if net != nil {
		defer net.Disconnect()
	}

	scr := screens.Climate("Temperature & Humidity", s, err, a.celsius)
	if a.location != "" {
		scr.Lines = append(scr.Lines, a.location)
	}
	if w := screens.WifiLine(net); w != "" {
		scr.Lines = append(scr.Lines, w)
	}
	scr.Footer = screens.BatteryFooter(a.Power())
	if d := a.Display(); d != nil {
		if derr := d.Show(scr); derr != nil {
			a.log.Error("display failed", "err", derr)
		}
	}

	if online && err == nil {
		a.report(ctx, s)
	}
	if online && a.Updater() != nil {
		installed, uerr := a.Updater().CheckAndInstall(ctx)
		if uerr != nil && !errcode.Is(uerr, errcode.NoUpdate) {
			a.log.Warn("update check failed", "err", uerr)
		}
		if installed {
			return 0, nil
		}
	}
	return a.interval, nil
}

// report posts to the temperature sensor and, when it is a different id,
// the humidity sensor. Failures are logged and skipped.
func (a *App) report(ctx context.Context, s sht31.Sample) {
	if a.token == "" || a.tempID == "" {
		a.log.Info("nemo post skipped: token or sensor id not set")
		return
	}
	r := Reading{
		Temperature: float64(s.DeciC) / 10,
		Humidity:    float64(s.DeciRH) / 10,
	}
	ids := []string{a.tempID}
	if a.humID != "" && a.humID != a.tempID {
		ids = append(ids, a.humID)
	}
	for _, id := range ids {
		r.SensorID = id
		if err := a.poster.Post(ctx, a.url, a.token, r); err != nil {
			a.log.Warn("nemo post failed", "sensor", id, "err", err)
			continue
		}
		a.log.Info("nemo post ok", "sensor", id)
	}
}
