//go:build !tinygo

// eink-sim runs the firmware lifecycle on the host, one simulated boot at a
// time. Only the store, flash and RTC region carry over between boots;
// everything else is rebuilt, as a deep sleep would.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"einkcode-go/drivers/sht31"
	"einkcode-go/platform/host"
	"einkcode-go/services/boot"
	"einkcode-go/services/halt"
	"einkcode-go/services/ota"
	"einkcode-go/services/power"
	"einkcode-go/services/provisioning"
	"einkcode-go/types"
	"einkcode-go/x/logx"
)

const firmwareVersion = "1.0.0"

func main() {
	log := logx.New("sim")
	defer logx.Sync()

	if err := loadConfig(); err != nil {
		log.Error("error reading config", "err", err)
		os.Exit(1)
	}
	logx.SetLevel(viper.GetString("log.level"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("simulation failed", "err", err)
		os.Exit(1)
	}
}

func loadConfig() error {
	viper.SetConfigName("eink-sim")
	viper.AddConfigPath(".")
	viper.AddConfigPath("configs")
	viper.SetEnvPrefix("EINK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("boots", 3)
	viper.SetDefault("state_dir", ".eink-sim")
	viper.SetDefault("log.level", logx.InfoLevel)
	viper.SetDefault("battery_mv", []int{4100})
	viper.SetDefault("wifi.rssi", -58)
	viper.SetDefault("ble.addr", "127.0.0.1:8765")
	viper.SetDefault("ble.window", 3*time.Minute)
	viper.SetDefault("sensor.deci_c", 215)
	viper.SetDefault("sensor.deci_rh", 450)
	viper.SetDefault("sensor.present", true)
	viper.SetDefault("sleep.disabled", false)
	viper.SetDefault("firmware.version", firmwareVersion)

	if err := viper.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return err
		}
	}
	return nil
}

// rig is the hardware that outlives a boot.
type rig struct {
	store  *host.SQLiteStore
	flash  *host.Flash
	region *host.MemRegion
	adc    *host.ScriptADC
	radio  *host.SimRadio
	ble    *host.WSPeripheral
	panel  *host.MemPanel
	events *os.File
}

func newRig() (*rig, error) {
	dir := viper.GetString("state_dir")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	st, err := host.OpenSQLite(filepath.Join(dir, "nvs.db"))
	if err != nil {
		return nil, err
	}
	table := host.DefaultPartitionTable()
	if p := viper.GetString("partitions"); p != "" {
		if table, err = host.LoadPartitionTable(p); err != nil {
			return nil, err
		}
	}
	fl, err := host.NewFlash(filepath.Join(dir, "flash"), table)
	if err != nil {
		return nil, err
	}
	ev, err := os.OpenFile(filepath.Join(dir, "events.jsonl"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	var levels []int32
	for _, mv := range viper.GetIntSlice("battery_mv") {
		levels = append(levels, int32(mv))
	}
	r := &rig{
		store:  st,
		flash:  fl,
		region: host.NewMemRegion(filepath.Join(dir, "rtc.bin")),
		adc:    host.NewScriptADC(levels...),
		radio:  host.NewSimRadio(),
		ble:    host.NewWSPeripheral(viper.GetString("ble.addr")),
		panel:  host.NewMemPanel(200, 200),
		events: ev,
	}
	if ssid := viper.GetString("wifi.ssid"); ssid != "" {
		r.radio.SetAccessPoints(host.AccessPoint{
			SSID:     ssid,
			Password: viper.GetString("wifi.password"),
			RSSI:     viper.GetInt("wifi.rssi"),
		})
	}
	return r, nil
}

func options() (boot.Options, error) {
	o := boot.Options{
		Power: power.Config{DisableDeepSleep: viper.GetBool("sleep.disabled")},
		Provisioning: provisioning.Config{
			Window:          viper.GetDuration("ble.window"),
			FirmwareVersion: viper.GetString("firmware.version"),
		},
		OTA: ota.Config{
			VersionURL:     viper.GetString("ota.version_url"),
			Password:       viper.GetString("ota.password"),
			CurrentVersion: viper.GetString("firmware.version"),
		},
		Profile: viper.GetString("profile"),
	}
	if p := viper.GetString("ota.root_ca"); p != "" {
		pem, err := os.ReadFile(p)
		if err != nil {
			return o, err
		}
		o.OTA.RootCA = pem
	}
	return o, nil
}

func sensor() sht31.Sampler {
	if !viper.GetBool("sensor.present") {
		return &host.SimSensor{Err: host.ErrSensorAbsent}
	}
	return &host.SimSensor{Sample: sht31.Sample{
		DeciC:  int32(viper.GetInt("sensor.deci_c")),
		DeciRH: int32(viper.GetInt("sensor.deci_rh")),
	}}
}

func run(ctx context.Context, log *logx.Logger) error {
	r, err := newRig()
	if err != nil {
		return err
	}
	defer r.store.Close()
	defer r.events.Close()
	opts, err := options()
	if err != nil {
		return err
	}
	opts.Journal = r.events

	wake := types.WakeUndefined
	for n := 1; n <= viper.GetInt("boots"); n++ {
		hw := &host.RecordingHardware{}
		sys := boot.New(boot.Board{
			Wake:    wake,
			Region:  r.region,
			Store:   r.store,
			ADC:     r.adc,
			Divider: &host.Divider{},
			Station: r.radio,
			BLE:     r.ble,
			Panel:   r.panel,
			Parker:  &host.Pins{},
			Flash:   r.flash,
			Halt:    hw,
			Sensor:  sensor(),
		}, opts)

		log.Info("---- boot ----", "n", n, "wake", wake.String(), "battery_mV", r.adc.Battery(), "partition", r.flash.Running().Label)
		out := sys.Run(ctx)
		scr, _ := sys.Display.Last()
		log.Info("screen", "title", scr.Title, "lines", strings.Join(scr.Lines, " | "), "footer", scr.Footer)
		log.Info("boot ended",
			"stage", out.Stage.String(),
			"app", out.App,
			"source", out.Source.String(),
			"cycles", out.Cycles,
			"halt", out.Halt.Kind.String(),
			"sleep", out.Halt.Sleep.String(),
			"reason", out.Halt.Reason,
		)
		if out.Err != nil {
			return out.Err
		}

		switch out.Halt.Kind {
		case halt.Restart:
			wake = types.WakeUndefined
		case halt.DeepSleep:
			wake = types.WakeTimer
		default:
			return nil
		}
		r.adc.Advance()
	}
	return nil
}
