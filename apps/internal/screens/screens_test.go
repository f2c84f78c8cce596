package screens

import (
	"context"
	"errors"
	"testing"

	"einkcode-go/drivers/sht31"
	"einkcode-go/types"
)

type fakePower struct {
	pct int
	err error
}

func (f fakePower) ClassifyBattery() (types.BatteryState, error) {
	return types.BatteryState{Percent: f.pct}, f.err
}

type fakeNet struct {
	up   bool
	rssi int
}

func (f fakeNet) Connect(context.Context) error { return nil }
func (f fakeNet) Connected() bool               { return f.up }
func (f fakeNet) Disconnect()                   {}
func (f fakeNet) RSSI() int                     { return f.rssi }

func TestBatteryFooter(t *testing.T) {
	if got := BatteryFooter(fakePower{pct: 73}); got != "Battery 73%" {
		t.Fatalf("footer = %q", got)
	}
	if got := BatteryFooter(fakePower{err: errors.New("adc")}); got != "" {
		t.Fatalf("footer on error = %q", got)
	}
	if got := BatteryFooter(nil); got != "" {
		t.Fatalf("footer nil = %q", got)
	}
}

func TestSignalBuckets(t *testing.T) {
	cases := map[int]string{-40: "Excellent", -50: "Great", -60: "Great", -65: "Good", -75: "Fair", -90: "Weak", -95: "Very Poor"}
	for rssi, want := range cases {
		if got := Signal(rssi); got != want {
			t.Fatalf("Signal(%d) = %q, want %q", rssi, got, want)
		}
	}
}

func TestWifiLine(t *testing.T) {
	if got := WifiLine(fakeNet{up: true, rssi: -61}); got != "WiFi: -61 dBm (Good)" {
		t.Fatalf("line = %q", got)
	}
	if got := WifiLine(fakeNet{}); got != "" {
		t.Fatalf("offline line = %q", got)
	}
}

func TestClimate(t *testing.T) {
	s := sht31.Sample{DeciC: 215, DeciRH: 455}
	f := Climate("Room", s, nil, false)
	if f.Title != "Room" || f.Lines[0] != "Temp: 70.7°F" || f.Lines[1] != "Humidity: 45.5%" {
		t.Fatalf("fahrenheit screen = %+v", f)
	}
	c := Climate("Room", s, nil, true)
	if c.Lines[0] != "Temp: 21.5°C" {
		t.Fatalf("celsius screen = %+v", c)
	}
	e := Climate("Room", s, errors.New("i2c"), true)
	if e.Title != "Sensor Error" {
		t.Fatalf("error screen = %+v", e)
	}
}
