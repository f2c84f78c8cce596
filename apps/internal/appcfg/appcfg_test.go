package appcfg

import (
	"testing"
	"time"

	"einkcode-go/types"
)

func TestInterval(t *testing.T) {
	def := 15 * time.Minute
	cases := []struct {
		cfg  types.DeviceConfiguration
		want time.Duration
	}{
		{types.DeviceConfiguration{}, def},
		{types.DeviceConfiguration{"refreshInterval": float64(10)}, 10 * time.Minute},
		{types.DeviceConfiguration{"refreshInterval": "3"}, 3 * time.Minute},
		{types.DeviceConfiguration{"refreshInterval": int64(7)}, 7 * time.Minute},
		{types.DeviceConfiguration{"refreshInterval": "soon"}, def},
		{types.DeviceConfiguration{"refreshInterval": float64(0)}, def},
	}
	for _, c := range cases {
		if got := Interval(c.cfg, def); got != c.want {
			t.Fatalf("Interval(%v) = %v, want %v", c.cfg, got, c.want)
		}
	}
}

func TestStringAndBools(t *testing.T) {
	c := types.DeviceConfiguration{
		"serverPort": float64(8080),
		"bin_id":     "A1",
		"apis":       map[string]any{"iss": true, "x": "y"},
	}
	if v, ok := String(c, "serverPort"); !ok || v != "8080" {
		t.Fatalf("port = %q", v)
	}
	if v, ok := String(c, "binId", "bin_id"); !ok || v != "A1" {
		t.Fatalf("bin = %q", v)
	}
	if _, ok := String(c, "missing"); ok {
		t.Fatal("missing key found")
	}
	if b := Bools(c, "apis"); len(b) != 1 || !b["iss"] {
		t.Fatalf("apis = %v", b)
	}
}
