// Package appcfg reads workload settings out of a DeviceConfiguration.
package appcfg

import (
	"strconv"
	"time"

	"einkcode-go/services/config"
	"einkcode-go/types"
	"einkcode-go/x/timex"
)

// Interval reads refreshInterval (minutes). Absent or invalid keeps cur.
func Interval(c types.DeviceConfiguration, cur time.Duration) time.Duration {
	v, ok := c["refreshInterval"]
	if !ok {
		return cur
	}
	n, ok := config.ParseInterval(v)
	if !ok {
		return cur
	}
	return timex.Minutes(n, cur)
}

// String reads a string (or number, kept as its decimal form) under the
// first key present.
func String(c types.DeviceConfiguration, keys ...string) (string, bool) {
	for _, k := range keys {
		switch v := c[k].(type) {
		case string:
			return v, true
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), true
		case int64:
			return strconv.FormatInt(v, 10), true
		}
	}
	return "", false
}

// Bools reads a nested object of boolean toggles.
func Bools(c types.DeviceConfiguration, key string) map[string]bool {
	obj, ok := c[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]bool, len(obj))
	for k, v := range obj {
		if b, ok := v.(bool); ok {
			out[k] = b
		}
	}
	return out
}
