package provisioning

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"

	"einkcode-go/errcode"
	"einkcode-go/services/config"
	"einkcode-go/x/strx"
)

// ParsePayload validates a provisioning write and maps it onto a record.
// Anything not framed as {...} is rejected before decoding. Unknown keys
// are ignored.
func ParsePayload(raw []byte) (config.Record, error) {
	s := bytes.TrimSpace(raw)
	if len(s) < 2 || s[0] != '{' || s[len(s)-1] != '}' {
		return config.Record{}, errcode.New(errcode.InvalidPayload, "prov.parse", "not a json object")
	}
	dec := json.NewDecoder(bytes.NewReader(s))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return config.Record{}, errcode.Wrap(errcode.InvalidPayload, "prov.parse", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return config.Record{}, errcode.New(errcode.InvalidPayload, "prov.parse", "trailing data")
	}

	r := config.Record{
		WiFiSSID:            str(m, "wifiSSID", "wifiSsid", "wifi_ssid"),
		WiFiPassword:        str(m, "wifiPassword", "wifi_password"),
		Mode:                str(m, "mode"),
		Timestamp:           str(m, "timestamp"),
		Units:               str(m, "units"),
		NemoToken:           str(m, "nemoToken", "nemo_token"),
		NemoURL:             str(m, "nemoUrl", "nemo_url"),
		TemperatureSensorID: str(m, "temperatureSensorId", "temperature_sensor_id"),
		HumiditySensorID:    str(m, "humiditySensorId", "humidity_sensor_id"),
		SensorLocation:      str(m, "sensorLocation", "sensor_location"),
		BinID:               str(m, "binId", "bin_id"),
		ServerHost:          str(m, "serverHost", "server_host"),
		ServerPort:          str(m, "serverPort", "server_port"),
		Messages:            config.ParseMessages(m),
		Raw:                 string(s),
	}
	if v, ok := first(m, "refreshInterval", "refresh_interval"); ok {
		if n, ok := config.ParseInterval(v); ok {
			r.RefreshInterval = n
		}
	}
	if v, ok := first(m, "apis"); ok {
		if obj, ok := v.(map[string]any); ok {
			r.APIs = make(map[string]bool, len(obj))
			for k, b := range obj {
				if on, ok := b.(bool); ok {
					r.APIs[k] = on
				}
			}
		}
	}
	// legacy single URL form
	if r.ServerHost == "" {
		if u := str(m, "serverUrl", "server_url"); u != "" {
			host, port := strx.SplitHostPort(strx.StripScheme(u))
			r.ServerHost = host
			r.ServerPort = strx.Coalesce(r.ServerPort, port)
		}
	}
	return r, nil
}

func first(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// str reads a string-ish value; numbers keep their JSON spelling.
func str(m map[string]any, keys ...string) string {
	v, ok := first(m, keys...)
	if !ok {
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}
