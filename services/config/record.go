package config

import (
	"encoding/json"
	"strconv"

	"einkcode-go/errcode"
	"einkcode-go/services/store"
	"einkcode-go/types"
	"einkcode-go/x/logx"
)

// MaxMessages caps the message list a record carries.
const MaxMessages = 10

var recordLog warner = logx.New(serviceName)

type warner interface {
	Warn(msg string, kv ...any)
}

// workloadKeys belong to the active mode and are dropped when a record
// switches to a different one.
var workloadKeys = []string{
	store.KeyRefreshInterval,
	store.KeyAPIs,
	store.KeyUnits,
	store.KeyNemoToken,
	store.KeyNemoURL,
	store.KeyTemperatureSensorID,
	store.KeyHumiditySensorID,
	store.KeySensorLocation,
	store.KeyBinID,
	store.KeyServerHost,
	store.KeyServerPort,
	store.KeyMessages,
}

// Record is the provisioned configuration as persisted in the config
// namespace. Empty strings, a zero interval, nil APIs and nil Messages mean
// "not set"; persisting such a field leaves the stored value alone unless
// the record changes Mode, in which case the previous mode's workload keys
// are cleared first.
type Record struct {
	WiFiSSID        string
	WiFiPassword    string
	Mode            string
	RefreshInterval int64 // minutes
	Timestamp       string
	APIs            map[string]bool

	Units               string
	NemoToken           string
	NemoURL             string
	TemperatureSensorID string
	HumiditySensorID    string
	SensorLocation      string
	BinID               string
	ServerHost          string
	ServerPort          string
	Messages            []string

	Raw string // full payload as received
}

func (r Record) strings() []struct{ key, val string } {
	return []struct{ key, val string }{
		{store.KeyWiFiSSID, r.WiFiSSID},
		{store.KeyWiFiPassword, r.WiFiPassword},
		{store.KeyMode, r.Mode},
		{store.KeyTimestamp, r.Timestamp},
		{store.KeyUnits, r.Units},
		{store.KeyNemoToken, r.NemoToken},
		{store.KeyNemoURL, r.NemoURL},
		{store.KeyTemperatureSensorID, r.TemperatureSensorID},
		{store.KeyHumiditySensorID, r.HumiditySensorID},
		{store.KeySensorLocation, r.SensorLocation},
		{store.KeyBinID, r.BinID},
		{store.KeyServerHost, r.ServerHost},
		{store.KeyServerPort, r.ServerPort},
		{store.KeyConfigJSON, r.Raw},
	}
}

// Persist writes every set field and, when skipNext is true, arms the
// one-shot skip-provisioning flag. All keys commit together or not at all.
func Persist(b store.Backend, r Record, skipNext bool) error {
	var apis, msgs []byte
	var err error
	if r.APIs != nil {
		if apis, err = json.Marshal(r.APIs); err != nil {
			return errcode.Wrap(errcode.InvalidPayload, "config.persist", err)
		}
	}
	if r.Messages != nil {
		if msgs, err = json.Marshal(r.Messages); err != nil {
			return errcode.Wrap(errcode.InvalidPayload, "config.persist", err)
		}
	}
	return store.Update(b, store.Namespace, func(w store.Writer) error {
		if old, ok := w.Get(store.KeyMode); ok && old != "" && r.Mode != "" && old != r.Mode {
			for _, k := range workloadKeys {
				if err := w.Remove(k); err != nil {
					return errcode.Wrap(errcode.StoreError, "config.persist", err)
				}
			}
		}
		for _, kv := range r.strings() {
			if kv.val == "" {
				continue
			}
			if err := w.Put(kv.key, kv.val); err != nil {
				return errcode.Wrap(errcode.StoreError, "config.persist", err)
			}
		}
		if r.RefreshInterval > 0 {
			if err := store.PutInt(w, store.KeyRefreshInterval, r.RefreshInterval); err != nil {
				return errcode.Wrap(errcode.StoreError, "config.persist", err)
			}
		}
		if apis != nil {
			if err := w.Put(store.KeyAPIs, string(apis)); err != nil {
				return errcode.Wrap(errcode.StoreError, "config.persist", err)
			}
		}
		if msgs != nil {
			if err := w.Put(store.KeyMessages, string(msgs)); err != nil {
				return errcode.Wrap(errcode.StoreError, "config.persist", err)
			}
		}
		if skipNext {
			if err := store.PutBool(w, store.KeySkipBLE, true); err != nil {
				return errcode.Wrap(errcode.StoreError, "config.persist", err)
			}
		}
		return nil
	})
}

// LoadRecord reads the persisted record. ok is false when the device has
// never been provisioned with a mode.
func LoadRecord(b store.Backend) (r Record, ok bool, err error) {
	err = store.View(b, store.Namespace, func(rd store.Reader) error {
		get := func(k string) string { return store.GetString(rd, k, "") }
		r = Record{
			WiFiSSID:            get(store.KeyWiFiSSID),
			WiFiPassword:        get(store.KeyWiFiPassword),
			Mode:                get(store.KeyMode),
			RefreshInterval:     store.GetInt(rd, store.KeyRefreshInterval, 0),
			Timestamp:           get(store.KeyTimestamp),
			Units:               get(store.KeyUnits),
			NemoToken:           get(store.KeyNemoToken),
			NemoURL:             get(store.KeyNemoURL),
			TemperatureSensorID: get(store.KeyTemperatureSensorID),
			HumiditySensorID:    get(store.KeyHumiditySensorID),
			SensorLocation:      get(store.KeySensorLocation),
			BinID:               get(store.KeyBinID),
			ServerHost:          get(store.KeyServerHost),
			ServerPort:          get(store.KeyServerPort),
			Raw:                 get(store.KeyConfigJSON),
		}
		if s := get(store.KeyAPIs); s != "" {
			if err := json.Unmarshal([]byte(s), &r.APIs); err != nil {
				recordLog.Warn("stored apis unreadable, ignoring", "err", err)
				r.APIs = nil
			}
		}
		if s := get(store.KeyMessages); s != "" {
			if err := json.Unmarshal([]byte(s), &r.Messages); err != nil {
				recordLog.Warn("stored messages unreadable, ignoring", "err", err)
				r.Messages = nil
			}
		}
		return nil
	})
	return r, err == nil && r.Mode != "", err
}

// Credentials reads the station credentials. An empty ssid means the
// device has no network configured.
func Credentials(b store.Backend) (ssid, password string, err error) {
	err = store.View(b, store.Namespace, func(r store.Reader) error {
		ssid = store.GetString(r, store.KeyWiFiSSID, "")
		password = store.GetString(r, store.KeyWiFiPassword, "")
		return nil
	})
	return ssid, password, err
}

// ConsumeSkipFlag reads and clears the skip-provisioning flag. It is called
// on every boot so the flag never survives more than one restart.
func ConsumeSkipFlag(b store.Backend) (bool, error) {
	var set bool
	if err := store.View(b, store.Namespace, func(r store.Reader) error {
		set = store.GetBool(r, store.KeySkipBLE)
		return nil
	}); err != nil {
		return false, err
	}
	if !set {
		return false, nil
	}
	return true, store.Update(b, store.Namespace, func(w store.Writer) error {
		return w.Remove(store.KeySkipBLE)
	})
}

// Document turns a record into the app-manager document. Only set keys are
// carried into config.
func Document(r Record) types.AppDocument {
	cfg := types.DeviceConfiguration{}
	if r.RefreshInterval > 0 {
		cfg[store.KeyRefreshInterval] = r.RefreshInterval
	}
	if r.APIs != nil {
		apis := make(map[string]any, len(r.APIs))
		for k, v := range r.APIs {
			apis[k] = v
		}
		cfg[store.KeyAPIs] = apis
	}
	if r.Messages != nil {
		msgs := make([]any, len(r.Messages))
		for i, m := range r.Messages {
			msgs[i] = m
		}
		cfg[store.KeyMessages] = msgs
	}
	for _, kv := range r.strings() {
		switch kv.key {
		case store.KeyWiFiSSID, store.KeyWiFiPassword, store.KeyMode, store.KeyConfigJSON:
			continue
		}
		if kv.val != "" {
			cfg[kv.key] = kv.val
		}
	}
	return types.AppDocument{App: r.Mode, Config: cfg}
}

// ParseInterval accepts a JSON number or a numeric string.
func ParseInterval(v any) (int64, bool) {
	switch x := v.(type) {
	case float64:
		if x <= 0 {
			return 0, false
		}
		return int64(x), true
	case int64:
		return x, x > 0
	case int:
		return int64(x), x > 0
	case json.Number:
		n, err := x.Int64()
		return n, err == nil && n > 0
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		return n, err == nil && n > 0
	default:
		return 0, false
	}
}

// ParseMessages reads a message list: a "messages" array of strings, or
// failing that the numbered keys message1..messageN. At most MaxMessages
// entries are kept. It returns nil when neither form is present.
func ParseMessages(m map[string]any) []string {
	var out []string
	if arr, ok := m[store.KeyMessages].([]any); ok {
		for _, v := range arr {
			if len(out) == MaxMessages {
				break
			}
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
	}
	if len(out) > 0 {
		return out
	}
	for i := 1; i <= MaxMessages; i++ {
		switch v := m["message"+strconv.Itoa(i)].(type) {
		case string:
			out = append(out, v)
		case json.Number:
			out = append(out, v.String())
		}
	}
	return out
}
