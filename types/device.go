package types

// ------------------------
// Wake cause
// ------------------------

// WakeCause mirrors the SoC's reported reason for the current boot.
type WakeCause uint8

const (
	WakeUndefined WakeCause = iota // power-on or reset: a cold boot
	WakeExt0                       // external signal (RTC_IO)
	WakeExt1                       // external signal (RTC_CNTL)
	WakeTimer                      // deep-sleep timer expiry
	WakeTouchpad
	WakeULP
)

// ColdBoot reports whether this boot did not come out of deep sleep.
func (w WakeCause) ColdBoot() bool { return w == WakeUndefined }

func (w WakeCause) String() string {
	switch w {
	case WakeUndefined:
		return "cold_boot"
	case WakeExt0:
		return "ext0"
	case WakeExt1:
		return "ext1"
	case WakeTimer:
		return "timer"
	case WakeTouchpad:
		return "touchpad"
	case WakeULP:
		return "ulp"
	default:
		return "unknown"
	}
}

// ------------------------
// Battery
// ------------------------

type BatteryClass uint8

const (
	BatteryNormal BatteryClass = iota
	BatteryLow
	BatteryCritical
)

func (c BatteryClass) String() string {
	switch c {
	case BatteryCritical:
		return "critical"
	case BatteryLow:
		return "low"
	default:
		return "normal"
	}
}

// BatteryState is recomputed on every check; a wake is a fresh boot so
// nothing here outlives the process.
type BatteryState struct {
	MilliVolts int32        `json:"mV"`
	Percent    int          `json:"percent"`
	Class      BatteryClass `json:"class"`
}

// ------------------------
// OTA
// ------------------------

// UpdateManifest is the version endpoint response. SHA256 is optional
// (hex, lower or upper case).
type UpdateManifest struct {
	Version string `json:"version"`
	URL     string `json:"url"`
	SHA256  string `json:"sha256,omitempty"`
}

// ------------------------
// Workload configuration
// ------------------------

// DeviceConfiguration is the per-workload settings object. Workloads ignore
// keys they do not recognise.
type DeviceConfiguration = map[string]any

// AppDocument is the app-manager configuration document:
//
//	{"app": "<workload-name>", "config": { ... }}
type AppDocument struct {
	App    string              `json:"app"`
	Config DeviceConfiguration `json:"config,omitempty"`
}
