package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Used when nothing has been provisioned. Key: build profile.
// Val: app-manager document.
// -----------------------------------------------------------------------------

const DefaultProfile = "default"

const cfgDefault = `{"app":"fun","config":{}}`

const cfgSensorBench = `{
  "app": "sensor",
  "config": {
    "refreshInterval": 1,
    "units": "metric"
  }
}`

const cfgShelfBench = `{
  "app": "shelf",
  "config": {
    "refreshInterval": 1,
    "binId": "A-01",
    "serverHost": "127.0.0.1",
    "serverPort": "8000"
  }
}`

var embeddedConfigs = map[string][]byte{
	DefaultProfile: []byte(cfgDefault),
	"sensor-bench": []byte(cfgSensorBench),
	"shelf-bench":  []byte(cfgShelfBench),
}
