package provisioning

import "time"

type Config struct {
	DeviceName  string
	Window      time.Duration
	PollEvery   time.Duration
	StatusEvery time.Duration
	BufferSize  int

	Manufacturer    string
	Model           string
	FirmwareVersion string
}

func DefaultConfig() Config {
	return Config{
		DeviceName:   "E-Ink Display",
		Window:       3 * time.Minute,
		PollEvery:    100 * time.Millisecond,
		StatusEvery:  5 * time.Second,
		BufferSize:   1024,
		Manufacturer: "einkcode",
		Model:        "eink-c3",
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DeviceName == "" {
		c.DeviceName = d.DeviceName
	}
	if c.Window <= 0 {
		c.Window = d.Window
	}
	if c.PollEvery <= 0 {
		c.PollEvery = d.PollEvery
	}
	if c.StatusEvery <= 0 {
		c.StatusEvery = d.StatusEvery
	}
	if c.BufferSize <= 0 {
		c.BufferSize = d.BufferSize
	}
	if c.Manufacturer == "" {
		c.Manufacturer = d.Manufacturer
	}
	if c.Model == "" {
		c.Model = d.Model
	}
	return c
}
