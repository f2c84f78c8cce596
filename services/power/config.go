package power

import "time"

// Config is the battery and sleep profile. Zero fields take the defaults.
type Config struct {
	// Divider: battery -> R1 -> ADC pin -> R2 -> ground.
	R1Ohms uint32
	R2Ohms uint32

	EmptyMilliVolts int32 // 0 %
	FullMilliVolts  int32 // 100 %

	Samples   int
	SampleGap time.Duration
	Settle    time.Duration // after enabling the divider

	LowPercent    int // at or below: critical
	ResumePercent int // below (and above low): low

	LowBatterySleep time.Duration

	// DisableDeepSleep keeps the process alive and waits instead of
	// halting. Bench and simulator use only.
	DisableDeepSleep bool
}

func DefaultConfig() Config {
	return Config{
		R1Ohms:          47000,
		R2Ohms:          68000,
		EmptyMilliVolts: 2800,
		FullMilliVolts:  4150,
		Samples:         10,
		SampleGap:       10 * time.Millisecond,
		Settle:          100 * time.Millisecond,
		LowPercent:      5,
		ResumePercent:   15,
		LowBatterySleep: 300 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.R1Ohms == 0 {
		c.R1Ohms = d.R1Ohms
	}
	if c.R2Ohms == 0 {
		c.R2Ohms = d.R2Ohms
	}
	if c.EmptyMilliVolts == 0 {
		c.EmptyMilliVolts = d.EmptyMilliVolts
	}
	if c.FullMilliVolts == 0 {
		c.FullMilliVolts = d.FullMilliVolts
	}
	if c.Samples <= 0 {
		c.Samples = d.Samples
	}
	if c.SampleGap == 0 {
		c.SampleGap = d.SampleGap
	}
	if c.Settle == 0 {
		c.Settle = d.Settle
	}
	if c.LowPercent == 0 {
		c.LowPercent = d.LowPercent
	}
	if c.ResumePercent == 0 {
		c.ResumePercent = d.ResumePercent
	}
	if c.LowBatterySleep == 0 {
		c.LowBatterySleep = d.LowBatterySleep
	}
	return c
}
