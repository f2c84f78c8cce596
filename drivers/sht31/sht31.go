// Package sht31 reads the board's SHT31 temperature/humidity sensor through
// the tinygo sht3x driver and reports fixed-point tenths, like the other
// sensor drivers here.
package sht31

import (
	"errors"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/sht3x"
)

// I2C address with ADDR pulled low.
const Address = 0x44

// cmdSoftReset returns the sensor to idle with periodic mode off.
var cmdSoftReset = []byte{0x30, 0xA2}

var ErrNoBus = errors.New("sht31: no bus")

// Sample holds one reading in deci-°C and deci-%RH.
type Sample struct {
	DeciC  int32
	DeciRH int32
}

// Celsius returns the temperature as float (display only).
func (s Sample) Celsius() float32 { return float32(s.DeciC) / 10 }

// Fahrenheit returns the temperature as float (display only).
func (s Sample) Fahrenheit() float32 { return float32(s.DeciC)*9/50 + 32 }

func (s Sample) Humidity() float32 { return float32(s.DeciRH) / 10 }

// Sampler is what workloads depend on.
type Sampler interface {
	Read() (Sample, error)
}

// PinParker releases SDA/SCL so nothing drives the bus during deep sleep.
type PinParker interface {
	Park() error
}

type Config struct {
	// Address defaults to 0x44 if zero.
	Address uint16
	Pins    PinParker // optional
}

type Device struct {
	bus  drivers.I2C
	dev  sht3x.Device
	addr uint16
	pins PinParker
	ok   bool
}

func New(bus drivers.I2C, cfg Config) *Device {
	if bus == nil {
		return &Device{pins: cfg.Pins}
	}
	d := sht3x.New(bus)
	d.Address = cfg.Address
	if d.Address == 0 {
		d.Address = Address
	}
	return &Device{bus: bus, dev: d, addr: d.Address, pins: cfg.Pins, ok: true}
}

// Quiesce soft-resets the sensor into idle and parks the bus pins. The pins
// are parked even when the reset fails; the first error is returned.
func (d *Device) Quiesce() error {
	var err error
	if d.ok {
		err = d.bus.Tx(d.addr, cmdSoftReset, nil)
	}
	if d.pins != nil {
		if perr := d.pins.Park(); err == nil {
			err = perr
		}
	}
	return err
}

// Read performs one single-shot high-repeatability measurement.
func (d *Device) Read() (Sample, error) {
	if !d.ok {
		return Sample{}, ErrNoBus
	}
	milliC, rh, err := d.dev.ReadTemperatureHumidity()
	if err != nil {
		return Sample{}, err
	}
	// rh is hundredths of a percent
	return Sample{DeciC: roundDiv(milliC, 100), DeciRH: roundDiv(int32(rh), 10)}, nil
}

func roundDiv(v, d int32) int32 {
	if v < 0 {
		return -((-v + d/2) / d)
	}
	return (v + d/2) / d
}
