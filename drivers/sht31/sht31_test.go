package sht31

import (
	"errors"
	"testing"

	"tinygo.org/x/drivers"
)

type fakeI2C struct {
	addr  uint16
	raw   [6]byte
	err   error
	wrote []byte
}

var _ drivers.I2C = (*fakeI2C)(nil)

func (f *fakeI2C) Tx(addr uint16, w, r []byte) error {
	f.addr = addr
	f.wrote = append(f.wrote[:0], w...)
	if f.err != nil {
		return f.err
	}
	copy(r, f.raw[:])
	return nil
}

func TestReadConvertsToTenths(t *testing.T) {
	// 0x6666 -> 25.0 degC, 0x8000 -> 50.0 %RH
	bus := &fakeI2C{raw: [6]byte{0x66, 0x66, 0x00, 0x80, 0x00, 0x00}}
	d := New(bus, Config{})
	s, err := d.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if bus.addr != Address {
		t.Fatalf("addr = %#x", bus.addr)
	}
	if s.DeciC < 249 || s.DeciC > 251 {
		t.Fatalf("DeciC = %d, want ~250", s.DeciC)
	}
	if s.DeciRH < 499 || s.DeciRH > 501 {
		t.Fatalf("DeciRH = %d, want ~500", s.DeciRH)
	}
	if f := (Sample{DeciC: 250}).Fahrenheit(); f < 76.9 || f > 77.1 {
		t.Fatalf("F = %v", f)
	}
}

func TestReadErrors(t *testing.T) {
	if _, err := New(nil, Config{}).Read(); !errors.Is(err, ErrNoBus) {
		t.Fatalf("err = %v", err)
	}
	bus := &fakeI2C{}
	_, _ = New(bus, Config{Address: 0x45}).Read()
	if bus.addr != 0x45 {
		t.Fatalf("addr = %#x", bus.addr)
	}
}

func TestRoundDiv(t *testing.T) {
	if roundDiv(24950, 100) != 250 || roundDiv(-24950, 100) != -250 || roundDiv(4, 10) != 0 {
		t.Fatal("roundDiv")
	}
}

type pins struct{ parked int }

func (p *pins) Park() error { p.parked++; return nil }

func TestQuiesceResetsAndParks(t *testing.T) {
	bus, p := &fakeI2C{}, &pins{}
	d := New(bus, Config{Pins: p})
	if err := d.Quiesce(); err != nil {
		t.Fatalf("quiesce: %v", err)
	}
	if len(bus.wrote) != 2 || bus.wrote[0] != 0x30 || bus.wrote[1] != 0xA2 || bus.addr != Address {
		t.Fatalf("wrote %x to %#x", bus.wrote, bus.addr)
	}
	if p.parked != 1 {
		t.Fatalf("parked = %d", p.parked)
	}

	bus.err = errors.New("nack")
	if err := d.Quiesce(); err == nil {
		t.Fatal("reset error swallowed")
	}
	if p.parked != 2 {
		t.Fatal("pins not parked after failed reset")
	}
	if err := New(nil, Config{Pins: p}).Quiesce(); err != nil || p.parked != 3 {
		t.Fatalf("no bus: err=%v parked=%d", err, p.parked)
	}
}
