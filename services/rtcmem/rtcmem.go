// Package rtcmem holds the small amount of state that survives deep sleep.
//
// Deep sleep ends the process. The reserved RTC region is the only RAM kept
// powered through it; a cold boot (power-on, reset, brown-out) clears it.
// Recover is the single entry point: it decides, from the wake cause and the
// region contents, whether to start from zero or to keep what was saved.
package rtcmem

import (
	"encoding/binary"
	"hash/crc32"

	"einkcode-go/types"
)

const (
	magic   uint32 = 0x45494e4b // "EINK"
	version byte   = 1
	size           = 4 + 1 + 4 + 1 + 4 + 4
)

// Region is the raw backing store. Load reports false when nothing valid was
// ever stored (fresh silicon, host first run).
type Region interface {
	Load() ([]byte, bool)
	Store([]byte) error
}

// State is the boot-persistent record.
type State struct {
	BootCount       uint32
	DisplayMode     uint8
	LowBatteryHolds uint32

	region Region
}

// Recover returns the state for this boot. Cold boots and unreadable regions
// yield a zero state; every deep-sleep wake keeps the saved fields. BootCount
// is incremented in both cases.
func Recover(r Region, wake types.WakeCause) *State {
	s := &State{region: r}
	if !wake.ColdBoot() && r != nil {
		if b, ok := r.Load(); ok {
			s.decode(b)
		}
	}
	s.BootCount++
	return s
}

// Save writes the state back into the region. Called right before sleep.
func (s *State) Save() error {
	if s.region == nil {
		return nil
	}
	return s.region.Store(s.encode())
}

// NextDisplayMode advances the rotating mode counter and returns the new value.
func (s *State) NextDisplayMode(n uint8) uint8 {
	if n == 0 {
		return 0
	}
	s.DisplayMode = (s.DisplayMode + 1) % n
	return s.DisplayMode
}

func (s *State) encode() []byte {
	b := make([]byte, size)
	binary.LittleEndian.PutUint32(b[0:], magic)
	b[4] = version
	binary.LittleEndian.PutUint32(b[5:], s.BootCount)
	b[9] = s.DisplayMode
	binary.LittleEndian.PutUint32(b[10:], s.LowBatteryHolds)
	binary.LittleEndian.PutUint32(b[14:], crc32.ChecksumIEEE(b[:14]))
	return b
}

func (s *State) decode(b []byte) {
	if len(b) < size ||
		binary.LittleEndian.Uint32(b[0:]) != magic ||
		b[4] != version ||
		binary.LittleEndian.Uint32(b[14:]) != crc32.ChecksumIEEE(b[:14]) {
		return
	}
	s.BootCount = binary.LittleEndian.Uint32(b[5:])
	s.DisplayMode = b[9]
	s.LowBatteryHolds = binary.LittleEndian.Uint32(b[10:])
}

// Mem is a Region held in process memory. Tests keep one across simulated
// boots; PowerLoss models a cold boot wiping it.
type Mem struct {
	buf []byte
}

func (m *Mem) Load() ([]byte, bool) {
	if m.buf == nil {
		return nil, false
	}
	return append([]byte(nil), m.buf...), true
}

func (m *Mem) Store(b []byte) error {
	m.buf = append(m.buf[:0], b...)
	return nil
}

func (m *Mem) PowerLoss() { m.buf = nil }
