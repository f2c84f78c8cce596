//go:build !tinygo

package host

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"einkcode-go/services/ota"
)

// ImageMagic is the first byte of every application image.
const ImageMagic = 0xE9

// PartitionTable is the YAML layout of the simulated flash:
//
//	partitions:
//	  - {label: ota_0, offset: 0x10000, size: 0x1e0000}
//	  - {label: ota_1, offset: 0x1f0000, size: 0x1e0000}
type PartitionTable struct {
	Partitions []PartitionEntry `yaml:"partitions"`
}

type PartitionEntry struct {
	Label  string `yaml:"label"`
	Offset uint32 `yaml:"offset"`
	Size   uint32 `yaml:"size"`
}

// DefaultPartitionTable is the two-slot layout of the 4 MB module.
func DefaultPartitionTable() PartitionTable {
	return PartitionTable{Partitions: []PartitionEntry{
		{Label: "ota_0", Offset: 0x10000, Size: 0x1e0000},
		{Label: "ota_1", Offset: 0x1f0000, Size: 0x1e0000},
	}}
}

// LoadPartitionTable reads a table from YAML.
func LoadPartitionTable(path string) (PartitionTable, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return PartitionTable{}, fmt.Errorf("read partition table: %w", err)
	}
	var t PartitionTable
	if err := yaml.Unmarshal(b, &t); err != nil {
		return PartitionTable{}, fmt.Errorf("parse partition table: %w", err)
	}
	return t, t.validate()
}

func (t PartitionTable) validate() error {
	var apps int
	seen := map[string]bool{}
	for _, p := range t.Partitions {
		if p.Label == "" || p.Size == 0 {
			return fmt.Errorf("partition %q: label and size required", p.Label)
		}
		if seen[p.Label] {
			return fmt.Errorf("partition %q: duplicate label", p.Label)
		}
		seen[p.Label] = true
		if strings.HasPrefix(p.Label, "ota_") {
			apps++
		}
	}
	if apps < 2 {
		return errors.New("partition table needs at least two ota_ slots")
	}
	return nil
}

// otaData is the boot selection record.
type otaData struct {
	Boot string `yaml:"boot"`
}

// Flash keeps each app partition in <dir>/<label>.bin and the boot
// selection in <dir>/otadata.yaml.
type Flash struct {
	dir   string
	parts []ota.Partition

	mu   sync.Mutex
	busy bool
}

// NewFlash prepares dir. The running partition is whatever otadata names,
// or the first ota_ slot.
func NewFlash(dir string, t PartitionTable) (*Flash, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f := &Flash{dir: dir}
	for _, p := range t.Partitions {
		if strings.HasPrefix(p.Label, "ota_") {
			f.parts = append(f.parts, ota.Partition{Label: p.Label, Offset: p.Offset, Size: p.Size})
		}
	}
	return f, nil
}

func (f *Flash) otadataPath() string { return filepath.Join(f.dir, "otadata.yaml") }

// ImagePath is where a partition's contents live.
func (f *Flash) ImagePath(p ota.Partition) string { return filepath.Join(f.dir, p.Label+".bin") }

func (f *Flash) Running() ota.Partition {
	var d otaData
	if b, err := os.ReadFile(f.otadataPath()); err == nil {
		_ = yaml.Unmarshal(b, &d)
	}
	for _, p := range f.parts {
		if p.Label == d.Boot {
			return p
		}
	}
	return f.parts[0]
}

func (f *Flash) NextUpdatePartition() (ota.Partition, error) {
	run := f.Running()
	for i, p := range f.parts {
		if p.Label == run.Label {
			return f.parts[(i+1)%len(f.parts)], nil
		}
	}
	return ota.Partition{}, errors.New("running partition not in table")
}

func (f *Flash) Begin(p ota.Partition) (ota.ImageWriter, error) {
	if p.Label == f.Running().Label {
		return nil, errors.New("cannot write the running partition")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return nil, errors.New("update already in progress")
	}
	tmp, err := os.CreateTemp(f.dir, p.Label+".*.part")
	if err != nil {
		return nil, err
	}
	f.busy = true
	return &imageWriter{f: f, p: p, file: tmp}, nil
}

func (f *Flash) SetBootPartition(p ota.Partition) error {
	found := false
	for _, q := range f.parts {
		found = found || q.Label == p.Label
	}
	if !found {
		return fmt.Errorf("unknown partition %q", p.Label)
	}
	if _, err := os.Stat(f.ImagePath(p)); err != nil {
		return fmt.Errorf("partition %q holds no image: %w", p.Label, err)
	}
	b, err := yaml.Marshal(otaData{Boot: p.Label})
	if err != nil {
		return err
	}
	return writeFileAtomic(f.otadataPath(), b)
}

func (f *Flash) release() {
	f.mu.Lock()
	f.busy = false
	f.mu.Unlock()
}

type imageWriter struct {
	f     *Flash
	p     ota.Partition
	file  *os.File
	n     int64
	first byte
	done  bool
}

func (w *imageWriter) Write(b []byte) (int, error) {
	if w.done {
		return 0, os.ErrClosed
	}
	if w.n+int64(len(b)) > int64(w.p.Size) {
		return 0, fmt.Errorf("image exceeds partition %q (%d bytes)", w.p.Label, w.p.Size)
	}
	if w.n == 0 && len(b) > 0 {
		w.first = b[0]
	}
	n, err := w.file.Write(b)
	w.n += int64(n)
	return n, err
}

// Finalize checks the image header and moves the image into place.
func (w *imageWriter) Finalize() error {
	if w.done {
		return os.ErrClosed
	}
	if w.n == 0 || w.first != ImageMagic {
		_ = w.Abort()
		return errors.New("invalid image header")
	}
	w.done = true
	defer w.f.release()
	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		_ = os.Remove(w.file.Name())
		return err
	}
	if err := w.file.Close(); err != nil {
		_ = os.Remove(w.file.Name())
		return err
	}
	return os.Rename(w.file.Name(), w.f.ImagePath(w.p))
}

func (w *imageWriter) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	defer w.f.release()
	_ = w.file.Close()
	return os.Remove(w.file.Name())
}

func writeFileAtomic(path string, b []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
