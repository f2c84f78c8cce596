//go:build !tinygo

package host

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPartitionTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partitions.yaml")
	yml := "partitions:\n" +
		"  - {label: nvs, offset: 0x9000, size: 0x5000}\n" +
		"  - {label: ota_0, offset: 0x10000, size: 0x100}\n" +
		"  - {label: ota_1, offset: 0x20000, size: 0x100}\n"
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	tab, err := LoadPartitionTable(path)
	if err != nil {
		t.Fatalf("LoadPartitionTable: %v", err)
	}
	if len(tab.Partitions) != 3 || tab.Partitions[1].Offset != 0x10000 || tab.Partitions[2].Size != 0x100 {
		t.Fatalf("table = %+v", tab)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	_ = os.WriteFile(bad, []byte("partitions:\n  - {label: ota_0, size: 1}\n"), 0o644)
	if _, err := LoadPartitionTable(bad); err == nil {
		t.Fatal("single-slot table accepted")
	}
}

func smallTable() PartitionTable {
	return PartitionTable{Partitions: []PartitionEntry{
		{Label: "ota_0", Offset: 0x10000, Size: 64},
		{Label: "ota_1", Offset: 0x20000, Size: 64},
	}}
}

func TestFlashUpdateCycle(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFlash(dir, smallTable())
	if err != nil {
		t.Fatal(err)
	}
	if f.Running().Label != "ota_0" {
		t.Fatalf("running = %s", f.Running().Label)
	}
	next, err := f.NextUpdatePartition()
	if err != nil || next.Label != "ota_1" {
		t.Fatalf("next = %+v err=%v", next, err)
	}
	if _, err := f.Begin(f.Running()); err == nil {
		t.Fatal("writing the running partition allowed")
	}

	w, err := f.Begin(next)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Begin(next); err == nil {
		t.Fatal("second concurrent writer allowed")
	}
	img := append([]byte{ImageMagic}, make([]byte, 31)...)
	if _, err := w.Write(img); err != nil {
		t.Fatal(err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if err := f.SetBootPartition(next); err != nil {
		t.Fatalf("SetBootPartition: %v", err)
	}

	f2, _ := NewFlash(dir, smallTable())
	if f2.Running().Label != "ota_1" {
		t.Fatalf("after reboot running = %s", f2.Running().Label)
	}
	if b, _ := os.ReadFile(f2.ImagePath(next)); len(b) != 32 {
		t.Fatalf("image size = %d", len(b))
	}
	if n, _ := f2.NextUpdatePartition(); n.Label != "ota_0" {
		t.Fatalf("next after switch = %s", n.Label)
	}
}

func TestFlashRejectsBadImages(t *testing.T) {
	f, _ := NewFlash(t.TempDir(), smallTable())
	next, _ := f.NextUpdatePartition()

	w, _ := f.Begin(next)
	_, _ = w.Write([]byte("not an image"))
	if err := w.Finalize(); err == nil {
		t.Fatal("bad magic finalized")
	}
	if err := f.SetBootPartition(next); err == nil {
		t.Fatal("boot set to a partition with no image")
	}

	w, err := f.Begin(next)
	if err != nil {
		t.Fatalf("writer not released after failed finalize: %v", err)
	}
	if _, err := w.Write(make([]byte, 65)); err == nil {
		t.Fatal("oversize write accepted")
	}
	if err := w.Abort(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(f.ImagePath(next)); !os.IsNotExist(err) {
		t.Fatalf("aborted image left behind: %v", err)
	}
	if f.Running().Label != "ota_0" {
		t.Fatal("boot partition changed")
	}
}
