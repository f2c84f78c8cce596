package ota

// Partition is one firmware slot.
type Partition struct {
	Label  string
	Offset uint32
	Size   uint32
}

// ImageWriter streams one image into a partition. Nothing written is
// bootable until Finalize succeeds and the partition is selected.
type ImageWriter interface {
	Write(p []byte) (int, error)
	Finalize() error
	Abort() error
}

// Flash is the firmware partition table.
type Flash interface {
	Running() Partition
	NextUpdatePartition() (Partition, error)
	Begin(p Partition) (ImageWriter, error)
	SetBootPartition(p Partition) error
}
