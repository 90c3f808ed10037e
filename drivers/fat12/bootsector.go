// Package fat12 implements a read-only driver for FAT12 volumes, the format used
// on floppy disks and by minimal bootloaders. Only the root directory is
// supported.
package fat12

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/dargueta/bootfat"
	c "github.com/dargueta/bootfat/drivers/common"
)

// BootSectorSize is the number of bytes of the boot sector this driver decodes:
// the BIOS Parameter Block followed by the extended boot record.
const BootSectorSize = 62

// RawBPB is the on-disk representation of the BIOS Parameter Block, including
// the jump instruction and OEM name that precede it.
type RawBPB struct {
	JmpBoot             [3]byte
	OEMName             [8]byte
	BytesPerSector      uint16
	SectorsPerCluster   uint8
	ReservedSectors     uint16
	FatCount            uint8
	DirEntryCount       uint16
	TotalSectors        uint16
	MediaDescriptorType uint8
	SectorsPerFat       uint16
	SectorsPerTrack     uint16
	Heads               uint16
	HiddenSectors       uint32
	LargeSectorCount    uint32
}

// RawExtendedBootRecord immediately follows the BPB on FAT12 and FAT16 volumes.
type RawExtendedBootRecord struct {
	DriveNumber uint8
	NTReserved  uint8
	Signature   uint8
	VolumeID    uint32
	VolumeLabel [11]byte
	SystemID    [8]byte
}

// BootSector is the decoded boot sector of a FAT12 volume.
type BootSector struct {
	RawBPB
	RawExtendedBootRecord
}

// ParseBootSector reads BootSectorSize bytes from `reader` and decodes them.
//
// No semantic validation is done here; any byte pattern of the right length is
// accepted. If fewer than BootSectorSize bytes are available it fails with
// [bootfat.ErrShortRead].
func ParseBootSector(reader io.Reader) (*BootSector, error) {
	raw := make([]byte, BootSectorSize)
	bytesRead, err := io.ReadFull(reader, raw)
	if err != nil {
		return nil, bootfat.ErrShortRead.Wrap(
			fmt.Errorf(
				"boot sector needs %d bytes, got %d: %w", BootSectorSize, bytesRead, err))
	}

	bootSector := BootSector{}
	// This can't fail, the struct is exactly BootSectorSize bytes.
	_ = binary.Read(bytes.NewReader(raw), binary.LittleEndian, &bootSector)
	return &bootSector, nil
}

// Geometry returns the volume geometry described by the boot sector.
func (bs *BootSector) Geometry() Geometry {
	return Geometry{
		BytesPerSector:    uint(bs.BytesPerSector),
		SectorsPerCluster: uint(bs.SectorsPerCluster),
		ReservedSectors:   uint(bs.ReservedSectors),
		FatCount:          uint(bs.FatCount),
		DirEntryCount:     uint(bs.DirEntryCount),
		SectorsPerFat:     uint(bs.SectorsPerFat),
	}
}

// TotalSectorCount returns the size of the volume in sectors, taking it from
// LargeSectorCount if the 16-bit field is zero.
func (bs *BootSector) TotalSectorCount() uint {
	if bs.TotalSectors != 0 {
		return uint(bs.TotalSectors)
	}
	return uint(bs.LargeSectorCount)
}

// Label returns the volume label from the extended boot record with the padding
// removed.
func (bs *BootSector) Label() string {
	return strings.TrimRight(string(bs.VolumeLabel[:]), " \x00")
}

////////////////////////////////////////////////////////////////////////////////

// Geometry holds the fields of the boot sector that every address computation
// on the volume is derived from.
type Geometry struct {
	BytesPerSector    uint
	SectorsPerCluster uint
	ReservedSectors   uint
	FatCount          uint
	DirEntryCount     uint
	SectorsPerFat     uint
}

// Validate ensures none of the fields are zero. A zero here would make later
// computations divide by zero or produce empty regions.
func (g Geometry) Validate() error {
	fields := []struct {
		name  string
		value uint
	}{
		{"BytesPerSector", g.BytesPerSector},
		{"SectorsPerCluster", g.SectorsPerCluster},
		{"ReservedSectors", g.ReservedSectors},
		{"FatCount", g.FatCount},
		{"DirEntryCount", g.DirEntryCount},
		{"SectorsPerFat", g.SectorsPerFat},
	}

	for _, field := range fields {
		if field.value == 0 {
			return bootfat.ErrFileSystemCorrupted.WithMessage(
				fmt.Sprintf("%s in the boot sector is zero", field.name))
		}
	}
	return nil
}

// BytesPerCluster gives the size of one cluster of the data region, in bytes.
func (g Geometry) BytesPerCluster() uint {
	return g.BytesPerSector * g.SectorsPerCluster
}

// TableSizeBytes gives the size of a single copy of the FAT, in bytes.
func (g Geometry) TableSizeBytes() uint {
	return g.SectorsPerFat * g.BytesPerSector
}

// TableBlock gives the first sector of the first copy of the FAT.
func (g Geometry) TableBlock() c.BlockID {
	return c.BlockID(g.ReservedSectors)
}

// RootDirectoryBlock gives the first sector of the root directory, which comes
// right after all copies of the FAT.
func (g Geometry) RootDirectoryBlock() c.BlockID {
	return c.BlockID(g.ReservedSectors + g.SectorsPerFat*g.FatCount)
}

// RootDirectoryBlocks gives the number of sectors taken up by the root
// directory, rounded up to a whole sector.
func (g Geometry) RootDirectoryBlocks() uint {
	size := g.DirEntryCount * DirentSize
	return (size + g.BytesPerSector - 1) / g.BytesPerSector
}

// DataRegionStart gives the sector where cluster 2 begins.
func (g Geometry) DataRegionStart() c.BlockID {
	return g.RootDirectoryBlock() + c.BlockID(g.RootDirectoryBlocks())
}
