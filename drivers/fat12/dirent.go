package fat12

import (
	"bytes"
	"encoding/binary"
	"os"
	"time"

	"github.com/dargueta/bootfat"
	c "github.com/dargueta/bootfat/drivers/common"
)

const (
	// AttrReadOnly is an attribute flag marking a directory entry as read-only.
	AttrReadOnly = 1

	// AttrHidden is an attribute flag marking a directory entry as "hidden", meaning it
	// wouldn't show up in normal directory listings.
	AttrHidden = 2

	// AttrSystem is an attribute flag marking a directory entry as essential to the
	// operating system. Bootloaders commonly set this on the kernel image.
	AttrSystem = 4

	// AttrVolumeLabel marks the entry holding the true volume label. It must reside in
	// the root directory and doesn't refer to any data.
	AttrVolumeLabel = 8

	// AttrDirectory is an attribute flag marking a directory entry as being a directory.
	AttrDirectory = 16

	// AttrArchived is set whenever the directory entry is created or modified.
	AttrArchived = 32

	// AttrLongName is the combination of flags that marks a VFAT long file name
	// fragment. These entries are skipped in listings.
	AttrLongName = AttrReadOnly | AttrHidden | AttrSystem | AttrVolumeLabel
)

// DirentSize is the size of a single raw directory entry, in bytes.
const DirentSize = 32

const (
	direntFree    = 0x00
	direntDeleted = 0xE5
	// direntKanjiE5 stands in for a real 0xE5 as the first byte of a name.
	direntKanjiE5 = 0x05
)

// RawDirent is the on-disk representation of a directory entry, broken down into
// its constituent fields in the order they appear on real media.
type RawDirent struct {
	Name              [11]byte
	Attributes        uint8
	NTReserved        uint8
	CreatedTimeTenths uint8
	CreatedTime       uint16
	CreatedDate       uint16
	AccessedDate      uint16
	FirstClusterHigh  uint16
	ModifiedTime      uint16
	ModifiedDate      uint16
	FirstClusterLow   uint16
	Size              uint32
}

// NewRawDirentFromBytes deserializes DirentSize bytes into a RawDirent.
func NewRawDirentFromBytes(data []byte) (RawDirent, error) {
	dirent := RawDirent{}
	if len(data) < DirentSize {
		return dirent, bootfat.ErrShortRead.WithMessage("directory entry is truncated")
	}
	err := binary.Read(bytes.NewReader(data[:DirentSize]), binary.LittleEndian, &dirent)
	return dirent, err
}

// FirstCluster returns the first cluster of the entry's data. FAT12 only ever
// populates the low 16 bits; the high word is ignored.
func (d *RawDirent) FirstCluster() c.ClusterID {
	return c.ClusterID(d.FirstClusterLow)
}

// IsFree returns true if this slot has never been used. On a well-formed volume
// every slot after it is free as well.
func (d *RawDirent) IsFree() bool {
	return d.Name[0] == direntFree
}

// IsDeleted returns true if the entry belonged to a file that was deleted.
func (d *RawDirent) IsDeleted() bool {
	return d.Name[0] == direntDeleted
}

// IsLongNameFragment returns true if the slot holds part of a VFAT long name.
func (d *RawDirent) IsLongNameFragment() bool {
	return d.Attributes&AttrLongName == AttrLongName
}

// IsVolumeLabel returns true if this entry holds the volume label.
func (d *RawDirent) IsVolumeLabel() bool {
	return !d.IsLongNameFragment() && d.Attributes&AttrVolumeLabel != 0
}

// DisplayName returns the name in its user-friendly "NAME.EXT" form.
func (d *RawDirent) DisplayName() string {
	name := d.Name
	if name[0] == direntKanjiE5 {
		name[0] = direntDeleted
	}
	return ShortNameToString(name)
}

// ModTime returns the last modification timestamp of the entry.
func (d *RawDirent) ModTime() time.Time {
	return TimestampFromParts(d.ModifiedDate, d.ModifiedTime, 0)
}

// CreatedAt returns the creation timestamp of the entry.
func (d *RawDirent) CreatedAt() time.Time {
	return TimestampFromParts(d.CreatedDate, d.CreatedTime, d.CreatedTimeTenths)
}

// ToDirectoryEntry converts the raw entry into a [bootfat.DirectoryEntry]. The
// returned entry's Sys() is a copy of `d`.
func (d *RawDirent) ToDirectoryEntry() bootfat.DirectoryEntry {
	return bootfat.NewDirectoryEntry(
		d.DisplayName(),
		int64(d.Size),
		AttrFlagsToFileMode(d.Attributes),
		d.ModTime(),
		*d,
	)
}

// AttrFlagsToFileMode converts FAT attribute flags into an os.FileMode.
func AttrFlagsToFileMode(flags uint8) os.FileMode {
	var mode os.FileMode

	// FAT has no way to mark files as executable or not, so the executable bit is always set.
	if (flags & AttrReadOnly) != 0 {
		mode = 0o555
	} else {
		mode = 0o777
	}

	if (flags & AttrDirectory) != 0 {
		mode |= os.ModeDir
	}
	return mode
}

// DateFromInt converts the FAT on-disk representation of a date into a Go
// time.Time at midnight UTC. A zero day or month (never valid) gives the zero
// time.
func DateFromInt(value uint16) time.Time {
	day := int(value & 0x001f)
	month := time.Month((value >> 5) & 0x000f)
	year := int(1980 + (value >> 9))

	if day == 0 || month == 0 {
		return time.Time{}
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// TimestampFromParts converts a FAT timestamp into a time.Time object. datePart is
// required; timePart and tenths should be 0 if they're not present in the source
// field(s). `tenths` is the creation-time field counting 10 ms units in [0, 199].
func TimestampFromParts(datePart uint16, timePart uint16, tenths uint8) time.Time {
	date := DateFromInt(datePart)
	if date.IsZero() {
		return date
	}

	seconds := int(timePart&0x001f) * 2
	minutes := int((timePart >> 5) & 0x003f)
	hours := int(timePart >> 11)
	nanoseconds := int(tenths) * int(10*time.Millisecond)

	return time.Date(
		date.Year(), date.Month(), date.Day(), hours, minutes, seconds, nanoseconds, time.UTC)
}
