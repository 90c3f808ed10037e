package fat12

import (
	"bytes"
	"fmt"

	"github.com/dargueta/bootfat"
	c "github.com/dargueta/bootfat/drivers/common"
)

// RootDirectory is the fixed-size root directory of a FAT12 volume.
type RootDirectory struct {
	// Entries holds every slot of the directory, DirEntryCount in total,
	// including free and deleted ones.
	Entries []RawDirent
	// DataRegionStart is the sector where cluster 2 begins. It immediately
	// follows the root directory.
	DataRegionStart c.BlockID
}

// LoadRootDirectory reads the root directory, which sits right after the last
// copy of the FAT, and decodes all of its slots.
func LoadRootDirectory(stream *c.BlockStream, geometry Geometry) (*RootDirectory, error) {
	firstBlock := geometry.RootDirectoryBlock()
	totalBlocks := geometry.RootDirectoryBlocks()

	raw, err := stream.Read(firstBlock, totalBlocks)
	if err != nil {
		return nil, err
	}

	directory := &RootDirectory{
		Entries:         make([]RawDirent, geometry.DirEntryCount),
		DataRegionStart: firstBlock + c.BlockID(totalBlocks),
	}

	for i := range directory.Entries {
		offset := i * DirentSize
		directory.Entries[i], err = NewRawDirentFromBytes(raw[offset : offset+DirentSize])
		if err != nil {
			return nil, err
		}
	}
	return directory, nil
}

// Find returns the first entry whose raw name field is byte-for-byte identical
// to `name`. There is no case folding or trimming, so `name` must already be in
// padded 8.3 form (see [ParseShortName]).
func (dir *RootDirectory) Find(name [ShortNameLength]byte) (*RawDirent, error) {
	for i := range dir.Entries {
		if bytes.Equal(dir.Entries[i].Name[:], name[:]) {
			return &dir.Entries[i], nil
		}
	}
	return nil, bootfat.ErrNotFound.WithMessage(fmt.Sprintf("%q", name[:]))
}

// LiveEntries returns the entries that describe actual files or directories,
// skipping free and deleted slots, long name fragments, and the volume label.
// It stops at the first free slot.
func (dir *RootDirectory) LiveEntries() []RawDirent {
	entries := []RawDirent{}
	for _, entry := range dir.Entries {
		if entry.IsFree() {
			break
		}
		if entry.IsDeleted() || entry.IsLongNameFragment() || entry.IsVolumeLabel() {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}
