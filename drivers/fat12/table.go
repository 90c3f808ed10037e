package fat12

import (
	"encoding/binary"
	"fmt"

	"github.com/dargueta/bootfat"
	c "github.com/dargueta/bootfat/drivers/common"
)

// Special values of 12-bit FAT entries.
const (
	// FreeCluster marks a cluster that isn't allocated to anything.
	FreeCluster = 0x000
	// ReservedClusterMin through ReservedClusterMax are reserved by the FAT
	// standard. The chain walker doesn't treat them specially.
	ReservedClusterMin = 0xFF0
	ReservedClusterMax = 0xFF6
	// BadCluster marks a cluster with a bad sector in it. The chain walker doesn't
	// treat it specially either.
	BadCluster = 0xFF7
	// EndOfChain is the lowest value that terminates a cluster chain. Any entry
	// greater than or equal to it ends the chain.
	EndOfChain = 0xFF8
)

// IsEndOfChain returns true if `value` read from the FAT terminates a chain.
func IsEndOfChain(value c.ClusterID) bool {
	return value >= EndOfChain
}

// Table is an in-memory copy of a FAT12 allocation table: 12-bit entries packed
// two to every three bytes.
type Table []byte

// LoadTable reads the first copy of the FAT from the volume. Only the first
// copy is ever read, and the other copies are not compared against it.
func LoadTable(stream *c.BlockStream, geometry Geometry) (Table, error) {
	err := stream.CheckRange(geometry.TableBlock(), geometry.SectorsPerFat)
	if err != nil {
		return nil, err
	}

	table := make(Table, geometry.TableSizeBytes())
	err = stream.ReadInto(geometry.TableBlock(), geometry.SectorsPerFat, table)
	if err != nil {
		return nil, err
	}
	return table, nil
}

// EntryCount returns the number of complete 12-bit entries in the table.
func (t Table) EntryCount() uint {
	return uint(len(t)) * 2 / 3
}

// Entry returns the value of the FAT entry for `cluster`, i.e. the next cluster
// in its chain or a marker.
//
// Entry `n` starts at byte `n * 3 / 2`. For even `n` it is the low 12 bits of
// the little-endian 16-bit value at that offset; for odd `n` it is the high 12
// bits.
func (t Table) Entry(cluster c.ClusterID) (c.ClusterID, error) {
	offset := uint(cluster) * 3 / 2
	if offset+1 >= uint(len(t)) {
		return 0, bootfat.ErrInvalidArgument.WithMessage(
			fmt.Sprintf(
				"cluster %d is outside the FAT (%d entries)", cluster, t.EntryCount()))
	}

	value := binary.LittleEndian.Uint16(t[offset : offset+2])
	if cluster%2 == 0 {
		return c.ClusterID(value & 0x0FFF), nil
	}
	return c.ClusterID(value >> 4), nil
}
