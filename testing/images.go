// Package testing builds FAT12 disk images in memory for tests. Import it as
// `diskotest` to avoid clashing with the standard library.
package testing

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"io"
	"testing"

	"github.com/dargueta/bootfat/disks"
	"github.com/dargueta/bootfat/drivers/fat12"
	"github.com/noxer/bytewriter"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"
)

// Timestamp given to every file added by an ImageBuilder: 2023-06-15 12:30:10.
const (
	DefaultModifiedDate = (2023-1980)<<9 | 6<<5 | 15
	DefaultModifiedTime = 12<<11 | 30<<5 | 10/2
)

// EndOfChainMarker is what the builder writes into the FAT entry of the last
// cluster of a file.
const EndOfChainMarker = 0xFFF

// LoadDiskImage returns a stream over a copy of `imageBytes`. Writes to the
// stream do not affect `imageBytes`, and its size is fixed.
func LoadDiskImage(t *testing.T, imageBytes []byte) io.ReadWriteSeeker {
	require.Greater(t, len(imageBytes), 0, "image is empty")

	imageCopy := make([]byte, len(imageBytes))
	copy(imageCopy, imageBytes)
	return bytesextra.NewReadWriteSeeker(imageCopy)
}

// CreateRandomData returns `size` random bytes. It is guaranteed to either return
// a valid slice or fail the test and abort.
func CreateRandomData(t *testing.T, size uint) []byte {
	data := make([]byte, size)
	_, err := rand.Read(data)
	require.NoErrorf(t, err, "failed to generate %d random bytes", size)
	return data
}

// SetFATEntry stores the 12-bit `value` as the entry for `cluster` in `table`,
// leaving the neighboring entry's nybble untouched.
func SetFATEntry(table []byte, cluster, value uint) {
	offset := cluster * 3 / 2
	if cluster%2 == 0 {
		table[offset] = byte(value)
		table[offset+1] = (table[offset+1] & 0xF0) | byte((value>>8)&0x0F)
	} else {
		table[offset] = (table[offset] & 0x0F) | byte(value<<4)
		table[offset+1] = byte(value >> 4)
	}
}

////////////////////////////////////////////////////////////////////////////////

// ImageBuilder assembles a freshly formatted FAT12 floppy image with files in
// its root directory.
type ImageBuilder struct {
	t               *testing.T
	geometry        disks.DiskGeometry
	image           []byte
	table           []byte
	dirents         []fat12.RawDirent
	nextFreeCluster uint
}

// NewImageBuilder creates a builder for an empty disk in one of the formats from
// the disks package, e.g. "1440k".
func NewImageBuilder(t *testing.T, slug string) *ImageBuilder {
	geometry, err := disks.GetPredefinedDiskGeometry(slug)
	require.NoError(t, err, "bad disk format")

	builder := &ImageBuilder{
		t:               t,
		geometry:        geometry,
		image:           make([]byte, geometry.TotalSizeBytes()),
		table:           make([]byte, geometry.SectorsPerFat*geometry.BytesPerSector),
		nextFreeCluster: 2,
	}

	// The first two entries hold the media descriptor and an end-of-chain marker.
	SetFATEntry(builder.table, 0, 0xF00|uint(geometry.MediaDescriptor))
	SetFATEntry(builder.table, 1, EndOfChainMarker)
	return builder
}

// DiskGeometry returns the format the image is built with.
func (b *ImageBuilder) DiskGeometry() disks.DiskGeometry {
	return b.geometry
}

// BytesPerCluster gives the size of one cluster of the data region.
func (b *ImageBuilder) BytesPerCluster() uint {
	return b.geometry.BytesPerSector * b.geometry.SectorsPerCluster
}

// RootDirectorySector gives the first sector of the root directory.
func (b *ImageBuilder) RootDirectorySector() uint {
	return b.geometry.ReservedSectors + b.geometry.FatCount*b.geometry.SectorsPerFat
}

// DataRegionStart gives the sector where cluster 2 begins.
func (b *ImageBuilder) DataRegionStart() uint {
	rootBytes := b.geometry.DirEntryCount * fat12.DirentSize
	rootSectors := (rootBytes + b.geometry.BytesPerSector - 1) / b.geometry.BytesPerSector
	return b.RootDirectorySector() + rootSectors
}

// ClusterOffset gives the byte offset of `cluster` in the image.
func (b *ImageBuilder) ClusterOffset(cluster uint) uint {
	sector := b.DataRegionStart() + (cluster-2)*b.geometry.SectorsPerCluster
	return sector * b.geometry.BytesPerSector
}

// SetFATEntry overwrites the FAT entry for `cluster` in every copy of the FAT.
func (b *ImageBuilder) SetFATEntry(cluster, value uint) {
	SetFATEntry(b.table, cluster, value)
}

// WriteCluster copies `data` to the start of `cluster`. `data` must not be
// larger than a cluster.
func (b *ImageBuilder) WriteCluster(cluster uint, data []byte) {
	require.LessOrEqual(b.t, uint(len(data)), b.BytesPerCluster(), "data larger than a cluster")
	offset := b.ClusterOffset(cluster)
	copy(b.image[offset:offset+b.BytesPerCluster()], data)
}

// AddFile stores `data` in consecutive free clusters and adds a root directory
// entry for it called `name` (e.g. "KERNEL.BIN"). It returns the first cluster,
// which is 0 for an empty file.
func (b *ImageBuilder) AddFile(name string, data []byte) uint {
	clusterCount := (uint(len(data)) + b.BytesPerCluster() - 1) / b.BytesPerCluster()
	clusters := make([]uint, clusterCount)
	for i := range clusters {
		clusters[i] = b.nextFreeCluster + uint(i)
	}
	return b.AddFileWithChain(name, data, clusters)
}

// AddFileWithChain stores `data` in the given clusters, in order, links them in
// the FAT, and adds a root directory entry for it called `name`. It returns the
// first cluster of the chain, or 0 if `clusters` is empty.
func (b *ImageBuilder) AddFileWithChain(name string, data []byte, clusters []uint) uint {
	shortName, err := fat12.ParseShortName(name)
	require.NoError(b.t, err, "bad file name")
	require.GreaterOrEqual(
		b.t,
		uint(len(clusters))*b.BytesPerCluster(),
		uint(len(data)),
		"not enough clusters for %d bytes", len(data))

	bytesPerCluster := b.BytesPerCluster()
	for i, cluster := range clusters {
		start := uint(i) * bytesPerCluster
		end := start + bytesPerCluster
		if end > uint(len(data)) {
			end = uint(len(data))
		}
		if start < end {
			b.WriteCluster(cluster, data[start:end])
		}

		if i+1 < len(clusters) {
			b.SetFATEntry(cluster, clusters[i+1])
		} else {
			b.SetFATEntry(cluster, EndOfChainMarker)
		}
		if cluster >= b.nextFreeCluster {
			b.nextFreeCluster = cluster + 1
		}
	}

	firstCluster := uint(0)
	if len(clusters) > 0 {
		firstCluster = clusters[0]
	}

	b.AddRawDirent(fat12.RawDirent{
		Name:            shortName,
		Attributes:      fat12.AttrArchived,
		ModifiedDate:    DefaultModifiedDate,
		ModifiedTime:    DefaultModifiedTime,
		FirstClusterLow: uint16(firstCluster),
		Size:            uint32(len(data)),
	})
	return firstCluster
}

// AddRawDirent appends `dirent` to the root directory as-is.
func (b *ImageBuilder) AddRawDirent(dirent fat12.RawDirent) {
	require.Less(
		b.t, uint(len(b.dirents)), b.geometry.DirEntryCount, "root directory is full")
	b.dirents = append(b.dirents, dirent)
}

// Bytes serializes the boot sector, the FATs, and the root directory and
// returns the complete image. Each call returns a new copy.
func (b *ImageBuilder) Bytes() []byte {
	bootSector := fat12.BootSector{
		RawBPB: fat12.RawBPB{
			JmpBoot:             [3]byte{0xEB, 0x3C, 0x90},
			BytesPerSector:      uint16(b.geometry.BytesPerSector),
			SectorsPerCluster:   uint8(b.geometry.SectorsPerCluster),
			ReservedSectors:     uint16(b.geometry.ReservedSectors),
			FatCount:            uint8(b.geometry.FatCount),
			DirEntryCount:       uint16(b.geometry.DirEntryCount),
			TotalSectors:        uint16(b.geometry.TotalSectors()),
			MediaDescriptorType: b.geometry.MediaDescriptor,
			SectorsPerFat:       uint16(b.geometry.SectorsPerFat),
			SectorsPerTrack:     uint16(b.geometry.SectorsPerTrack),
			Heads:               uint16(b.geometry.Heads),
		},
		RawExtendedBootRecord: fat12.RawExtendedBootRecord{
			Signature: 0x29,
			VolumeID:  0x12345678,
		},
	}
	copy(bootSector.OEMName[:], "BOOTFAT ")
	copy(bootSector.VolumeLabel[:], "TEST DISK  ")
	copy(bootSector.SystemID[:], "FAT12   ")

	writer := bytewriter.New(b.image[:b.geometry.BytesPerSector])
	err := binary.Write(writer, binary.LittleEndian, &bootSector)
	require.NoError(b.t, err, "failed to write boot sector")
	b.image[510] = 0x55
	b.image[511] = 0xAA

	tableSize := uint(len(b.table))
	for i := uint(0); i < b.geometry.FatCount; i++ {
		offset := (b.geometry.ReservedSectors*b.geometry.BytesPerSector) + i*tableSize
		copy(b.image[offset:offset+tableSize], b.table)
	}

	rootStart := b.RootDirectorySector() * b.geometry.BytesPerSector
	rootSize := b.geometry.DirEntryCount * fat12.DirentSize
	rootSlice := b.image[rootStart : rootStart+rootSize]
	copy(rootSlice, bytes.Repeat([]byte{0}, int(rootSize)))

	writer = bytewriter.New(rootSlice)
	for i := range b.dirents {
		err = binary.Write(writer, binary.LittleEndian, &b.dirents[i])
		require.NoError(b.t, err, "failed to write directory entry %d", i)
	}

	imageCopy := make([]byte, len(b.image))
	copy(imageCopy, b.image)
	return imageCopy
}

// Stream serializes the image and returns a stream over it.
func (b *ImageBuilder) Stream() io.ReadWriteSeeker {
	return LoadDiskImage(b.t, b.Bytes())
}
