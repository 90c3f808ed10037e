package fat12

import (
	"fmt"
	"io"

	"github.com/dargueta/bootfat"
	c "github.com/dargueta/bootfat/drivers/common"
	"go.uber.org/zap"
)

// Option configures a Volume.
type Option func(*Volume)

// WithLogger sets the logger the volume reports its progress to. The default
// discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(v *Volume) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithStartOffset treats byte `offset` of the image as the start of the volume,
// e.g. to skip a partition table.
func WithStartOffset(offset int64) Option {
	return func(v *Volume) {
		v.startOffset = offset
	}
}

// Volume is the state of one mounted FAT12 image: its geometry, FAT, and root
// directory. It's created by Mount and owned by a single caller; it is not safe
// for concurrent use. Close releases everything it holds.
type Volume struct {
	image       io.ReadSeeker
	startOffset int64
	logger      *zap.Logger

	bootSector *BootSector
	geometry   Geometry
	stream     *c.BlockStream
	table      Table
	root       *RootDirectory
	chains     *ChainReader
}

var _ bootfat.ReadingDriver = (*Volume)(nil)

// Mount reads the boot sector, the FAT, and the root directory of the FAT12
// volume in `image`. If any of these can't be loaded, the returned error wraps
// the cause in [bootfat.ErrBootSectorUnreadable],
// [bootfat.ErrTableUnreadable], or [bootfat.ErrRootDirectoryUnreadable]
// respectively, and nothing acquired so far is retained.
func Mount(image io.ReadSeeker, options ...Option) (*Volume, error) {
	volume := &Volume{
		image:  image,
		logger: zap.NewNop(),
	}
	for _, option := range options {
		option(volume)
	}

	err := volume.load()
	if err != nil {
		volume.Close()
		return nil, err
	}
	return volume, nil
}

func (v *Volume) load() error {
	_, err := v.image.Seek(v.startOffset, io.SeekStart)
	if err != nil {
		return bootfat.ErrBootSectorUnreadable.Wrap(bootfat.ErrShortRead.Wrap(err))
	}

	v.bootSector, err = ParseBootSector(v.image)
	if err != nil {
		return bootfat.ErrBootSectorUnreadable.Wrap(err)
	}

	v.geometry = v.bootSector.Geometry()
	err = v.geometry.Validate()
	if err != nil {
		return bootfat.ErrBootSectorUnreadable.Wrap(err)
	}
	v.logger.Debug(
		"parsed boot sector",
		zap.Uint("bytesPerSector", v.geometry.BytesPerSector),
		zap.Uint("sectorsPerCluster", v.geometry.SectorsPerCluster),
		zap.Uint("reservedSectors", v.geometry.ReservedSectors),
		zap.Uint("fatCount", v.geometry.FatCount),
		zap.Uint("dirEntryCount", v.geometry.DirEntryCount),
		zap.Uint("sectorsPerFat", v.geometry.SectorsPerFat),
	)

	v.stream = c.NewBlockStream(v.image, v.geometry.BytesPerSector, v.startOffset)

	v.table, err = LoadTable(v.stream, v.geometry)
	if err != nil {
		return bootfat.ErrTableUnreadable.Wrap(err)
	}
	v.logger.Debug(
		"loaded FAT",
		zap.Uint("block", uint(v.geometry.TableBlock())),
		zap.Int("bytes", len(v.table)),
	)

	v.root, err = LoadRootDirectory(v.stream, v.geometry)
	if err != nil {
		return bootfat.ErrRootDirectoryUnreadable.Wrap(err)
	}
	v.logger.Debug(
		"loaded root directory",
		zap.Uint("block", uint(v.geometry.RootDirectoryBlock())),
		zap.Uint("blocks", v.geometry.RootDirectoryBlocks()),
		zap.Uint("dataRegionStart", uint(v.root.DataRegionStart)),
	)

	v.chains, err = NewChainReader(
		v.stream, v.geometry, v.root.DataRegionStart, v.table, v.logger)
	return err
}

// Close drops the volume's buffers. It never fails and may be called more than
// once. The image itself is owned by the caller and is not closed.
func (v *Volume) Close() error {
	v.table = nil
	v.root = nil
	v.chains = nil
	v.stream = nil
	v.bootSector = nil
	return nil
}

func (v *Volume) checkMounted() error {
	if v.root == nil || v.chains == nil {
		return bootfat.ErrInvalidArgument.WithMessage("volume is closed")
	}
	return nil
}

// BootSector returns the decoded boot sector, or nil if the volume is closed.
func (v *Volume) BootSector() *BootSector {
	return v.bootSector
}

// Geometry returns the geometry of the volume.
func (v *Volume) Geometry() Geometry {
	return v.geometry
}

// Label returns the volume label. A label entry in the root directory takes
// precedence over the one in the boot sector, as in DOS.
func (v *Volume) Label() string {
	if v.root != nil {
		for _, entry := range v.root.Entries {
			if entry.IsFree() {
				break
			}
			if !entry.IsDeleted() && entry.IsVolumeLabel() {
				return ShortNameToString(entry.Name)
			}
		}
	}
	if v.bootSector != nil {
		return v.bootSector.Label()
	}
	return ""
}

// DataRegionStart returns the sector where cluster 2 begins.
func (v *Volume) DataRegionStart() c.BlockID {
	return v.geometry.DataRegionStart()
}

// ImageSectors returns the number of whole sectors the image holds after the
// start offset. This can differ from the total in the boot sector if the image
// is truncated or padded.
func (v *Volume) ImageSectors() (uint, error) {
	if err := v.checkMounted(); err != nil {
		return 0, err
	}
	return v.stream.TotalBlocks()
}

// ClusterUsage scans the FAT to find out which clusters of the data region are
// in use.
func (v *Volume) ClusterUsage() (ClusterUsage, error) {
	if err := v.checkMounted(); err != nil {
		return ClusterUsage{}, err
	}

	totalSectors := v.bootSector.TotalSectorCount()
	dataStart := uint(v.geometry.DataRegionStart())
	dataClusters := uint(0)
	if totalSectors > dataStart {
		dataClusters = (totalSectors - dataStart) / v.geometry.SectorsPerCluster
	}
	return v.table.ScanClusterUsage(dataClusters)
}

// ReadRootDirectory lists the files and directories in the root directory.
func (v *Volume) ReadRootDirectory() ([]bootfat.DirectoryEntry, error) {
	if err := v.checkMounted(); err != nil {
		return nil, err
	}

	live := v.root.LiveEntries()
	entries := make([]bootfat.DirectoryEntry, len(live))
	for i := range live {
		entries[i] = live[i].ToDirectoryEntry()
	}
	return entries, nil
}

// FindShortName looks up the entry whose name field is exactly `name`.
func (v *Volume) FindShortName(name [ShortNameLength]byte) (*RawDirent, error) {
	if err := v.checkMounted(); err != nil {
		return nil, err
	}
	return v.root.Find(name)
}

// Stat returns the directory entry for `name`, which is converted to its 8.3
// form first.
func (v *Volume) Stat(name string) (bootfat.DirectoryEntry, error) {
	shortName, err := ParseShortName(name)
	if err != nil {
		return bootfat.DirectoryEntry{}, err
	}

	dirent, err := v.FindShortName(shortName)
	if err != nil {
		return bootfat.DirectoryEntry{}, err
	}
	return dirent.ToDirectoryEntry(), nil
}

// ReadFile returns the contents of the file called `name`, which is converted to
// its 8.3 form first.
func (v *Volume) ReadFile(name string) ([]byte, error) {
	shortName, err := ParseShortName(name)
	if err != nil {
		return nil, err
	}
	return v.ReadFileByShortName(shortName)
}

// ReadFileByShortName returns the contents of the file whose name field is
// exactly `name`. Directories can't be read this way and give
// [bootfat.ErrIsADirectory]. On failure no data is returned; a partially filled
// buffer is never exposed.
func (v *Volume) ReadFileByShortName(name [ShortNameLength]byte) ([]byte, error) {
	dirent, err := v.FindShortName(name)
	if err != nil {
		return nil, err
	}
	if dirent.Attributes&AttrDirectory != 0 {
		return nil, bootfat.ErrIsADirectory.WithMessage(fmt.Sprintf("%q", name[:]))
	}
	return v.readDirent(dirent)
}

func (v *Volume) readDirent(dirent *RawDirent) ([]byte, error) {
	size := uint(dirent.Size)
	first := dirent.FirstCluster()

	// Empty files normally have no clusters allocated at all.
	if size == 0 && first == FreeCluster {
		return []byte{}, nil
	}

	bufferSize := RequiredBufferSize(size, v.chains.BytesPerCluster())
	if bufferSize > v.chains.MaxChainBytes() {
		return nil, bootfat.ErrChainRead.WithMessage(
			fmt.Sprintf(
				"%d bytes can't fit in a chain from %#03x, the FAT only maps %d bytes",
				size,
				first,
				v.chains.MaxChainBytes()))
	}

	buffer := make([]byte, bufferSize)
	count, err := v.chains.ReadChain(first, buffer)
	if err != nil {
		return nil, err
	}

	v.logger.Debug(
		"read file",
		zap.String("name", dirent.DisplayName()),
		zap.Uint("size", size),
		zap.Uint("firstCluster", uint(first)),
		zap.Uint("clusters", count),
	)

	if count*v.chains.BytesPerCluster() < size {
		return nil, bootfat.ErrChainRead.WithMessage(
			fmt.Sprintf(
				"chain from %#03x has %d clusters, too short for %d bytes",
				first,
				count,
				size))
	}
	return buffer[:size], nil
}

// ExtractFile mounts the FAT12 volume in `image`, reads the file whose name field
// is exactly `name`, and releases the volume again, whether or not it succeeded.
func ExtractFile(
	image io.ReadSeeker, name [ShortNameLength]byte, options ...Option,
) ([]byte, error) {
	volume, err := Mount(image, options...)
	if err != nil {
		return nil, err
	}
	defer volume.Close()

	return volume.ReadFileByShortName(name)
}
