package fat12_test

import (
	"bytes"
	"encoding/binary"
	"io"
	"runtime"
	"testing"

	"github.com/dargueta/bootfat"
	"github.com/dargueta/bootfat/drivers/fat12"
	diskotest "github.com/dargueta/bootfat/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func mountImage(t *testing.T, image io.ReadSeeker, options ...fat12.Option) *fat12.Volume {
	volume, err := fat12.Mount(image, options...)
	require.NoError(t, err, "mount failed")
	t.Cleanup(func() { volume.Close() })
	return volume
}

func TestVolume__RoundTrip(t *testing.T) {
	for _, slug := range []string{"160k", "360k", "720k", "1200k", "1440k", "2880k"} {
		t.Run(slug, func(t *testing.T) {
			builder := diskotest.NewImageBuilder(t, slug)
			kernel := diskotest.CreateRandomData(t, 5000)
			readme := []byte("hello, world\n")
			builder.AddFile("KERNEL.BIN", kernel)
			builder.AddFile("README.TXT", readme)

			volume := mountImage(t, builder.Stream())

			data, err := volume.ReadFile("kernel.bin")
			require.NoError(t, err)
			assert.Equal(t, kernel, data)

			data, err = volume.ReadFileByShortName(shortName("README  TXT"))
			require.NoError(t, err)
			assert.Equal(t, readme, data)
		})
	}
}

func TestVolume__Geometry(t *testing.T) {
	volume := mountImage(t, diskotest.NewImageBuilder(t, "1440k").Stream())

	geometry := volume.Geometry()
	assert.EqualValues(t, 512, geometry.BytesPerSector)
	assert.EqualValues(t, 224, geometry.DirEntryCount)
	assert.EqualValues(t, 33, volume.DataRegionStart())
	assert.EqualValues(t, 2880, volume.BootSector().TotalSectorCount())
}

func TestVolume__Label(t *testing.T) {
	builder := diskotest.NewImageBuilder(t, "1440k")
	volume := mountImage(t, builder.Stream())
	assert.Equal(t, "TEST DISK", volume.Label(), "label from the boot sector")

	builder.AddRawDirent(fat12.RawDirent{
		Name: shortName("MYDISK     "), Attributes: fat12.AttrVolumeLabel,
	})
	volume = mountImage(t, builder.Stream())
	assert.Equal(t, "MYDISK", volume.Label(), "label from the root directory")
}

func TestVolume__ReadRootDirectory(t *testing.T) {
	builder := diskotest.NewImageBuilder(t, "1440k")
	builder.AddRawDirent(fat12.RawDirent{
		Name: shortName("MYDISK     "), Attributes: fat12.AttrVolumeLabel,
	})
	builder.AddFile("KERNEL.BIN", make([]byte, 700))
	builder.AddRawDirent(fat12.RawDirent{
		Name: shortName("\xE5OLD    TXT"), Attributes: fat12.AttrArchived,
	})
	builder.AddRawDirent(fat12.RawDirent{
		Name:         shortName("DOCS       "),
		Attributes:   fat12.AttrDirectory,
		ModifiedDate: diskotest.DefaultModifiedDate,
	})

	volume := mountImage(t, builder.Stream())
	entries, err := volume.ReadRootDirectory()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "KERNEL.BIN", entries[0].Name())
	assert.EqualValues(t, 700, entries[0].Size())
	assert.False(t, entries[0].IsDir())
	assert.Equal(t, 2023, entries[0].ModTime().Year())

	assert.Equal(t, "DOCS", entries[1].Name())
	assert.True(t, entries[1].IsDir())
}

func TestVolume__Stat(t *testing.T) {
	builder := diskotest.NewImageBuilder(t, "1440k")
	first := builder.AddFile("KERNEL.BIN", make([]byte, 700))
	volume := mountImage(t, builder.Stream())

	entry, err := volume.Stat("Kernel.Bin")
	require.NoError(t, err)
	assert.Equal(t, "KERNEL.BIN", entry.Name())
	assert.EqualValues(t, 700, entry.Size())

	dirent, ok := entry.Sys().(fat12.RawDirent)
	require.True(t, ok, "Sys() should be a RawDirent")
	assert.EqualValues(t, first, dirent.FirstCluster())

	_, err = volume.Stat("MISSING.BIN")
	assert.ErrorIs(t, err, bootfat.ErrNotFound)

	_, err = volume.Stat("TOOLONGNAME.BIN")
	assert.ErrorIs(t, err, bootfat.ErrNameTooLong)
}

func TestVolume__ReadFile__Empty(t *testing.T) {
	builder := diskotest.NewImageBuilder(t, "1440k")
	first := builder.AddFile("EMPTY.TXT", nil)
	require.EqualValues(t, 0, first)
	// A zero-length file that still owns a cluster reads that cluster and
	// returns nothing from it.
	builder.AddFileWithChain("ZERO.TXT", nil, []uint{8})

	volume := mountImage(t, builder.Stream())

	data, err := volume.ReadFile("EMPTY.TXT")
	require.NoError(t, err)
	assert.NotNil(t, data)
	assert.Empty(t, data)

	data, err = volume.ReadFile("ZERO.TXT")
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestVolume__ReadFile__ExactClusterMultiple(t *testing.T) {
	builder := diskotest.NewImageBuilder(t, "360k")
	data := diskotest.CreateRandomData(t, 4096)
	builder.AddFile("FOUR.BIN", data)

	volume := mountImage(t, builder.Stream())
	got, err := volume.ReadFile("FOUR.BIN")
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestVolume__ReadFile__Fragmented(t *testing.T) {
	builder := diskotest.NewImageBuilder(t, "720k")
	data := diskotest.CreateRandomData(t, 4000)
	builder.AddFileWithChain("FRAG.BIN", data, []uint{40, 3, 17, 9})

	volume := mountImage(t, builder.Stream())
	got, err := volume.ReadFile("FRAG.BIN")
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestVolume__ReadFile__Errors(t *testing.T) {
	builder := diskotest.NewImageBuilder(t, "1440k")
	builder.AddRawDirent(fat12.RawDirent{
		Name: shortName("DOCS       "), Attributes: fat12.AttrDirectory, FirstClusterLow: 30,
	})
	// The size says four clusters but the chain only has one.
	builder.AddFileWithChain("SHORT.BIN", []byte("short"), []uint{12})
	builder.AddRawDirent(fat12.RawDirent{
		Name: shortName("LIAR    BIN"), FirstClusterLow: 12, Size: 2000,
	})
	builder.SetFATEntry(50, 51)
	builder.SetFATEntry(51, 50)
	builder.AddRawDirent(fat12.RawDirent{
		Name: shortName("LOOP    BIN"), FirstClusterLow: 50, Size: 100000,
	})

	volume := mountImage(t, builder.Stream())

	_, err := volume.ReadFile("DOCS")
	assert.ErrorIs(t, err, bootfat.ErrIsADirectory)
	assert.NotErrorIs(t, err, bootfat.ErrInvalidArgument)

	data, err := volume.ReadFile("LIAR.BIN")
	assert.ErrorIs(t, err, bootfat.ErrChainRead)
	assert.Nil(t, data)

	data, err = volume.ReadFile("LOOP.BIN")
	assert.ErrorIs(t, err, bootfat.ErrChainRead)
	assert.Nil(t, data)

	_, err = volume.ReadFile("NOPE.BIN")
	assert.ErrorIs(t, err, bootfat.ErrNotFound)

	_, err = volume.ReadFile("a.b.c")
	assert.ErrorIs(t, err, bootfat.ErrInvalidArgument)
}

func TestMount__Failures(t *testing.T) {
	image := diskotest.NewImageBuilder(t, "1440k").Bytes()

	zeroSectorSize := make([]byte, len(image))
	copy(zeroSectorSize, image)
	binary.LittleEndian.PutUint16(zeroSectorSize[11:13], 0)

	tests := []struct {
		name   string
		image  []byte
		stage  error
		causes []error
	}{
		{
			name:   "empty image",
			image:  []byte{},
			stage:  bootfat.ErrBootSectorUnreadable,
			causes: []error{bootfat.ErrShortRead},
		},
		{
			name:   "truncated boot sector",
			image:  image[:30],
			stage:  bootfat.ErrBootSectorUnreadable,
			causes: []error{bootfat.ErrShortRead, io.ErrUnexpectedEOF},
		},
		{
			name:   "zero sector size",
			image:  zeroSectorSize,
			stage:  bootfat.ErrBootSectorUnreadable,
			causes: []error{bootfat.ErrFileSystemCorrupted},
		},
		{
			name:   "truncated FAT",
			image:  image[:512*3],
			stage:  bootfat.ErrTableUnreadable,
			causes: []error{bootfat.ErrShortRead},
		},
		{
			name:   "truncated root directory",
			image:  image[:512*20],
			stage:  bootfat.ErrRootDirectoryUnreadable,
			causes: []error{bootfat.ErrShortRead},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			volume, err := fat12.Mount(bytes.NewReader(tt.image))
			assert.Nil(t, volume)
			assert.ErrorIs(t, err, tt.stage)
			for _, cause := range tt.causes {
				assert.ErrorIs(t, err, cause)
			}
		})
	}
}

// allocatedBytes returns how many bytes `run` allocated on the heap.
func allocatedBytes(run func()) uint64 {
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	run()
	runtime.ReadMemStats(&after)
	return after.TotalAlloc - before.TotalAlloc
}

// A FAT larger than the image must be rejected before its buffer is allocated.
func TestMount__TableLargerThanImage(t *testing.T) {
	image := diskotest.NewImageBuilder(t, "1440k").Bytes()[:512]
	binary.LittleEndian.PutUint16(image[11:13], 0xFFFF)
	binary.LittleEndian.PutUint16(image[22:24], 0xFFFF)

	var err error
	allocated := allocatedBytes(func() {
		_, err = fat12.Mount(bytes.NewReader(image))
	})
	assert.ErrorIs(t, err, bootfat.ErrTableUnreadable)
	assert.ErrorIs(t, err, bootfat.ErrShortRead)
	assert.Less(t, allocated, uint64(1<<20))
}

func TestVolume__ReadFile__SizeLargerThanTable(t *testing.T) {
	builder := diskotest.NewImageBuilder(t, "1440k")
	builder.AddFileWithChain("SMALL.BIN", []byte("small"), []uint{12})
	builder.AddRawDirent(fat12.RawDirent{
		Name: shortName("HUGE    BIN"), FirstClusterLow: 12, Size: 0xFFFFFFFF,
	})
	volume := mountImage(t, builder.Stream())

	var data []byte
	var err error
	allocated := allocatedBytes(func() {
		data, err = volume.ReadFile("HUGE.BIN")
	})
	assert.ErrorIs(t, err, bootfat.ErrChainRead)
	assert.Nil(t, data)
	assert.Less(t, allocated, uint64(1<<20))
}

func TestVolume__ImageSectors(t *testing.T) {
	image := diskotest.NewImageBuilder(t, "1440k").Bytes()

	volume := mountImage(t, bytes.NewReader(image))
	sectors, err := volume.ImageSectors()
	require.NoError(t, err)
	assert.EqualValues(t, 2880, sectors)
	assert.EqualValues(t, 2880, volume.BootSector().TotalSectorCount())

	truncated := mountImage(t, bytes.NewReader(image[:512*40+100]))
	sectors, err = truncated.ImageSectors()
	require.NoError(t, err)
	assert.EqualValues(t, 40, sectors)

	require.NoError(t, truncated.Close())
	_, err = truncated.ImageSectors()
	assert.ErrorIs(t, err, bootfat.ErrInvalidArgument)
}

// Only the root directory has to be present for mounting to succeed. The data
// region is only touched when a file is read.
func TestMount__MissingDataRegion(t *testing.T) {
	builder := diskotest.NewImageBuilder(t, "1440k")
	builder.AddFile("KERNEL.BIN", []byte("kernel"))
	image := builder.Bytes()[:512*33]

	volume := mountImage(t, bytes.NewReader(image))
	_, err := volume.ReadFile("KERNEL.BIN")
	assert.ErrorIs(t, err, bootfat.ErrChainRead)
	assert.ErrorIs(t, err, bootfat.ErrShortRead)
}

func TestMount__WithStartOffset(t *testing.T) {
	builder := diskotest.NewImageBuilder(t, "1440k")
	builder.AddFile("KERNEL.BIN", []byte("kernel"))

	image := append(bytes.Repeat([]byte{0xCC}, 1024), builder.Bytes()...)
	volume := mountImage(t, bytes.NewReader(image), fat12.WithStartOffset(1024))

	data, err := volume.ReadFile("KERNEL.BIN")
	require.NoError(t, err)
	assert.Equal(t, []byte("kernel"), data)
}

func TestMount__WithLogger(t *testing.T) {
	builder := diskotest.NewImageBuilder(t, "1440k")
	builder.AddFile("KERNEL.BIN", make([]byte, 1500))

	core, logs := observer.New(zap.DebugLevel)
	volume := mountImage(t, builder.Stream(), fat12.WithLogger(zap.New(core)))

	assert.Equal(t, 1, logs.FilterMessage("parsed boot sector").Len())
	assert.Equal(t, 1, logs.FilterMessage("loaded FAT").Len())
	assert.Equal(t, 1, logs.FilterMessage("loaded root directory").Len())

	_, err := volume.ReadFile("KERNEL.BIN")
	require.NoError(t, err)
	assert.Equal(t, 3, logs.FilterMessage("read cluster").Len())
	assert.Equal(t, 1, logs.FilterMessage("read file").Len())
}

func TestVolume__Close(t *testing.T) {
	builder := diskotest.NewImageBuilder(t, "1440k")
	builder.AddFile("KERNEL.BIN", []byte("kernel"))

	volume, err := fat12.Mount(builder.Stream())
	require.NoError(t, err)

	assert.NoError(t, volume.Close())
	assert.NoError(t, volume.Close(), "second close should be a no-op")

	_, err = volume.ReadFile("KERNEL.BIN")
	assert.ErrorIs(t, err, bootfat.ErrInvalidArgument)

	_, err = volume.ReadRootDirectory()
	assert.ErrorIs(t, err, bootfat.ErrInvalidArgument)
	assert.Nil(t, volume.BootSector())
}

func TestExtractFile(t *testing.T) {
	builder := diskotest.NewImageBuilder(t, "1440k")
	data := diskotest.CreateRandomData(t, 20000)
	builder.AddFile("KERNEL.BIN", data)

	got, err := fat12.ExtractFile(builder.Stream(), shortName("KERNEL  BIN"))
	require.NoError(t, err)
	assert.Equal(t, data, got)

	got, err = fat12.ExtractFile(builder.Stream(), shortName("kernel  bin"))
	assert.ErrorIs(t, err, bootfat.ErrNotFound)
	assert.Nil(t, got)

	_, err = fat12.ExtractFile(bytes.NewReader(nil), shortName("KERNEL  BIN"))
	assert.ErrorIs(t, err, bootfat.ErrBootSectorUnreadable)
}

func TestVolume__ClusterUsage(t *testing.T) {
	builder := diskotest.NewImageBuilder(t, "1440k")
	builder.AddFile("KERNEL.BIN", make([]byte, 1500))
	builder.AddFile("README.TXT", make([]byte, 1000))
	builder.SetFATEntry(100, fat12.BadCluster)

	volume := mountImage(t, builder.Stream())
	usage, err := volume.ClusterUsage()
	require.NoError(t, err)

	assert.EqualValues(t, 2847, usage.DataClusters)
	assert.EqualValues(t, 5, usage.Used)
	assert.EqualValues(t, 1, usage.Bad)
	assert.EqualValues(t, 2841, usage.Free())
	assert.EqualValues(t, 2748, usage.LongestFreeRun)

	assert.True(t, usage.Map.IsInUse(0), "cluster 2")
	assert.True(t, usage.Map.IsInUse(98), "cluster 100")
	assert.False(t, usage.Map.IsInUse(5), "cluster 7")
}

func TestTable__ScanClusterUsage__ClampsToTable(t *testing.T) {
	table := make(fat12.Table, 6)
	diskotest.SetFATEntry(table, 2, 0xFFF)

	usage, err := table.ScanClusterUsage(100)
	require.NoError(t, err)
	assert.EqualValues(t, 2, usage.DataClusters)
	assert.EqualValues(t, 1, usage.Used)
	assert.EqualValues(t, 1, usage.Free())

	usage, err = fat12.Table{}.ScanClusterUsage(10)
	require.NoError(t, err)
	assert.EqualValues(t, 0, usage.DataClusters)
}
