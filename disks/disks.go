// Package disks describes the standard FAT12 floppy formats.
package disks

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/dargueta/bootfat"
	"github.com/gocarina/gocsv"
)

// DiskGeometry describes the physical layout of a floppy format along with the
// BPB fields DOS formats it with.
type DiskGeometry struct {
	Name               string `csv:"name"`
	Slug               string `csv:"slug"`
	FirstYearAvailable uint   `csv:"first_year_available"`
	FormFactor         string `csv:"form_factor"`

	BytesPerSector  uint `csv:"bytes_per_sector"`
	SectorsPerTrack uint `csv:"sectors_per_track"`
	Heads           uint `csv:"heads"`
	// TotalDataTracks gives the number of data tracks per head.
	TotalDataTracks uint `csv:"total_data_tracks"`

	SectorsPerCluster uint  `csv:"sectors_per_cluster"`
	ReservedSectors   uint  `csv:"reserved_sectors"`
	FatCount          uint  `csv:"fat_count"`
	DirEntryCount     uint  `csv:"dir_entry_count"`
	SectorsPerFat     uint  `csv:"sectors_per_fat"`
	MediaDescriptor   uint8 `csv:"media_descriptor"`

	Notes string `csv:"notes"`
}

// TotalSectors gives the number of sectors on the disk.
func (g *DiskGeometry) TotalSectors() uint {
	return g.SectorsPerTrack * g.Heads * g.TotalDataTracks
}

// TotalSizeBytes gives the size of the disk, which is also the size of an image
// of it.
func (g *DiskGeometry) TotalSizeBytes() int64 {
	return int64(g.TotalSectors() * g.BytesPerSector)
}

////////////////////////////////////////////////////////////////////////////////

// https://en.wikipedia.org/wiki/List_of_floppy_disk_formats
//
//go:embed disk-geometries.csv
var diskGeometriesRawCSV string
var diskGeometries map[string]DiskGeometry
var diskGeometrySlugs []string

// GetPredefinedDiskGeometry returns the format with the given slug, e.g.
// "1440k".
func GetPredefinedDiskGeometry(slug string) (DiskGeometry, error) {
	geometry, ok := diskGeometries[slug]
	if ok {
		return geometry, nil
	}

	return DiskGeometry{}, bootfat.ErrNotFound.WithMessage(
		fmt.Sprintf("no predefined disk geometry exists with slug %q", slug))
}

// FindByTotalSectors returns the format whose disks hold exactly `totalSectors`
// sectors of `bytesPerSector` bytes.
func FindByTotalSectors(bytesPerSector, totalSectors uint) (DiskGeometry, error) {
	for _, slug := range diskGeometrySlugs {
		geometry := diskGeometries[slug]
		if geometry.BytesPerSector == bytesPerSector &&
			geometry.TotalSectors() == totalSectors {
			return geometry, nil
		}
	}
	return DiskGeometry{}, bootfat.ErrNotFound.WithMessage(
		fmt.Sprintf(
			"no predefined disk geometry has %d sectors of %d bytes",
			totalSectors,
			bytesPerSector))
}

// Slugs returns the slugs of all known formats, smallest first.
func Slugs() []string {
	slugs := make([]string, len(diskGeometrySlugs))
	copy(slugs, diskGeometrySlugs)
	return slugs
}

func init() {
	csvReader := csv.NewReader(strings.NewReader(diskGeometriesRawCSV))
	csvReader.Comma = '|'

	var rows []DiskGeometry
	err := gocsv.UnmarshalCSV(csvReader, &rows)
	if err != nil {
		panic(fmt.Errorf("failed to decode disk geometries: %w", err))
	}

	diskGeometries = make(map[string]DiskGeometry, len(rows))
	diskGeometrySlugs = make([]string, 0, len(rows))

	for i, row := range rows {
		_, exists := diskGeometries[row.Slug]
		if exists {
			message := fmt.Errorf(
				"duplicate definition for disk %q found on row %d", row.Slug, i+1)
			panic(message)
		}
		diskGeometries[row.Slug] = row
		diskGeometrySlugs = append(diskGeometrySlugs, row.Slug)
	}
}
