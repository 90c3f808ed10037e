package fat12

import (
	"fmt"

	"github.com/boljen/go-bitmap"
	"github.com/dargueta/bootfat"
	c "github.com/dargueta/bootfat/drivers/common"
	"go.uber.org/zap"
)

// firstDataCluster is the cluster number of the first cluster in the data
// region. Entries 0 and 1 of the FAT hold the media descriptor and a marker.
const firstDataCluster = 2

// RequiredBufferSize returns how large a buffer must be to hold a file of `size`
// bytes when read with [ChainReader.ReadChain]. Whole clusters are always
// copied, so this is `size` rounded up to a multiple of the cluster size, and
// never less than one cluster.
func RequiredBufferSize(size uint, bytesPerCluster uint) uint {
	clusters := (size + bytesPerCluster - 1) / bytesPerCluster
	if clusters == 0 {
		clusters = 1
	}
	return clusters * bytesPerCluster
}

// ChainReader follows cluster chains through a loaded FAT and copies the
// clusters' contents out of the data region.
type ChainReader struct {
	clusters *c.ClusterStream
	table    Table
	logger   *zap.Logger
}

// NewChainReader creates a ChainReader for a volume with the given geometry
// whose data region starts at `dataRegionStart`.
func NewChainReader(
	stream *c.BlockStream,
	geometry Geometry,
	dataRegionStart c.BlockID,
	table Table,
	logger *zap.Logger,
) (*ChainReader, error) {
	clusters, err := c.NewClusterStream(
		stream, geometry.SectorsPerCluster, dataRegionStart, firstDataCluster)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ChainReader{
		clusters: clusters,
		table:    table,
		logger:   logger,
	}, nil
}

// BytesPerCluster returns the size of a single cluster, in bytes.
func (reader *ChainReader) BytesPerCluster() uint {
	return reader.clusters.BytesPerCluster()
}

// MaxChainBytes returns the most data a single chain can hold. No cluster can
// appear twice in a chain, so it's bounded by the number of data clusters the
// FAT has entries for.
func (reader *ChainReader) MaxChainBytes() uint {
	entryCount := reader.table.EntryCount()
	if entryCount <= firstDataCluster {
		return 0
	}
	return (entryCount - firstDataCluster) * reader.clusters.BytesPerCluster()
}

// ReadChain copies every cluster in the chain beginning at `first` into
// consecutive cluster-sized slots of `buffer`, and returns the number of
// clusters copied. The walk stops after copying the cluster whose FAT entry is
// [EndOfChain] or higher. Reserved and bad-cluster markers are followed like
// any other value.
//
// Any failure is returned as [bootfat.ErrChainRead]. `buffer` may have been
// partly overwritten by then, and its contents must be discarded.
func (reader *ChainReader) ReadChain(first c.ClusterID, buffer []byte) (uint, error) {
	bytesPerCluster := reader.clusters.BytesPerCluster()
	visited := bitmap.New(int(reader.table.EntryCount()))

	current := first
	cursor := uint(0)
	count := uint(0)

	for {
		if current < firstDataCluster || uint(current) >= reader.table.EntryCount() {
			return count, bootfat.ErrChainRead.WithMessage(
				fmt.Sprintf(
					"cluster %#03x at index %d in chain from %#03x is not a data cluster",
					current,
					count,
					first))
		}
		if visited.Get(int(current)) {
			return count, bootfat.ErrChainRead.WithMessage(
				fmt.Sprintf(
					"cycle detected: cluster %#03x appears twice in chain from %#03x",
					current,
					first))
		}
		visited.Set(int(current), true)

		if cursor+bytesPerCluster > uint(len(buffer)) {
			return count, bootfat.ErrChainRead.WithMessage(
				fmt.Sprintf(
					"chain from %#03x is longer than the %d-byte buffer",
					first,
					len(buffer)))
		}

		err := reader.clusters.ReadInto(current, buffer[cursor:cursor+bytesPerCluster])
		if err != nil {
			return count, bootfat.ErrChainRead.Wrap(
				fmt.Errorf("reading cluster %#03x: %w", current, err))
		}
		cursor += bytesPerCluster
		count++

		next, err := reader.table.Entry(current)
		if err != nil {
			return count, bootfat.ErrChainRead.Wrap(err)
		}

		reader.logger.Debug(
			"read cluster",
			zap.Uint("cluster", uint(current)),
			zap.Uint("next", uint(next)),
			zap.Uint("index", count-1),
		)

		if IsEndOfChain(next) {
			return count, nil
		}
		current = next
	}
}
