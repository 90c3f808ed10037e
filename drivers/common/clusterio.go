package common

import (
	"fmt"

	"github.com/dargueta/bootfat"
)

// ClusterStream is an abstraction layer for systems that deal with groups of
// multiple blocks, offset from the beginning of the disk. It's most useful for
// FAT, where cluster numbering starts at 2 at the beginning of the data region.
type ClusterStream struct {
	BlockStream       *BlockStream
	BlocksPerCluster  uint
	FirstBlock        BlockID
	FirstValidCluster ClusterID
	bytesPerCluster   uint
}

func NewClusterStream(
	blockStream *BlockStream,
	blocksPerCluster uint,
	firstBlock BlockID,
	firstValidCluster ClusterID,
) (*ClusterStream, error) {
	if blocksPerCluster == 0 {
		return nil, bootfat.ErrInvalidArgument.WithMessage(
			"a cluster must contain at least one block")
	}

	return &ClusterStream{
		BlockStream:       blockStream,
		BlocksPerCluster:  blocksPerCluster,
		FirstBlock:        firstBlock,
		FirstValidCluster: firstValidCluster,
		bytesPerCluster:   blocksPerCluster * blockStream.BytesPerBlock,
	}, nil
}

// BytesPerCluster returns the size of a single cluster, in bytes.
func (stream *ClusterStream) BytesPerCluster() uint {
	return stream.bytesPerCluster
}

// ClusterIDToBlock takes a cluster ID and returns the ID of the first block of
// that cluster.
func (stream *ClusterStream) ClusterIDToBlock(clusterID ClusterID) (BlockID, error) {
	if clusterID < stream.FirstValidCluster {
		return 0, bootfat.ErrInvalidArgument.WithMessage(
			fmt.Sprintf(
				"invalid cluster ID %d: clusters start at %d",
				clusterID,
				stream.FirstValidCluster))
	}
	normalizedCluster := uint(clusterID - stream.FirstValidCluster)
	return stream.FirstBlock + BlockID(normalizedCluster*stream.BlocksPerCluster), nil
}

// ReadInto reads the whole of `cluster` into the front of `buffer`, which must
// be at least one cluster long.
func (stream *ClusterStream) ReadInto(cluster ClusterID, buffer []byte) error {
	block, err := stream.ClusterIDToBlock(cluster)
	if err != nil {
		return err
	}
	return stream.BlockStream.ReadInto(block, stream.BlocksPerCluster, buffer)
}
