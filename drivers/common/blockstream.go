package common

import (
	"fmt"
	"io"

	"github.com/dargueta/bootfat"
)

// BlockStream is an abstraction layer around a stream to make it look like a
// block device, e.g. a file that can only be read from in multiples of its
// fundamental unit, a "block" (a sector, for FAT).
//
// The exposed fields are for informational purposes only and should never be
// changed.
type BlockStream struct {
	// BytesPerBlock gives the size of a block on this device, in bytes. All
	// reads must be done in integer multiples of this size.
	BytesPerBlock uint
	// StartOffset is an offset from the beginning of the stream, in bytes, that
	// will be considered the beginning of block 0 for the device. This is useful
	// for skipping over MBRs or other volumes stored on the same image.
	StartOffset int64
	stream      io.ReadSeeker
}

func NewBlockStream(stream io.ReadSeeker, blockSize uint, startOffset int64) *BlockStream {
	return &BlockStream{
		BytesPerBlock: blockSize,
		StartOffset:   startOffset,
		stream:        stream,
	}
}

// DetermineBlockCount gives the number of whole blocks in a stream after
// `startOffset`, rounded down to the nearest block.
func DetermineBlockCount(stream io.Seeker, blockSize uint, startOffset int64) (uint, error) {
	if blockSize == 0 {
		return 0, bootfat.ErrInvalidArgument.WithMessage("block size can't be 0")
	}

	end, err := stream.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if end <= startOffset {
		return 0, nil
	}
	return uint((end - startOffset) / int64(blockSize)), nil
}

// TotalBlocks returns the number of whole blocks in the stream, starting from
// StartOffset.
func (device *BlockStream) TotalBlocks() (uint, error) {
	return DetermineBlockCount(device.stream, device.BytesPerBlock, device.StartOffset)
}

// CheckRange returns ErrShortRead if the stream ends before the last of the
// `count` blocks starting at `blockID`.
func (device *BlockStream) CheckRange(blockID BlockID, count uint) error {
	totalBlocks, err := device.TotalBlocks()
	if err != nil {
		return bootfat.ErrShortRead.Wrap(
			fmt.Errorf("can't determine the size of the image: %w", err))
	}

	if uint(blockID) > totalBlocks || count > totalBlocks-uint(blockID) {
		return bootfat.ErrShortRead.WithMessage(
			fmt.Sprintf(
				"blocks [%d, %d) run past the end of the image (%d blocks)",
				blockID,
				uint(blockID)+count,
				totalBlocks))
	}
	return nil
}

// BlockIDToFileOffset converts a block ID into a byte offset into the backing
// I/O stream.
func (device *BlockStream) BlockIDToFileOffset(blockID BlockID) int64 {
	return device.StartOffset + (int64(blockID) * int64(device.BytesPerBlock))
}

// ReadInto reads `count` whole blocks starting from `blockID` into the front of
// `buffer`. A read that can't be satisfied completely is a failure: the seek
// must succeed and exactly `count * BytesPerBlock` bytes must arrive, or
// ErrShortRead is returned and the contents of `buffer` are undefined.
func (device *BlockStream) ReadInto(blockID BlockID, count uint, buffer []byte) error {
	readSize := device.BytesPerBlock * count
	if uint(len(buffer)) < readSize {
		return bootfat.ErrShortRead.WithMessage(
			fmt.Sprintf(
				"buffer of %d bytes can't hold %d blocks of %d bytes",
				len(buffer),
				count,
				device.BytesPerBlock))
	}

	offset := device.BlockIDToFileOffset(blockID)
	_, err := device.stream.Seek(offset, io.SeekStart)
	if err != nil {
		return bootfat.ErrShortRead.Wrap(
			fmt.Errorf("seek to block %d (offset %d) failed: %w", blockID, offset, err))
	}

	bytesRead, err := io.ReadFull(device.stream, buffer[:readSize])
	if err != nil {
		return bootfat.ErrShortRead.Wrap(
			fmt.Errorf(
				"wanted %d blocks (%d bytes) at block %d, got %d bytes: %w",
				count,
				readSize,
				blockID,
				bytesRead,
				err))
	}
	return nil
}

// Read reads `count` whole blocks starting from `blockID` into a new buffer. The
// buffer isn't allocated unless the stream is long enough to fill it.
func (device *BlockStream) Read(blockID BlockID, count uint) ([]byte, error) {
	err := device.CheckRange(blockID, count)
	if err != nil {
		return nil, err
	}

	buffer := make([]byte, device.BytesPerBlock*count)
	err = device.ReadInto(blockID, count, buffer)
	if err != nil {
		return nil, err
	}
	return buffer, nil
}
