package common_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/dargueta/bootfat"
	c "github.com/dargueta/bootfat/drivers/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeImage returns `totalBlocks` blocks where every byte of block N is N.
func makeImage(bytesPerBlock, totalBlocks int) []byte {
	image := make([]byte, 0, bytesPerBlock*totalBlocks)
	for i := 0; i < totalBlocks; i++ {
		image = append(image, bytes.Repeat([]byte{byte(i)}, bytesPerBlock)...)
	}
	return image
}

func TestBlockStream__Read__Basic(t *testing.T) {
	image := makeImage(128, 16)
	stream := c.NewBlockStream(bytes.NewReader(image), 128, 0)

	for i := c.BlockID(0); i < 16; i++ {
		data, err := stream.Read(i, 1)
		require.NoErrorf(t, err, "failed to read block %d", i)
		assert.Equalf(t, image[i*128:(i+1)*128], data, "block %d is wrong", i)
	}

	data, err := stream.Read(3, 4)
	require.NoError(t, err)
	assert.Equal(t, image[3*128:7*128], data)
}

func TestBlockStream__ReadInto__LeavesTailUntouched(t *testing.T) {
	image := makeImage(512, 4)
	stream := c.NewBlockStream(bytes.NewReader(image), 512, 0)

	buffer := bytes.Repeat([]byte{0xAA}, 1536)
	err := stream.ReadInto(2, 2, buffer)
	require.NoError(t, err)

	assert.Equal(t, image[1024:2048], buffer[:1024])
	assert.Equal(t, bytes.Repeat([]byte{0xAA}, 512), buffer[1024:])
}

func TestBlockStream__StartOffset(t *testing.T) {
	image := append(bytes.Repeat([]byte{0xFF}, 100), makeImage(128, 4)...)
	stream := c.NewBlockStream(bytes.NewReader(image), 128, 100)

	assert.EqualValues(t, 100+2*128, stream.BlockIDToFileOffset(2))

	data, err := stream.Read(2, 1)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{2}, 128), data)
}

// A read that runs off the end of the stream is a failure, not a short success.
func TestBlockStream__ReadInto__PastEndFails(t *testing.T) {
	stream := c.NewBlockStream(bytes.NewReader(makeImage(128, 8)), 128, 0)
	buffer := make([]byte, 256)

	err := stream.ReadInto(7, 2, buffer)
	assert.ErrorIs(t, err, bootfat.ErrShortRead)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	err = stream.ReadInto(8, 1, buffer)
	assert.ErrorIs(t, err, bootfat.ErrShortRead)
	assert.ErrorIs(t, err, io.EOF)
}

func TestBlockStream__Read__PastEndFails(t *testing.T) {
	stream := c.NewBlockStream(bytes.NewReader(makeImage(128, 8)), 128, 0)

	for _, blocks := range [][2]uint{{7, 2}, {8, 1}, {9, 0}, {0, 0xFFFFFFFF}} {
		data, err := stream.Read(c.BlockID(blocks[0]), blocks[1])
		assert.ErrorIsf(t, err, bootfat.ErrShortRead, "blocks %v", blocks)
		assert.Nilf(t, data, "blocks %v", blocks)
	}

	data, err := stream.Read(8, 0)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestBlockStream__CheckRange(t *testing.T) {
	// The trailing partial block doesn't count.
	image := append(bytes.Repeat([]byte{0xFF}, 100), makeImage(128, 4)...)
	image = append(image, 1, 2, 3)
	stream := c.NewBlockStream(bytes.NewReader(image), 128, 100)

	total, err := stream.TotalBlocks()
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)

	assert.NoError(t, stream.CheckRange(0, 4))
	assert.NoError(t, stream.CheckRange(3, 1))
	assert.ErrorIs(t, stream.CheckRange(3, 2), bootfat.ErrShortRead)
	assert.ErrorIs(t, stream.CheckRange(5, 0), bootfat.ErrShortRead)
}

func TestBlockStream__ReadInto__BufferTooSmall(t *testing.T) {
	stream := c.NewBlockStream(bytes.NewReader(makeImage(128, 8)), 128, 0)
	err := stream.ReadInto(0, 2, make([]byte, 255))
	assert.ErrorIs(t, err, bootfat.ErrShortRead)
}

type failingSeeker struct {
	io.Reader
}

func (failingSeeker) Seek(int64, int) (int64, error) {
	return 0, errors.New("seek exploded")
}

func TestBlockStream__Read__SeekFailure(t *testing.T) {
	stream := c.NewBlockStream(failingSeeker{bytes.NewReader(makeImage(128, 2))}, 128, 0)
	_, err := stream.Read(0, 1)
	assert.ErrorIs(t, err, bootfat.ErrShortRead)
	assert.Contains(t, err.Error(), "seek exploded")
}

func TestDetermineBlockCount(t *testing.T) {
	stream := bytes.NewReader(make([]byte, 1000))

	count, err := c.DetermineBlockCount(stream, 128, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 7, count)

	count, err = c.DetermineBlockCount(stream, 128, 300)
	require.NoError(t, err)
	assert.EqualValues(t, 5, count)

	count, err = c.DetermineBlockCount(stream, 128, 2000)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)

	_, err = c.DetermineBlockCount(stream, 0, 0)
	assert.ErrorIs(t, err, bootfat.ErrInvalidArgument)
}
