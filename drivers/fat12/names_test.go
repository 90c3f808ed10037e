package fat12_test

import (
	"testing"

	"github.com/dargueta/bootfat"
	"github.com/dargueta/bootfat/drivers/fat12"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseShortName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"KERNEL.BIN", "KERNEL  BIN"},
		{"kernel.bin", "KERNEL  BIN"},
		{"README", "README     "},
		{"A.B", "A       B  "},
		{"ABCDEFGH.XYZ", "ABCDEFGHXYZ"},
		{"boot.", "BOOT       "},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := fat12.ParseShortName(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got[:]))
		})
	}
}

func TestParseShortName__Invalid(t *testing.T) {
	tests := []struct {
		input string
		want  error
	}{
		{"", bootfat.ErrInvalidArgument},
		{".", bootfat.ErrInvalidArgument},
		{"..", bootfat.ErrInvalidArgument},
		{".hidden", bootfat.ErrInvalidArgument},
		{"a.b.c", bootfat.ErrInvalidArgument},
		{"ABCDEFGHI.TXT", bootfat.ErrNameTooLong},
		{"A.TEXT", bootfat.ErrNameTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := fat12.ParseShortName(tt.input)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestShortNameToString(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"KERNEL  BIN", "KERNEL.BIN"},
		{"README     ", "README"},
		{"ABCDEFGHXYZ", "ABCDEFGH.XYZ"},
		{"A       B  ", "A.B"},
	}

	for _, tt := range tests {
		var raw [fat12.ShortNameLength]byte
		copy(raw[:], tt.raw)
		assert.Equal(t, tt.want, fat12.ShortNameToString(raw))
	}
}
