package fat12

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dargueta/bootfat"
)

// ShortNameLength is the size of the name field of a directory entry: an
// eight-byte stem and a three-byte extension, both padded with spaces.
const ShortNameLength = 11

// ParseShortName converts a filename string such as "kernel.bin" to its on-disk
// 8.3 representation "KERNEL  BIN". The returned name is normalized to
// uppercase.
func ParseShortName(name string) ([ShortNameLength]byte, error) {
	var shortName [ShortNameLength]byte

	if name == "" || name == "." || name == ".." {
		return shortName, bootfat.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("%q can't be stored as a file name", name))
	}

	parts := strings.SplitN(name, ".", 2)
	stem := parts[0]
	extension := ""
	if len(parts) == 2 {
		extension = parts[1]
	}

	if stem == "" {
		return shortName, bootfat.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("filename stem is empty: %q", name))
	} else if len(stem) > 8 {
		return shortName, bootfat.ErrNameTooLong.WithMessage(
			fmt.Sprintf("filename stem can be at most eight characters: %q", stem))
	} else if len(extension) > 3 {
		return shortName, bootfat.ErrNameTooLong.WithMessage(
			fmt.Sprintf("filename extension can be at most three characters: %q", extension))
	} else if strings.ContainsAny(extension, ".") {
		return shortName, bootfat.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("filename has more than one extension: %q", name))
	}

	padded := fmt.Sprintf("%-8s%-3s", strings.ToUpper(stem), strings.ToUpper(extension))
	copy(shortName[:], padded)
	return shortName, nil
}

// ShortNameToString converts the on-disk representation of a filename into its
// user-friendly form, e.g. "KERNEL  BIN" becomes "KERNEL.BIN".
func ShortNameToString(rawName [ShortNameLength]byte) string {
	stem := bytes.TrimRight(rawName[:8], " ")
	extension := bytes.TrimRight(rawName[8:], " ")

	if len(extension) > 0 {
		return string(stem) + "." + string(extension)
	}
	return string(stem)
}
