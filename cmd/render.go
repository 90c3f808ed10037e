package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dargueta/bootfat/drivers/fat12"
)

// escapeBytes renders `data` as text: printable ASCII, newlines, and tabs are
// kept as they are, and every other byte becomes `\xHH`.
func escapeBytes(data []byte) string {
	var builder strings.Builder
	builder.Grow(len(data))

	for _, b := range data {
		if (b >= 0x20 && b < 0x7F) || b == '\n' || b == '\t' {
			builder.WriteByte(b)
		} else {
			fmt.Fprintf(&builder, `\x%02x`, b)
		}
	}
	return builder.String()
}

var attributeLetters = []struct {
	flag   uint8
	letter byte
}{
	{fat12.AttrReadOnly, 'R'},
	{fat12.AttrHidden, 'H'},
	{fat12.AttrSystem, 'S'},
	{fat12.AttrVolumeLabel, 'V'},
	{fat12.AttrDirectory, 'D'},
	{fat12.AttrArchived, 'A'},
}

// formatAttributes renders attribute flags DOS style, e.g. "R-S--A".
func formatAttributes(flags uint8) string {
	rendered := make([]byte, len(attributeLetters))
	for i, attribute := range attributeLetters {
		if flags&attribute.flag != 0 {
			rendered[i] = attribute.letter
		} else {
			rendered[i] = '-'
		}
	}
	return string(rendered)
}

func formatTimestamp(timestamp time.Time) string {
	if timestamp.IsZero() {
		return "-"
	}
	return timestamp.Format("2006-01-02 15:04:05")
}
