package bootfat

import (
	"os"
	"time"
)

// ReadingDriver is the interface for read-only volume drivers that expose a
// single flat root directory.
type ReadingDriver interface {
	// ReadRootDirectory lists the live entries in the root directory. Free,
	// deleted, and volume label slots are omitted.
	ReadRootDirectory() ([]DirectoryEntry, error)
	// Stat returns information about the directory entry with the given name.
	Stat(name string) (DirectoryEntry, error)
	// ReadFile returns the contents of the file with the given name.
	ReadFile(name string) ([]byte, error)
	// Close frees all resources held by the driver. The driver must not be used
	// after this is called.
	Close() error
}

// DirectoryEntry represents a file or directory encountered on the volume. It
// implements the os.FileInfo interface. Sys() returns the driver's on-disk
// representation of the entry.
type DirectoryEntry struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
	sys     interface{}
}

// NewDirectoryEntry creates a DirectoryEntry. Drivers use this to convert their
// on-disk records; `sys` is returned unmodified by Sys().
func NewDirectoryEntry(
	name string, size int64, mode os.FileMode, modTime time.Time, sys interface{},
) DirectoryEntry {
	return DirectoryEntry{
		name:    name,
		size:    size,
		mode:    mode,
		modTime: modTime,
		sys:     sys,
	}
}

// Name returns the base name of the directory entry on the file system.
func (d DirectoryEntry) Name() string {
	return d.name
}

// Size returns the size of the file in bytes.
func (d DirectoryEntry) Size() int64 {
	return d.size
}

// ModTime returns the last modification timestamp of the DirectoryEntry.
func (d DirectoryEntry) ModTime() time.Time {
	return d.modTime
}

// Mode returns the file system mode of the directory entry.
func (d DirectoryEntry) Mode() os.FileMode {
	return d.mode
}

// IsDir returns true if it's a directory.
func (d DirectoryEntry) IsDir() bool {
	return d.mode.IsDir()
}

func (d DirectoryEntry) Sys() interface{} {
	return d.sys
}
