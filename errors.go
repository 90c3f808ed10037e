package bootfat

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

type DriverError interface {
	error
	WithMessage(message string) DriverError
	Wrap(err error) DriverError
}

type baseBootfatError string

const rootError = baseBootfatError("")

// Fundamental failures. Every one of them aborts the operation that produced
// it; nothing is retried.
var ErrShortRead = rootError.WithMessage("Short read")
var ErrNotFound = rootError.WithMessage("No such file or directory")
var ErrChainRead = rootError.WithMessage("Cluster chain read failed")
var ErrInvalidArgument = rootError.WithMessage("Invalid argument")
var ErrNameTooLong = rootError.WithMessage("File name too long")
var ErrFileSystemCorrupted = rootError.WithMessage("Structure needs cleaning")
var ErrIsADirectory = rootError.WithMessage("Is a directory")

// Stage wrappers. Mounting a volume wraps the underlying failure (usually
// ErrShortRead) in one of these so callers can tell which region of the image
// couldn't be loaded.
var ErrBootSectorUnreadable = rootError.WithMessage("Could not read boot sector")
var ErrTableUnreadable = rootError.WithMessage("Could not read FAT")
var ErrRootDirectoryUnreadable = rootError.WithMessage("Could not read root directory")

func (e baseBootfatError) Error() string {
	return string(e)
}

func (e baseBootfatError) WithMessage(message string) DriverError {
	return customDriverError{
		message:       message,
		originalError: e,
	}
}

func (e baseBootfatError) Wrap(err error) DriverError {
	return customDriverError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: multierror.Append(e, err),
	}
}

// -----------------------------------------------------------------------------

type customDriverError struct {
	message       string
	originalError error
}

// Error implements the `error` object interface. When called, it returns a string
// describing the error.
func (e customDriverError) Error() string {
	return e.message
}

func (e customDriverError) WithMessage(message string) DriverError {
	return customDriverError{
		message:       fmt.Sprintf("%s: %s", e.message, message),
		originalError: e,
	}
}

func (e customDriverError) Wrap(err error) DriverError {
	return customDriverError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: multierror.Append(e, err),
	}
}

func (e customDriverError) Unwrap() error {
	return e.originalError
}
