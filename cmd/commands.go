package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dargueta/bootfat"
	"github.com/dargueta/bootfat/disks"
	"github.com/dargueta/bootfat/drivers/fat12"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type runner struct {
	fs     afero.Fs
	logger *zap.Logger
}

func newApp(fs afero.Fs, stdout, stderr io.Writer) *cli.App {
	r := &runner{fs: fs, logger: zap.NewNop()}

	return &cli.App{
		Name:      "bootfat",
		Usage:     "Read files from the root directory of FAT12 disk images",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "log every step of reading the image to stderr",
				EnvVars: []string{"BOOTFAT_VERBOSE"},
			},
		},
		Before: func(ctx *cli.Context) error {
			r.logger = newLogger(ctx.App.ErrWriter, ctx.Bool("verbose"))
			return nil
		},
		After: func(ctx *cli.Context) error {
			_ = r.logger.Sync()
			return nil
		},
		// main decides how to exit.
		ExitErrHandler: func(ctx *cli.Context, err error) {},
		Commands: []*cli.Command{
			{
				Name:      "cat",
				Usage:     "Write the contents of a file to stdout",
				ArgsUsage: "IMAGE NAME",
				Action:    r.cat,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "escape",
						Usage: `print non-printable bytes as \xHH`,
					},
					&cli.BoolFlag{
						Name:  "raw-name",
						Usage: `NAME is the 11-byte directory entry name, e.g. "KERNEL  BIN"`,
					},
				},
			},
			{
				Name:      "ls",
				Usage:     "List the root directory",
				ArgsUsage: "IMAGE",
				Action:    r.list,
			},
			{
				Name:      "info",
				Usage:     "Show the geometry of the volume",
				ArgsUsage: "IMAGE",
				Action:    r.info,
			},
		},
	}
}

func newLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(w),
		level,
	)
	return zap.New(core)
}

func usageError(ctx *cli.Context) error {
	return cli.Exit(
		fmt.Sprintf(
			"usage: %s %s %s", ctx.App.Name, ctx.Command.Name, ctx.Command.ArgsUsage),
		exitUsage)
}

// exitCodeFor maps an error to the exit code for the stage that failed.
func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, bootfat.ErrBootSectorUnreadable):
		return exitBootSector
	case errors.Is(err, bootfat.ErrTableUnreadable):
		return exitTable
	case errors.Is(err, bootfat.ErrRootDirectoryUnreadable):
		return exitRootDirectory
	case errors.Is(err, bootfat.ErrNotFound):
		return exitNotFound
	case errors.Is(err, bootfat.ErrChainRead):
		return exitChainRead
	case errors.Is(err, bootfat.ErrIsADirectory):
		return exitIsDirectory
	case errors.Is(err, bootfat.ErrInvalidArgument), errors.Is(err, bootfat.ErrNameTooLong):
		return exitUsage
	default:
		return exitOther
	}
}

func exitError(err error) error {
	if err == nil {
		return nil
	}
	return cli.Exit(err.Error(), exitCodeFor(err))
}

// joinErrors combines the error of an operation with those from releasing its
// resources. Nil errors are dropped; if all of them are nil the result is nil.
func joinErrors(errs ...error) error {
	result := &multierror.Error{
		ErrorFormat: func(errs []error) string {
			messages := make([]string, len(errs))
			for i, err := range errs {
				messages[i] = err.Error()
			}
			return strings.Join(messages, "; ")
		},
	}
	return multierror.Append(result, errs...).ErrorOrNil()
}

// withVolume mounts the image at `imagePath`, passes it to `operation`, and
// releases the volume and the file again no matter how `operation` went.
func (r *runner) withVolume(imagePath string, operation func(*fat12.Volume) error) error {
	file, err := r.fs.Open(imagePath)
	if err != nil {
		return cli.Exit(
			fmt.Sprintf("can't open disk image: %s", err.Error()), exitOpenFailed)
	}
	r.logger.Debug("opened disk image", zap.String("path", imagePath))

	volume, err := fat12.Mount(file, fat12.WithLogger(r.logger))
	if err != nil {
		return exitError(joinErrors(err, file.Close()))
	}

	err = operation(volume)
	return exitError(joinErrors(err, volume.Close(), file.Close()))
}

// resolveName converts the NAME argument to the form stored in directory
// entries.
func resolveName(name string, raw bool) ([fat12.ShortNameLength]byte, error) {
	if !raw {
		return fat12.ParseShortName(name)
	}

	var shortName [fat12.ShortNameLength]byte
	if len(name) != fat12.ShortNameLength {
		return shortName, bootfat.ErrInvalidArgument.WithMessage(
			fmt.Sprintf(
				"raw name must be exactly %d bytes, got %d: %q",
				fat12.ShortNameLength,
				len(name),
				name))
	}
	copy(shortName[:], name)
	return shortName, nil
}

func (r *runner) cat(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return usageError(ctx)
	}

	name, err := resolveName(ctx.Args().Get(1), ctx.Bool("raw-name"))
	if err != nil {
		return exitError(err)
	}

	return r.withVolume(ctx.Args().Get(0), func(volume *fat12.Volume) error {
		data, err := volume.ReadFileByShortName(name)
		if err != nil {
			return err
		}

		if ctx.Bool("escape") {
			_, err = io.WriteString(ctx.App.Writer, escapeBytes(data))
		} else {
			_, err = ctx.App.Writer.Write(data)
		}
		return err
	})
}

func (r *runner) list(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return usageError(ctx)
	}

	return r.withVolume(ctx.Args().Get(0), func(volume *fat12.Volume) error {
		entries, err := volume.ReadRootDirectory()
		if err != nil {
			return err
		}

		writer := tabwriter.NewWriter(ctx.App.Writer, 0, 8, 2, ' ', 0)
		for _, entry := range entries {
			size := fmt.Sprintf("%d", entry.Size())
			if entry.IsDir() {
				size = "<DIR>"
			}

			var attributes uint8
			if dirent, ok := entry.Sys().(fat12.RawDirent); ok {
				attributes = dirent.Attributes
			}

			fmt.Fprintf(
				writer,
				"%s\t%s\t%s\t%s\n",
				entry.Name(),
				size,
				formatTimestamp(entry.ModTime()),
				formatAttributes(attributes))
		}
		return writer.Flush()
	})
}

func (r *runner) info(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return usageError(ctx)
	}

	return r.withVolume(ctx.Args().Get(0), func(volume *fat12.Volume) error {
		bootSector := volume.BootSector()
		geometry := volume.Geometry()

		format := "unknown"
		known, err := disks.FindByTotalSectors(
			geometry.BytesPerSector, bootSector.TotalSectorCount())
		if err == nil {
			format = fmt.Sprintf("%s (%s)", known.Name, known.Slug)
		}

		usage, err := volume.ClusterUsage()
		if err != nil {
			return err
		}

		imageSectors, err := volume.ImageSectors()
		if err != nil {
			return err
		}

		writer := tabwriter.NewWriter(ctx.App.Writer, 0, 8, 1, ' ', 0)
		rows := []struct {
			label string
			value interface{}
		}{
			{"Label", volume.Label()},
			{"OEM name", strings.TrimRight(string(bootSector.OEMName[:]), " \x00")},
			{"Format", format},
			{"Media descriptor", fmt.Sprintf("%#02x", bootSector.MediaDescriptorType)},
			{"Bytes per sector", geometry.BytesPerSector},
			{"Sectors per cluster", geometry.SectorsPerCluster},
			{"Total sectors", bootSector.TotalSectorCount()},
			{"Image sectors", imageSectors},
			{"Reserved sectors", geometry.ReservedSectors},
			{"FAT copies", geometry.FatCount},
			{"Sectors per FAT", geometry.SectorsPerFat},
			{"Root directory entries", geometry.DirEntryCount},
			{"FAT LBA", geometry.TableBlock()},
			{"Root directory LBA", geometry.RootDirectoryBlock()},
			{"Root directory sectors", geometry.RootDirectoryBlocks()},
			{"Data region LBA", volume.DataRegionStart()},
			{"Data clusters", usage.DataClusters},
			{"Used clusters", usage.Used},
			{"Bad clusters", usage.Bad},
			{"Free clusters", usage.Free()},
			{"Largest free run", usage.LongestFreeRun},
		}
		for _, row := range rows {
			fmt.Fprintf(writer, "%s:\t%v\n", row.label, row.value)
		}
		return writer.Flush()
	})
}
