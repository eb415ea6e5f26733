package backup

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/bax/internal/archive"
	"github.com/thoreinstein/bax/internal/manifest"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Sentinel errors for backup operations.
var (
	// ErrSourceNotFound indicates the source directory does not exist.
	ErrSourceNotFound = errors.New("source not found")

	// ErrNotDirectory indicates the source path exists but is not a
	// directory.
	ErrNotDirectory = errors.New("source is not a directory")

	// ErrNoManifest indicates the archive does not end with a manifest
	// entry. Archives written without --verbose carry no manifest.
	ErrNoManifest = errors.New("no manifest in archive")

	// ErrVerifyFailed indicates archive contents do not match the manifest.
	ErrVerifyFailed = errors.New("verification failed")

	// ErrNoArchivesFound indicates a directory holds no bax-named archives.
	ErrNoArchivesFound = errors.New("no archives found")
)

// Job describes one backup run. It is immutable for the duration of the
// run; nothing is shared across runs.
type Job struct {
	// Source is the directory to back up.
	Source string

	// Output is the archive path. When empty, a name is derived from the
	// source base name and the current time in the working directory.
	Output string

	// Codec selects the compression applied around the tar container.
	Codec archive.Codec

	// Detailed enables per-file checksums and embeds the manifest as the
	// final archive entry.
	Detailed bool

	// ExtraIgnore holds additional ignore patterns applied at the source
	// root, layered under any rule files so those can still override them.
	ExtraIgnore []string
}

// Result summarizes a completed backup run.
type Result struct {
	// ArchivePath is where the archive was renamed to on success.
	ArchivePath string

	// ArchiveSize is the size of the final archive in bytes.
	ArchiveSize int64

	// Manifest lists every archived file in traversal order, including
	// error markers for files that could not be read.
	Manifest *manifest.Manifest

	// Files and Bytes count the content written to the archive body.
	Files int
	Bytes int64

	// Excluded counts entries dropped by ignore rules or the version
	// control exclusion. A pruned directory counts once.
	Excluded int

	// Warnings counts per-entry problems that were skipped over.
	Warnings int

	// Duration is the wall-clock time of the run.
	Duration time.Duration
}
