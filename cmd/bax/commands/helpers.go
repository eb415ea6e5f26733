package commands

import (
	"context"
	"os"

	"github.com/thoreinstein/bax/internal/archive"
	"github.com/thoreinstein/bax/internal/backup"
	"github.com/thoreinstein/bax/internal/errors"
)

// parseCodecFlag converts an optional codec flag value; empty means infer
// from the file name.
func parseCodecFlag(name string) (archive.Codec, error) {
	if name == "" {
		return "", nil
	}
	codec, err := archive.ParseCodec(name)
	if err != nil {
		return "", errors.NewUserError(err, "valid codecs: gz, bz2, xz, zst, none")
	}
	return codec, nil
}

// classifyReadError assigns the exit class of a failed archive read: bad
// paths and archives without manifests are user errors, broken streams are
// system failures.
func classifyReadError(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, backup.ErrNoManifest):
		return errors.NewUserError(err, "only archives created with -v carry a manifest")
	case errors.Is(err, archive.ErrUnknownCodec):
		return errors.NewUserError(err, "pass the codec explicitly with -c")
	case errors.Is(err, os.ErrNotExist), errors.Is(err, os.ErrPermission):
		return errors.NewExitError(err, errors.ExitUser)
	default:
		return errors.NewExitError(err, errors.ExitSystem)
	}
}
