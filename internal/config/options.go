package config

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/thoreinstein/bax/internal/archive"
	"github.com/thoreinstein/bax/internal/errors"
	"github.com/thoreinstein/bax/pkg/fileutil"
)

// OptionsFileName is the tree-local options file read from the source root.
const OptionsFileName = ".bax.toml"

// Options holds per-tree settings read from the source root. They sit
// between the global config and command-line flags in precedence: flags
// override them, and they override config file values. Zero fields mean
// "not set".
type Options struct {
	Compression string   `toml:"compression"`
	Detailed    *bool    `toml:"detailed"`
	Ignore      []string `toml:"ignore"`
}

// LoadOptions reads OptionsFileName from root. A missing file is not an
// error and yields nil options.
func LoadOptions(root string) (*Options, error) {
	data, err := fileutil.ReadFileWithLimit(filepath.Join(root, OptionsFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "reading %s", OptionsFileName)
	}

	var opts Options
	if err := toml.Unmarshal(data, &opts); err != nil {
		// go-toml/v2 DecodeError includes line/column via Position() method
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			row, col := decodeErr.Position()
			return nil, errors.Newf("parsing %s: line %d, column %d: %s",
				OptionsFileName, row, col, decodeErr.Error())
		}
		return nil, errors.Wrapf(err, "parsing %s", OptionsFileName)
	}

	if opts.Compression != "" {
		if _, err := archive.ParseCodec(opts.Compression); err != nil {
			return nil, errors.Wrapf(err, "%s: compression", OptionsFileName)
		}
	}

	return &opts, nil
}
