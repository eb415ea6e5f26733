package backup

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/thoreinstein/bax/internal/archive"
)

// stampLayout formats timestamps embedded in archive names. It sorts
// lexicographically in chronological order, which Prune relies on.
const stampLayout = "20060102_150405"

// DefaultOutputName derives an archive file name from the source directory,
// as {base}_{timestamp}{extension}. A source whose base name is empty or a
// path separator falls back to "backup".
func DefaultOutputName(source string, codec archive.Codec, now time.Time) string {
	base := filepath.Base(filepath.Clean(source))
	if base == "." || base == string(filepath.Separator) || strings.Trim(base, ".") == "" {
		base = "backup"
	}
	return base + "_" + now.Format(stampLayout) + codec.Extension()
}
