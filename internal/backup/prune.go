package backup

import (
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

// DefaultRetentionCount is how many archives of each base name Prune keeps
// when no explicit count is given.
const DefaultRetentionCount = 5

// archiveName matches file names produced by DefaultOutputName: a base
// name, a timestamp, and a recognized archive extension.
var archiveName = regexp.MustCompile(`^(.+)_(\d{8}_\d{6})\.(?:tar(?:\.(?:gz|bz2|xz|zst))?|tgz|tbz2|txz|tzst)$`)

// ArchiveInfo describes one timestamped archive found in a directory.
type ArchiveInfo struct {
	// Path is the archive's full path.
	Path string
	// Base is the source-derived name the archive was grouped under.
	Base string
	// Stamp is the timestamp portion of the file name.
	Stamp string
	// Size is the archive's size in bytes.
	Size int64
}

// ListArchives returns the timestamped archives in dir, newest first. Files
// whose names do not carry a timestamp and archive extension are not
// considered archives and are left alone.
func ListArchives(dir string) ([]ArchiveInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNoArchivesFound, "%s", dir)
		}
		return nil, errors.Wrap(err, "reading archive directory")
	}

	archives := make([]ArchiveInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := archiveName.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Vanished between listing and stat.
			continue
		}
		archives = append(archives, ArchiveInfo{
			Path:  filepath.Join(dir, entry.Name()),
			Base:  m[1],
			Stamp: m[2],
			Size:  info.Size(),
		})
	}

	if len(archives) == 0 {
		return nil, errors.Wrapf(ErrNoArchivesFound, "%s", dir)
	}

	// The stamp layout sorts lexicographically in chronological order.
	slices.SortFunc(archives, func(a, b ArchiveInfo) int {
		if c := strings.Compare(b.Stamp, a.Stamp); c != 0 {
			return c
		}
		return strings.Compare(a.Path, b.Path)
	})

	return archives, nil
}

// Prune removes timestamped archives beyond the retention count, keeping
// the newest keep archives of each base name. With dryRun nothing is
// removed; the returned list names the archives that would have been.
func (e *Engine) Prune(dir string, keep int, dryRun bool) ([]ArchiveInfo, error) {
	if keep < 0 {
		return nil, errors.New("keep must be non-negative")
	}

	archives, err := ListArchives(dir)
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]ArchiveInfo)
	bases := make([]string, 0, len(groups))
	for _, a := range archives {
		if _, ok := groups[a.Base]; !ok {
			bases = append(bases, a.Base)
		}
		groups[a.Base] = append(groups[a.Base], a)
	}
	sort.Strings(bases)

	var removed []ArchiveInfo
	for _, base := range bases {
		group := groups[base]
		// Already sorted newest first, remove everything beyond keep.
		for i := keep; i < len(group); i++ {
			if dryRun {
				e.logger.Debug("would remove archive", "path", group[i].Path)
				removed = append(removed, group[i])
				continue
			}
			if err := os.Remove(group[i].Path); err != nil {
				return removed, errors.Wrapf(err, "removing %s", filepath.Base(group[i].Path))
			}
			e.logger.Debug("removed archive", "path", group[i].Path)
			removed = append(removed, group[i])
		}
	}
	return removed, nil
}
