// Package walker traverses a source tree in deterministic depth-first
// order, applying ignore rules and the version control metadata exclusion
// as it descends.
//
// Directories are visited before their contents and entries within a
// directory are visited in lexicographic name order, so two walks of an
// unchanged tree select the same files in the same order. Excluded
// directories are pruned: their contents are never read, statted, or
// matched.
package walker

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/bax/internal/ignore"
	"github.com/thoreinstein/bax/internal/progress"
	"github.com/thoreinstein/bax/internal/vcs"
)

// DefaultIgnoreFile is the per-directory rule file consulted when no
// override is configured.
const DefaultIgnoreFile = ".gitignore"

// Entry is one file selected for archiving.
type Entry struct {
	// Path is the root-relative slash path, using symlink names rather
	// than their targets.
	Path string

	// Info describes the file, with symlinks resolved.
	Info fs.FileInfo

	// Reason names the negation rule that re-included a file an earlier
	// rule had excluded, as "file:line". Empty for ordinary inclusions;
	// a debugging aid, not used operationally.
	Reason string
}

// WalkFunc receives each selected file in traversal order. Returning an
// error aborts the walk.
type WalkFunc func(e Entry) error

// Walker applies exclusion rules while descending a source tree.
type Walker struct {
	ignoreFile string
	extra      *ignore.RuleSet
	skip       map[string]struct{}
	logger     *slog.Logger
	sink       progress.Sink
}

// Option configures a Walker.
type Option func(*Walker)

// WithIgnoreFile overrides the per-directory rule file name. An empty name
// disables rule file loading entirely.
func WithIgnoreFile(name string) Option {
	return func(w *Walker) {
		w.ignoreFile = name
	}
}

// WithExtraRules adds a root-level rule set evaluated before any rule file,
// so rule files can still override it.
func WithExtraRules(set *ignore.RuleSet) Option {
	return func(w *Walker) {
		w.extra = set
	}
}

// WithSkipPaths names absolute paths the walk silently skips. The backup
// engine uses this to keep the archive being written out of its own
// contents.
func WithSkipPaths(paths ...string) Option {
	return func(w *Walker) {
		for _, p := range paths {
			if p != "" {
				w.skip[filepath.Clean(p)] = struct{}{}
			}
		}
	}
}

// WithLogger sets the logger for exclusion traces and warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Walker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithSink sets the progress sink receiving traversal events.
func WithSink(sink progress.Sink) Option {
	return func(w *Walker) {
		if sink != nil {
			w.sink = sink
		}
	}
}

// New creates a Walker with the given options.
func New(opts ...Option) *Walker {
	w := &Walker{
		ignoreFile: DefaultIgnoreFile,
		skip:       make(map[string]struct{}),
		logger:     slog.Default(),
		sink:       progress.Discard,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// walkState carries the per-run traversal state.
type walkState struct {
	matcher  *ignore.Matcher
	visited  map[string]struct{}
	realRoot string
	fn       WalkFunc
}

// Walk traverses root and calls fn for every selected file. Unreadable
// entries, broken symlinks, and symlinks escaping the source are skipped
// with warnings; an unreadable root and callback errors are fatal.
func (w *Walker) Walk(ctx context.Context, root string, fn WalkFunc) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return errors.Wrap(err, "resolving source path")
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return errors.Wrap(err, "resolving source path")
	}
	info, err := os.Stat(realRoot)
	if err != nil {
		return errors.Wrap(err, "reading source")
	}
	if !info.IsDir() {
		return errors.Newf("not a directory: %s", root)
	}

	st := &walkState{
		matcher:  ignore.NewMatcher(),
		visited:  map[string]struct{}{realRoot: {}},
		realRoot: realRoot,
		fn:       fn,
	}
	if !w.extra.Empty() {
		st.matcher.Push(w.extra)
	}

	return w.walkDir(ctx, st, realRoot, "")
}

// walkDir visits one directory. dir is the canonical absolute path being
// read; rel is the root-relative slash path presented to callers.
func (w *Walker) walkDir(ctx context.Context, st *walkState, dir, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dirents, err := os.ReadDir(dir)
	if err != nil {
		if rel == "" {
			return errors.Wrap(err, "reading source")
		}
		w.warn(rel, errors.Wrap(err, "reading directory"))
		return nil
	}

	mark := st.matcher.Len()
	if w.ignoreFile != "" {
		set, warnings := ignore.Load(filepath.Join(dir, w.ignoreFile), rel)
		for _, warning := range warnings {
			w.warn(joinRel(rel, w.ignoreFile), errors.Newf("%s: %s", warning.Source, warning.Reason))
		}
		if !set.Empty() {
			st.matcher.Push(set)
			defer st.matcher.Truncate(mark)
		}
	}

	for _, dirent := range dirents {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := dirent.Name()
		childRel := joinRel(rel, name)
		childPath := filepath.Join(dir, name)

		if _, ok := w.skip[childPath]; ok {
			w.logger.Debug("skipping output artifact", "path", childRel)
			continue
		}

		// The version control exclusion is built in and cannot be negated.
		if vcs.IsMetadataName(name) {
			w.logger.Debug("excluding version control metadata", "path", childRel)
			w.sink.FileExcluded(childRel)
			continue
		}

		isDir := dirent.IsDir()
		walkPath := childPath
		var info fs.FileInfo

		switch {
		case dirent.Type()&fs.ModeSymlink != 0:
			target, ok := w.resolveSymlink(st, childRel, childPath)
			if !ok {
				continue
			}
			ti, err := os.Stat(target)
			if err != nil {
				w.warn(childRel, errors.Wrap(err, "reading symlink target"))
				continue
			}
			switch {
			case ti.IsDir():
				isDir = true
				walkPath = target
			case ti.Mode().IsRegular():
				isDir = false
				info = ti
			default:
				w.logger.Debug("skipping irregular file", "path", childRel, "mode", ti.Mode().String())
				continue
			}
		case isDir:
			// Directory metadata is not needed; contents decide everything.
		case dirent.Type().IsRegular():
			fi, err := dirent.Info()
			if err != nil {
				w.warn(childRel, errors.Wrap(err, "reading file metadata"))
				continue
			}
			info = fi
		default:
			w.logger.Debug("skipping irregular file", "path", childRel, "mode", dirent.Type().String())
			continue
		}

		decision := st.matcher.Match(childRel, isDir)
		if decision.Excluded {
			w.logger.Debug("excluded", "path", childRel, "rule", decision.Rule.Source)
			w.sink.FileExcluded(childRel)
			continue
		}

		if isDir {
			st.visited[walkPath] = struct{}{}
			if err := w.walkDir(ctx, st, walkPath, childRel); err != nil {
				return err
			}
			continue
		}

		var reason string
		if decision.Rule != nil && decision.Rule.Negate {
			reason = decision.Rule.Source
			w.logger.Debug("reincluded", "path", childRel, "rule", reason)
		}
		w.sink.FileDiscovered(childRel)
		if err := st.fn(Entry{Path: childRel, Info: info, Reason: reason}); err != nil {
			return err
		}
	}

	return nil
}

// resolveSymlink canonicalizes a symlink and enforces the containment and
// revisit policies. ok is false when the entry should be skipped.
func (w *Walker) resolveSymlink(st *walkState, rel, path string) (target string, ok bool) {
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		w.warn(rel, errors.Wrap(err, "resolving symlink"))
		return "", false
	}
	if !within(st.realRoot, target) {
		w.warn(rel, errors.Newf("symlink target outside source: %s", target))
		return "", false
	}
	if _, seen := st.visited[target]; seen {
		w.warn(rel, errors.New("symlink target already visited"))
		return "", false
	}
	return target, true
}

func (w *Walker) warn(rel string, err error) {
	w.logger.Warn("skipping entry", "path", rel, "error", err.Error())
	w.sink.Warning(rel, err)
}

// within reports whether path equals root or lies beneath it. Both paths
// must be canonical.
func within(root, path string) bool {
	return path == root || strings.HasPrefix(path, root+string(os.PathSeparator))
}

// joinRel joins root-relative slash paths without a leading separator at
// the root.
func joinRel(base, name string) string {
	if base == "" {
		return name
	}
	return base + "/" + name
}
