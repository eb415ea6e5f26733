package backup

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"

	"github.com/thoreinstein/bax/internal/archive"
	"github.com/thoreinstein/bax/internal/ignore"
	"github.com/thoreinstein/bax/internal/manifest"
	"github.com/thoreinstein/bax/internal/progress"
	"github.com/thoreinstein/bax/internal/vcs"
	"github.com/thoreinstein/bax/internal/walker"
	"github.com/thoreinstein/bax/pkg/fileutil"
)

// Engine runs backup jobs.
type Engine struct {
	logger     *slog.Logger
	sink       progress.Sink
	ignoreFile string
	chunkSize  int
	workers    int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for run diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithSink sets the progress sink receiving run events.
func WithSink(sink progress.Sink) Option {
	return func(e *Engine) {
		if sink != nil {
			e.sink = sink
		}
	}
}

// WithIgnoreFile overrides the per-directory rule file name. An empty
// name disables rule files entirely.
func WithIgnoreFile(name string) Option {
	return func(e *Engine) {
		e.ignoreFile = name
	}
}

// WithChunkSize sets the streaming buffer size in bytes.
func WithChunkSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.chunkSize = n
		}
	}
}

// WithChecksumWorkers sets how many files are checksummed concurrently in
// detailed mode. One worker keeps the run strictly sequential.
func WithChecksumWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// New creates an Engine with the given options.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:     slog.Default(),
		sink:       progress.Discard,
		ignoreFile: walker.DefaultIgnoreFile,
		chunkSize:  fileutil.DefaultChunkSize,
		workers:    1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run carries the state of one backup run.
type run struct {
	engine  *Engine
	job     Job
	source  string
	writer  *archive.Writer
	builder *manifest.Builder
	sink    *countingSink
}

// Run executes a backup job. On success the archive exists at the returned
// path; on any error or cancellation nothing is left at the final path.
func (e *Engine) Run(ctx context.Context, job Job) (*Result, error) {
	start := time.Now()

	source, err := filepath.Abs(job.Source)
	if err != nil {
		return nil, errors.Wrap(err, "resolving source path")
	}
	info, err := os.Stat(source)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrSourceNotFound, "%s", job.Source)
		}
		return nil, errors.Wrap(err, "reading source")
	}
	if !info.IsDir() {
		return nil, errors.Wrapf(ErrNotDirectory, "%s", job.Source)
	}

	output := job.Output
	if output == "" {
		output = DefaultOutputName(source, job.Codec, time.Now())
	}
	output, err = filepath.Abs(output)
	if err != nil {
		return nil, errors.Wrap(err, "resolving output path")
	}

	if vcs.IsRepository(source) {
		e.logger.Debug("source is a version controlled tree", "path", source)
	}

	sink := &countingSink{inner: e.sink}

	extra, warnings := ignore.FromPatterns(job.ExtraIgnore, "--ignore")
	for _, warning := range warnings {
		err := errors.Newf("%s: %s", warning.Source, warning.Reason)
		e.logger.Warn("skipping ignore pattern", "pattern", warning.Line, "error", err.Error())
		sink.Warning(warning.Line, err)
	}

	// Opening the writer before the walk surfaces an unwritable
	// destination immediately and pins down the staging path so the walk
	// can keep the archive out of its own contents.
	w, err := archive.Create(output, job.Codec, e.chunkSize)
	if err != nil {
		return nil, err
	}
	defer w.Abort()

	r := &run{
		engine:  e,
		job:     job,
		source:  source,
		writer:  w,
		builder: manifest.NewBuilder(source, job.Codec.String(), Version),
		sink:    sink,
	}

	walk := walker.New(
		walker.WithIgnoreFile(e.ignoreFile),
		walker.WithExtraRules(extra),
		walker.WithLogger(e.logger),
		walker.WithSink(sink),
		walker.WithSkipPaths(canonicalInParent(output), canonicalInParent(w.TempPath())),
	)

	if job.Detailed && e.workers > 1 {
		err = r.parallel(ctx, walk)
	} else {
		err = r.sequential(ctx, walk)
	}
	if err != nil {
		return nil, err
	}

	m := r.builder.Manifest()
	if job.Detailed {
		if err := w.WriteManifest(m); err != nil {
			return nil, err
		}
	}
	if err := w.Commit(); err != nil {
		return nil, err
	}

	fi, err := os.Stat(output)
	if err != nil {
		return nil, errors.Wrap(err, "reading archive")
	}

	result := &Result{
		ArchivePath: output,
		ArchiveSize: fi.Size(),
		Manifest:    m,
		Files:       sink.files,
		Bytes:       sink.bytes,
		Excluded:    sink.excluded,
		Warnings:    sink.warnings,
		Duration:    time.Since(start),
	}
	sink.Done(progress.Summary{
		Files:    result.Files,
		Bytes:    result.Bytes,
		Excluded: result.Excluded,
		Warnings: result.Warnings,
		Duration: result.Duration,
	})
	e.logger.Debug("run complete",
		"archive", output,
		"files", result.Files,
		"bytes", result.Bytes,
		"excluded", result.Excluded,
		"warnings", result.Warnings,
	)
	return result, nil
}

// sequential streams each file into the archive as the walk yields it,
// checksumming inline when the job is detailed.
func (r *run) sequential(ctx context.Context, walk *walker.Walker) error {
	return walk.Walk(ctx, r.source, func(entry walker.Entry) error {
		return r.writeEntry(ctx, entry.Path, "")
	})
}

// parallel collects the traversal first, checksums files across workers,
// and then writes sequentially so archive order matches traversal order.
func (r *run) parallel(ctx context.Context, walk *walker.Walker) error {
	var paths []string
	if err := walk.Walk(ctx, r.source, func(entry walker.Entry) error {
		paths = append(paths, entry.Path)
		return nil
	}); err != nil {
		return err
	}

	checksums := make([]digest.Digest, len(paths))
	checksumErrs := make([]error, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.engine.workers)
	for i, path := range paths {
		g.Go(func() error {
			sum, err := ChecksumFile(gctx, r.absPath(path), r.engine.chunkSize)
			checksums[i], checksumErrs[i] = sum, err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for i, path := range paths {
		if checksumErrs[i] != nil {
			r.warnEntry(path, checksumErrs[i])
			continue
		}
		if err := r.writeEntry(ctx, path, checksums[i]); err != nil {
			return err
		}
	}
	return nil
}

// writeEntry streams one file into the archive and records its manifest
// entry. A file that cannot be opened is recorded as an error marker and
// skipped; failures while streaming are fatal because the tar entry size
// is already committed.
//
// sum carries a precomputed checksum from parallel mode. When empty and
// the job is detailed, the checksum is computed inline while copying.
func (r *run) writeEntry(ctx context.Context, path string, sum digest.Digest) error {
	f, err := os.Open(r.absPath(path))
	if err != nil {
		r.warnEntry(path, err)
		return nil
	}
	defer f.Close()

	// Fresh metadata: the file may have changed between discovery and now,
	// and the tar header must match what is actually streamed.
	info, err := f.Stat()
	if err != nil {
		r.warnEntry(path, err)
		return nil
	}

	fe := manifest.FileEntry{
		Path:    path,
		Size:    info.Size(),
		Mode:    info.Mode().Perm(),
		ModTime: info.ModTime(),
	}

	var src io.Reader = f
	var dg digest.Digester
	if r.job.Detailed && sum == "" {
		dg = digest.SHA256.Digester()
		src = io.TeeReader(f, dg.Hash())
	}

	if err := r.writer.WriteFile(ctx, fe, src); err != nil {
		return err
	}

	switch {
	case sum != "":
		fe.Checksum = sum
	case dg != nil:
		fe.Checksum = dg.Digest()
	}

	r.builder.Add(fe)
	r.sink.FileWritten(path, fe.Size)
	return nil
}

func (r *run) warnEntry(path string, err error) {
	r.engine.logger.Warn("skipping unreadable file", "path", path, "error", err.Error())
	r.sink.Warning(path, err)
	r.builder.AddError(path, err)
}

func (r *run) absPath(rel string) string {
	return filepath.Join(r.source, filepath.FromSlash(rel))
}

// canonicalInParent resolves symlinks in a path's parent directory so the
// result compares equal to walker paths, which are canonical. The final
// element is kept as-is because it may not exist yet.
func canonicalInParent(path string) string {
	dir, base := filepath.Split(filepath.Clean(path))
	real, err := filepath.EvalSymlinks(filepath.Clean(dir))
	if err != nil {
		return filepath.Clean(path)
	}
	return filepath.Join(real, base)
}

// countingSink forwards events to the user's sink while keeping run
// totals for the Result.
type countingSink struct {
	inner    progress.Sink
	files    int
	excluded int
	warnings int
	bytes    int64
}

func (s *countingSink) FileDiscovered(path string) {
	s.inner.FileDiscovered(path)
}

func (s *countingSink) FileExcluded(path string) {
	s.excluded++
	s.inner.FileExcluded(path)
}

func (s *countingSink) FileWritten(path string, size int64) {
	s.files++
	s.bytes += size
	s.inner.FileWritten(path, size)
}

func (s *countingSink) Warning(path string, err error) {
	s.warnings++
	s.inner.Warning(path, err)
}

func (s *countingSink) Done(summary progress.Summary) {
	s.inner.Done(summary)
}
