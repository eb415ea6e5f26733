package archive

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/bax/internal/manifest"
	"github.com/thoreinstein/bax/pkg/fileutil"
)

// ManifestName is the archive entry holding the run manifest. It is always
// the final entry, so readers can treat everything before it as content.
const ManifestName = ".bax/manifest.json"

// Writer streams files into a compressed tar archive. Content is staged to
// a temporary file in the destination directory; nothing appears at the
// final path until Commit succeeds.
type Writer struct {
	final string
	codec Codec
	buf   []byte

	f  *os.File
	zw io.WriteCloser
	tw *tar.Writer

	committed bool
	aborted   bool
}

// Create opens a temporary file next to path and prepares the compression
// and tar streams. chunkSize bounds the copy buffer; zero or negative
// selects the default.
func Create(path string, codec Codec, chunkSize int) (*Writer, error) {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, errors.Wrap(err, "creating temporary archive")
	}

	zw, err := codec.newCompressor(f)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, err
	}

	if chunkSize <= 0 {
		chunkSize = fileutil.DefaultChunkSize
	}

	return &Writer{
		final: path,
		codec: codec,
		buf:   make([]byte, chunkSize),
		f:     f,
		zw:    zw,
		tw:    tar.NewWriter(zw),
	}, nil
}

// Path returns the final archive path.
func (w *Writer) Path() string {
	return w.final
}

// TempPath returns the temporary file the archive is staged to. It is
// gone after Commit or Abort.
func (w *Writer) TempPath() string {
	return w.f.Name()
}

// Codec returns the codec the archive is written with.
func (w *Writer) Codec() Codec {
	return w.codec
}

// WriteFile streams one file's content as the next archive entry. The
// tar header commits to e.Size bytes up front: a source that delivers
// fewer bytes fails the write, and a source that grew since discovery is
// truncated to the recorded size.
func (w *Writer) WriteFile(ctx context.Context, e manifest.FileEntry, r io.Reader) error {
	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     e.Path,
		Size:     e.Size,
		Mode:     int64(e.Mode.Perm()),
		ModTime:  e.ModTime,
		Format:   tar.FormatPAX,
	}
	if err := w.tw.WriteHeader(hdr); err != nil {
		return errors.Wrapf(err, "writing header for %s", e.Path)
	}

	n, err := fileutil.CopyWithContext(ctx, w.tw, io.LimitReader(r, e.Size), w.buf)
	if err != nil {
		return errors.Wrapf(err, "archiving %s", e.Path)
	}
	if n != e.Size {
		return errors.Newf("archiving %s: source shrank to %d bytes, expected %d", e.Path, n, e.Size)
	}
	return nil
}

// WriteManifest appends the manifest as the final archive entry. No file
// entries may be written after it.
func (w *Writer) WriteManifest(m *manifest.Manifest) error {
	data, err := m.Encode()
	if err != nil {
		return err
	}

	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     ManifestName,
		Size:     int64(len(data)),
		Mode:     0o644,
		ModTime:  m.CreatedAt,
		Format:   tar.FormatPAX,
	}
	if err := w.tw.WriteHeader(hdr); err != nil {
		return errors.Wrap(err, "writing manifest header")
	}
	if _, err := w.tw.Write(data); err != nil {
		return errors.Wrap(err, "writing manifest")
	}
	return nil
}

// Commit flushes the tar and compression streams and renames the archive
// into place.
func (w *Writer) Commit() error {
	if w.committed {
		return errors.New("archive already committed")
	}
	if w.aborted {
		return errors.New("archive already aborted")
	}

	if err := w.tw.Close(); err != nil {
		return errors.Wrap(err, "finishing archive")
	}
	if err := w.zw.Close(); err != nil {
		return errors.Wrap(err, "finishing compression stream")
	}
	if err := w.f.Chmod(0o644); err != nil {
		return errors.Wrap(err, "setting archive permissions")
	}
	if err := w.f.Close(); err != nil {
		return errors.Wrap(err, "closing temporary archive")
	}
	if err := os.Rename(w.f.Name(), w.final); err != nil {
		return errors.Wrap(err, "moving archive into place")
	}

	w.committed = true
	return nil
}

// Abort discards the temporary file. After Commit it does nothing, so
// callers can unconditionally defer it.
func (w *Writer) Abort() {
	if w.committed || w.aborted {
		return
	}
	w.aborted = true

	_ = w.tw.Close()
	_ = w.zw.Close()
	_ = w.f.Close()
	_ = os.Remove(w.f.Name())
}
