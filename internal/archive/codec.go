// Package archive writes and reads bax backup archives: a tar container
// wrapped in a selectable compression codec, staged to a temporary file
// and renamed into place only on success.
package archive

import (
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Codec selects the compression applied around the tar container.
type Codec string

const (
	Gzip  Codec = "gz"
	Bzip2 Codec = "bz2"
	Xz    Codec = "xz"
	Zstd  Codec = "zst"
	None  Codec = "none"
)

// ErrUnknownCodec reports a codec name or file extension this build does
// not support.
var ErrUnknownCodec = errors.New("unknown compression codec")

// ParseCodec resolves a user-facing codec name, accepting the common
// aliases. An empty name selects no compression.
func ParseCodec(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gz", "gzip":
		return Gzip, nil
	case "bz2", "bzip2":
		return Bzip2, nil
	case "xz":
		return Xz, nil
	case "zst", "zstd":
		return Zstd, nil
	case "none", "":
		return None, nil
	}
	return "", errors.Wrapf(ErrUnknownCodec, "%q", name)
}

// Extension returns the conventional file extension for archives using
// this codec, including the tar suffix.
func (c Codec) Extension() string {
	switch c {
	case Gzip:
		return ".tar.gz"
	case Bzip2:
		return ".tar.bz2"
	case Xz:
		return ".tar.xz"
	case Zstd:
		return ".tar.zst"
	default:
		return ".tar"
	}
}

// String returns the canonical codec name.
func (c Codec) String() string {
	return string(c)
}

// CodecForPath infers the codec from an archive file name.
func CodecForPath(path string) (Codec, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return Gzip, nil
	case strings.HasSuffix(lower, ".tar.bz2"), strings.HasSuffix(lower, ".tbz2"):
		return Bzip2, nil
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return Xz, nil
	case strings.HasSuffix(lower, ".tar.zst"), strings.HasSuffix(lower, ".tzst"):
		return Zstd, nil
	case strings.HasSuffix(lower, ".tar"):
		return None, nil
	}
	return "", errors.Wrapf(ErrUnknownCodec, "no codec extension on %q", path)
}

// newCompressor wraps w in the codec's compression stream. The returned
// writer must be closed to flush the stream; closing it does not close w.
//
// Encoders are configured for deterministic output: no embedded
// timestamps and single-threaded compression where concurrency would
// change framing.
func (c Codec) newCompressor(w io.Writer) (io.WriteCloser, error) {
	switch c {
	case Gzip:
		return gzip.NewWriter(w), nil
	case Bzip2:
		zw, err := bzip2.NewWriter(w, &bzip2.WriterConfig{Level: bzip2.DefaultCompression})
		if err != nil {
			return nil, errors.Wrap(err, "creating bzip2 writer")
		}
		return zw, nil
	case Xz:
		zw, err := xz.NewWriter(w)
		if err != nil {
			return nil, errors.Wrap(err, "creating xz writer")
		}
		return zw, nil
	case Zstd:
		zw, err := zstd.NewWriter(w, zstd.WithEncoderConcurrency(1))
		if err != nil {
			return nil, errors.Wrap(err, "creating zstd writer")
		}
		return zw, nil
	case None:
		return nopWriteCloser{w}, nil
	}
	return nil, errors.Wrapf(ErrUnknownCodec, "%q", string(c))
}

// newDecompressor wraps r in the codec's decompression stream. Closing
// the returned reader does not close r.
func (c Codec) newDecompressor(r io.Reader) (io.ReadCloser, error) {
	switch c {
	case Gzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "opening gzip stream")
		}
		return zr, nil
	case Bzip2:
		zr, err := bzip2.NewReader(r, nil)
		if err != nil {
			return nil, errors.Wrap(err, "opening bzip2 stream")
		}
		return zr, nil
	case Xz:
		zr, err := xz.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "opening xz stream")
		}
		return io.NopCloser(zr), nil
	case Zstd:
		zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, errors.Wrap(err, "opening zstd stream")
		}
		return zr.IOReadCloser(), nil
	case None:
		return io.NopCloser(r), nil
	}
	return nil, errors.Wrapf(ErrUnknownCodec, "%q", string(c))
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error {
	return nil
}
