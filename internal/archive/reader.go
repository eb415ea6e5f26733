package archive

import (
	"archive/tar"
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

// Reader iterates the entries of a bax archive in written order.
type Reader struct {
	codec Codec

	f  *os.File
	zr io.ReadCloser
	tr *tar.Reader
}

// Open opens an archive, inferring the codec from the file name.
func Open(path string) (*Reader, error) {
	codec, err := CodecForPath(path)
	if err != nil {
		return nil, err
	}
	return OpenWithCodec(path, codec)
}

// OpenWithCodec opens an archive with an explicit codec, for paths whose
// names carry no codec hint.
func OpenWithCodec(path string, codec Codec) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening archive")
	}

	zr, err := codec.newDecompressor(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	return &Reader{codec: codec, f: f, zr: zr, tr: tar.NewReader(zr)}, nil
}

// Codec returns the codec the archive was opened with.
func (r *Reader) Codec() Codec {
	return r.codec
}

// Next advances to the next entry. It returns io.EOF after the last one.
func (r *Reader) Next() (*tar.Header, error) {
	return r.tr.Next()
}

// Read reads from the current entry's content.
func (r *Reader) Read(p []byte) (int, error) {
	return r.tr.Read(p)
}

// Close closes the decompression stream and the underlying file.
func (r *Reader) Close() error {
	err := r.zr.Close()
	if cerr := r.f.Close(); err == nil {
		err = cerr
	}
	return err
}
