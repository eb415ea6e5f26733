package fileutil

import (
	"context"
	"io"

	"github.com/thoreinstein/bax/internal/errors"
)

// DefaultChunkSize is the buffer size used for streaming copies when the
// caller does not supply one.
const DefaultChunkSize = 32 * 1024

// CopyWithContext copies from src to dst in buf-sized chunks, checking for
// context cancellation before each read. It returns the number of bytes
// written. If buf is nil, a DefaultChunkSize buffer is allocated.
//
// Unlike io.Copy it never uses the ReaderFrom/WriterTo fast paths, so
// cancellation latency is bounded by one chunk.
func CopyWithContext(ctx context.Context, dst io.Writer, src io.Reader, buf []byte) (int64, error) {
	if buf == nil {
		buf = make([]byte, DefaultChunkSize)
	}

	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			w, writeErr := dst.Write(buf[:n])
			written += int64(w)
			if writeErr != nil {
				return written, errors.Wrap(writeErr, "writing chunk")
			}
			if w != n {
				return written, io.ErrShortWrite
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return written, nil
			}
			return written, errors.Wrap(readErr, "reading chunk")
		}
	}
}
