package backup

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/opencontainers/go-digest"

	"github.com/thoreinstein/bax/pkg/fileutil"
)

// ChecksumFile computes the SHA-256 digest of a file's contents, honoring
// cancellation between chunks. chunkSize <= 0 uses the default buffer.
func ChecksumFile(ctx context.Context, path string, chunkSize int) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "opening file")
	}
	defer f.Close()

	if chunkSize <= 0 {
		chunkSize = fileutil.DefaultChunkSize
	}
	dg := digest.SHA256.Digester()
	buf := make([]byte, chunkSize)
	if _, err := fileutil.CopyWithContext(ctx, dg.Hash(), f, buf); err != nil {
		return "", errors.Wrapf(err, "hashing %s", path)
	}
	return dg.Digest(), nil
}
