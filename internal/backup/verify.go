package backup

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/opencontainers/go-digest"

	"github.com/thoreinstein/bax/internal/archive"
	"github.com/thoreinstein/bax/internal/manifest"
	"github.com/thoreinstein/bax/pkg/fileutil"
)

// Mismatch kinds reported by Verify.
const (
	// MismatchPath means the archive holds a different file at this
	// position than the manifest lists.
	MismatchPath = "path"
	// MismatchSize means the entry's size differs from the manifest.
	MismatchSize = "size"
	// MismatchChecksum means the entry's contents hash differently than
	// recorded.
	MismatchChecksum = "checksum"
	// MismatchMissing means the manifest lists a file the archive lacks.
	MismatchMissing = "missing"
	// MismatchExtra means the archive holds a file the manifest does not
	// list.
	MismatchExtra = "extra"
)

// Mismatch describes one disagreement between an archive and its manifest.
type Mismatch struct {
	Path   string
	Kind   string
	Detail string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: %s: %s", m.Path, m.Kind, m.Detail)
}

// VerifyReport is the outcome of checking an archive against its embedded
// manifest.
type VerifyReport struct {
	ArchivePath string
	Manifest    *manifest.Manifest
	// Verified counts entries that matched in every respect.
	Verified int
	// Mismatches lists every disagreement found. An empty list means the
	// archive is intact.
	Mismatches []Mismatch
}

// OK reports whether the archive matched its manifest completely.
func (r *VerifyReport) OK() bool {
	return len(r.Mismatches) == 0
}

// archiveEntry is one regular entry as read back from an archive.
type archiveEntry struct {
	name string
	size int64
	sum  digest.Digest
}

// Verify reads an archive end to end and checks every entry against the
// embedded manifest: same files in the same order, same sizes, same
// checksums. It fails with ErrNoManifest on archives written without
// detailed mode. Mismatches are collected in the report rather than
// returned as errors, so one corrupt entry does not hide the rest.
func Verify(ctx context.Context, path string, codec archive.Codec) (*VerifyReport, error) {
	r, err := openArchive(path, codec)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var (
		entries      []archiveEntry
		manifestData []byte
		buf          = make([]byte, fileutil.DefaultChunkSize)
	)
	for {
		hdr, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading archive")
		}

		dg := digest.SHA256.Digester()
		var dst io.Writer = dg.Hash()
		var payload *bytes.Buffer
		if hdr.Name == archive.ManifestName {
			payload = &bytes.Buffer{}
			dst = io.MultiWriter(dst, payload)
		}
		if _, err := fileutil.CopyWithContext(ctx, dst, r, buf); err != nil {
			return nil, errors.Wrapf(err, "reading %s", hdr.Name)
		}

		entries = append(entries, archiveEntry{name: hdr.Name, size: hdr.Size, sum: dg.Digest()})
		if payload != nil {
			manifestData = payload.Bytes()
		}
	}

	if len(entries) == 0 || entries[len(entries)-1].name != archive.ManifestName {
		return nil, errors.Wrapf(ErrNoManifest, "%s", path)
	}
	m, err := manifest.Decode(bytes.NewReader(manifestData))
	if err != nil {
		return nil, err
	}

	report := &VerifyReport{ArchivePath: path, Manifest: m}
	contents := entries[:len(entries)-1]
	want := m.Contents()

	n := min(len(contents), len(want))
	for i := range n {
		got, exp := contents[i], want[i]
		switch {
		case got.name != exp.Path:
			report.Mismatches = append(report.Mismatches, Mismatch{
				Path:   exp.Path,
				Kind:   MismatchPath,
				Detail: fmt.Sprintf("archive holds %q at this position", got.name),
			})
		case got.size != exp.Size:
			report.Mismatches = append(report.Mismatches, Mismatch{
				Path:   exp.Path,
				Kind:   MismatchSize,
				Detail: fmt.Sprintf("archive has %d bytes, manifest records %d", got.size, exp.Size),
			})
		case exp.Checksum != "" && got.sum != exp.Checksum:
			report.Mismatches = append(report.Mismatches, Mismatch{
				Path:   exp.Path,
				Kind:   MismatchChecksum,
				Detail: fmt.Sprintf("archive contents hash to %s, manifest records %s", got.sum, exp.Checksum),
			})
		default:
			report.Verified++
		}
	}
	for _, exp := range want[n:] {
		report.Mismatches = append(report.Mismatches, Mismatch{
			Path:   exp.Path,
			Kind:   MismatchMissing,
			Detail: "listed in the manifest but absent from the archive",
		})
	}
	for _, got := range contents[n:] {
		report.Mismatches = append(report.Mismatches, Mismatch{
			Path:   got.name,
			Kind:   MismatchExtra,
			Detail: "present in the archive but not in the manifest",
		})
	}
	return report, nil
}

// Inspect reads the manifest out of an archive without extracting it. Like
// Verify it fails with ErrNoManifest when the archive carries none.
func Inspect(ctx context.Context, path string, codec archive.Codec) (*manifest.Manifest, error) {
	r, err := openArchive(path, codec)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var data []byte
	last := ""
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hdr, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading archive")
		}
		last = hdr.Name
		if hdr.Name == archive.ManifestName {
			data, err = io.ReadAll(r)
			if err != nil {
				return nil, errors.Wrap(err, "reading manifest")
			}
		}
	}
	if last != archive.ManifestName {
		return nil, errors.Wrapf(ErrNoManifest, "%s", path)
	}
	return manifest.Decode(bytes.NewReader(data))
}

func openArchive(path string, codec archive.Codec) (*archive.Reader, error) {
	if codec == "" {
		return archive.Open(path)
	}
	return archive.OpenWithCodec(path, codec)
}
