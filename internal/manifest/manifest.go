// Package manifest defines the listing a backup run records about its
// archive and the builder that accumulates it in traversal order.
package manifest

import (
	"encoding/json"
	"io"
	"io/fs"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/opencontainers/go-digest"
)

// FormatVersion identifies the manifest schema this build writes.
const FormatVersion = 1

// FileEntry describes one file selected for the archive.
type FileEntry struct {
	Path     string        `json:"path"`
	Size     int64         `json:"size"`
	Mode     fs.FileMode   `json:"mode"`
	ModTime  time.Time     `json:"mtime"`
	Checksum digest.Digest `json:"checksum,omitempty"`

	// Error marks an entry that was discovered but could not be read. Such
	// entries have no content in the archive body.
	Error string `json:"error,omitempty"`
}

// Failed reports whether the entry is an error marker rather than archived
// content.
func (e FileEntry) Failed() bool {
	return e.Error != ""
}

// Manifest lists what one backup run archived. Files preserves traversal
// order, which matches the order of content entries in the archive body.
type Manifest struct {
	FormatVersion int         `json:"format_version"`
	BaxVersion    string      `json:"bax_version,omitempty"`
	Root          string      `json:"root"`
	CreatedAt     time.Time   `json:"created_at"`
	Codec         string      `json:"codec"`
	FileCount     int         `json:"file_count"`
	TotalBytes    int64       `json:"total_bytes"`
	Files         []FileEntry `json:"files"`
}

// Contents returns the entries that carry content in the archive body, in
// archive order.
func (m *Manifest) Contents() []FileEntry {
	out := make([]FileEntry, 0, len(m.Files))
	for _, e := range m.Files {
		if !e.Failed() {
			out = append(out, e)
		}
	}
	return out
}

// Encode renders the manifest as indented JSON with a trailing newline.
func (m *Manifest) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encoding manifest")
	}
	return append(data, '\n'), nil
}

// Decode parses a manifest produced by Encode.
func Decode(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, errors.Wrap(err, "decoding manifest")
	}
	if m.FormatVersion > FormatVersion {
		return nil, errors.Newf("unsupported manifest format version %d", m.FormatVersion)
	}
	return &m, nil
}
