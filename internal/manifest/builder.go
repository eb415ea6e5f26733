package manifest

import "time"

// Builder accumulates manifest entries in traversal order.
type Builder struct {
	m Manifest
}

// NewBuilder starts a manifest for one run. codec names the archive codec
// and version the producing build.
func NewBuilder(root, codec, version string) *Builder {
	return &Builder{m: Manifest{
		FormatVersion: FormatVersion,
		BaxVersion:    version,
		Root:          root,
		CreatedAt:     time.Now().UTC(),
		Codec:         codec,
		Files:         []FileEntry{},
	}}
}

// Add appends an archived entry.
func (b *Builder) Add(e FileEntry) {
	b.m.Files = append(b.m.Files, e)
}

// AddError appends an error marker for a file that vanished or became
// unreadable between discovery and read.
func (b *Builder) AddError(path string, err error) {
	b.m.Files = append(b.m.Files, FileEntry{Path: path, Error: err.Error()})
}

// Len returns the number of recorded entries, error markers included.
func (b *Builder) Len() int {
	return len(b.m.Files)
}

// Manifest finalizes the file count and byte total and returns the
// accumulated manifest. The builder must not be reused afterwards.
func (b *Builder) Manifest() *Manifest {
	b.m.FileCount = 0
	b.m.TotalBytes = 0
	for _, e := range b.m.Files {
		if e.Failed() {
			continue
		}
		b.m.FileCount++
		b.m.TotalBytes += e.Size
	}
	return &b.m
}
