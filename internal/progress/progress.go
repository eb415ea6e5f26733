// Package progress defines the event sink backup runs report into, plus
// sinks for terminals, logs, and tests.
package progress

import "time"

// Summary is the terminal event of a run.
type Summary struct {
	// Files is the number of files written to the archive.
	Files int
	// Bytes is the total content size written, before compression.
	Bytes int64
	// Excluded is the number of entries skipped by ignore rules or the
	// version control exclusion.
	Excluded int
	// Warnings is the number of per-entry problems encountered.
	Warnings int
	// Duration is the wall-clock time of the run.
	Duration time.Duration
}

// Sink receives events as a backup run progresses. Calls arrive from a
// single goroutine in traversal order; implementations that render
// asynchronously must synchronize internally.
type Sink interface {
	// FileDiscovered reports a file selected for archiving.
	FileDiscovered(path string)

	// FileExcluded reports an entry skipped by exclusion rules. For a
	// skipped directory it is called once, not per descendant.
	FileExcluded(path string)

	// FileWritten reports a file fully written to the archive.
	FileWritten(path string, size int64)

	// Warning reports a non-fatal per-entry problem. The engine logs the
	// details; sinks only surface or count them.
	Warning(path string, err error)

	// Done reports the final totals of the run.
	Done(s Summary)
}

// Discard is a Sink that drops every event.
var Discard Sink = discard{}

type discard struct{}

func (discard) FileDiscovered(string) {}

func (discard) FileExcluded(string) {}

func (discard) FileWritten(string, int64) {}

func (discard) Warning(string, error) {}

func (discard) Done(Summary) {}
