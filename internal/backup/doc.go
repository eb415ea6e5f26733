// Package backup implements the bax backup engine: it walks a source
// tree, applies ignore rules, and streams the selected files into a
// compressed tar archive.
//
// # Pipeline
//
// A run is a single-pass pipeline: the tree walker yields files in
// deterministic depth-first order, each file is streamed into the archive
// in bounded chunks, and a manifest entry is recorded per file. Nothing
// larger than one chunk of one file is held in memory.
//
//	engine := backup.New(backup.WithSink(sink))
//	result, err := engine.Run(ctx, backup.Job{
//	    Source: "/home/or/project",
//	    Codec:  archive.Gzip,
//	})
//
// # Atomicity
//
// The archive is staged to a temporary file next to the output path and
// renamed into place only after every entry and the tar trailer are
// flushed. A failed or interrupted run leaves nothing at the final path.
//
// # Detailed mode
//
// With [Job.Detailed], every file's SHA-256 checksum is computed while it
// streams into the archive, and the manifest is appended as the final
// archive entry under [archive.ManifestName]. Detailed archives can later
// be checked with [Verify] and summarized with [Inspect] without
// re-scanning the source tree.
//
// Checksum computation can be spread over multiple workers with
// [WithChecksumWorkers]; results are rejoined into traversal order before
// anything is written, so the archive layout does not depend on worker
// scheduling.
//
// # Error handling
//
// Problems with individual entries (unreadable files, broken symlinks,
// malformed ignore patterns) are logged, reported to the progress sink,
// and recorded in the manifest as error markers; they never fail the run.
// Archive-level failures (disk full, codec errors) abort immediately and
// discard the staged file.
//
// # Retention
//
// [Prune] removes old default-named archives, keeping the newest N per
// source. Only files matching the bax naming convention are considered.
package backup
