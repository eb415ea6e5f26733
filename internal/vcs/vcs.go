// Package vcs detects version control metadata that backups always exclude.
package vcs

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// MetadataDirName is the name of the git metadata directory. Entries with
// this name are excluded from every backup and the exclusion cannot be
// negated by ignore rules.
const MetadataDirName = ".git"

// IsMetadataName reports whether name identifies version control metadata.
// The check applies to the bare entry name, not a path, and covers both the
// .git directory of a normal checkout and the .git pointer file used by
// worktrees and submodules.
func IsMetadataName(name string) bool {
	return name == MetadataDirName
}

// IsRepository reports whether dir is the top level of a git checkout, that
// is, whether it directly contains .git metadata.
func IsRepository(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, MetadataDirName))
	return err == nil
}

// Validate checks that dir is the top level of a git checkout and returns a
// descriptive error when it is not.
func Validate(dir string) error {
	gitPath := filepath.Join(dir, MetadataDirName)
	if _, err := os.Stat(gitPath); err != nil {
		if os.IsNotExist(err) {
			return errors.Newf("not a git repository: %s", dir)
		}
		return errors.Wrap(err, "checking git metadata")
	}
	return nil
}
