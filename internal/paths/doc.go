// Package paths provides cross-platform path resolution for bax's
// user-level files.
//
// # XDG Base Directory Compliance
//
// The package wraps github.com/adrg/xdg for cross-platform XDG Base
// Directory Specification compliance. On Linux and macOS, paths follow XDG
// conventions (~/.config, ~/.local/share, ~/.cache).
//
// # Application Directories
//
// bax keeps its user-level files under a single application directory per
// XDG base:
//
//	paths.ConfigDir() // <ConfigHome>/bax/  - config.yaml
//	paths.DataDir()   // <DataHome>/bax/    - default archive destinations
//	paths.LogDir()    // <CacheHome>/bax/   - log files
//
// # Error Handling
//
// The base-directory accessors never fail; xdg falls back to sensible
// defaults when the environment variables are unset. Home resolution can
// fail, and [ResolveHome] reports that with [ErrHomeDirNotFound].
package paths
