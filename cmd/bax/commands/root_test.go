package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/thoreinstein/bax/internal/archive"
	"github.com/thoreinstein/bax/internal/backup"
	"github.com/thoreinstein/bax/internal/config"
	"github.com/thoreinstein/bax/internal/errors"
	"github.com/thoreinstein/bax/internal/logging"
	"github.com/thoreinstein/bax/internal/progress"
)

// isolateEnv points the working directory and config search path at empty
// temp directories and loads default configuration, so tests never touch a
// real user config and default archive names land in a scratch directory.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Cleanup(xdg.Reload)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	xdg.Reload()
	viper.Reset()
	config.Init()

	cfg = config.Default()
	configLoadErr = nil
	t.Cleanup(func() {
		cfg = nil
		viper.Reset()
	})
}

// captureOut routes a command's output into a buffer for the duration of
// the test.
func captureOut(t *testing.T, c *cobra.Command) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	c.SetOut(buf)
	c.SetErr(buf)
	c.SetContext(t.Context())
	t.Cleanup(func() {
		c.SetOut(nil)
		c.SetErr(nil)
	})
	return buf
}

// setFlag sets a command's flag as if it had been passed on the command
// line and restores the default when the test ends.
func setFlag(t *testing.T, c *cobra.Command, name, value string) {
	t.Helper()
	f := c.Flags().Lookup(name)
	if f == nil {
		// Persistent flags merge into Flags() only once the command runs.
		f = c.PersistentFlags().Lookup(name)
	}
	if f == nil {
		t.Fatalf("no such flag: --%s", name)
	}
	if err := f.Value.Set(value); err != nil {
		t.Fatalf("setting --%s=%s: %v", name, value, err)
	}
	f.Changed = true
	t.Cleanup(func() {
		if err := f.Value.Set(f.DefValue); err != nil {
			t.Fatalf("restoring --%s: %v", name, err)
		}
		f.Changed = false
	})
}

// writeTestTree lays out files under root from slash-separated relative paths.
func writeTestTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

// assertCodec fails the test unless the file decodes with the given codec.
func assertCodec(t *testing.T, path string, codec archive.Codec) {
	t.Helper()
	r, err := archive.OpenWithCodec(path, codec)
	if err != nil {
		t.Fatalf("opening %s as %s: %v", path, codec, err)
	}
	r.Close()
}

// makeArchive backs up a small fixture tree and returns the archive path.
func makeArchive(t *testing.T, detailed bool) string {
	t.Helper()
	source := t.TempDir()
	writeTestTree(t, source, map[string]string{
		"a.txt":      "alpha",
		"sub/b.txt":  "beta",
		".gitignore": "skip/\n",
		"skip/c.txt": "gamma",
	})

	out := filepath.Join(t.TempDir(), "proj.tar.gz")
	engine := backup.New(backup.WithLogger(logging.NewDiscard()))
	if _, err := engine.Run(t.Context(), backup.Job{
		Source:   source,
		Output:   out,
		Codec:    archive.Gzip,
		Detailed: detailed,
	}); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestRunBackup_CreatesArchive(t *testing.T) {
	isolateEnv(t)
	buf := captureOut(t, rootCmd)

	source := t.TempDir()
	writeTestTree(t, source, map[string]string{
		"a.txt":      "alpha",
		".gitignore": "skip/\n",
		"skip/b.txt": "beta",
	})
	dest := filepath.Join(t.TempDir(), "out.tar.gz")
	setFlag(t, rootCmd, "output", dest)

	if err := runBackup(rootCmd, []string{source}); err != nil {
		t.Fatalf("runBackup() error = %v", err)
	}

	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("archive not created: %v", err)
	}
	if got := buf.String(); !strings.Contains(got, "backup created") {
		t.Errorf("summary missing from output: %q", got)
	}
}

func TestRunBackup_NoArgsShowsHelp(t *testing.T) {
	isolateEnv(t)
	buf := captureOut(t, rootCmd)

	if err := runBackup(rootCmd, nil); err != nil {
		t.Fatalf("runBackup() error = %v", err)
	}
	if !strings.Contains(buf.String(), "Usage:") {
		t.Errorf("expected help output, got %q", buf.String())
	}
}

func TestRunBackup_QuietSuppressesSummary(t *testing.T) {
	isolateEnv(t)
	buf := captureOut(t, rootCmd)
	setFlag(t, rootCmd, "quiet", "true")

	source := t.TempDir()
	writeTestTree(t, source, map[string]string{"a.txt": "alpha"})
	setFlag(t, rootCmd, "output", filepath.Join(t.TempDir(), "out.tar"))

	if err := runBackup(rootCmd, []string{source}); err != nil {
		t.Fatalf("runBackup() error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("quiet run wrote output: %q", buf.String())
	}
}

func TestRunBackup_OptionsFilePrecedence(t *testing.T) {
	isolateEnv(t)
	captureOut(t, rootCmd)

	source := t.TempDir()
	writeTestTree(t, source, map[string]string{
		"a.txt":     "alpha",
		".bax.toml": `compression = "xz"` + "\n",
	})

	// The options file overrides the configured default.
	dest := filepath.Join(t.TempDir(), "opts.tar.xz")
	setFlag(t, rootCmd, "output", dest)
	if err := runBackup(rootCmd, []string{source}); err != nil {
		t.Fatalf("runBackup() error = %v", err)
	}
	assertCodec(t, dest, archive.Xz)

	// An explicit flag overrides the options file.
	dest = filepath.Join(t.TempDir(), "flag.tar.gz")
	setFlag(t, rootCmd, "output", dest)
	setFlag(t, rootCmd, "compression", "gz")
	if err := runBackup(rootCmd, []string{source}); err != nil {
		t.Fatalf("runBackup() error = %v", err)
	}
	assertCodec(t, dest, archive.Gzip)
}

func TestRunBackup_InvalidOptionsFile(t *testing.T) {
	isolateEnv(t)
	captureOut(t, rootCmd)

	source := t.TempDir()
	writeTestTree(t, source, map[string]string{
		".bax.toml": "compression = [not toml\n",
	})

	err := runBackup(rootCmd, []string{source})
	if err == nil {
		t.Fatal("expected error for malformed options file")
	}
	var exit *errors.ExitError
	if !errors.As(err, &exit) || exit.Code != errors.ExitUser {
		t.Errorf("want user error, got %v", err)
	}
}

func TestRunBackup_MissingSource(t *testing.T) {
	isolateEnv(t)
	captureOut(t, rootCmd)

	err := runBackup(rootCmd, []string{filepath.Join(t.TempDir(), "absent")})
	if err == nil {
		t.Fatal("expected error for missing source")
	}
	var exit *errors.ExitError
	if !errors.As(err, &exit) {
		t.Fatalf("want ExitError, got %T", err)
	}
	if exit.Code != errors.ExitUser {
		t.Errorf("exit code = %d, want %d", exit.Code, errors.ExitUser)
	}
}

func TestClassifyRunError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"source not found", backup.ErrSourceNotFound, errors.ExitUser},
		{"not a directory", backup.ErrNotDirectory, errors.ExitUser},
		{"permission denied", os.ErrPermission, errors.ExitUser},
		{"io failure", errors.New("disk full"), errors.ExitSystem},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var exit *errors.ExitError
			if !errors.As(classifyRunError(tt.err), &exit) {
				t.Fatal("want ExitError")
			}
			if exit.Code != tt.want {
				t.Errorf("exit code = %d, want %d", exit.Code, tt.want)
			}
		})
	}
}

func TestClassifyRunError_CancellationPassesThrough(t *testing.T) {
	err := classifyRunError(context.Canceled)
	var exit *errors.ExitError
	if errors.As(err, &exit) {
		t.Errorf("cancellation should not become an ExitError, got code %d", exit.Code)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled, got %v", err)
	}
}

func TestSelectSink(t *testing.T) {
	isolateEnv(t)
	captureOut(t, rootCmd)

	if sink := selectSink(rootCmd, false); sink != progress.Discard {
		t.Errorf("plain run sink = %T, want Discard", sink)
	}
	// Detailed run writing to a buffer is not a terminal, so progress goes
	// to the log.
	if _, ok := selectSink(rootCmd, true).(*progress.Log); !ok {
		t.Errorf("detailed non-TTY sink = %T, want *progress.Log", selectSink(rootCmd, true))
	}

	setFlag(t, rootCmd, "quiet", "true")
	if sink := selectSink(rootCmd, true); sink != progress.Discard {
		t.Errorf("quiet sink = %T, want Discard", sink)
	}
}

func TestSetupLogging_QuietVerboseConflict(t *testing.T) {
	isolateEnv(t)
	captureOut(t, rootCmd)
	setFlag(t, rootCmd, "quiet", "true")
	setFlag(t, rootCmd, "verbose", "true")

	err := setupLogging(rootCmd)
	if err == nil {
		t.Fatal("expected error for --quiet with --verbose")
	}
	var exit *errors.ExitError
	if !errors.As(err, &exit) || exit.Code != errors.ExitUser {
		t.Errorf("want user error, got %v", err)
	}
}

func TestExecute_ExitCodes(t *testing.T) {
	isolateEnv(t)

	// Stderr carries error reports; keep it out of the test log.
	oldStderr := os.Stderr
	devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	os.Stderr = devNull
	t.Cleanup(func() {
		os.Stderr = oldStderr
		devNull.Close()
	})

	rootCmd.SetArgs([]string{"verify", filepath.Join(t.TempDir(), "absent.tar.gz")})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	if code := Execute(t.Context()); code != errors.ExitUser {
		t.Errorf("Execute() = %d, want %d", code, errors.ExitUser)
	}
}
