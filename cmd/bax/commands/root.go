// Package commands implements the CLI commands for bax.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/bax/internal/archive"
	"github.com/thoreinstein/bax/internal/backup"
	"github.com/thoreinstein/bax/internal/config"
	"github.com/thoreinstein/bax/internal/errors"
	"github.com/thoreinstein/bax/internal/logging"
	"github.com/thoreinstein/bax/internal/progress"
)

// output holds the value of the -o/--output flag.
var output string

// compression holds the value of the -c/--compression flag. The effective
// default comes from configuration.
var compression string

// verbose holds the value of the -v/--verbose flag. On a backup run it
// selects detailed mode; everywhere it raises logging to debug level.
var verbose bool

// quiet holds the value of the -q/--quiet flag.
var quiet bool

// logFormat holds the value of the --log-format flag.
var logFormat string

// logFile holds the path to the log file.
var logFile string

// configFile holds the value of the --config flag.
var configFile string

// noColor holds the value of the --no-color flag.
var noColor bool

// cfg is the loaded configuration; configLoadErr holds any error that
// occurred while loading it.
var (
	cfg           *config.Config
	configLoadErr error
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"detailed mode: checksums, embedded manifest, progress output, debug logs")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"suppress non-error output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text",
		"log format: text, json")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"write logs to file in JSON format")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default <XDG_CONFIG_HOME>/bax/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false,
		"disable colored output")

	rootCmd.Flags().StringVarP(&output, "output", "o", "",
		"archive path (default <source>_<timestamp>.tar[.<ext>] in the working directory)")
	rootCmd.Flags().StringVarP(&compression, "compression", "c", "",
		"compression codec: gz, bz2, xz, zst, none (default from config)")

	rootCmd.SetVersionTemplate("bax version {{.Version}}\n")

	// Silence errors and usage so Execute controls error output
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
}

func initConfig() {
	config.Init()
	// Capture load errors for later reporting
	cfg, configLoadErr = config.Load(configFile)
}

var rootCmd = &cobra.Command{
	Use:   "bax SOURCE",
	Short: "Git-aware directory backup archiver",
	Long: `bax archives a directory tree into a single compressed tar file,
honoring .gitignore-style exclusion rules the same way git does: per-directory
rule files, negation patterns, and directory pruning. Version control metadata
(.git) is always excluded.

In detailed mode (-v) every file is checksummed with SHA-256 and a manifest is
embedded in the archive, which 'bax verify' and 'bax inspect' read back.

The archive is staged to a temporary file and renamed into place only on
success, so an interrupted or failed run never leaves a partial archive at the
output path.`,
	Example: `  # Back up a project into ./project_<timestamp>.tar.gz
  bax ~/src/project

  # Choose the destination and codec
  bax ~/src/project -o /backups/project.tar.zst -c zst

  # Detailed mode: checksums, embedded manifest, progress
  bax ~/src/project -v

  # Check an archive against its embedded manifest
  bax verify /backups/project.tar.zst

See Also: bax verify, bax inspect, bax prune`,
	Args: cobra.MaximumNArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor {
			color.NoColor = true
		}
		if err := setupLogging(cmd); err != nil {
			return err
		}
		// Skip config checking for help and version, and for the config
		// command itself so a broken file can be inspected and repaired.
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}
		if cmd == configCmd || cmd.Parent() == configCmd {
			return nil
		}
		if configLoadErr != nil {
			return errors.NewConfigError(configLoadErr)
		}
		return nil
	},
	RunE: runBackup,
}

// setupLogging configures the default logger based on the verbosity flags.
func setupLogging(cmd *cobra.Command) error {
	if quiet && verbose {
		return errors.NewUserError(nil, "cannot use --quiet and --verbose together")
	}

	level := slog.LevelInfo
	switch {
	case quiet:
		level = slog.LevelError
	case verbose:
		level = slog.LevelDebug
	default:
		// CLI flags take precedence, but if not set, check env var
		if val, ok := os.LookupEnv("BAX_DEBUG"); ok && (val == "1" || val == "true") {
			level = slog.LevelDebug
		}
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var primaryHandler slog.Handler
	switch logging.Format(logFormat) {
	case logging.FormatJSON:
		primaryHandler = slog.NewJSONHandler(cmd.ErrOrStderr(), opts)
	default:
		primaryHandler = logging.NewHandler(cmd.ErrOrStderr(), opts)
	}

	handlers := []slog.Handler{primaryHandler}

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return errors.NewUserError(err, "failed to open log file")
		}
		// File output uses JSON format
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{
			Level: level,
		}))
	}

	var handler slog.Handler
	if len(handlers) > 1 {
		handler = logging.NewMultiHandler(handlers...)
	} else {
		handler = handlers[0]
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(logging.NewContext(ctx, logger))

	return nil
}

func runBackup(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}
	source := args[0]
	logger := logging.FromContext(cmd.Context())

	// Flags override the tree-local options file, which overrides the
	// user-level configuration.
	codecName := cfg.Compression
	detailed := verbose
	var extraIgnore []string

	opts, err := config.LoadOptions(source)
	if err != nil {
		return errors.NewUserError(err, "fix or remove "+config.OptionsFileName)
	}
	if opts != nil {
		if opts.Compression != "" {
			codecName = opts.Compression
		}
		if opts.Detailed != nil {
			detailed = *opts.Detailed
		}
		extraIgnore = opts.Ignore
	}
	if cmd.Flags().Changed("compression") {
		codecName = compression
	}
	if cmd.Flags().Changed("verbose") {
		detailed = verbose
	}

	codec, err := archive.ParseCodec(codecName)
	if err != nil {
		return errors.NewUserError(err, "valid codecs: gz, bz2, xz, zst, none")
	}

	engine := backup.New(
		backup.WithLogger(logger),
		backup.WithSink(selectSink(cmd, detailed)),
		backup.WithIgnoreFile(cfg.IgnoreFile),
		backup.WithChunkSize(cfg.ChunkSize),
		backup.WithChecksumWorkers(cfg.ChecksumWorkers),
	)

	result, err := engine.Run(cmd.Context(), backup.Job{
		Source:      source,
		Output:      output,
		Codec:       codec,
		Detailed:    detailed,
		ExtraIgnore: extraIgnore,
	})
	if err != nil {
		return classifyRunError(err)
	}

	if !quiet {
		printRunSummary(cmd.OutOrStdout(), result)
	}
	return nil
}

// classifyRunError assigns the exit class of a failed run: bad inputs and
// unwritable destinations are user errors, everything else is an archive or
// I/O failure.
func classifyRunError(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, backup.ErrSourceNotFound),
		errors.Is(err, backup.ErrNotDirectory),
		errors.Is(err, os.ErrNotExist),
		errors.Is(err, os.ErrPermission):
		return errors.NewExitError(err, errors.ExitUser)
	default:
		return errors.NewExitError(err, errors.ExitSystem)
	}
}

// selectSink picks the progress surface for a run: nothing unless the run
// is detailed, a self-updating line on a terminal, log records otherwise.
func selectSink(cmd *cobra.Command, detailed bool) progress.Sink {
	if quiet || !detailed {
		return progress.Discard
	}
	out := cmd.OutOrStdout()
	if logging.IsTTY(out) {
		return progress.NewTerminal(out)
	}
	return progress.NewLog(logging.FromContext(cmd.Context()))
}

func printRunSummary(w io.Writer, result *backup.Result) {
	fmt.Fprintf(w, "%s backup created: %s (%d files, %s) in %s\n",
		color.GreenString("✓"),
		result.ArchivePath,
		result.Files,
		humanize.IBytes(uint64(result.ArchiveSize)),
		result.Duration.Round(time.Millisecond),
	)
	if result.Warnings > 0 {
		fmt.Fprintln(w, color.YellowString("  %d file(s) skipped with warnings, see log output", result.Warnings))
	}
}

// Execute runs the root command and maps the outcome to a process exit
// code: 0 on success, 1 for user errors, 2 for system failures, 130 when
// interrupted.
func Execute(ctx context.Context) int {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return errors.ExitSuccess
	}

	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "interrupted")
		return errors.ExitInterrupt
	}

	fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("error:"), err)
	var exit *errors.ExitError
	if errors.As(err, &exit) {
		if exit.Suggestion != "" {
			fmt.Fprintln(os.Stderr, exit.Suggestion)
		}
		return exit.Code
	}
	return errors.ExitUser
}
