package commands

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/bax/internal/backup"
	"github.com/thoreinstein/bax/internal/errors"
	"github.com/thoreinstein/bax/internal/logging"
)

// pruneKeep holds the value of prune's --keep flag.
var pruneKeep int

// pruneDryRun holds the value of prune's --dry-run flag.
var pruneDryRun bool

func init() {
	pruneCmd.Flags().IntVar(&pruneKeep, "keep", backup.DefaultRetentionCount,
		"number of archives to retain per source name")
	pruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", false,
		"list removable archives without deleting anything")
	rootCmd.AddCommand(pruneCmd)
}

var pruneCmd = &cobra.Command{
	Use:   "prune DIR",
	Short: "Remove old archives from a directory",
	Long: `Prune removes timestamped archives beyond the retention count, keeping the
newest archives of each source name. Only files whose names match the
<source>_<timestamp>.<ext> pattern bax produces are considered; everything
else in the directory is left alone.

By default the 5 most recent archives of each source are kept. Use --keep to
choose a different count and --dry-run to preview what would be removed.`,
	Example: `  # Keep the 5 most recent archives per source
  bax prune /backups

  # Keep only the most recent archive
  bax prune /backups --keep 1

  # Preview without deleting
  bax prune /backups --dry-run

  # Remove every timestamped archive
  bax prune /backups --keep 0

See Also: bax inspect`,
	Args: cobra.ExactArgs(1),
	RunE: runPrune,
}

func runPrune(cmd *cobra.Command, args []string) error {
	if pruneKeep < 0 {
		return errors.NewUserError(errors.New("--keep must be non-negative"), "")
	}

	engine := backup.New(backup.WithLogger(logging.FromContext(cmd.Context())))
	removed, err := engine.Prune(args[0], pruneKeep, pruneDryRun)
	if err != nil && !errors.Is(err, backup.ErrNoArchivesFound) {
		return classifyRunError(err)
	}

	if quiet {
		return nil
	}
	out := cmd.OutOrStdout()

	if len(removed) == 0 {
		fmt.Fprintln(out, "no archives to prune")
		return nil
	}

	var total uint64
	verb := "removed"
	if pruneDryRun {
		verb = "would remove"
	}
	for _, a := range removed {
		total += uint64(a.Size)
		fmt.Fprintf(out, "%s %s (%s)\n", verb, a.Path, humanize.IBytes(uint64(a.Size)))
	}
	fmt.Fprintf(out, "%s %s %d archive(s), %s\n",
		color.GreenString("✓"), verb, len(removed), humanize.IBytes(total))
	return nil
}
