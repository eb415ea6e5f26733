package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/bax/internal/backup"
	"github.com/thoreinstein/bax/internal/errors"
)

// verifyCodec holds the value of verify's -c/--compression flag.
var verifyCodec string

func init() {
	verifyCmd.Flags().StringVarP(&verifyCodec, "compression", "c", "",
		"compression codec when the file name carries no hint: gz, bz2, xz, zst, none")
	rootCmd.AddCommand(verifyCmd)
}

var verifyCmd = &cobra.Command{
	Use:   "verify ARCHIVE",
	Short: "Check an archive against its embedded manifest",
	Long: `Verify reads the whole archive, recomputes every entry's SHA-256 checksum,
and compares names, sizes, and checksums against the embedded manifest.

Only archives created in detailed mode (-v) carry a manifest; verifying any
other archive fails.`,
	Example: `  # Verify an archive
  bax verify backups/project_20260102_150405.tar.gz

  # Verify a file whose name carries no codec hint
  bax verify snapshot.backup -c zst

See Also: bax inspect`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	codec, err := parseCodecFlag(verifyCodec)
	if err != nil {
		return err
	}

	report, err := backup.Verify(cmd.Context(), args[0], codec)
	if err != nil {
		return classifyReadError(err)
	}

	out := cmd.OutOrStdout()
	if report.OK() {
		if !quiet {
			fmt.Fprintf(out, "%s %s: %d files verified\n",
				color.GreenString("✓"), report.ArchivePath, report.Verified)
		}
		return nil
	}

	fmt.Fprintf(out, "%s %s: %d files verified, %d mismatches\n",
		color.RedString("✗"), report.ArchivePath, report.Verified, len(report.Mismatches))
	for _, m := range report.Mismatches {
		fmt.Fprintf(out, "  %s\n", m)
	}
	return errors.NewExitError(
		errors.Wrapf(backup.ErrVerifyFailed, "%s", report.ArchivePath),
		errors.ExitUser,
	)
}
