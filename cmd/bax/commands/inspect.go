package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/bax/internal/backup"
	"github.com/thoreinstein/bax/internal/manifest"
)

// inspectJSON holds the value of inspect's --json flag.
var inspectJSON bool

// inspectCodec holds the value of inspect's -c/--compression flag.
var inspectCodec string

func init() {
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "output the manifest as JSON")
	inspectCmd.Flags().StringVarP(&inspectCodec, "compression", "c", "",
		"compression codec when the file name carries no hint: gz, bz2, xz, zst, none")
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect ARCHIVE",
	Short: "List an archive's contents from its embedded manifest",
	Long: `Inspect reads the manifest embedded in an archive and prints what the
archive holds without extracting it: every file's path, size, mode,
modification time, and checksum, plus files that were skipped with warnings
during the backup run.

Only archives created in detailed mode (-v) carry a manifest; inspecting any
other archive fails.`,
	Example: `  # List an archive's contents
  bax inspect backups/project_20260102_150405.tar.gz

  # Machine-readable output
  bax inspect backups/project_20260102_150405.tar.gz --json

See Also: bax verify`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	codec, err := parseCodecFlag(inspectCodec)
	if err != nil {
		return err
	}

	m, err := backup.Inspect(cmd.Context(), args[0], codec)
	if err != nil {
		return classifyReadError(err)
	}

	if inspectJSON {
		data, err := m.Encode()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	printManifest(cmd.OutOrStdout(), args[0], m)
	return nil
}

func printManifest(w io.Writer, path string, m *manifest.Manifest) {
	bold := color.New(color.Bold)

	fmt.Fprintf(w, "%s %s\n", bold.Sprint("Archive:"), path)
	fmt.Fprintf(w, "%s %s  %s %s  %s %d  %s %s\n",
		bold.Sprint("Created:"), m.CreatedAt.Local().Format("2006-01-02 15:04:05"),
		bold.Sprint("Codec:"), m.Codec,
		bold.Sprint("Files:"), m.FileCount,
		bold.Sprint("Total:"), humanize.IBytes(uint64(m.TotalBytes)),
	)
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  PATH\tSIZE\tMODE\tMODIFIED\tCHECKSUM\n")
	for _, f := range m.Files {
		if f.Failed() {
			fmt.Fprintf(tw, "  %s\t%s\t\t\t\n", f.Path, color.YellowString("skipped: %s", f.Error))
			continue
		}
		sum := "-"
		if f.Checksum != "" {
			sum = shortChecksum(f.Checksum.Encoded())
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n",
			f.Path,
			humanize.IBytes(uint64(f.Size)),
			f.Mode,
			f.ModTime.Local().Format("2006-01-02 15:04:05"),
			sum,
		)
	}
	tw.Flush()
}

// shortChecksum abbreviates a hex digest for tabular output the way git
// abbreviates commit hashes.
func shortChecksum(encoded string) string {
	if len(encoded) > 12 {
		return encoded[:12]
	}
	return encoded
}
