package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/thoreinstein/bax/internal/archive"
	"github.com/thoreinstein/bax/internal/config"
	"github.com/thoreinstein/bax/internal/errors"
	"github.com/thoreinstein/bax/internal/paths"
	"github.com/thoreinstein/bax/pkg/fileutil"
)

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configListCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage bax configuration",
	Long: `Manage bax configuration stored in <XDG_CONFIG_HOME>/bax/config.yaml.

Without a subcommand, lists all configuration values.`,
	Example: `  # List all configuration
  bax config

  # Get a specific value
  bax config get compression

  # Set a value
  bax config set compression zst

See Also: bax config get, bax config set`,
	RunE: runConfigList,
}

var configGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Get a configuration value",
	Long: `Get a single configuration value by key. Array values are printed one per
line.`,
	Example: `  # Get the default codec
  bax config get compression

  # Get the per-directory rule file name
  bax config get ignore_file

See Also: bax config set, bax config list`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set a configuration value",
	Long: `Set a configuration value and write the configuration file.

Values are validated before anything is written: compression must name a
known codec, chunk_size and checksum_workers must be positive integers, and
ignore_file must be a bare file name.`,
	Example: `  # Default to zstd compression
  bax config set compression zst

  # Checksum with four workers in detailed mode
  bax config set checksum_workers 4

See Also: bax config get, bax config list`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration",
	Long:  `List all configuration values in YAML format.`,
	Example: `  # List all configuration
  bax config list

See Also: bax config get, bax config set`,
	RunE: runConfigList,
}

// configKeys names every recognized configuration key, in display order.
var configKeys = []string{"version", "compression", "ignore_file", "chunk_size", "checksum_workers"}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]
	out := cmd.OutOrStdout()

	if !viper.IsSet(key) {
		fmt.Fprintln(out, "not set")
		return nil
	}

	switch v := viper.Get(key).(type) {
	case []any:
		for _, item := range v {
			fmt.Fprintln(out, item)
		}
	case []string:
		for _, item := range v {
			fmt.Fprintln(out, item)
		}
	default:
		fmt.Fprintln(out, viper.GetString(key))
	}

	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	switch key {
	case "compression":
		if _, err := archive.ParseCodec(value); err != nil {
			return errors.NewUserError(err, "valid codecs: gz, bz2, xz, zst, none")
		}
		viper.Set(key, value)

	case "ignore_file":
		viper.Set(key, value)

	case "version", "chunk_size", "checksum_workers":
		n, err := strconv.Atoi(value)
		if err != nil {
			return errors.NewUserError(errors.Newf("%s must be an integer", key), "")
		}
		viper.Set(key, n)

	default:
		return errors.NewUserError(errors.Newf("unknown config key %q", key),
			"valid keys: "+strings.Join(configKeys, ", "))
	}

	if err := writeConfig(); err != nil {
		return err
	}

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
	}
	return nil
}

func runConfigList(cmd *cobra.Command, _ []string) error {
	cfg, err := currentConfig()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "marshaling config")
	}

	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

// currentConfig snapshots viper's effective settings as a Config.
func currentConfig() (*config.Config, error) {
	var cfg config.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshaling config")
	}
	return &cfg, nil
}

// writeConfig validates the current settings and writes them to the
// user-level configuration file.
func writeConfig() error {
	cfg, err := currentConfig()
	if err != nil {
		return err
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		return errors.NewUserError(errs[0], "")
	}

	if err := paths.EnsureDir(paths.ConfigDir(), 0o755); err != nil {
		return errors.Wrap(err, "creating config directory")
	}
	if err := fileutil.AtomicWriteYAML(paths.DefaultConfigFile(), cfg); err != nil {
		return errors.Wrap(err, "writing config file")
	}
	return nil
}
