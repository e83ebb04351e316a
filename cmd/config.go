package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bimmerbailey/driftprep/internal/config"
	"github.com/bimmerbailey/driftprep/internal/features"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate preprocessing settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective preprocessing settings as YAML",
	Long: `Print the preprocessing settings after applying defaults, the config
file, environment variables and flags. The output can be saved and read back
with 'config validate'.

Examples:
  driftprep config show
  driftprep config show --window 1min --method zscore > prep.yaml`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a YAML file of preprocessing settings",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigValidate,
}

var configPatternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "List the built-in pattern features",
	Args:  cobra.NoArgs,
	RunE:  runConfigPatterns,
}

func init() {
	configShowCmd.Flags().String("window", "", "window size (e.g. 30s, 5min, 1h)")
	configShowCmd.Flags().String("stride", "", "window stride; defaults to the window size")
	configShowCmd.Flags().String("method", "", "normalization method (minmax, zscore)")
	configShowCmd.Flags().Int("min-logs", 0, "minimum records per window")
	configShowCmd.Flags().Int("max-logs", 0, "maximum records per window")
	configShowCmd.Flags().StringSlice("builtin-patterns", nil, "add built-in pattern features")

	configCmd.AddCommand(configShowCmd, configValidateCmd, configPatternsCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	_, settings, err := loadApp()
	if err != nil {
		return err
	}
	cfg, err := buildConfig(cmd, settings)
	if err != nil {
		return err
	}
	return cfg.WriteYAML(cmd.OutOrStdout())
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	cfg, err := config.Load(f)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	stride := cfg.Stride().String()
	if cfg.Stride() == cfg.Window() {
		stride += " (window size)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (window %s, stride %s, %d features, %s)\n",
		args[0], cfg.Window(), stride, features.NewExtractor(cfg).Len(), cfg.NormalizationMethod())
	return nil
}

func runConfigPatterns(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	for _, name := range features.BuiltInNames() {
		p := features.BuiltInPatterns[name]
		if _, err := fmt.Fprintf(w, "%-12s %s\n  %s\n", name, p.Description, p.Source); err != nil {
			return err
		}
	}
	return nil
}
