package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bimmerbailey/driftprep/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "driftprep",
	Short: "Turn raw system logs into normalized feature tables",
	Long: `Driftprep is a CLI tool that preprocesses heterogeneous system logs
(HDFS, Apache, HealthApp, BGL, HPC, syslog and generic timestamped lines)
into a time-indexed, normalized feature table for drift detection.

Each line is parsed into a timestamp and message, turned into numeric
features, aggregated over time windows and normalized with statistics
that persist across runs.

Examples:
  driftprep process --log-type hdfs --window 5min HDFS.log > features.csv
  driftprep process --stats-out stats.json --output out/train.csv train.log
  driftprep process --stats-in stats.json --format json test.log
  driftprep parse --count --log-type apache Apache.log
  driftprep stats --format json app.log
  driftprep watch --stats-in stats.json /var/log/app.log`,
	SilenceUsage: true,
}

// Execute is called by main.main(). It runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.driftprep.yaml)")
	rootCmd.PersistentFlags().StringP("format", "f", "", "output format (csv, text, json, table)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	_ = viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error finding home directory:", err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".driftprep")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("DRIFTPREP")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// setDefaults registers the application defaults with viper.
func setDefaults() {
	viper.SetDefault("format", "")
	viper.SetDefault("verbose", false)
	viper.SetDefault("debug", false)
	viper.SetDefault("log_type", "auto")
	viper.SetDefault("stats.store", "file")
	viper.SetDefault("stats.redis.addr", "localhost:6379")
	viper.SetDefault("stats.redis.key", "driftprep:feature_stats")
}

// loadApp decodes the viper state into the application configuration and
// the validated preprocessing configuration.
func loadApp() (config.App, config.Settings, error) {
	var app config.App
	if err := viper.Unmarshal(&app); err != nil {
		return config.App{}, config.Settings{}, fmt.Errorf("reading configuration: %w", err)
	}

	switch app.Stats.Store {
	case "", "file", "redis":
	default:
		return config.App{}, config.Settings{}, fmt.Errorf("invalid stats.store %q (must be 'file' or 'redis')", app.Stats.Store)
	}

	// Decoded separately so unknown preprocessing keys are rejected.
	settings, err := config.DecodeSettings(viper.GetStringMap("preprocessing"))
	if err != nil {
		return config.App{}, config.Settings{}, err
	}
	app.Preprocessing = settings
	return app, settings, nil
}
