package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Version is set at build time
var Version = "v0.1.0"

var (
	cfgFile    string
	verbose    bool
	jsonOutput bool
	metricsOut string

	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "realign",
	Short: "realign - trust scoring and consequences for AI assistant output",
	Long: `realign evaluates text produced by an AI assistant against a set of
behavioural rules, keeps a persistent trust score, and turns that score into
escalating restrictions on later API calls.

Pattern checks always run locally. Capability claims are additionally checked
against an evidence index by a chain of LLM judges, within a daily budget.

Score ladder:
  > 0          normal
  -100 .. 0    model downgrade
  -500 .. -101 context restriction
  < -500       session termination`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		if verbose {
			config = zap.NewDevelopmentConfig()
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logger != nil {
			_ = logger.Sync()
		}
		if metricsOut != "" {
			if err := prometheus.WriteToTextfile(expandHome(metricsOut), prometheus.DefaultGatherer); err != nil {
				return fmt.Errorf("write metrics: %w", err)
			}
		}
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx, typically cancelled on SIGINT
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "realign %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.realign/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
	rootCmd.PersistentFlags().StringVar(&metricsOut, "metrics-out", "", "write Prometheus metrics to this file after the command")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	// Provider keys usually live in .env; missing files are fine
	envFile := os.Getenv("REALIGN_ENV")
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)
	_ = godotenv.Load(filepath.Join(configDir(), ".env"))

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in home directory
		viper.AddConfigPath(configDir())
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match REALIGN_*
	viper.SetEnvPrefix("REALIGN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, key := range envKeys {
		_ = viper.BindEnv(key)
	}

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// envKeys are the settings that can be overridden as REALIGN_<KEY>
var envKeys = []string{
	"ledger.backend",
	"ledger.path",
	"judge.enabled",
	"judge.daily_budget",
	"judge.timeout",
	"judge.cool_down",
	"evidence.backend",
	"evidence.weaviate_host",
	"evidence.weaviate_scheme",
	"evidence.weaviate_class",
	"evidence.postgres_url",
	"evidence.postgres_table",
	"cache.enabled",
	"cache.dir",
	"proxy.http_proxy",
	"proxy.https_proxy",
	"proxy.no_proxy",
	"forward.base_url",
	"forward.timeout",
}

// configDir is ~/.realign
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".realign"
	}
	return filepath.Join(home, ".realign")
}

// expandHome replaces a leading ~ with the user's home directory
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
