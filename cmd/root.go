package cmd

import (
	"fmt"
	"os"

	"github.com/billm/pezbus/internal/config"
	"github.com/billm/pezbus/internal/logger"
	"github.com/spf13/cobra"
)

var (
	// CLI flags
	cfgFile   string
	logLevel  string
	logFormat string
	logOutput string
	traceFlag bool

	// Global variables
	rootLog *logger.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pezbus",
	Short: "pezbus - in-process message bus",
	Long: `pezbus connects named goroutines through a central router. Each
participant registers a unique name, sends opaque payloads to other names,
and receives with a timeout. The router forwards frames one at a time and
keeps per-identity counters.

The subcommands run the bus with a heartbeat workload, replay the classic
main/foo timer scenario, and render payload dumps.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// initLogger initializes the global logger from config
func initLogger(cfg config.LoggingConfig) error {
	log, err := logger.New(cfg)
	if err != nil {
		return err
	}

	rootLog = log
	logger.SetGlobal(log)
	return nil
}

// loadConfig loads the configuration file, env overrides and CLI overrides
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	applyFlags(cmd, cfg)
	return cfg, nil
}

// applyFlags layers the CLI flags that were given over cfg. Config reloads
// call it too, so flags keep winning over the file.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if logOutput != "" {
		cfg.Logging.Output = logOutput
	}
	if cmd.Flags().Changed("trace") {
		cfg.Bus.Trace = traceFlag
	}
}

// setup loads configuration and the logger, in that order
func setup(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := initLogger(cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Config file flag
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"Config file path (default: ~/.config/pezbus/config.yaml if present)")

	// Logging flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn, error (default: from config or env)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Log format: json, text (default: from config or env)")
	rootCmd.PersistentFlags().StringVar(&logOutput, "log-output", "",
		"Log output: stdout, stderr, or file path (default: from config or env)")

	rootCmd.PersistentFlags().BoolVar(&traceFlag, "trace", false,
		"Dump every payload at send, route and receive")
}
