package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"graphsketch/internal/config"
	"graphsketch/internal/logging"
)

var (
	cfgFile  string
	logLevel string
	dbPath   string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "graphsketch",
	Short: "Build, store and render small directed graphs",
	Long: `graphsketch keeps a directed graph of plain and colored nodes joined by
plain and weighted edges, persists it in SQLite and renders it with Graphviz.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: search "+config.EnvConfigPath+", ./"+config.ConfigFileName+", XDG dirs)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig resolves the config file, applies flag overrides and builds the logger
func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, path, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("log-level") {
		loaded.Log.Level = logLevel
	}
	if cmd.Flags().Changed("db") {
		loaded.Database.Path = dbPath
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	l, err := logging.FromConfig(loaded)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	cfg, logger = loaded, l
	if path != "" {
		logger.Debug("config loaded", zap.String("path", path))
	}
	return nil
}
