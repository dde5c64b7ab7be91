package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/steveyegge/dupes/internal/config"
	"github.com/steveyegge/dupes/internal/storage/sqlite"
)

var (
	configPath string
	logLevel   string
	storePath  string

	cfg    config.Config
	store  *sqlite.SQLiteStorage
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "dupes",
	Short: "Review duplicate customer records",
	Long: `dupes lists candidate duplicate customer pairs flagged by the CRM,
shows how the two records differ, and merges or ignores them.

Run 'dupes login' once, then 'dupes console' for the interactive review
console or the one-shot commands below for scripting.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := setup(cmd); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			store.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "Path to the session database (overrides config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and opens the local store. Precedence, lowest
// first: defaults, config file, .env and environment, flags.
func setup(cmd *cobra.Command) error {
	// A missing .env is normal
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if storePath != "" {
		cfg.Storage.Path = storePath
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger = newLogger(cfg.LogLevel)

	store, err = sqlite.New(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	logger.Debug("session store opened", "path", cfg.Storage.Path)
	return nil
}

func defaultConfigPath() string {
	if p := os.Getenv("DUPES_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".dupes", "config.yaml")
}

// newLogger writes text logs to stderr so they never mix with command output
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
