package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/smartgov/exgratia/internal/config"
)

func main() {
	// Start at debug until the config says otherwise, so loading is traceable.
	initializeLogger(true)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := parseCommandLineFlags(&cfg, os.Args[1:]); err != nil {
		slog.Error("Failed to parse flags", "error", err)
		os.Exit(2)
	}
	initializeLogger(cfg.Debug)

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := ensureDirectoriesExist(cfg); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}
	slog.Debug("Final configuration", "config", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping ex-gratia assistant", "transport", cfg.Transport)
	if err := run(ctx, cfg); err != nil {
		slog.Error("Ex-gratia assistant failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Ex-gratia assistant exited successfully")
}

// initializeLogger installs a text handler at debug or info level.
func initializeLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

// parseCommandLineFlags applies flags over cfg. Flags default to the loaded values.
func parseCommandLineFlags(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("exgratia", flag.ContinueOnError)
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "chat transport: telegram, whatsapp, twilio or none (overrides $BOT_TRANSPORT)")
	fs.StringVar(&cfg.Classifier.Mode, "classifier", cfg.Classifier.Mode, "intent classifier: rules, remote or openai (overrides $CLASSIFIER_MODE)")
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory holding status.csv and the info texts (overrides $EXGRATIA_DATA_DIR)")
	fs.StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "directory for the lock file and local databases (overrides $EXGRATIA_STATE_DIR)")
	fs.StringVar(&cfg.API.Addr, "api-addr", cfg.API.Addr, "admin API listen address, empty to disable (overrides $API_ADDR)")
	fs.StringVar(&cfg.State.DSN, "state-dsn", cfg.State.DSN, "conversation state database, empty for memory (overrides $STATE_DSN)")
	fs.StringVar(&cfg.WhatsApp.QRPath, "qr-output", cfg.WhatsApp.QRPath, "path to write the WhatsApp login QR code")
	fs.BoolVar(&cfg.WhatsApp.NumericCode, "numeric-code", cfg.WhatsApp.NumericCode, "print the WhatsApp pairing code instead of a QR code")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable debug logging (overrides $DEBUG)")

	oldDataDir := cfg.DataDir
	if err := fs.Parse(args); err != nil {
		return err
	}
	// Paths derived from the old data directory follow the flag.
	if cfg.DataDir != oldDataDir {
		rebase := func(p *string, name string) {
			if *p == "" || *p == filepath.Join(oldDataDir, name) {
				*p = filepath.Join(cfg.DataDir, name)
			}
		}
		rebase(&cfg.Status.CSVPath, config.DefaultStatusFile)
		rebase(&cfg.API.SubmissionPath, config.DefaultSubmissionFile)
		if cfg.Content.Dir == oldDataDir {
			cfg.Content.Dir = cfg.DataDir
		}
	}
	slog.Debug("flags parsed", "transport", cfg.Transport, "classifier", cfg.Classifier.Mode,
		"data_dir", cfg.DataDir, "state_dir", cfg.StateDir, "api_addr", cfg.API.Addr)
	return nil
}

// ensureDirectoriesExist creates the data and state directories. SQLite
// stores create their own parent directories.
func ensureDirectoriesExist(cfg config.Config) error {
	for _, dir := range []string{cfg.DataDir, cfg.StateDir} {
		if dir == "" {
			continue
		}
		slog.Debug("Creating directory", "dir", dir)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			slog.Error("Failed to create directory", "error", err, "dir", dir)
			return err
		}
	}
	return nil
}
