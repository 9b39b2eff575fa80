package cli

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/config"
	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/mlog"
	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/store"
)

// app is the state shared by every command: configuration, logger and the
// open store.
type app struct {
	cfg   *config.Config
	log   *zap.Logger
	store *store.Store
}

// setup loads the configuration, applies a --db override and opens the
// store. The caller must call close.
func setup(opts *RootOptions, db string) (*app, error) {
	cfg, used, err := config.Load(opts.ConfigFile)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if db != "" {
		cfg.Store.Path = db
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}

	lg, err := mlog.NewLogger(&cfg.Log)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to init logger", err)
	}
	if used != "" {
		lg.Debug("config loaded", zap.String("file", used))
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	lg.Debug("database ready", zap.String("path", cfg.Store.Path))

	return &app{cfg: cfg, log: lg, store: st}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.log.Error("error closing database", zap.Error(err))
	}
	a.log.Sync()
}

func addDBFlag(cmd *cobra.Command, db *string) {
	cmd.Flags().StringVar(db, "db", "", "path to SQLite database (overrides store.path)")
}

// commandContext returns the context the command was executed with.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
