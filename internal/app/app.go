package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"maestro/internal/config"
	"maestro/internal/db"
	"maestro/internal/engine"
	"maestro/internal/logger"
	"maestro/internal/migrate"
	"maestro/internal/notify"
)

// Options override values read from maestro.yml. Empty fields keep the file value.
type Options struct {
	Workspace string
	DBDriver  string
	DBDSN     string
	LogLevel  string
	LogFormat string
}

// App bundles the config, the migrated database and the engine built on top.
type App struct {
	Workspace string
	Config    *config.Config
	DB        *sqlx.DB
	Engine    engine.Engine
	Log       *logrus.Logger
}

// Open loads the workspace config, connects and migrates the database.
// A missing config file is not an error; defaults apply.
func Open(ctx context.Context, opts Options) (*App, error) {
	cfg, err := config.LoadOptional(opts.Workspace)
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg, opts)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

	conn, err := db.Open(db.Config{Workspace: opts.Workspace, Driver: cfg.Database.Driver, DSN: cfg.Database.DSN})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	version, err := migrate.Version(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("schema version: %w", err)
	}
	log.WithFields(logrus.Fields{
		"driver":    cfg.Database.Driver,
		"workspace": opts.Workspace,
		"schema":    version,
	}).Debug("database ready")

	return &App{
		Workspace: opts.Workspace,
		Config:    cfg,
		DB:        conn,
		Engine:    engine.New(conn, cfg, log),
		Log:       log,
	}, nil
}

func applyOverrides(cfg *config.Config, opts Options) {
	if opts.DBDriver != "" {
		cfg.Database.Driver = opts.DBDriver
	}
	if opts.DBDSN != "" {
		cfg.Database.DSN = opts.DBDSN
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.LogFormat != "" {
		cfg.Log.Format = opts.LogFormat
	}
}

// Dispatcher returns a webhook dispatcher configured from the notifications
// section. It is nil when no webhook URL is set.
func (a *App) Dispatcher() *notify.Dispatcher {
	n := a.Config.Notifications
	if n.Webhook.URL == "" {
		return nil
	}
	return &notify.Dispatcher{
		Repo:      a.Engine.Repo,
		URL:       n.Webhook.URL,
		Secret:    n.Webhook.Secret,
		Timeout:   n.Webhook.Timeout,
		BatchSize: n.Dispatch.BatchSize,
		Log:       a.Log.WithField("component", "dispatcher"),
	}
}

func (a *App) Close() error {
	return a.DB.Close()
}
