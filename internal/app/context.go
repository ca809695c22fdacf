package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"leadline/internal/config"
	"leadline/internal/db"
	"leadline/internal/engine"
	"leadline/internal/events"
	"leadline/internal/migrate"
)

// Options selects the workspace and database a command runs against.
type Options struct {
	Workspace string
	Driver    string
	DSN       string
	// Publisher receives committed events; nil disables live fan-out.
	Publisher events.Publisher
	Logger    *log.Logger
}

// ResolveConfig loads <workspace>/leadline.yml, falling back to built-in defaults.
func ResolveConfig(workspace string) (*config.Config, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", config.Path(workspace), err)
	}
	return cfg, nil
}

// Open connects to the database, applies migrations and builds the engine.
// Callers close the returned connection.
func Open(ctx context.Context, opts Options) (engine.Engine, *sql.DB, error) {
	cfg, err := ResolveConfig(opts.Workspace)
	if err != nil {
		return engine.Engine{}, nil, err
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace, Driver: opts.Driver, DSN: opts.DSN})
	if err != nil {
		return engine.Engine{}, nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return engine.Engine{}, nil, fmt.Errorf("connect %s: %w", db.DialectOf(conn), err)
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return engine.Engine{}, nil, err
	}
	eng := engine.New(conn, cfg)
	eng.Events.Publisher = opts.Publisher
	eng.Logger = opts.Logger
	return eng, conn, nil
}
