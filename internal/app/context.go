package app

import (
	"context"
	"database/sql"
	"fmt"

	"opsline/internal/analytics"
	"opsline/internal/config"
	"opsline/internal/db"
	"opsline/internal/engine"
	"opsline/internal/migrate"
	"opsline/internal/phase"
	"opsline/internal/telemetry"
)

// Workspace is an opened workspace database with the services built on it.
type Workspace struct {
	Dir     string
	DB      *sql.DB
	Config  *config.Config
	Engine  engine.Engine
	Phases  *phase.Engine
	Reports *analytics.Service
}

type Options struct {
	// Config overrides the workspace's opsline.yml when set.
	Config   *config.Config
	Observer telemetry.Observer
}

// Open prepares the workspace directory, migrates the database and wires the
// record engine, phase engine and report service. A missing opsline.yml falls
// back to the built-in defaults.
func Open(ctx context.Context, dir string, opts Options) (*Workspace, error) {
	if _, err := db.EnsureWorkspace(dir); err != nil {
		return nil, err
	}
	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.LoadOptional(dir)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		return nil, err
	}
	if err := migrate.MigrateContext(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	obs := telemetry.OrNoop(opts.Observer)
	e := engine.New(conn, cfg)
	phases, err := phase.NewEngine(ctx, phase.SQLStore{Repo: e.Repo, Events: e.Events})
	if err != nil {
		conn.Close()
		return nil, err
	}
	phases.Observer = obs
	reports, err := analytics.NewService(e.Repo, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	reports.Observer = obs
	return &Workspace{
		Dir:     dir,
		DB:      conn,
		Config:  cfg,
		Engine:  e,
		Phases:  phases,
		Reports: reports,
	}, nil
}

func (w *Workspace) Close() error {
	if w == nil || w.DB == nil {
		return nil
	}
	return w.DB.Close()
}
