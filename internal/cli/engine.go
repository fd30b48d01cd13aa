package cli

import (
	"context"
	"fmt"

	"github.com/rbeezley/myk9q-sync/internal/config"
	"github.com/rbeezley/myk9q-sync/internal/engine"
	"github.com/rbeezley/myk9q-sync/internal/persist"
)

// openEngine opens the configured database and initializes an engine
// over it. The returned cleanup closes both.
func openEngine(ctx context.Context, opts *RootOptions) (*engine.Engine, config.Config, func(), error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, config.Config{}, nil, err
	}

	db, err := persist.Open(cfg.DBPath)
	if err != nil {
		return nil, config.Config{}, nil, fmt.Errorf("open %s: %w", cfg.DBPath, err)
	}

	e := engine.New(db,
		engine.WithConfig(cfg.Engine()),
		engine.WithParentField(cfg.ParentField),
		engine.WithLogger(newLogger(opts)))
	if err := e.Initialize(ctx); err != nil {
		db.Close()
		return nil, config.Config{}, nil, fmt.Errorf("initialize engine: %w", err)
	}

	cleanup := func() {
		_ = e.Close(ctx)
		_ = db.Close()
	}
	return e, cfg, cleanup, nil
}
