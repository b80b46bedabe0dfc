package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/docindex/internal/boltstore"
	"github.com/roach88/docindex/internal/config"
	"github.com/roach88/docindex/internal/engine"
	"github.com/roach88/docindex/internal/ir"
	"github.com/roach88/docindex/internal/store"
)

// recordStore is what the CLI needs from a storage backend.
type recordStore interface {
	ir.RecordStore
	ir.RecordLister
	ir.BacklinkLister
	Close() error
}

// session is an open store plus the engine over it.
type session struct {
	store    recordStore
	engine   *engine.Engine
	registry *prometheus.Registry
}

// openStore opens the backend named by cfg.
func openStore(opts *RootOptions) (recordStore, error) {
	cfg := opts.Config
	switch cfg.Backend {
	case config.BackendSQLite:
		st, err := store.Open(cfg.DB,
			store.WithTables(cfg.DocTable, cfg.BacklinkTable),
			store.WithLogger(opts.Logger))
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.BackendBolt:
		st, err := boltstore.Open(cfg.DB,
			boltstore.WithBuckets(cfg.DocTable, cfg.BacklinkTable),
			boltstore.WithTimeout(5*time.Second),
			boltstore.WithLogger(opts.Logger))
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("%w %q", config.ErrUnknownBackend, cfg.Backend)
	}
}

// openSession opens the configured store and an engine over it. Engine
// metrics are registered with a fresh registry.
func openSession(ctx context.Context, opts *RootOptions) (*session, error) {
	engineOpts, err := opts.Config.EngineOptions()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid engine settings", err)
	}

	open := openStore
	if opts.openStore != nil {
		open = opts.openStore
	}
	st, err := open(opts)
	if err != nil {
		return nil, WrapExitError(ExitStorageError, "failed to open database", err)
	}

	reg := prometheus.NewRegistry()
	engineOpts = append(engineOpts,
		engine.WithMetrics(engine.NewMetrics(reg)),
		engine.WithLogger(opts.Logger))

	eng, err := engine.New(ctx, st, engineOpts...)
	if err != nil {
		st.Close()
		return nil, WrapEngineError("failed to start engine", err)
	}
	return &session{store: st, engine: eng, registry: reg}, nil
}

// Close stops the engine, running any listener still queued, then closes
// the store.
func (s *session) Close() error {
	s.engine.Close()
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

// closeSession closes sess and logs any failure. For deferred use by
// read-only commands.
func closeSession(opts *RootOptions, sess *session) {
	if err := sess.Close(); err != nil {
		opts.Logger.Error("error closing database", "error", err)
	}
}
