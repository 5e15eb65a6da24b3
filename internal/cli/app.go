package cli

import (
	"context"
	"log/slog"

	"github.com/roach88/qms/internal/cache"
	"github.com/roach88/qms/internal/model"
	"github.com/roach88/qms/internal/store"
	"github.com/roach88/qms/internal/workflow"
)

// app is the wired core used by one command invocation.
type app struct {
	store *store.Store
	cache *cache.Cache
	svc   *workflow.Service
}

func openStore(ctx context.Context, opts *RootOptions) (*store.Store, error) {
	st, err := store.OpenWith(ctx, opts.Config.StoreOptions())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	slog.Debug("database opened", "driver", st.Driver(), "dsn", opts.Config.Database.DSN)
	return st, nil
}

// openApp opens the store, loads the cache and builds the service. The
// clock runs in the configured facility time zone.
func openApp(ctx context.Context, opts *RootOptions) (*app, error) {
	loc, err := opts.Config.Location()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}
	st, err := openStore(ctx, opts)
	if err != nil {
		return nil, err
	}
	clock := model.SystemClock{Location: loc}
	c := cache.New(st, clock)
	if err := c.Init(ctx); err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to load cache", err)
	}
	svc := workflow.New(st, c, clock, workflow.UUIDv7Generator{}, workflow.Options{
		CreateRetries: opts.Config.Workflow.CreateRetries,
		ClaimRetries:  opts.Config.Workflow.ClaimRetries,
	})
	return &app{store: st, cache: c, svc: svc}, nil
}

func (a *app) Close() {
	a.cache.Shutdown()
	if err := a.store.Close(); err != nil {
		slog.Warn("closing database", "error", err)
	}
}
