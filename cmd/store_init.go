package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/willregister/admin-cli/internal/store"
)

// openStore opens the configured store and applies migrations. Migrations
// are idempotent, so running them on every start keeps a fresh sqlite file
// usable without a separate step.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := store.New(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}
