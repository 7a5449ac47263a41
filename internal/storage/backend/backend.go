// Package backend selects a storage.Store implementation by driver name.
package backend

import (
	"context"
	"fmt"

	"github.com/dyluth/postboard/internal/storage"
	"github.com/dyluth/postboard/internal/storage/postgres"
	"github.com/dyluth/postboard/internal/storage/sqlite"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open connects the named driver to dsn.
func Open(ctx context.Context, driver, dsn string) (storage.Store, error) {
	var (
		store storage.Store
		err   error
	)
	switch driver {
	case DriverSQLite:
		store, err = sqlite.Open(ctx, dsn)
	case DriverPostgres:
		store, err = postgres.Open(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q (valid: %s, %s)", driver, DriverSQLite, DriverPostgres)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}
