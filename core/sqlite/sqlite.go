// Package sqlite opens SQLite databases for the deck catalog, supporting
// both pure Go (modernc.org/sqlite) and CGO (mattn/go-sqlite3) drivers.
//
// Build modes:
//   - Default: pure Go modernc.org/sqlite, no C toolchain needed
//   - CGO mode (CGO_ENABLED=1 -tags cgo_sqlite): mattn/go-sqlite3
//
// Use Open instead of sql.Open so the right driver name and connection
// settings are applied.
package sqlite

import (
	"context"
	"database/sql"

	"github.com/FocuswithJustin/deckir/core/errors"
)

// pragmas run on every database opened through Open.
var pragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA busy_timeout = 5000",
}

// DriverName returns the database/sql driver name in use.
func DriverName() string {
	return driverName
}

// DriverType returns "cgo" for mattn/go-sqlite3, "purego" for modernc.org/sqlite.
func DriverType() string {
	return driverType
}

// IsCGO returns true if the CGO implementation is being used.
func IsCGO() bool {
	return driverType == "cgo"
}

// Open opens the database at dataSourceName. SQLite allows one writer at a
// time, so the pool is limited to a single connection; concurrent callers
// queue in database/sql instead of failing with SQLITE_BUSY.
func Open(dataSourceName string) (*sql.DB, error) {
	return OpenContext(context.Background(), dataSourceName)
}

// OpenContext is Open with a context for the initial connection.
func OpenContext(ctx context.Context, dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, errors.NewIO("open database", dataSourceName, err)
	}
	db.SetMaxOpenConns(1)
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, errors.NewIO("configure database", dataSourceName, err)
		}
	}
	return db, nil
}

// OpenReadOnly opens an existing database in read-only mode. Writes
// through the returned handle fail.
func OpenReadOnly(ctx context.Context, path string) (*sql.DB, error) {
	return OpenContext(ctx, "file:"+path+"?mode=ro")
}

// Info describes the SQLite driver configuration.
type Info struct {
	DriverName string `json:"driver_name"`
	DriverType string `json:"driver_type"`
	IsCGO      bool   `json:"is_cgo"`
	Package    string `json:"package"`
}

// GetInfo returns information about the current SQLite configuration.
func GetInfo() Info {
	return Info{
		DriverName: driverName,
		DriverType: driverType,
		IsCGO:      IsCGO(),
		Package:    driverPackage,
	}
}
