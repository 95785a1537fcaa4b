package sqlite

import (
	"context"
	"path/filepath"
	"testing"
)

func TestDriverInfo(t *testing.T) {
	info := GetInfo()

	if info.DriverName != DriverName() {
		t.Errorf("DriverName mismatch: info=%s, func=%s", info.DriverName, DriverName())
	}
	if info.DriverType != DriverType() {
		t.Errorf("DriverType mismatch: info=%s, func=%s", info.DriverType, DriverType())
	}
	if info.IsCGO != IsCGO() {
		t.Errorf("IsCGO mismatch: info=%v, func=%v", info.IsCGO, IsCGO())
	}

	switch info.DriverType {
	case "purego":
		if info.DriverName != "sqlite" || info.Package != "modernc.org/sqlite" {
			t.Errorf("purego info = %+v", info)
		}
	case "cgo":
		if info.DriverName != "sqlite3" || info.Package != "github.com/mattn/go-sqlite3" {
			t.Errorf("cgo info = %+v", info)
		}
	default:
		t.Errorf("unknown driver type: %s", info.DriverType)
	}
}

func TestOpenAppliesPragmas(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	var fk int
	if err := db.QueryRow(`PRAGMA foreign_keys`).Scan(&fk); err != nil {
		t.Fatalf("PRAGMA foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}

	if got := db.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("MaxOpenConnections = %d, want 1", got)
	}
}

func TestOpenReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decks.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE decks (id TEXT PRIMARY KEY, rel_path TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO decks VALUES (?, ?)`, "a1b2c3d4", "heat/case.sif"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	db.Close()

	ro, err := OpenReadOnly(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenReadOnly() error = %v", err)
	}
	defer ro.Close()

	var rel string
	if err := ro.QueryRow(`SELECT rel_path FROM decks WHERE id = ?`, "a1b2c3d4").Scan(&rel); err != nil {
		t.Fatalf("query: %v", err)
	}
	if rel != "heat/case.sif" {
		t.Errorf("rel_path = %q, want heat/case.sif", rel)
	}

	if _, err := ro.Exec(`INSERT INTO decks VALUES ('x', 'y')`); err == nil {
		t.Error("insert on read-only database succeeded")
	}
}

func TestOpenReadOnlyMissing(t *testing.T) {
	db, err := OpenReadOnly(context.Background(), filepath.Join(t.TempDir(), "missing.db"))
	if err == nil {
		db.Close()
		t.Error("OpenReadOnly() on a missing file returned nil error")
	}
}
