// Package catalog indexes extracted deck records in a SQLite database so
// a corpus can be listed, summarized and searched by keyword without
// reopening every record file.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/FocuswithJustin/deckir/core/errors"
	"github.com/FocuswithJustin/deckir/core/sqlite"
	"github.com/FocuswithJustin/deckir/internal/archive"
)

const schema = `
CREATE TABLE IF NOT EXISTS decks (
	id            TEXT PRIMARY KEY,
	rel_path      TEXT NOT NULL,
	source_file   TEXT NOT NULL,
	source_hash   TEXT NOT NULL DEFAULT '',
	record_path   TEXT NOT NULL DEFAULT '',
	run_id        TEXT NOT NULL DEFAULT '',
	parent        TEXT NOT NULL DEFAULT '',
	coverage      REAL NOT NULL,
	loss_class    TEXT NOT NULL DEFAULT '',
	section_count INTEGER NOT NULL,
	solver_count  INTEGER NOT NULL,
	entry_count   INTEGER NOT NULL,
	indexed_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS keywords (
	deck_id TEXT NOT NULL REFERENCES decks(id) ON DELETE CASCADE,
	keyword TEXT NOT NULL COLLATE NOCASE,
	PRIMARY KEY (deck_id, keyword)
);
CREATE INDEX IF NOT EXISTS idx_keywords_keyword ON keywords(keyword);

CREATE TABLE IF NOT EXISTS solver_extensions (
	deck_id   TEXT NOT NULL REFERENCES decks(id) ON DELETE CASCADE,
	solver_id TEXT NOT NULL,
	key       TEXT NOT NULL,
	value     TEXT NOT NULL,
	PRIMARY KEY (deck_id, solver_id, key)
);
`

// Entry is one indexed deck.
type Entry struct {
	ID           string    `json:"id"`
	RelPath      string    `json:"rel_path"`
	SourceFile   string    `json:"source_file"`
	SourceHash   string    `json:"source_hash,omitempty"`
	RecordPath   string    `json:"record_path,omitempty"`
	RunID        string    `json:"run_id,omitempty"`
	Parent       string    `json:"parent,omitempty"`
	Coverage     float64   `json:"coverage"`
	Class        string    `json:"loss_class,omitempty"`
	SectionCount int       `json:"section_count"`
	SolverCount  int       `json:"solver_count"`
	EntryCount   int       `json:"entry_count"`
	IndexedAt    time.Time `json:"indexed_at"`
}

// Stats summarizes the catalog.
type Stats struct {
	Decks        int            `json:"decks"`
	Variants     int            `json:"variants"`
	Keywords     int            `json:"distinct_keywords"`
	Extensions   int            `json:"solver_extensions"`
	MeanCoverage float64        `json:"mean_coverage"`
	Lossless     int            `json:"lossless"`
	ByClass      map[string]int `json:"by_class"`
}

// Catalog is an open catalog database. It is safe for concurrent use.
type Catalog struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open opens (creating if needed) the catalog at path.
func Open(ctx context.Context, path string) (*Catalog, error) {
	db, err := sqlite.OpenContext(ctx, path)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.NewIO("create catalog schema", path, err)
	}
	return &Catalog{db: db, path: path, now: time.Now}, nil
}

// OpenReadOnly opens an existing catalog for queries only. The schema is
// not created and Put and Delete fail.
func OpenReadOnly(ctx context.Context, path string) (*Catalog, error) {
	db, err := sqlite.OpenReadOnly(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Catalog{db: db, path: path, now: time.Now}, nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Path returns the database file path.
func (c *Catalog) Path() string { return c.path }

// Put indexes rec, replacing any earlier entry with the same id.
// recordPath is where the record file lives and may be empty.
func (c *Catalog) Put(ctx context.Context, rec *archive.Record, recordPath string) error {
	if rec == nil || rec.Meta.ID == "" {
		return errors.NewValidation("record", "missing id")
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewIO("begin transaction", c.path, err)
	}
	defer tx.Rollback()

	id := rec.Meta.ID
	if err := deleteChildren(ctx, tx, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM decks WHERE id = ?`, id); err != nil {
		return errors.NewIO("replace deck", id, err)
	}

	var sections, solvers, entries int
	var keywords []string
	var extensions map[string]map[string]string
	if rec.IR != nil {
		sections = rec.IR.Meta.SectionCount
		solvers = rec.IR.Meta.SolverCount
		entries = rec.IR.EntryCount()
		keywords = rec.IR.Keywords
		extensions = rec.IR.Extensions
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO decks
		(id, rel_path, source_file, source_hash, record_path, run_id, parent,
		 coverage, loss_class, section_count, solver_count, entry_count, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, rec.Meta.RelPath, rec.Meta.SourceFile, rec.Meta.SourceHash, recordPath,
		rec.Meta.RunID, rec.Meta.Parent, rec.Meta.Coverage, string(rec.Meta.Class),
		sections, solvers, entries, c.now().UTC().Format(time.RFC3339))
	if err != nil {
		return errors.NewIO("insert deck", id, err)
	}

	if err := insertKeywords(ctx, tx, id, keywords); err != nil {
		return err
	}
	if err := insertExtensions(ctx, tx, id, extensions); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.NewIO("commit", c.path, err)
	}
	return nil
}

func insertKeywords(ctx context.Context, tx *sql.Tx, id string, keywords []string) error {
	if len(keywords) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO keywords (deck_id, keyword) VALUES (?, ?)`)
	if err != nil {
		return errors.NewIO("prepare keyword insert", id, err)
	}
	defer stmt.Close()
	for _, k := range keywords {
		if _, err := stmt.ExecContext(ctx, id, k); err != nil {
			return errors.NewIO("insert keyword", id, err)
		}
	}
	return nil
}

func insertExtensions(ctx context.Context, tx *sql.Tx, id string, ext map[string]map[string]string) error {
	if len(ext) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO solver_extensions (deck_id, solver_id, key, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return errors.NewIO("prepare extension insert", id, err)
	}
	defer stmt.Close()
	for _, solver := range slices.Sorted(maps.Keys(ext)) {
		for _, key := range slices.Sorted(maps.Keys(ext[solver])) {
			if _, err := stmt.ExecContext(ctx, id, solver, key, ext[solver][key]); err != nil {
				return errors.NewIO("insert extension", id, err)
			}
		}
	}
	return nil
}

const entryColumns = `id, rel_path, source_file, source_hash, record_path, run_id, parent,
	coverage, loss_class, section_count, solver_count, entry_count, indexed_at`

// Get returns the entry with the given id.
func (c *Catalog) Get(ctx context.Context, id string) (*Entry, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM decks WHERE id = ?`, id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("deck", id)
	}
	if err != nil {
		return nil, errors.NewIO("read deck", id, err)
	}
	return e, nil
}

// List returns every entry ordered by relative path, then id.
func (c *Catalog) List(ctx context.Context) ([]*Entry, error) {
	return c.query(ctx, `SELECT `+entryColumns+` FROM decks ORDER BY rel_path, id`)
}

// FindByKeyword returns entries whose deck uses keyword (case-insensitive).
func (c *Catalog) FindByKeyword(ctx context.Context, keyword string) ([]*Entry, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, errors.NewValidation("keyword", "must not be empty")
	}
	return c.query(ctx, `SELECT `+prefixed("d.", entryColumns)+`
		FROM decks d JOIN keywords k ON k.deck_id = d.id
		WHERE k.keyword = ?
		ORDER BY d.rel_path, d.id`, keyword)
}

// Extensions returns the solver-extension table stored for a deck.
func (c *Catalog) Extensions(ctx context.Context, id string) (map[string]map[string]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT solver_id, key, value FROM solver_extensions WHERE deck_id = ?`, id)
	if err != nil {
		return nil, errors.NewIO("read extensions", id, err)
	}
	defer rows.Close()

	out := make(map[string]map[string]string)
	for rows.Next() {
		var solver, key, value string
		if err := rows.Scan(&solver, &key, &value); err != nil {
			return nil, errors.NewIO("scan extension", id, err)
		}
		if out[solver] == nil {
			out[solver] = make(map[string]string)
		}
		out[solver][key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewIO("read extensions", id, err)
	}
	return out, nil
}

// Delete removes a deck and its keyword and extension rows.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewIO("begin transaction", c.path, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM decks WHERE id = ?`, id)
	if err != nil {
		return errors.NewIO("delete deck", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewNotFound("deck", id)
	}
	if err := deleteChildren(ctx, tx, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.NewIO("commit", c.path, err)
	}
	return nil
}

// deleteChildren clears keyword and extension rows for id. The foreign
// keys cascade too, but only while the pragma is on for the connection.
func deleteChildren(ctx context.Context, tx *sql.Tx, id string) error {
	for _, q := range []string{
		`DELETE FROM keywords WHERE deck_id = ?`,
		`DELETE FROM solver_extensions WHERE deck_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return errors.NewIO("delete deck rows", id, err)
		}
	}
	return nil
}

// Stats summarizes the catalog contents.
func (c *Catalog) Stats(ctx context.Context) (*Stats, error) {
	s := &Stats{ByClass: make(map[string]int)}

	var mean sql.NullFloat64
	err := c.db.QueryRowContext(ctx, `SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN parent != '' THEN 1 ELSE 0 END), 0),
			AVG(coverage),
			COALESCE(SUM(CASE WHEN coverage >= 1.0 THEN 1 ELSE 0 END), 0)
		FROM decks`).Scan(&s.Decks, &s.Variants, &mean, &s.Lossless)
	if err != nil {
		return nil, errors.NewIO("read stats", c.path, err)
	}
	s.MeanCoverage = mean.Float64

	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT keyword) FROM keywords`).Scan(&s.Keywords); err != nil {
		return nil, errors.NewIO("count keywords", c.path, err)
	}
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM solver_extensions`).Scan(&s.Extensions); err != nil {
		return nil, errors.NewIO("count extensions", c.path, err)
	}

	rows, err := c.db.QueryContext(ctx, `SELECT loss_class, COUNT(*) FROM decks WHERE loss_class != '' GROUP BY loss_class`)
	if err != nil {
		return nil, errors.NewIO("count classes", c.path, err)
	}
	defer rows.Close()
	for rows.Next() {
		var class string
		var n int
		if err := rows.Scan(&class, &n); err != nil {
			return nil, errors.NewIO("scan class", c.path, err)
		}
		s.ByClass[class] = n
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewIO("count classes", c.path, err)
	}
	return s, nil
}

func (c *Catalog) query(ctx context.Context, q string, args ...any) ([]*Entry, error) {
	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.NewIO("query catalog", c.path, err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, errors.NewIO("scan deck", c.path, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewIO("query catalog", c.path, err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*Entry, error) {
	var e Entry
	var indexed string
	err := s.Scan(&e.ID, &e.RelPath, &e.SourceFile, &e.SourceHash, &e.RecordPath, &e.RunID,
		&e.Parent, &e.Coverage, &e.Class, &e.SectionCount, &e.SolverCount, &e.EntryCount, &indexed)
	if err != nil {
		return nil, err
	}
	if t, err := time.Parse(time.RFC3339, indexed); err == nil {
		e.IndexedAt = t
	}
	return &e, nil
}

func prefixed(prefix, columns string) string {
	fields := strings.Split(columns, ",")
	for i, f := range fields {
		fields[i] = prefix + strings.TrimSpace(f)
	}
	return strings.Join(fields, ", ")
}

// String renders an entry as one summary line.
func (e *Entry) String() string {
	return fmt.Sprintf("%s  %s  coverage=%.3f  sections=%d  solvers=%d", e.ID, e.RelPath, e.Coverage, e.SectionCount, e.SolverCount)
}
