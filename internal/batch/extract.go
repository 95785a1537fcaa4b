// Package batch runs the parser over directory trees of input decks:
// extraction into persisted records, numeric diversification of those
// records, corpus-wide round-trip checks and a watch mode that keeps the
// records current while decks are edited.
package batch

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/deckir/core/cache"
	"github.com/FocuswithJustin/deckir/core/cas"
	"github.com/FocuswithJustin/deckir/core/deck"
	"github.com/FocuswithJustin/deckir/core/dialect"
	"github.com/FocuswithJustin/deckir/core/errors"
	"github.com/FocuswithJustin/deckir/internal/archive"
	"github.com/FocuswithJustin/deckir/internal/catalog"
	"github.com/FocuswithJustin/deckir/internal/logging"
)

// Config drives Extract and Watch.
type Config struct {
	// InRoot is searched recursively for decks with the dialect's extension.
	InRoot string
	// OutDir receives one record per deck.
	OutDir string

	Workers  int
	Compress bool

	// Dialect defaults to dialect.Default().
	Dialect *dialect.Dialect

	// Store, when set, receives each deck's source text keyed by BLAKE3.
	Store *cas.Store
	// Catalog, when set, indexes each written record.
	Catalog *catalog.Catalog
	// Cache, when set, skips re-parsing decks whose text is unchanged.
	Cache *cache.ParseCache

	// RunID is stamped on every record; a random UUID is used when empty.
	RunID string
}

func (c *Config) dialect() *dialect.Dialect {
	if c.Dialect == nil {
		return dialect.Default()
	}
	return c.Dialect
}

func (c *Config) recordExt() string {
	if c.Compress {
		return archive.ExtJSONXZ
	}
	return archive.ExtJSON
}

func (c *Config) validate() error {
	if c.InRoot == "" {
		return errors.NewValidation("in_root", "must not be empty")
	}
	if c.OutDir == "" {
		return errors.NewValidation("out_dir", "must not be empty")
	}
	return nil
}

// FileResult is the outcome for one deck.
type FileResult struct {
	RelPath  string         `json:"rel_path"`
	ID       string         `json:"id,omitempty"`
	OutPath  string         `json:"out_path,omitempty"`
	Coverage float64        `json:"coverage"`
	Class    deck.LossClass `json:"loss_class,omitempty"`

	// Op names the failing step; Err is nil on success.
	Op  string `json:"op,omitempty"`
	Err error  `json:"-"`
}

// Failed reports whether the deck could not be processed.
func (r *FileResult) Failed() bool { return r.Err != nil }

// Failure is a failed deck as reported in a Summary.
type Failure struct {
	RelPath string `json:"rel_path"`
	Op      string `json:"op"`
	Error   string `json:"error"`
}

// Summary aggregates a batch run.
type Summary struct {
	Command      string        `json:"command"`
	RunID        string        `json:"run_id"`
	Total        int           `json:"total"`
	Processed    int           `json:"processed"`
	Failed       int           `json:"failed"`
	Lossless     int           `json:"lossless"`
	MeanCoverage float64       `json:"mean_coverage"`
	Duration     time.Duration `json:"duration_ns"`
	Failures     []Failure     `json:"failures,omitempty"`
}

func (s *Summary) add(r FileResult) {
	if r.Err != nil {
		s.Failed++
		s.Failures = append(s.Failures, Failure{RelPath: r.RelPath, Op: r.Op, Error: r.Err.Error()})
		return
	}
	if r.RelPath == "" {
		// skipped after cancellation
		return
	}
	s.Processed++
	s.MeanCoverage += r.Coverage
	if r.Class.IsSemanticallyLossless() {
		s.Lossless++
	}
}

func (s *Summary) finish(ctx context.Context, started time.Time) {
	if s.Processed > 0 {
		s.MeanCoverage /= float64(s.Processed)
	}
	s.Duration = time.Since(started)
	logging.BatchSummary(ctx, s.Command, s.Processed, s.Failed, s.Duration,
		"total", s.Total, "lossless", s.Lossless, "mean_coverage", s.MeanCoverage)
}

// Extract parses every deck under cfg.InRoot and writes a record for each
// into cfg.OutDir. Per-deck failures are collected in the Summary and do
// not stop the batch. It fails with a NotFoundError when InRoot holds no
// decks.
func Extract(ctx context.Context, cfg Config) (*Summary, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	ctx = logging.WithRunID(ctx, cfg.RunID)
	started := time.Now()

	files, err := FindDecks(cfg.InRoot, cfg.dialect().FileExtension())
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, &errors.NotFoundError{Resource: "input files", ID: cfg.InRoot}
	}

	results, err := Map(ctx, cfg.Workers, files, func(ctx context.Context, rel string) FileResult {
		return ExtractFile(ctx, cfg, rel)
	})

	sum := &Summary{Command: "extract", RunID: cfg.RunID, Total: len(files)}
	for _, r := range results {
		sum.add(r)
	}
	sum.finish(ctx, started)
	return sum, err
}

// ExtractFile processes the single deck at cfg.InRoot/rel.
func ExtractFile(ctx context.Context, cfg Config, rel string) FileResult {
	res := FileResult{RelPath: rel}
	fail := func(op string, err error) FileResult {
		res.Op, res.Err = op, err
		logging.DeckFailed(ctx, rel, op, err)
		return res
	}

	src := filepath.Join(cfg.InRoot, rel)
	text, err := ReadDeck(src)
	if err != nil {
		return fail("read", err)
	}

	var doc *deck.Document
	var report deck.FidelityReport
	if cfg.Cache != nil {
		p := cfg.Cache.RoundTrip(text, src, cfg.dialect(), deck.WithLogger(logging.LoggerFromContext(ctx)))
		doc, report = p.Doc, p.Report
	} else {
		opts := []deck.Option{deck.WithDialect(cfg.dialect()), deck.WithLogger(logging.LoggerFromContext(ctx))}
		doc, _, report = deck.RoundTrip(text, src, opts...)
	}

	rec := &archive.Record{
		SourceCode: text,
		IR:         doc,
		Meta: archive.Meta{
			SourceFile: src,
			RelPath:    filepath.ToSlash(rel),
			ID:         archive.RecordName(rel),
			Coverage:   report.Coverage,
			Class:      report.Class,
			RunID:      cfg.RunID,
			SourceHash: cas.HashString(text),
		},
	}

	if cfg.Store != nil && !cfg.Store.Has(rec.Meta.SourceHash) {
		if _, err := cfg.Store.PutString(text); err != nil {
			return fail("store", errors.Wrapf(err, "store source of %s", rec.Meta.RelPath))
		}
	}

	out := filepath.Join(cfg.OutDir, rec.Meta.ID+cfg.recordExt())
	if err := archive.Write(out, rec); err != nil {
		return fail("write", err)
	}
	if cfg.Catalog != nil {
		if err := cfg.Catalog.Put(ctx, rec, out); err != nil {
			return fail("catalog", err)
		}
	}

	res.ID = rec.Meta.ID
	res.OutPath = out
	res.Coverage = report.Coverage
	res.Class = report.Class
	logging.DeckProcessed(ctx, rec.Meta.RelPath, report.Coverage,
		"loss_class", string(report.Class),
		"sections", doc.Meta.SectionCount)
	return res
}
