package batch

import (
	"context"
	"encoding/binary"
	"math/rand/v2"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/deckir/core/cas"
	"github.com/FocuswithJustin/deckir/core/deck"
	"github.com/FocuswithJustin/deckir/core/dialect"
	"github.com/FocuswithJustin/deckir/core/errors"
	"github.com/FocuswithJustin/deckir/internal/archive"
	"github.com/FocuswithJustin/deckir/internal/catalog"
	"github.com/FocuswithJustin/deckir/internal/logging"
)

// Diversify defaults.
const (
	DefaultSeed     = 42
	DefaultVariants = 3
)

// DiversifyConfig drives Diversify.
type DiversifyConfig struct {
	// InDir holds records written by Extract. Records that are themselves
	// variants are skipped.
	InDir  string
	OutDir string

	// Variants is the maximum number of variants per record.
	Variants int
	// Rel is the relative jitter; deck.DefaultJitter when zero.
	Rel float64
	// Seed drives the per-record generators; DefaultSeed when zero.
	Seed uint64

	Workers  int
	Compress bool
	Dialect  *dialect.Dialect
	Catalog  *catalog.Catalog
	RunID    string
}

func (c *DiversifyConfig) defaults() {
	if c.Variants <= 0 {
		c.Variants = DefaultVariants
	}
	if c.Rel == 0 {
		c.Rel = deck.DefaultJitter
	}
	if c.Seed == 0 {
		c.Seed = DefaultSeed
	}
	if c.Dialect == nil {
		c.Dialect = dialect.Default()
	}
	if c.RunID == "" {
		c.RunID = uuid.NewString()
	}
}

// recordRNG derives a per-record generator from the batch seed and the
// record id, so the variants of a record do not depend on worker
// scheduling or on which other records are present.
func recordRNG(seed uint64, id string) *rand.Rand {
	sum := blake3.Sum256([]byte(id))
	return rand.New(rand.NewPCG(seed, binary.LittleEndian.Uint64(sum[:8])))
}

// Diversify writes up to cfg.Variants jittered copies of every record in
// cfg.InDir. Variants are numbered from 1; variant n of record base is
// stored as base__aug<n>. A record with no eligible numeric line yields no
// variants. Summary.Total counts source records; Processed and Failed count
// variants.
func Diversify(ctx context.Context, cfg DiversifyConfig) (*Summary, error) {
	if cfg.InDir == "" || cfg.OutDir == "" {
		return nil, errors.NewValidation("directories", "in and out directories are required")
	}
	cfg.defaults()
	ctx = logging.WithRunID(ctx, cfg.RunID)
	started := time.Now()

	all, err := archive.List(cfg.InDir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, f := range all {
		if !isVariant(archive.RecordID(f)) {
			files = append(files, f)
		}
	}
	if len(files) == 0 {
		return nil, &errors.NotFoundError{Resource: "records", ID: cfg.InDir}
	}

	results, err := Map(ctx, cfg.Workers, files, func(ctx context.Context, path string) []FileResult {
		return diversifyOne(ctx, cfg, path)
	})

	sum := &Summary{Command: "diversify", RunID: cfg.RunID, Total: len(files)}
	for _, rs := range results {
		for _, r := range rs {
			sum.add(r)
		}
	}
	sum.finish(ctx, started)
	return sum, err
}

func isVariant(id string) bool {
	i := strings.LastIndex(id, "__aug")
	if i < 0 || i+len("__aug") == len(id) {
		return false
	}
	for _, r := range id[i+len("__aug"):] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func diversifyOne(ctx context.Context, cfg DiversifyConfig, path string) []FileResult {
	base := archive.RecordID(path)
	rec, err := archive.Read(path)
	if err != nil {
		logging.DeckFailed(ctx, path, "read", err)
		return []FileResult{{RelPath: path, Op: "read", Err: err}}
	}
	if rec.IR == nil {
		err := errors.NewValidation("ir", "record has no parsed document")
		logging.DeckFailed(ctx, path, "read", err)
		return []FileResult{{RelPath: path, Op: "read", Err: err}}
	}

	ext := archive.ExtJSON
	if cfg.Compress {
		ext = archive.ExtJSONXZ
	}
	rng := recordRNG(cfg.Seed, base)
	opts := []deck.Option{deck.WithDialect(cfg.Dialect)}

	var out []FileResult
	for n := 1; n <= cfg.Variants; n++ {
		if ctx.Err() != nil {
			break
		}
		doc, ok := deck.Jitter(rec.IR, rng, cfg.Rel, opts...)
		if !ok {
			break
		}
		text := deck.Render(doc, opts...)
		reparsed, _, report := deck.RoundTrip(text, rec.Meta.SourceFile, opts...)

		name := archive.VariantName(base, n)
		variant := &archive.Record{
			SourceCode: text,
			IR:         reparsed,
			Meta:       rec.Meta,
		}
		variant.Meta.ID = name
		variant.Meta.Parent = base
		variant.Meta.Variant = n
		variant.Meta.RunID = cfg.RunID
		variant.Meta.Coverage = report.Coverage
		variant.Meta.Class = report.Class
		variant.Meta.SourceHash = cas.HashString(text)

		rel := rec.Meta.RelPath + "#aug" + strconv.Itoa(n)
		dst := filepath.Join(cfg.OutDir, name+ext)
		if err := archive.Write(dst, variant); err != nil {
			logging.DeckFailed(ctx, rel, "write", err)
			out = append(out, FileResult{RelPath: rel, Op: "write", Err: err})
			continue
		}
		if cfg.Catalog != nil {
			if err := cfg.Catalog.Put(ctx, variant, dst); err != nil {
				logging.DeckFailed(ctx, rel, "catalog", err)
				out = append(out, FileResult{RelPath: rel, Op: "catalog", Err: err})
				continue
			}
		}
		out = append(out, FileResult{RelPath: rel, ID: name, OutPath: dst, Coverage: report.Coverage, Class: report.Class})
	}
	logging.DeckProcessed(ctx, rec.Meta.RelPath, rec.Meta.Coverage, "variants", len(out))
	return out
}
