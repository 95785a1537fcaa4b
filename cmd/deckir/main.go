// Command deckir is the CLI for the solver input deck parser.
// It parses decks into their intermediate representation, renders them
// back, grades round-trip fidelity and manages extracted record corpora.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/deckir/core/cas"
	"github.com/FocuswithJustin/deckir/core/deck"
	"github.com/FocuswithJustin/deckir/core/dialect"
	"github.com/FocuswithJustin/deckir/core/errors"
	"github.com/FocuswithJustin/deckir/core/query"
	"github.com/FocuswithJustin/deckir/core/sqlite"
	"github.com/FocuswithJustin/deckir/internal/archive"
	"github.com/FocuswithJustin/deckir/internal/batch"
	"github.com/FocuswithJustin/deckir/internal/catalog"
	"github.com/FocuswithJustin/deckir/internal/logging"
	"github.com/FocuswithJustin/deckir/internal/validation"
)

const version = "0.1.0"

// stdout receives command results; logs go to stderr.
var stdout io.Writer = os.Stdout

// Globals are flags shared by every command.
type Globals struct {
	LogLevel  string `name:"log-level" default:"info" enum:"debug,info,warn,error" help:"Log level (debug, info, warn, error)"`
	LogFormat string `name:"log-format" default:"text" enum:"json,text" help:"Log format (json, text)"`
	Dialect   string `name:"dialect" type:"existingfile" help:"Dialect YAML file replacing the built-in Elmer SIF dialect"`

	loaded *dialect.Dialect
}

func (g *Globals) initLogging() error {
	level, err := logging.ParseLevel(g.LogLevel)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(g.LogFormat)
	if err != nil {
		return err
	}
	logging.InitLogger(level, format)
	return nil
}

// dialect returns the --dialect file's dialect, or the default.
func (g *Globals) dialect() (*dialect.Dialect, error) {
	if g.loaded != nil {
		return g.loaded, nil
	}
	if g.Dialect == "" {
		g.loaded = dialect.Default()
		return g.loaded, nil
	}
	d, err := dialect.Load(g.Dialect)
	if err != nil {
		return nil, err
	}
	logging.Debug("dialect loaded", "path", g.Dialect, "name", d.Name())
	g.loaded = d
	return d, nil
}

func (g *Globals) options() ([]deck.Option, error) {
	d, err := g.dialect()
	if err != nil {
		return nil, err
	}
	return []deck.Option{deck.WithDialect(d), deck.WithLogger(logging.GetLogger())}, nil
}

// CLI defines the command-line interface for deckir.
type CLI struct {
	Globals

	Parse     ParseCmd     `cmd:"" help:"Parse a deck (or record) and print its IR as JSON"`
	Render    RenderCmd    `cmd:"" help:"Render a deck's IR back to deck text"`
	Check     CheckCmd     `cmd:"" help:"Round-trip a deck or a tree of decks and grade fidelity"`
	Extract   ExtractCmd   `cmd:"" help:"Extract every deck under a directory into records"`
	Diversify DiversifyCmd `cmd:"" help:"Write numerically jittered variants of extracted records"`
	Query     QueryCmd     `cmd:"" help:"Evaluate an XPath expression against a deck"`
	Catalog   CatalogGroup `cmd:"" help:"Query the SQLite record catalog"`
	Watch     WatchCmd     `cmd:"" help:"Re-extract decks as they change"`
	Bundle    BundleGroup  `cmd:"" help:"Pack records into a tar archive and read them back"`
	Dialect   DialectGroup `cmd:"" help:"Dialect operations"`
	Version   VersionCmd   `cmd:"" help:"Print version information"`
}

// ParseCmd prints the IR of one file.
type ParseCmd struct {
	File    string `arg:"" help:"Deck or record file" type:"existingfile"`
	Compact bool   `help:"Print JSON on a single line"`
}

func (c *ParseCmd) Run(g *Globals) error {
	doc, err := loadDocument(g, c.File)
	if err != nil {
		return err
	}
	if c.Compact {
		return json.NewEncoder(stdout).Encode(doc)
	}
	return printJSON(doc)
}

// RenderCmd prints the rendering of one file.
type RenderCmd struct {
	File   string `arg:"" help:"Deck or record file" type:"existingfile"`
	Output string `short:"o" help:"Write to this file instead of stdout" type:"path"`
}

func (c *RenderCmd) Run(g *Globals) error {
	doc, err := loadDocument(g, c.File)
	if err != nil {
		return err
	}
	opts, err := g.options()
	if err != nil {
		return err
	}
	text := deck.Render(doc, opts...)
	if c.Output == "" {
		_, err := io.WriteString(stdout, text)
		return err
	}
	if err := os.WriteFile(c.Output, []byte(text), 0644); err != nil {
		return errors.NewIO("write", c.Output, err)
	}
	return nil
}

// CheckCmd grades round-trip fidelity.
type CheckCmd struct {
	Path        string  `arg:"" help:"Deck file or directory tree" type:"existingpath"`
	MinCoverage float64 `name:"min-coverage" default:"0" help:"Fail when a deck's coverage is below this value (0..1)"`
	Workers     int     `short:"j" help:"Parallel workers (default: number of CPUs)"`
	JSON        bool    `name:"json" help:"Print the report as JSON"`
}

func (c *CheckCmd) Run(g *Globals) error {
	if c.MinCoverage < 0 || c.MinCoverage > 1 {
		return errors.NewValidation("min-coverage", "must be between 0 and 1")
	}
	d, err := g.dialect()
	if err != nil {
		return err
	}
	info, err := os.Stat(c.Path)
	if err != nil {
		return errors.NewIO("stat", c.Path, err)
	}
	if !info.IsDir() {
		return c.checkFile(g)
	}

	ctx, stop := signalContext()
	defer stop()
	rep, err := batch.Check(ctx, batch.CheckConfig{
		Root:        c.Path,
		Workers:     c.Workers,
		Dialect:     d,
		MinCoverage: c.MinCoverage,
	})
	if err != nil {
		return err
	}
	if c.JSON {
		if err := printJSON(rep); err != nil {
			return err
		}
	} else {
		for _, f := range rep.Files {
			if f.Err != nil {
				fmt.Fprintf(stdout, "%-48s ERROR %s\n", f.RelPath, f.Error)
				continue
			}
			fmt.Fprintf(stdout, "%-48s %s %7.2f%%\n", f.RelPath, f.Report.Class, 100*f.Report.Coverage)
		}
		classes := make([]string, 0, len(rep.ByClass))
		for class, n := range rep.ByClass {
			classes = append(classes, fmt.Sprintf("%s=%d", class, n))
		}
		sort.Strings(classes)
		fmt.Fprintf(stdout, "\n%d decks, mean coverage %.2f%%, %s\n",
			len(rep.Files), 100*rep.MeanCoverage, strings.Join(classes, " "))
	}
	if !rep.OK() {
		return fmt.Errorf("%d decks below minimum coverage, %d unreadable", rep.BelowMin, rep.Unreadable)
	}
	return nil
}

func (c *CheckCmd) checkFile(g *Globals) error {
	opts, err := g.options()
	if err != nil {
		return err
	}
	text, err := batch.ReadDeck(c.Path)
	if err != nil {
		return err
	}
	_, _, report := deck.RoundTrip(text, c.Path, opts...)
	if c.JSON {
		if err := printJSON(report); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(stdout, "%s %s %.2f%% (%d source lines, %d rendered)\n",
			c.Path, report.Class, 100*report.Coverage, report.SourceLines, report.RenderedLines)
		for _, line := range report.Missing {
			fmt.Fprintf(stdout, "  missing: %s\n", line)
		}
	}
	if report.Coverage < c.MinCoverage {
		return fmt.Errorf("coverage %.4f below minimum %.4f", report.Coverage, c.MinCoverage)
	}
	return nil
}

// ExtractFlags are shared by extract and watch.
type ExtractFlags struct {
	InRoot   string `name:"in-root" required:"" help:"Directory searched recursively for decks" type:"existingdir"`
	OutDir   string `name:"out-dir" required:"" help:"Directory receiving one record per deck" type:"path"`
	Workers  int    `short:"j" help:"Parallel workers (default: number of CPUs)"`
	Compress bool   `short:"z" help:"Write xz-compressed records (.json.xz)"`
	Store    string `help:"Also store deck sources in this content-addressed blob directory" type:"path"`
	Catalog  string `help:"Index records in this SQLite catalog" type:"path"`
	RunID    string `name:"run-id" help:"Run identifier stamped on records (default: random UUID)"`
}

func (c *ExtractFlags) config(ctx context.Context, g *Globals) (batch.Config, func(), error) {
	cfg := batch.Config{
		InRoot:   c.InRoot,
		OutDir:   c.OutDir,
		Workers:  c.Workers,
		Compress: c.Compress,
		RunID:    c.RunID,
	}
	cleanup := func() {}
	if err := validation.ValidateDir(c.InRoot); err != nil {
		return cfg, cleanup, err
	}
	if err := validation.ValidatePath(c.OutDir); err != nil {
		return cfg, cleanup, err
	}
	d, err := g.dialect()
	if err != nil {
		return cfg, cleanup, err
	}
	cfg.Dialect = d
	if c.Store != "" {
		store, err := cas.NewStore(c.Store)
		if err != nil {
			return cfg, cleanup, err
		}
		cfg.Store = store
	}
	if c.Catalog != "" {
		cat, err := catalog.Open(ctx, c.Catalog)
		if err != nil {
			return cfg, cleanup, err
		}
		cfg.Catalog = cat
		cleanup = func() { cat.Close() }
	}
	return cfg, cleanup, nil
}

// ExtractCmd turns a tree of decks into records.
type ExtractCmd struct {
	ExtractFlags `embed:""`
	JSON         bool `name:"json" help:"Print the summary as JSON"`
}

func (c *ExtractCmd) Run(g *Globals) error {
	ctx, stop := signalContext()
	defer stop()
	cfg, cleanup, err := c.config(ctx, g)
	defer cleanup()
	if err != nil {
		return err
	}
	sum, err := batch.Extract(ctx, cfg)
	if err != nil {
		return err
	}
	return printSummary(sum, c.JSON)
}

// DiversifyCmd writes jittered record variants.
type DiversifyCmd struct {
	InDir    string  `name:"in-dir" required:"" help:"Directory of extracted records" type:"existingdir"`
	OutDir   string  `name:"out-dir" required:"" help:"Directory receiving variant records" type:"path"`
	Max      int     `default:"${default_variants}" help:"Maximum variants per record"`
	Seed     uint64  `default:"${default_seed}" help:"Random seed (0 selects the default)"`
	Rel      float64 `default:"${default_jitter}" help:"Relative jitter applied to numeric literals"`
	Workers  int     `short:"j" help:"Parallel workers (default: number of CPUs)"`
	Compress bool    `short:"z" help:"Write xz-compressed records (.json.xz)"`
	Catalog  string  `help:"Index variants in this SQLite catalog" type:"path"`
	JSON     bool    `name:"json" help:"Print the summary as JSON"`
}

func (c *DiversifyCmd) Run(g *Globals) error {
	if c.Rel < 0 || c.Rel >= 1 {
		return errors.NewValidation("rel", "must be in [0, 1)")
	}
	d, err := g.dialect()
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	cfg := batch.DiversifyConfig{
		InDir:    c.InDir,
		OutDir:   c.OutDir,
		Variants: c.Max,
		Rel:      c.Rel,
		Seed:     c.Seed,
		Workers:  c.Workers,
		Compress: c.Compress,
		Dialect:  d,
	}
	if c.Catalog != "" {
		cat, err := catalog.Open(ctx, c.Catalog)
		if err != nil {
			return err
		}
		defer cat.Close()
		cfg.Catalog = cat
	}
	sum, err := batch.Diversify(ctx, cfg)
	if err != nil {
		return err
	}
	return printSummary(sum, c.JSON)
}

// QueryCmd runs XPath over a deck's XML projection.
type QueryCmd struct {
	Expr string `arg:"" help:"XPath expression, e.g. //section[@name='Solver']/line/@key"`
	File string `arg:"" help:"Deck or record file" type:"existingfile"`
	XML  bool   `name:"xml" help:"Print the XML projection instead of evaluating"`
}

func (c *QueryCmd) Run(g *Globals) error {
	doc, err := loadDocument(g, c.File)
	if err != nil {
		return err
	}
	tree := query.Build(doc)
	if c.XML {
		_, err := fmt.Fprintln(stdout, tree.XML())
		return err
	}
	v, err := tree.Eval(c.Expr)
	if err != nil {
		return err
	}
	matches, ok := v.([]query.Match)
	if !ok {
		_, err := fmt.Fprintln(stdout, v)
		return err
	}
	for _, m := range matches {
		fmt.Fprintln(stdout, formatMatch(m))
	}
	return nil
}

func formatMatch(m query.Match) string {
	var b strings.Builder
	if m.Section != "" {
		b.WriteString(m.Section)
		b.WriteString(": ")
	}
	b.WriteString(m.Name)
	keys := make([]string, 0, len(m.Attrs))
	for k := range m.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%q", k, m.Attrs[k])
	}
	if m.Text != "" {
		b.WriteString(" ")
		b.WriteString(m.Text)
	}
	return b.String()
}

// CatalogGroup contains catalog subcommands.
type CatalogGroup struct {
	List  CatalogListCmd  `cmd:"" help:"List indexed records"`
	Stats CatalogStatsCmd `cmd:"" help:"Print catalog statistics"`
	Find  CatalogFindCmd  `cmd:"" help:"Find records whose decks set a key"`
	Show  CatalogShowCmd  `cmd:"" help:"Show one record's entry and solver extensions"`
}

// CatalogFlag selects the catalog database.
type CatalogFlag struct {
	DB string `name:"db" required:"" help:"SQLite catalog path" type:"existingfile"`
}

func (f CatalogFlag) open(ctx context.Context) (*catalog.Catalog, error) {
	return catalog.OpenReadOnly(ctx, f.DB)
}

// CatalogListCmd lists every entry.
type CatalogListCmd struct {
	CatalogFlag `embed:""`
	JSON        bool `name:"json" help:"Print entries as JSON"`
}

func (c *CatalogListCmd) Run() error {
	ctx := context.Background()
	cat, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer cat.Close()
	entries, err := cat.List(ctx)
	if err != nil {
		return err
	}
	return printEntries(entries, c.JSON)
}

// CatalogStatsCmd prints aggregate counts.
type CatalogStatsCmd struct {
	CatalogFlag `embed:""`
}

func (c *CatalogStatsCmd) Run() error {
	ctx := context.Background()
	cat, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer cat.Close()
	stats, err := cat.Stats(ctx)
	if err != nil {
		return err
	}
	return printJSON(stats)
}

// CatalogFindCmd finds entries by section keyword.
type CatalogFindCmd struct {
	CatalogFlag `embed:""`
	Keyword     string `arg:"" help:"Key name, e.g. \"Steady State Max Iterations\" (case-insensitive)"`
	JSON        bool   `name:"json" help:"Print entries as JSON"`
}

func (c *CatalogFindCmd) Run() error {
	ctx := context.Background()
	cat, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer cat.Close()
	entries, err := cat.FindByKeyword(ctx, c.Keyword)
	if err != nil {
		return err
	}
	return printEntries(entries, c.JSON)
}

// CatalogShowCmd prints one entry.
type CatalogShowCmd struct {
	CatalogFlag `embed:""`
	ID          string `arg:"" help:"Record id"`
}

func (c *CatalogShowCmd) Run() error {
	ctx := context.Background()
	cat, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer cat.Close()
	entry, err := cat.Get(ctx, c.ID)
	if err != nil {
		return err
	}
	ext, err := cat.Extensions(ctx, c.ID)
	if err != nil {
		return err
	}
	return printJSON(struct {
		*catalog.Entry
		SolverExtensions map[string]map[string]string `json:"solver_extensions,omitempty"`
	}{entry, ext})
}

// WatchCmd keeps records current while decks are edited.
type WatchCmd struct {
	ExtractFlags `embed:""`
	Debounce     time.Duration `default:"200ms" help:"Quiet period before a changed deck is re-extracted"`
	Initial      bool          `help:"Extract the whole tree before watching"`
}

func (c *WatchCmd) Run(g *Globals) error {
	ctx, stop := signalContext()
	defer stop()
	cfg, cleanup, err := c.config(ctx, g)
	defer cleanup()
	if err != nil {
		return err
	}
	err = batch.Watch(ctx, cfg, batch.WatchOptions{
		Debounce: c.Debounce,
		Initial:  c.Initial,
		OnResult: func(e batch.WatchEvent) {
			switch {
			case e.Removed:
				fmt.Fprintf(stdout, "removed   %s\n", e.Result.RelPath)
			case e.Result.Failed():
				fmt.Fprintf(stdout, "failed    %s: %s: %v\n", e.Result.RelPath, e.Result.Op, e.Result.Err)
			default:
				fmt.Fprintf(stdout, "extracted %s %s %.2f%%\n", e.Result.RelPath, e.Result.Class, 100*e.Result.Coverage)
			}
		},
	})
	if err == nil {
		logging.Info("watch stopped", "root", cfg.InRoot)
	}
	return err
}

// BundleGroup contains bundle subcommands.
type BundleGroup struct {
	Create BundleCreateCmd `cmd:"" help:"Pack a record directory into a .tar.xz or .tar.gz bundle"`
	List   BundleListCmd   `cmd:"" help:"List the records in a bundle"`
	Show   BundleShowCmd   `cmd:"" help:"Print one record from a bundle"`
}

// BundleCreateCmd packs records.
type BundleCreateCmd struct {
	Dir    string `arg:"" help:"Record directory" type:"existingdir"`
	Output string `arg:"" help:"Bundle path (.tar.xz or .tar.gz)" type:"path"`
}

func (c *BundleCreateCmd) Run() error {
	n, err := archive.Bundle(c.Dir, c.Output)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "bundled %d records into %s\n", n, c.Output)
	return nil
}

// BundleListCmd lists bundled records.
type BundleListCmd struct {
	Bundle string `arg:"" help:"Bundle path" type:"existingfile"`
}

func (c *BundleListCmd) Run() error {
	return archive.IterateBundle(c.Bundle, func(name string, rec *archive.Record) (bool, error) {
		fmt.Fprintf(stdout, "%-56s %-40s %.2f%%\n", name, rec.Meta.RelPath, 100*rec.Meta.Coverage)
		return false, nil
	})
}

// BundleShowCmd prints one bundled record.
type BundleShowCmd struct {
	Bundle string `arg:"" help:"Bundle path" type:"existingfile"`
	ID     string `arg:"" help:"Record id"`
	Source bool   `help:"Print only the deck source text"`
}

func (c *BundleShowCmd) Run() error {
	rec, err := archive.FindRecord(c.Bundle, c.ID)
	if err != nil {
		return err
	}
	if c.Source {
		_, err := io.WriteString(stdout, rec.SourceCode)
		return err
	}
	return printJSON(rec)
}

// DialectGroup contains dialect subcommands.
type DialectGroup struct {
	Dump DialectDumpCmd `cmd:"" help:"Print the active dialect as YAML"`
}

// DialectDumpCmd prints the active dialect.
type DialectDumpCmd struct{}

func (c *DialectDumpCmd) Run(g *Globals) error {
	d, err := g.dialect()
	if err != nil {
		return err
	}
	data, err := d.Marshal()
	if err != nil {
		return err
	}
	_, err = stdout.Write(data)
	return err
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	info := sqlite.GetInfo()
	fmt.Fprintf(stdout, "deckir version %s\n", version)
	fmt.Fprintf(stdout, "sqlite driver: %s (%s)\n", info.Package, info.DriverType)
	return nil
}

// Helper functions

// loadDocument returns the IR of path, which may be a deck or a record.
func loadDocument(g *Globals, path string) (*deck.Document, error) {
	if err := validation.ValidateInputFile(path); err != nil {
		return nil, err
	}
	opts, err := g.options()
	if err != nil {
		return nil, err
	}
	kind, err := validation.DetectFileKind(path)
	if err != nil {
		return nil, err
	}
	switch kind {
	case validation.KindRecord, validation.KindRecordXZ:
		rec, err := archive.Read(path)
		if err != nil {
			return nil, err
		}
		if rec.IR != nil {
			return rec.IR, nil
		}
		return deck.Parse(rec.SourceCode, rec.Meta.SourceFile, opts...), nil
	case validation.KindDeck, validation.KindEmpty:
		text, err := batch.ReadDeck(path)
		if err != nil {
			return nil, err
		}
		return deck.Parse(text, filepath.Base(path), opts...), nil
	}
	return nil, &errors.ValidationError{
		Field:   "file",
		Value:   path,
		Message: fmt.Sprintf("is a %s file, not a deck or record", kind),
	}
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode JSON")
	}
	_, err = fmt.Fprintln(stdout, string(data))
	return err
}

func printSummary(sum *batch.Summary, asJSON bool) error {
	if asJSON {
		if err := printJSON(sum); err != nil {
			return err
		}
	} else {
		for _, f := range sum.Failures {
			fmt.Fprintf(stdout, "FAILED %s (%s): %s\n", f.RelPath, f.Op, f.Error)
		}
		fmt.Fprintf(stdout, "%s: %d processed, %d failed, %d lossless, mean coverage %.2f%% (run %s, %s)\n",
			sum.Command, sum.Processed, sum.Failed, sum.Lossless, 100*sum.MeanCoverage,
			sum.RunID, sum.Duration.Round(time.Millisecond))
	}
	if sum.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", sum.Failed, sum.Total)
	}
	return nil
}

func printEntries(entries []*catalog.Entry, asJSON bool) error {
	if asJSON {
		return printJSON(entries)
	}
	for _, e := range entries {
		fmt.Fprintln(stdout, e.String())
	}
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// defaultVars exposes the batch defaults to flag tags so the CLI and the
// library agree on them.
func defaultVars() kong.Vars {
	return kong.Vars{
		"default_seed":     strconv.FormatUint(batch.DefaultSeed, 10),
		"default_variants": strconv.Itoa(batch.DefaultVariants),
		"default_jitter":   strconv.FormatFloat(deck.DefaultJitter, 'g', -1, 64),
	}
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		defaultVars(),
		kong.Name("deckir"),
		kong.Description("deckir - solver input deck parser and round-trip toolkit"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	ctx.FatalIfErrorf(cli.Globals.initLogging())
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
