package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/deckir/core/deck"
	"github.com/FocuswithJustin/deckir/core/sqlite"
	"github.com/FocuswithJustin/deckir/internal/archive"
	"github.com/FocuswithJustin/deckir/internal/batch"
)

const heatDeck = `Header
  Mesh DB "." "square"
End

Simulation
  Max Output Level = 5
End

Solver 1
  Equation = Heat Equation
  Steady State Convergence Tolerance = 1.0e-5
End

Boundary Condition 1
  Target Boundaries(1) = 1
  Temperature = 0.0
End
`

// Test helper functions

func createTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	return path
}

// captureOutput runs fn with stdout redirected to a buffer.
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	old := stdout
	stdout = &buf
	defer func() { stdout = old }()
	err := fn()
	return buf.String(), err
}

// Tests for ParseCmd

func TestParseCmd_Run(t *testing.T) {
	dir := t.TempDir()
	path := createTestFile(t, dir, "case.sif", heatDeck)

	out, err := captureOutput(t, func() error {
		return (&ParseCmd{File: path}).Run(&Globals{})
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	var doc deck.Document
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("output is not a document: %v", err)
	}
	if doc.Meta.SectionCount != 4 {
		t.Errorf("SectionCount = %d, want 4", doc.Meta.SectionCount)
	}
	if doc.Meta.SolverCount != 1 {
		t.Errorf("SolverCount = %d, want 1", doc.Meta.SolverCount)
	}
}

func TestParseCmd_Record(t *testing.T) {
	dir := t.TempDir()
	recPath := filepath.Join(dir, "case.json.xz")
	rec := &archive.Record{SourceCode: heatDeck, Meta: archive.Meta{SourceFile: "case.sif"}}
	if err := archive.Write(recPath, rec); err != nil {
		t.Fatal(err)
	}

	out, err := captureOutput(t, func() error {
		return (&ParseCmd{File: recPath, Compact: true}).Run(&Globals{})
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if strings.Count(out, "\n") != 1 {
		t.Errorf("compact output spans %d lines", strings.Count(out, "\n"))
	}
	if !strings.Contains(out, `"Heat Equation"`) {
		t.Errorf("output missing solver value: %s", out)
	}
}

func TestParseCmd_RejectsBinary(t *testing.T) {
	dir := t.TempDir()
	path := createTestFile(t, dir, "mesh.bin", "\x00\x01\x02\x03binary")
	_, err := captureOutput(t, func() error {
		return (&ParseCmd{File: path}).Run(&Globals{})
	})
	if err == nil {
		t.Fatal("Run() on binary file returned nil error")
	}
}

// Tests for RenderCmd

func TestRenderCmd_Run(t *testing.T) {
	dir := t.TempDir()
	path := createTestFile(t, dir, "case.sif", heatDeck)

	out, err := captureOutput(t, func() error {
		return (&RenderCmd{File: path}).Run(&Globals{})
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out != heatDeck {
		t.Errorf("render differs from source:\n%s", out)
	}

	dst := filepath.Join(dir, "out.sif")
	if _, err := captureOutput(t, func() error {
		return (&RenderCmd{File: path, Output: dst}).Run(&Globals{})
	}); err != nil {
		t.Fatalf("Run() with output error = %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != heatDeck {
		t.Error("written render differs from source")
	}
}

// Tests for CheckCmd

func TestCheckCmd_File(t *testing.T) {
	dir := t.TempDir()
	path := createTestFile(t, dir, "case.sif", heatDeck)

	out, err := captureOutput(t, func() error {
		return (&CheckCmd{Path: path, MinCoverage: 1}).Run(&Globals{})
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out, "L0") {
		t.Errorf("output = %q, want L0 grade", out)
	}
}

func TestCheckCmd_Tree(t *testing.T) {
	dir := t.TempDir()
	createTestFile(t, dir, "a/case.sif", heatDeck)
	createTestFile(t, dir, "b/stray.sif", "End\nRUN\n")

	tests := []struct {
		name        string
		minCoverage float64
		wantErr     bool
	}{
		{"no minimum", 0, false},
		{"strict", 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := captureOutput(t, func() error {
				return (&CheckCmd{Path: dir, MinCoverage: tt.minCoverage, JSON: true}).Run(&Globals{})
			})
			if (err != nil) != tt.wantErr {
				t.Errorf("Run() error = %v, wantErr %v", err, tt.wantErr)
			}
			var rep struct {
				Files []json.RawMessage `json:"files"`
			}
			if err := json.Unmarshal([]byte(out), &rep); err != nil {
				t.Fatalf("output is not a report: %v", err)
			}
			if len(rep.Files) != 2 {
				t.Errorf("report has %d files, want 2", len(rep.Files))
			}
		})
	}
}

func TestCheckCmd_InvalidCoverage(t *testing.T) {
	if err := (&CheckCmd{Path: t.TempDir(), MinCoverage: 2}).Run(&Globals{}); err == nil {
		t.Error("Run() with min-coverage 2 returned nil error")
	}
}

// Tests for ExtractCmd, DiversifyCmd, CatalogGroup and BundleGroup

func TestExtractPipeline(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "decks")
	createTestFile(t, in, "heat/case.sif", heatDeck)
	records := filepath.Join(dir, "records")
	variants := filepath.Join(dir, "variants")
	db := filepath.Join(dir, "catalog.db")
	g := &Globals{}

	extract := &ExtractCmd{ExtractFlags: ExtractFlags{
		InRoot:  in,
		OutDir:  records,
		Store:   filepath.Join(dir, "blobs"),
		Catalog: db,
		RunID:   "run-1",
	}}
	out, err := captureOutput(t, func() error { return extract.Run(g) })
	if err != nil {
		t.Fatalf("extract error = %v", err)
	}
	if !strings.Contains(out, "1 processed, 0 failed") {
		t.Errorf("extract output = %q", out)
	}

	div := &DiversifyCmd{InDir: records, OutDir: variants, Max: 2, Seed: 7, Rel: 0.05, Catalog: db}
	if _, err := captureOutput(t, func() error { return div.Run(g) }); err != nil {
		t.Fatalf("diversify error = %v", err)
	}
	names, err := archive.List(variants)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 {
		t.Errorf("diversify wrote %d variants, want 2", len(names))
	}

	out, err = captureOutput(t, (&CatalogListCmd{CatalogFlag: CatalogFlag{DB: db}}).Run)
	if err != nil {
		t.Fatalf("catalog list error = %v", err)
	}
	if got := strings.Count(out, "\n"); got != 3 {
		t.Errorf("catalog list printed %d lines, want 3:\n%s", got, out)
	}

	out, err = captureOutput(t, (&CatalogFindCmd{CatalogFlag: CatalogFlag{DB: db}, Keyword: "temperature", JSON: true}).Run)
	if err != nil {
		t.Fatalf("catalog find error = %v", err)
	}
	var found []map[string]any
	if err := json.Unmarshal([]byte(out), &found); err != nil {
		t.Fatalf("find output is not JSON: %v", err)
	}
	if len(found) != 3 {
		t.Errorf("find returned %d entries, want 3", len(found))
	}

	out, err = captureOutput(t, (&CatalogStatsCmd{CatalogFlag: CatalogFlag{DB: db}}).Run)
	if err != nil {
		t.Fatalf("catalog stats error = %v", err)
	}
	var stats struct {
		Decks    int `json:"decks"`
		Variants int `json:"variants"`
	}
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Decks != 3 || stats.Variants != 2 {
		t.Errorf("stats = %+v, want 3 decks and 2 variants", stats)
	}

	id := archive.RecordName(filepath.Join("heat", "case.sif"))
	if _, err := captureOutput(t, (&CatalogShowCmd{CatalogFlag: CatalogFlag{DB: db}, ID: id}).Run); err != nil {
		t.Errorf("catalog show error = %v", err)
	}

	bundle := filepath.Join(dir, "records.tar.gz")
	if _, err := captureOutput(t, (&BundleCreateCmd{Dir: records, Output: bundle}).Run); err != nil {
		t.Fatalf("bundle create error = %v", err)
	}
	out, err = captureOutput(t, (&BundleListCmd{Bundle: bundle}).Run)
	if err != nil {
		t.Fatalf("bundle list error = %v", err)
	}
	if !strings.Contains(out, "heat/case.sif") {
		t.Errorf("bundle list = %q", out)
	}
	out, err = captureOutput(t, (&BundleShowCmd{Bundle: bundle, ID: id, Source: true}).Run)
	if err != nil {
		t.Fatalf("bundle show error = %v", err)
	}
	if out != heatDeck {
		t.Errorf("bundle show source differs:\n%s", out)
	}
}

func TestDiversifyCmd_InvalidRel(t *testing.T) {
	cmd := &DiversifyCmd{InDir: t.TempDir(), OutDir: t.TempDir(), Rel: 1.5}
	if err := cmd.Run(&Globals{}); err == nil {
		t.Error("Run() with rel 1.5 returned nil error")
	}
}

func TestDiversifyCmd_Defaults(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, defaultVars(), kong.Name("deckir"))
	if err != nil {
		t.Fatalf("kong.New() error = %v", err)
	}
	dir := t.TempDir()
	if _, err := parser.Parse([]string{"diversify", "--in-dir", dir, "--out-dir", dir}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	d := cli.Diversify
	if d.Seed != batch.DefaultSeed || d.Max != batch.DefaultVariants || d.Rel != deck.DefaultJitter {
		t.Errorf("defaults = seed %d, max %d, rel %g", d.Seed, d.Max, d.Rel)
	}
}

// Tests for QueryCmd

func TestQueryCmd_Run(t *testing.T) {
	dir := t.TempDir()
	path := createTestFile(t, dir, "case.sif", heatDeck)

	tests := []struct {
		name string
		expr string
		want string
	}{
		{"count", "count(//section)", "4"},
		{"select", "//section[@name='Solver']/line[@key='Equation']", `value="Heat Equation"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := captureOutput(t, func() error {
				return (&QueryCmd{Expr: tt.expr, File: path}).Run(&Globals{})
			})
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("output = %q, want it to contain %q", out, tt.want)
			}
		})
	}

	if _, err := captureOutput(t, func() error {
		return (&QueryCmd{Expr: "//section[", File: path}).Run(&Globals{})
	}); err == nil {
		t.Error("Run() with malformed expression returned nil error")
	}
}

// Tests for DialectDumpCmd and the --dialect flag

func TestDialectDumpCmd_Run(t *testing.T) {
	out, err := captureOutput(t, func() error {
		return (&DialectDumpCmd{}).Run(&Globals{})
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out, "elmer-sif") {
		t.Errorf("dump missing dialect name:\n%s", out)
	}

	dir := t.TempDir()
	custom := createTestFile(t, dir, "custom.yaml", out)
	g := &Globals{Dialect: custom}
	again, err := captureOutput(t, func() error { return (&DialectDumpCmd{}).Run(g) })
	if err != nil {
		t.Fatalf("Run() with --dialect error = %v", err)
	}
	if again != out {
		t.Error("dumping a loaded dump changed it")
	}
}

func TestGlobals_BadDialect(t *testing.T) {
	dir := t.TempDir()
	bad := createTestFile(t, dir, "bad.yaml", "section_kinds: [unterminated\n")
	g := &Globals{Dialect: bad}
	if _, err := g.dialect(); err == nil {
		t.Error("dialect() with malformed YAML returned nil error")
	}
}

func TestGlobals_InitLogging(t *testing.T) {
	if err := (&Globals{LogLevel: "debug", LogFormat: "json"}).initLogging(); err != nil {
		t.Errorf("initLogging() error = %v", err)
	}
	if err := (&Globals{LogLevel: "loud"}).initLogging(); err == nil {
		t.Error("initLogging() with unknown level returned nil error")
	}
}

// Tests for VersionCmd

func TestVersionCmd_Run(t *testing.T) {
	out, err := captureOutput(t, (&VersionCmd{}).Run)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out, version) {
		t.Errorf("output = %q", out)
	}
	if want := "sqlite driver: " + sqlite.GetInfo().Package; !strings.Contains(out, want) {
		t.Errorf("output = %q, want %q", out, want)
	}
}
