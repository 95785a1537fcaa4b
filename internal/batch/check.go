package batch

import (
	"context"
	"path/filepath"
	"time"

	"github.com/FocuswithJustin/deckir/core/deck"
	"github.com/FocuswithJustin/deckir/core/dialect"
	"github.com/FocuswithJustin/deckir/core/errors"
	"github.com/FocuswithJustin/deckir/internal/logging"
)

// CheckConfig drives Check.
type CheckConfig struct {
	Root    string
	Workers int
	Dialect *dialect.Dialect

	// MinCoverage marks decks below this coverage as failing; zero accepts
	// every deck that could be read.
	MinCoverage float64
}

// CheckResult is the round-trip report for one deck.
type CheckResult struct {
	RelPath string              `json:"rel_path"`
	Report  deck.FidelityReport `json:"report"`
	Err     error               `json:"-"`
	Error   string              `json:"error,omitempty"`
}

// CheckReport covers a whole tree.
type CheckReport struct {
	Files        []CheckResult          `json:"files"`
	ByClass      map[deck.LossClass]int `json:"by_class"`
	MeanCoverage float64                `json:"mean_coverage"`
	BelowMin     int                    `json:"below_min"`
	Unreadable   int                    `json:"unreadable"`
}

// OK reports whether every deck was readable and met the minimum coverage.
func (r *CheckReport) OK() bool {
	return r.BelowMin == 0 && r.Unreadable == 0
}

// Check round-trips every deck under cfg.Root and grades each one. Nothing
// is written.
func Check(ctx context.Context, cfg CheckConfig) (*CheckReport, error) {
	if cfg.Root == "" {
		return nil, errors.NewValidation("root", "must not be empty")
	}
	d := cfg.Dialect
	if d == nil {
		d = dialect.Default()
	}
	started := time.Now()

	files, err := FindDecks(cfg.Root, d.FileExtension())
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, &errors.NotFoundError{Resource: "input files", ID: cfg.Root}
	}

	results, err := Map(ctx, cfg.Workers, files, func(ctx context.Context, rel string) CheckResult {
		res := CheckResult{RelPath: rel}
		text, rerr := ReadDeck(filepath.Join(cfg.Root, rel))
		if rerr != nil {
			res.Err, res.Error = rerr, rerr.Error()
			return res
		}
		_, _, res.Report = deck.RoundTrip(text, rel, deck.WithDialect(d))
		return res
	})

	rep := &CheckReport{ByClass: make(map[deck.LossClass]int)}
	graded := 0
	for _, r := range results {
		if r.RelPath == "" {
			continue
		}
		rep.Files = append(rep.Files, r)
		if r.Err != nil {
			rep.Unreadable++
			logging.DeckFailed(ctx, r.RelPath, "read", r.Err)
			continue
		}
		graded++
		rep.ByClass[r.Report.Class]++
		rep.MeanCoverage += r.Report.Coverage
		if r.Report.Coverage < cfg.MinCoverage {
			rep.BelowMin++
		}
	}
	if graded > 0 {
		rep.MeanCoverage /= float64(graded)
	}
	logging.BatchSummary(ctx, "check", graded, rep.Unreadable, time.Since(started),
		"below_min", rep.BelowMin, "mean_coverage", rep.MeanCoverage)
	return rep, err
}
