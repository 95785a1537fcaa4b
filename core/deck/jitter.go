package deck

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strconv"
)

// DefaultJitter is the relative perturbation used when callers have no
// preference.
const DefaultJitter = 0.05

// JitterCandidate identifies a line eligible for numeric perturbation.
type JitterCandidate struct {
	Section int
	Line    int
}

// JitterCandidates lists the lines Jitter may touch: non-comment lines
// whose text holds a numeric literal and matches none of the dialect's
// protected patterns (section indices, target lists and the like).
func JitterCandidates(doc *Document, opts ...Option) []JitterCandidate {
	o := buildOptions(opts)
	var out []JitterCandidate
	for si, s := range doc.Sections {
		for li, l := range s.Lines {
			if l.Kind == KindComment || o.dialect.Protected(l.Raw) {
				continue
			}
			if len(scanNumbers(l.Raw)) == 0 {
				continue
			}
			out = append(out, JitterCandidate{Section: si, Line: li})
		}
	}
	return out
}

// Jitter perturbs one numeric literal of doc and returns the re-parsed
// result. A candidate line is drawn from rng and its first literal x is
// replaced by x*(1+u), u uniform in [-rel, rel], formatted with six
// significant digits. doc is not modified. The boolean is false when no
// line is eligible.
func Jitter(doc *Document, rng *rand.Rand, rel float64, opts ...Option) (*Document, bool) {
	o := buildOptions(opts)
	candidates := JitterCandidates(doc, opts...)
	if len(candidates) == 0 {
		return nil, false
	}

	c := candidates[rng.IntN(len(candidates))]
	clone := doc.Clone()
	line := clone.Sections[c.Section].Lines[c.Line]

	span := scanNumbers(line.Raw)[0]
	u := (rng.Float64()*2 - 1) * rel
	replacement := strconv.FormatFloat(span.value*(1+u), 'g', 6, 64)
	line.Raw = line.Raw[:span.start] + replacement + line.Raw[span.end:]

	if o.logEnabled(slog.LevelDebug) {
		o.logger.LogAttrs(context.Background(), slog.LevelDebug, "jittered literal",
			slog.String("section", clone.Sections[c.Section].Name),
			slog.Float64("from", span.value),
			slog.String("to", replacement))
	}

	return Parse(Render(clone, opts...), doc.Meta.SourceFile, opts...), true
}
