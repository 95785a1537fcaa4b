package deck

import (
	"strings"

	"github.com/FocuswithJustin/deckir/core/dialect"
)

// LossClass grades how faithfully rendered text reproduces its source.
type LossClass string

// Loss classes, from most to least faithful.
const (
	// LossL0 means the rendered text is byte-identical to the source.
	LossL0 LossClass = "L0"

	// LossL1 means every normalized source line reappears.
	LossL1 LossClass = "L1"

	// LossL2 means at least 95% of normalized source lines reappear.
	LossL2 LossClass = "L2"

	// LossL3 means at least half of normalized source lines reappear.
	LossL3 LossClass = "L3"

	// LossL4 means less than half reappear.
	LossL4 LossClass = "L4"
)

// Level returns 0-4, or -1 for an unknown class.
func (l LossClass) Level() int {
	switch l {
	case LossL0:
		return 0
	case LossL1:
		return 1
	case LossL2:
		return 2
	case LossL3:
		return 3
	case LossL4:
		return 4
	default:
		return -1
	}
}

// IsSemanticallyLossless reports whether all source content survived.
func (l LossClass) IsSemanticallyLossless() bool {
	return l == LossL0 || l == LossL1
}

// FidelityReport is the result of comparing source text with its rendering.
type FidelityReport struct {
	SourceLines   int     `json:"source_lines"`
	RenderedLines int     `json:"rendered_lines"`
	Coverage      float64 `json:"coverage"`

	// Missing lists normalized source lines absent from the rendering, in
	// source order without duplicates.
	Missing []string  `json:"missing,omitempty"`
	Class   LossClass `json:"class"`
}

// CheckFidelity measures how much of original reappears in rendered.
// Both texts are normalized line by line (comment stripped, trimmed,
// whitespace runs collapsed, empty lines dropped); coverage is the share
// of normalized original lines found in the rendered set, and 1.0 for an
// empty original.
func CheckFidelity(original, rendered string, opts ...Option) FidelityReport {
	o := buildOptions(opts)
	src := normalizeLines(original, o.dialect)
	out := normalizeLines(rendered, o.dialect)

	have := make(map[string]struct{}, len(out))
	for _, l := range out {
		have[l] = struct{}{}
	}

	r := FidelityReport{
		SourceLines:   len(src),
		RenderedLines: len(out),
		Coverage:      1.0,
	}
	if len(src) > 0 {
		hits := 0
		seen := make(map[string]struct{})
		for _, l := range src {
			if _, ok := have[l]; ok {
				hits++
				continue
			}
			if _, dup := seen[l]; !dup {
				seen[l] = struct{}{}
				r.Missing = append(r.Missing, l)
			}
		}
		r.Coverage = float64(hits) / float64(len(src))
	}
	r.Class = classify(original == rendered, r.Coverage)
	return r
}

// RoundTrip parses text, renders the result and checks the rendering
// against text.
func RoundTrip(text, source string, opts ...Option) (*Document, string, FidelityReport) {
	doc := Parse(text, source, opts...)
	rendered := Render(doc, opts...)
	return doc, rendered, CheckFidelity(text, rendered, opts...)
}

func classify(identical bool, coverage float64) LossClass {
	switch {
	case identical:
		return LossL0
	case coverage >= 1.0:
		return LossL1
	case coverage >= 0.95:
		return LossL2
	case coverage >= 0.5:
		return LossL3
	default:
		return LossL4
	}
}

// NormalizeLine applies the fidelity normalization to a single line.
func NormalizeLine(line string, opts ...Option) string {
	o := buildOptions(opts)
	return normalizeLine(line, o.dialect)
}

func normalizeLine(line string, d *dialect.Dialect) string {
	return strings.Join(strings.Fields(StripComment(line, d)), " ")
}

func normalizeLines(text string, d *dialect.Dialect) []string {
	var out []string
	for _, l := range splitLines(text) {
		if n := normalizeLine(l, d); n != "" {
			out = append(out, n)
		}
	}
	return out
}
