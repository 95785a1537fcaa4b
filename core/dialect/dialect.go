// Package dialect holds the fixed vocabularies that drive input deck
// classification: section kinds, comment markers, loose keys, global
// commands and the solver-extension scope keyword.
//
// A Dialect is immutable once built. Parsers and renderers receive it
// explicitly, so several dialects can be used side by side in one process.
package dialect

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/FocuswithJustin/deckir/core/errors"
)

// Spec is the declarative form of a dialect, as read from a YAML file.
type Spec struct {
	Name           string   `yaml:"name" json:"name"`
	Extension      string   `yaml:"extension" json:"extension"`
	SectionKinds   []string `yaml:"section_kinds" json:"section_kinds"`
	CommentMarkers []string `yaml:"comment_markers" json:"comment_markers"`
	Terminator     string   `yaml:"terminator" json:"terminator"`
	LooseKeys      []string `yaml:"loose_keys" json:"loose_keys"`
	GlobalCommands []string `yaml:"global_commands" json:"global_commands"`
	ExtensionScope string   `yaml:"extension_scope" json:"extension_scope"`
	IncludePathKey string   `yaml:"include_path_key" json:"include_path_key"`
	IncludeKey     string   `yaml:"include_key" json:"include_key"`

	// ProtectedPatterns are case-insensitive regular expressions. A line
	// matching any of them is never chosen for numeric perturbation.
	ProtectedPatterns []string `yaml:"protected_patterns" json:"protected_patterns"`
}

// DefaultSpec returns the Elmer solver input file (.sif) vocabulary.
func DefaultSpec() Spec {
	return Spec{
		Name:      "elmer-sif",
		Extension: ".sif",
		SectionKinds: []string{
			"Boundary Condition",
			"Initial Condition",
			"Body Force",
			"Body",
			"Material",
			"Equation",
			"Solver",
			"Simulation",
			"Header",
			"Constants",
			"Component",
		},
		CommentMarkers: []string{"!", "#"},
		Terminator:     "End",
		LooseKeys:      []string{"Include Path", "Results Directory"},
		GlobalCommands: []string{"Check Keywords", "RUN", "Include"},
		ExtensionScope: "Solver",
		IncludePathKey: "Include Path",
		IncludeKey:     "Include",
		ProtectedPatterns: []string{
			`\bSolver\s+\d+\b`,
			`\bBody\s+\d+\b`,
			`\bEquation\s+\d+\b`,
			`\bMaterial\s+\d+\b`,
			`\bBoundary Condition\s+\d+\b`,
			`\bInitial Condition\s+\d+\b`,
			`\bBody Force\s+\d+\b`,
			`\bSolver\s*\d+::`,
			`\bBody\s*\d+::`,
			`\bBoundary Condition\s*\d+::`,
			`\bTarget Boundaries\b`,
			`\bTarget Bodies\b`,
			`\bActive Solvers\b`,
		},
	}
}

// Dialect is a validated, immutable Spec with precomputed lookup tables.
type Dialect struct {
	spec       Spec
	kindsByLen []string
	protected  []*regexp.Regexp
}

var defaultDialect = sync.OnceValue(func() *Dialect {
	d, err := New(DefaultSpec())
	if err != nil {
		panic(fmt.Sprintf("dialect: default spec is invalid: %v", err))
	}
	return d
})

// Default returns the shared Elmer dialect.
func Default() *Dialect {
	return defaultDialect()
}

// New validates spec and builds a Dialect from it.
func New(spec Spec) (*Dialect, error) {
	if len(spec.SectionKinds) == 0 {
		return nil, errors.NewValidation("section_kinds", "at least one section kind is required")
	}
	for _, k := range spec.SectionKinds {
		if strings.TrimSpace(k) == "" {
			return nil, errors.NewValidation("section_kinds", "section kind must not be blank")
		}
	}
	if len(spec.CommentMarkers) == 0 {
		return nil, errors.NewValidation("comment_markers", "at least one comment marker is required")
	}
	for _, m := range spec.CommentMarkers {
		if m == "" || strings.TrimSpace(m) != m {
			return nil, &errors.ValidationError{
				Field:   "comment_markers",
				Value:   m,
				Message: "comment marker must be non-empty and contain no whitespace",
			}
		}
	}
	if strings.TrimSpace(spec.Terminator) == "" || strings.ContainsAny(spec.Terminator, " \t") {
		return nil, &errors.ValidationError{
			Field:   "terminator",
			Value:   spec.Terminator,
			Message: "terminator must be a single word",
		}
	}
	if strings.ContainsAny(spec.ExtensionScope, " \t") {
		return nil, &errors.ValidationError{
			Field:   "extension_scope",
			Value:   spec.ExtensionScope,
			Message: "extension scope must be a single word",
		}
	}
	if spec.Extension != "" && !strings.HasPrefix(spec.Extension, ".") {
		spec.Extension = "." + spec.Extension
	}

	d := &Dialect{spec: cloneSpec(spec)}

	d.kindsByLen = slices.Clone(spec.SectionKinds)
	// Longest first so "Body Force" wins over "Body". Stable keeps
	// declaration order among equal lengths.
	slices.SortStableFunc(d.kindsByLen, func(a, b string) int {
		return len(b) - len(a)
	})

	for _, p := range spec.ProtectedPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, &errors.ValidationError{
				Field:   "protected_patterns",
				Value:   p,
				Message: "invalid regular expression",
				Err:     err,
			}
		}
		d.protected = append(d.protected, re)
	}

	return d, nil
}

// MustNew is like New but panics on error. Intended for tests and
// package-level dialect definitions.
func MustNew(spec Spec) *Dialect {
	d, err := New(spec)
	if err != nil {
		panic(err)
	}
	return d
}

// Spec returns a copy of the dialect's declarative form.
func (d *Dialect) Spec() Spec { return cloneSpec(d.spec) }

// Name returns the dialect name.
func (d *Dialect) Name() string { return d.spec.Name }

// FileExtension returns the input deck file extension, including the dot.
func (d *Dialect) FileExtension() string { return d.spec.Extension }

// SectionKinds returns the section vocabulary ordered longest name first.
func (d *Dialect) SectionKinds() []string { return slices.Clone(d.kindsByLen) }

// CommentMarkers returns the comment markers in declaration order.
func (d *Dialect) CommentMarkers() []string { return slices.Clone(d.spec.CommentMarkers) }

// Terminator returns the section terminator token (e.g. "End").
func (d *Dialect) Terminator() string { return d.spec.Terminator }

// LooseKeys returns the keys recognized without an assignment operator.
func (d *Dialect) LooseKeys() []string { return slices.Clone(d.spec.LooseKeys) }

// GlobalCommands returns the bare directives allowed outside sections.
func (d *Dialect) GlobalCommands() []string { return slices.Clone(d.spec.GlobalCommands) }

// ExtensionScope returns the keyword that opens a solver-extension line.
func (d *Dialect) ExtensionScope() string { return d.spec.ExtensionScope }

// IncludePathKey returns the key whose values are collected as include paths.
func (d *Dialect) IncludePathKey() string { return d.spec.IncludePathKey }

// IncludeKey returns the key whose values are collected as includes.
func (d *Dialect) IncludeKey() string { return d.spec.IncludeKey }

// Protected reports whether s matches one of the protected patterns.
func (d *Dialect) Protected(s string) bool {
	for _, re := range d.protected {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// HasCommentMarkerPrefix reports whether s starts with a comment marker.
func (d *Dialect) HasCommentMarkerPrefix(s string) bool {
	for _, m := range d.spec.CommentMarkers {
		if strings.HasPrefix(s, m) {
			return true
		}
	}
	return false
}

// ContainsCommentMarker reports whether s contains any comment marker.
func (d *Dialect) ContainsCommentMarker(s string) bool {
	return d.CommentIndex(s) >= 0
}

// CommentIndex returns the byte offset of the earliest comment marker in
// s, or -1 if there is none.
func (d *Dialect) CommentIndex(s string) int {
	cut := -1
	for _, m := range d.spec.CommentMarkers {
		if i := strings.Index(s, m); i >= 0 && (cut < 0 || i < cut) {
			cut = i
		}
	}
	return cut
}

func cloneSpec(s Spec) Spec {
	s.SectionKinds = slices.Clone(s.SectionKinds)
	s.CommentMarkers = slices.Clone(s.CommentMarkers)
	s.LooseKeys = slices.Clone(s.LooseKeys)
	s.GlobalCommands = slices.Clone(s.GlobalCommands)
	s.ProtectedPatterns = slices.Clone(s.ProtectedPatterns)
	return s
}
