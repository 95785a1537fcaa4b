package deck

import "strings"

// GlobalSection is the name of the pseudo-section holding lines that
// appear outside any explicit block.
const GlobalSection = "Global"

// LineKind classifies a Line.
type LineKind string

// Line kinds.
const (
	// KindComment is a full-line comment, kept verbatim.
	KindComment LineKind = "comment"

	// KindKeyValue is a "key = value" assignment.
	KindKeyValue LineKind = "key_value"

	// KindLooseKeyValue is a known key given without an assignment operator
	// (e.g. "Include Path ./mesh").
	KindLooseKeyValue LineKind = "loose_key_value"

	// KindGlobalCommand is a bare directive outside any section (e.g. "RUN").
	KindGlobalCommand LineKind = "global_command"

	// KindSolverExtension is a "Solver <id> :: <key> = <value>" line outside
	// any section. Its key/value live in Document.Extensions.
	KindSolverExtension LineKind = "solver_extension"

	// KindRaw is anything the classifier could not place, kept verbatim.
	KindRaw LineKind = "raw"
)

// HasKey reports whether lines of this kind carry a key and value.
func (k LineKind) HasKey() bool {
	switch k {
	case KindKeyValue, KindLooseKeyValue, KindGlobalCommand, KindSolverExtension:
		return true
	}
	return false
}

// Line is one logical entry inside a Section.
type Line struct {
	Kind LineKind `json:"kind"`

	// Raw is the verbatim text with any trailing comment removed and
	// trailing whitespace trimmed. Leading indentation is kept.
	Raw string `json:"raw"`

	// Key and Value are set when Kind.HasKey().
	Key   string `json:"key,omitempty"`
	Value string `json:"value,omitempty"`

	// SolverID is set for KindSolverExtension lines.
	SolverID string `json:"solver_id,omitempty"`

	// Continuations are indented follow-up lines (array rows, MATC
	// fragments), stored trimmed.
	Continuations []string `json:"cont,omitempty"`
}

// Section is one delimited block, or the Global pseudo-section.
type Section struct {
	Name string  `json:"name"`
	Tag  *string `json:"tag"`

	// Header is the header line as written (trimmed). The renderer reuses
	// it when it still agrees with Name and Tag.
	Header string `json:"header,omitempty"`

	// Terminator is the closing line as written, empty if the section was
	// never closed.
	Terminator string `json:"terminator,omitempty"`

	Lines []*Line `json:"lines"`
}

// IsGlobal reports whether s is the Global pseudo-section.
func (s *Section) IsGlobal() bool {
	return s.Name == GlobalSection
}

// TagString returns the tag, or "" when absent.
func (s *Section) TagString() string {
	if s.Tag == nil {
		return ""
	}
	return *s.Tag
}

// Meta is metadata derived at parse time.
type Meta struct {
	SourceFile   string         `json:"source_file"`
	SectionCount int            `json:"section_count"`
	SectionNames []string       `json:"section_names"`
	Counts       map[string]int `json:"counts"`

	SolverCount            int `json:"solver_count"`
	BoundaryConditionCount int `json:"bc_count"`
	MaterialCount          int `json:"material_count"`
	BodyCount              int `json:"body_count"`
	EquationCount          int `json:"equation_count"`
}

// Document is the parsed form of one input deck.
type Document struct {
	Sections []*Section `json:"sections"`

	// Keywords is the sorted set of keys seen anywhere in the deck.
	Keywords []string `json:"keywords"`

	// Numbers is the sorted set of numeric literals found in values,
	// continuations and raw lines.
	Numbers []float64 `json:"numbers"`

	// Extensions maps solver id to extension key to value.
	Extensions map[string]map[string]string `json:"solver_ext,omitempty"`

	IncludePaths []string `json:"include_paths,omitempty"`
	Includes     []string `json:"includes,omitempty"`

	Meta Meta `json:"meta"`
}

// Global returns the Global pseudo-section, or nil if the deck has none.
func (d *Document) Global() *Section {
	for _, s := range d.Sections {
		if s.IsGlobal() {
			return s
		}
	}
	return nil
}

// SectionsNamed returns the sections of the given kind, compared
// case-insensitively, in document order.
func (d *Document) SectionsNamed(name string) []*Section {
	var out []*Section
	for _, s := range d.Sections {
		if strings.EqualFold(s.Name, name) {
			out = append(out, s)
		}
	}
	return out
}

// Lookup returns the value of the first key_value or loose_key_value line
// in the section whose key matches (case-insensitively).
func (s *Section) Lookup(key string) (string, bool) {
	for _, l := range s.Lines {
		if (l.Kind == KindKeyValue || l.Kind == KindLooseKeyValue) && strings.EqualFold(l.Key, key) {
			return l.Value, true
		}
	}
	return "", false
}

// EntryCount returns the number of Line and continuation entries in the
// document. Headers and terminators are not entries.
func (d *Document) EntryCount() int {
	n := 0
	for _, s := range d.Sections {
		for _, l := range s.Lines {
			n += 1 + len(l.Continuations)
		}
	}
	return n
}
