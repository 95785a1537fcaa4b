package deck

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"unicode"
)

// Parse converts deck text into a Document. Parsing never fails: every
// non-blank line ends up as exactly one Line or one continuation, and
// lines the classifier cannot place are kept as raw entries.
//
// source is recorded in Meta.SourceFile and is not opened.
func Parse(text, source string, opts ...Option) *Document {
	o := buildOptions(opts)
	b := &builder{
		opts:     o,
		c:        newClassifier(o.dialect),
		doc:      &Document{},
		keywords: make(map[string]struct{}),
		numbers:  make(map[float64]struct{}),
	}
	for i, raw := range splitLines(text) {
		b.lineNo = i + 1
		b.add(raw)
	}
	return b.finish(source)
}

type builder struct {
	opts options
	c    *classifier
	doc  *Document

	// current is the open section, nil between sections.
	current *Section
	global  *Section
	lineNo  int

	keywords map[string]struct{}
	numbers  map[float64]struct{}
}

func (b *builder) add(raw string) {
	line := strings.TrimRightFunc(StripComment(raw, b.c.dialect), unicode.IsSpace)
	if strings.TrimSpace(line) == "" {
		return
	}

	if IsFullComment(line, b.c.dialect) {
		b.target().Lines = append(b.target().Lines, &Line{Kind: KindComment, Raw: line})
		return
	}

	if name, tag, ok := b.c.header(line); ok {
		sec := &Section{Name: name, Tag: tag, Header: strings.TrimSpace(line)}
		b.doc.Sections = append(b.doc.Sections, sec)
		b.current = sec
		return
	}

	if b.c.isTerminator(line) {
		if b.current != nil {
			b.current.Terminator = strings.TrimSpace(line)
		}
		b.current = nil
		return
	}

	if b.current != nil {
		b.addSectionLine(line)
		return
	}
	b.addGlobalLine(line)
}

func (b *builder) addSectionLine(line string) {
	sec := b.current
	if key, value, ok := b.c.keyValue(line); ok {
		b.appendEntry(sec, KindKeyValue, line, key, value)
		return
	}
	if key, value, ok := b.c.looseKeyValue(line); ok {
		b.appendEntry(sec, KindLooseKeyValue, line, key, value)
		return
	}
	if isIndented(line) && len(sec.Lines) > 0 {
		last := sec.Lines[len(sec.Lines)-1]
		last.Continuations = append(last.Continuations, strings.TrimSpace(line))
		b.addNumbers(line)
		return
	}
	b.appendRaw(sec, line)
}

func (b *builder) addGlobalLine(line string) {
	if key, value, ok := b.c.keyValue(line); ok {
		if ext, isExt := parseSolverExtension(line, b.c.scope); isExt {
			b.addExtension(line, ext)
			return
		}
		b.appendEntry(b.target(), KindKeyValue, line, key, value)
		return
	}
	if key, value, ok := b.c.looseKeyValue(line); ok {
		b.appendEntry(b.target(), KindLooseKeyValue, line, key, value)
		return
	}
	if cmd, value, ok := b.c.globalCommand(line); ok {
		b.appendEntry(b.target(), KindGlobalCommand, line, cmd, value)
		return
	}
	b.appendRaw(b.target(), line)
}

func (b *builder) appendEntry(sec *Section, kind LineKind, raw, key, value string) {
	sec.Lines = append(sec.Lines, &Line{Kind: kind, Raw: raw, Key: key, Value: value})
	b.keywords[key] = struct{}{}
	b.addNumbers(value)
	switch {
	case b.c.isIncludePath(key):
		b.doc.IncludePaths = append(b.doc.IncludePaths, value)
	case b.c.isInclude(key):
		b.doc.Includes = append(b.doc.Includes, value)
	}
}

func (b *builder) addExtension(raw string, ext solverExtension) {
	g := b.target()
	g.Lines = append(g.Lines, &Line{
		Kind:     KindSolverExtension,
		Raw:      raw,
		Key:      ext.Key,
		Value:    ext.Value,
		SolverID: ext.ID,
	})
	if b.doc.Extensions == nil {
		b.doc.Extensions = make(map[string]map[string]string)
	}
	m := b.doc.Extensions[ext.ID]
	if m == nil {
		m = make(map[string]string)
		b.doc.Extensions[ext.ID] = m
	}
	m[ext.Key] = ext.Value
	b.keywords[ext.Key] = struct{}{}
	b.addNumbers(ext.Value)
}

func (b *builder) appendRaw(sec *Section, line string) {
	sec.Lines = append(sec.Lines, &Line{Kind: KindRaw, Raw: line})
	b.addNumbers(line)
	if b.opts.logEnabled(slog.LevelDebug) {
		b.opts.logger.LogAttrs(context.Background(), slog.LevelDebug, "unclassified line",
			slog.Int("line", b.lineNo),
			slog.String("section", sec.Name),
			slog.String("text", strings.TrimSpace(line)))
	}
}

// target returns the open section, or the Global section (created on first
// use) when no section is open.
func (b *builder) target() *Section {
	if b.current != nil {
		return b.current
	}
	if b.global == nil {
		b.global = &Section{Name: GlobalSection}
		b.doc.Sections = append(b.doc.Sections, b.global)
	}
	return b.global
}

func (b *builder) addNumbers(text string) {
	for _, sp := range scanNumbers(text) {
		b.numbers[sp.value] = struct{}{}
	}
}

func (b *builder) finish(source string) *Document {
	doc := b.doc

	doc.Keywords = make([]string, 0, len(b.keywords))
	for k := range b.keywords {
		doc.Keywords = append(doc.Keywords, k)
	}
	sort.Strings(doc.Keywords)

	doc.Numbers = make([]float64, 0, len(b.numbers))
	for n := range b.numbers {
		doc.Numbers = append(doc.Numbers, n)
	}
	sort.Float64s(doc.Numbers)

	doc.Meta = buildMeta(doc, source)

	if b.opts.logEnabled(slog.LevelDebug) {
		b.opts.logger.LogAttrs(context.Background(), slog.LevelDebug, "parsed deck",
			slog.String("source", source),
			slog.Int("sections", doc.Meta.SectionCount),
			slog.Int("entries", doc.EntryCount()),
			slog.Int("keywords", len(doc.Keywords)))
	}
	return doc
}

func buildMeta(doc *Document, source string) Meta {
	m := Meta{
		SourceFile:   source,
		SectionCount: len(doc.Sections),
		SectionNames: make([]string, len(doc.Sections)),
		Counts:       make(map[string]int),
	}
	for i, s := range doc.Sections {
		m.SectionNames[i] = s.Name
		m.Counts[s.Name]++
	}
	m.SolverCount = countFold(m.Counts, "Solver")
	m.BoundaryConditionCount = countFold(m.Counts, "Boundary Condition")
	m.MaterialCount = countFold(m.Counts, "Material")
	m.BodyCount = countFold(m.Counts, "Body")
	m.EquationCount = countFold(m.Counts, "Equation")
	return m
}

func countFold(counts map[string]int, name string) int {
	n := 0
	for k, v := range counts {
		if strings.EqualFold(k, name) {
			n += v
		}
	}
	return n
}

// splitLines splits on "\n", "\r\n" and lone "\r". A trailing newline
// does not produce an empty final line.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n':
			lines = append(lines, text[start:i])
			start = i + 1
		case '\r':
			lines = append(lines, text[start:i])
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}
