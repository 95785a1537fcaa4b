package deck

import (
	"bufio"
	"io"
	"strings"
)

// Render turns a Document back into deck text. The Global section is
// written without framing; every other section gets a header, its lines,
// and a terminator. Sections are separated by one blank line and the
// result ends with a single newline. An empty Document renders as "\n".
func Render(doc *Document, opts ...Option) string {
	var sb strings.Builder
	// strings.Builder never fails to write.
	_ = RenderTo(&sb, doc, opts...)
	return sb.String()
}

// RenderTo writes the rendered form of doc to w.
func RenderTo(w io.Writer, doc *Document, opts ...Option) error {
	o := buildOptions(opts)
	lines := renderLines(doc, o.dialect.Terminator())

	// Trailing blank separators collapse into the final newline.
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}

	bw := bufio.NewWriter(w)
	for _, l := range lines {
		if _, err := bw.WriteString(l); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	if len(lines) == 0 {
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func renderLines(doc *Document, defaultTerminator string) []string {
	if doc == nil {
		return nil
	}
	var out []string
	for _, sec := range doc.Sections {
		if sec.IsGlobal() {
			out = appendBody(out, sec)
			out = append(out, "")
			continue
		}
		out = append(out, headerLine(sec))
		out = appendBody(out, sec)
		term := sec.Terminator
		if term == "" {
			term = defaultTerminator
		}
		out = append(out, term, "")
	}
	return out
}

func appendBody(out []string, sec *Section) []string {
	for _, l := range sec.Lines {
		out = append(out, l.Raw)
		for _, c := range l.Continuations {
			if isIndented(c) {
				out = append(out, c)
			} else {
				out = append(out, "  "+c)
			}
		}
	}
	return out
}

// headerLine returns the header as originally written when it still
// names the same section, otherwise "name tag".
func headerLine(sec *Section) string {
	composed := sec.Name
	if sec.Tag != nil && *sec.Tag != "" {
		composed += " " + *sec.Tag
	}
	if sec.Header != "" && strings.EqualFold(collapseSpace(sec.Header), collapseSpace(composed)) {
		return sec.Header
	}
	return composed
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
