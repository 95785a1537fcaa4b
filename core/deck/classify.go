package deck

import (
	"strings"

	"github.com/FocuswithJustin/deckir/core/dialect"
)

// classifier holds the dialect vocabularies for one parse, copied once so
// per-line checks do not allocate.
type classifier struct {
	dialect        *dialect.Dialect
	kinds          []string
	terminator     string
	looseKeys      []string
	globalCommands []string
	scope          string
	includePathKey string
	includeKey     string
}

func newClassifier(d *dialect.Dialect) *classifier {
	return &classifier{
		dialect:        d,
		kinds:          d.SectionKinds(),
		terminator:     d.Terminator(),
		looseKeys:      d.LooseKeys(),
		globalCommands: d.GlobalCommands(),
		scope:          d.ExtensionScope(),
		includePathKey: d.IncludePathKey(),
		includeKey:     d.IncludeKey(),
	}
}

// header matches a section header such as "Solver 1" or "Body Force 2".
// Kinds are tried longest first; a kind must match the whole line or be
// followed by whitespace and a tag.
func (c *classifier) header(line string) (name string, tag *string, ok bool) {
	s := strings.TrimSpace(line)
	if s == "" || strings.Contains(s, "=") || c.startsWithTerminator(s) {
		return "", nil, false
	}
	for _, kind := range c.kinds {
		rest, matched := cutWordPrefix(s, kind)
		if !matched {
			continue
		}
		if rest == "" {
			return kind, nil, true
		}
		return kind, &rest, true
	}
	return "", nil, false
}

// isTerminator reports whether line closes a section. This is stricter
// than a case-insensitive "starts with end" test: the whole first word
// must equal the terminator token and the line must contain no '='. So
// "Endpoint" is not a terminator, and "End Time = 10" stays a key/value
// where the prefix test would close the section early.
func (c *classifier) isTerminator(line string) bool {
	s := strings.TrimSpace(line)
	return c.startsWithTerminator(s) && !strings.Contains(s, "=")
}

func (c *classifier) startsWithTerminator(s string) bool {
	first, _, _ := strings.Cut(s, " ")
	first, _, _ = strings.Cut(first, "\t")
	return strings.EqualFold(first, c.terminator)
}

// keyValue splits line on its first '='. An empty key is rejected.
func (c *classifier) keyValue(line string) (key, value string, ok bool) {
	left, right, found := strings.Cut(line, "=")
	if !found {
		return "", "", false
	}
	key = strings.TrimSpace(left)
	if key == "" {
		return "", "", false
	}
	return key, strings.TrimSpace(right), true
}

// looseKeyValue matches keys known to appear without '=', such as
// "Include Path ./include". The dialect's spelling of the key is returned.
func (c *classifier) looseKeyValue(line string) (key, value string, ok bool) {
	s := strings.TrimSpace(line)
	if s == "" || strings.Contains(s, "=") {
		return "", "", false
	}
	for _, k := range c.looseKeys {
		rest, matched := cutWordPrefix(s, k)
		if matched && rest != "" {
			return k, rest, true
		}
	}
	return "", "", false
}

// globalCommand matches a bare directive such as "Check Keywords Warn" or
// "RUN". The directive must be a whole word.
func (c *classifier) globalCommand(line string) (cmd, value string, ok bool) {
	s := strings.TrimSpace(line)
	for _, g := range c.globalCommands {
		if rest, matched := cutWordPrefix(s, g); matched {
			return g, rest, true
		}
	}
	return "", "", false
}

func (c *classifier) isIncludePath(key string) bool {
	return c.includePathKey != "" && strings.EqualFold(key, c.includePathKey)
}

func (c *classifier) isInclude(key string) bool {
	return c.includeKey != "" && strings.EqualFold(key, c.includeKey)
}

// cutWordPrefix reports whether s starts with word (case-insensitively)
// followed by the end of s or by whitespace. It returns the trimmed rest.
func cutWordPrefix(s, word string) (string, bool) {
	if word == "" || len(s) < len(word) || !strings.EqualFold(s[:len(word)], word) {
		return "", false
	}
	if len(s) == len(word) {
		return "", true
	}
	if next := s[len(word)]; next != ' ' && next != '\t' {
		return "", false
	}
	return strings.TrimSpace(s[len(word):]), true
}

func isIndented(line string) bool {
	return line != "" && (line[0] == ' ' || line[0] == '\t')
}
