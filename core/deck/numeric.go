package deck

import (
	"regexp"
	"strconv"
	"unicode"
	"unicode/utf8"
)

// numberPrefix matches a numeric literal at the start of the input.
var numberPrefix = regexp.MustCompile(`^[-+]?\d+(?:\.\d+)?(?:[eE][+-]?\d+)?`)

// numberSpan locates one numeric literal in a string.
type numberSpan struct {
	start, end int
	value      float64
}

// ExtractNumbers returns the numeric literals in text, in order of
// appearance. A literal must not touch an identifier character, slash,
// dot or hyphen on either side, so paths ("mesh/v2"), versions
// ("Mesh.v2.1") and identifiers ("T1") yield nothing.
func ExtractNumbers(text string) []float64 {
	spans := scanNumbers(text)
	if len(spans) == 0 {
		return nil
	}
	out := make([]float64, len(spans))
	for i, sp := range spans {
		out[i] = sp.value
	}
	return out
}

func scanNumbers(s string) []numberSpan {
	var spans []numberSpan
	for i := 0; i < len(s); {
		c := s[i]
		if !(c == '+' || c == '-' || (c >= '0' && c <= '9')) || !boundaryBefore(s, i) {
			i++
			continue
		}
		loc := numberPrefix.FindStringIndex(s[i:])
		if loc == nil {
			i++
			continue
		}
		end := i + loc[1]
		if !boundaryAfter(s, end) {
			// A shorter prefix would end on a digit, '.', or exponent
			// letter, none of which is a boundary, so no match starts here.
			i++
			continue
		}
		v, err := strconv.ParseFloat(s[i:end], 64)
		if err == nil {
			spans = append(spans, numberSpan{start: i, end: end, value: v})
		}
		i = end
	}
	return spans
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isNumberNeighbor(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isNumberNeighbor(r)
}

func isNumberNeighbor(r rune) bool {
	return r == '_' || r == '/' || r == '.' || r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
