package deck

import (
	"strings"

	"github.com/FocuswithJustin/deckir/core/dialect"
)

// IsFullComment reports whether line, after leading whitespace, starts
// with one of the dialect's comment markers.
func IsFullComment(line string, d *dialect.Dialect) bool {
	return d.HasCommentMarkerPrefix(strings.TrimLeft(line, " \t"))
}

// StripComment removes a trailing comment from line. Full-comment lines
// are returned unchanged so they can be kept as comment entries. A line
// is cut at the earliest occurrence of any marker.
func StripComment(line string, d *dialect.Dialect) string {
	if !d.ContainsCommentMarker(line) || IsFullComment(line, d) {
		return line
	}
	return line[:d.CommentIndex(line)]
}
