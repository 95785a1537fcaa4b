// Package archive persists extracted deck records as JSON files, xz
// compressed when the file name ends in ".xz", and bundles record
// directories into tar.xz archives.
package archive

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/FocuswithJustin/deckir/core/cas"
	"github.com/FocuswithJustin/deckir/core/deck"
)

// Record file extensions.
const (
	ExtJSON   = ".json"
	ExtJSONXZ = ".json.xz"
)

// Record is one persisted deck: its source text, parsed form and metadata.
type Record struct {
	SourceCode string         `json:"source_code"`
	IR         *deck.Document `json:"ir"`
	Meta       Meta           `json:"meta"`
}

// Meta describes where a record came from.
type Meta struct {
	SourceFile string         `json:"source_file"`
	RelPath    string         `json:"rel_path"`
	ID         string         `json:"id"`
	Coverage   float64        `json:"coverage"`
	Class      deck.LossClass `json:"loss_class,omitempty"`
	RunID      string         `json:"run_id,omitempty"`

	// SourceHash is the BLAKE3 digest of SourceCode, also its key in the
	// blob store when one is configured.
	SourceHash string `json:"source_hash,omitempty"`

	// Parent and Variant are set on records derived by numeric jitter.
	Parent  string `json:"parent,omitempty"`
	Variant int    `json:"variant,omitempty"`
}

// RecordName returns the base file name (without extension) for the deck
// at rel: path separators become "__" and a short digest of rel is
// appended, so "a/case.sif" and "b/case.sif" never collide.
func RecordName(rel string) string {
	slashed := filepath.ToSlash(rel)
	return strings.ReplaceAll(slashed, "/", "__") + "__" + cas.ShortID(slashed)
}

// VariantName returns the base name of the n-th variant of base. Variants
// are numbered from 1.
func VariantName(base string, n int) string {
	return fmt.Sprintf("%s__aug%d", base, n)
}

// RecordID strips the record extension from a file name.
func RecordID(filename string) string {
	name := filepath.Base(filename)
	for _, ext := range []string{ExtJSONXZ, ExtJSON} {
		if strings.HasSuffix(strings.ToLower(name), ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}

// IsRecordFile reports whether name has a record extension.
func IsRecordFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ExtJSON) || strings.HasSuffix(lower, ExtJSONXZ)
}

func isCompressed(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".xz")
}
