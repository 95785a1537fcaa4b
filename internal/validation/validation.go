// Package validation checks paths and files handed to deckir on the
// command line before any batch work starts, and sniffs what kind of file
// an argument is so commands can accept either a deck or a stored record.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	apperrors "github.com/FocuswithJustin/deckir/core/errors"
)

// Limits on CLI inputs.
const (
	// MaxDeckSize is the largest single deck file read (64 MB).
	MaxDeckSize = 64 << 20
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
)

// Common validation errors. Each is also reachable as
// apperrors.ErrInvalidInput through the ValidationError that carries it.
var (
	ErrEmptyPath        = errors.New("path cannot be empty")
	ErrPathTooLong      = errors.New("path too long")
	ErrInvalidCharacter = errors.New("invalid character in path")
	ErrPathTraversal    = errors.New("path escapes base directory")
	ErrNotDirectory     = errors.New("not a directory")
	ErrNotRegular       = errors.New("not a regular file")
	ErrTooLarge         = errors.New("file too large")
)

func invalid(field, value string, err error) error {
	return &apperrors.ValidationError{
		Field:   field,
		Value:   value,
		Message: err.Error(),
		Err:     errors.Join(err, apperrors.ErrInvalidInput),
	}
}

// ValidatePath rejects empty, overlong and control-character paths.
func ValidatePath(path string) error {
	if path == "" {
		return invalid("path", path, ErrEmptyPath)
	}
	if len(path) > MaxPathLength {
		return invalid("path", path[:32]+"...", ErrPathTooLong)
	}
	for _, r := range path {
		if r == 0 || unicode.IsControl(r) {
			return invalid("path", path, fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter))
		}
	}
	return nil
}

// ValidateDir checks that path names an existing directory.
func ValidateDir(path string) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return apperrors.NewNotFound("directory", path)
		}
		return apperrors.NewIO("stat", path, err)
	}
	if !info.IsDir() {
		return invalid("directory", path, ErrNotDirectory)
	}
	return nil
}

// ValidateInputFile checks that path names an existing regular file no
// larger than MaxDeckSize.
func ValidateInputFile(path string) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return apperrors.NewNotFound("file", path)
		}
		return apperrors.NewIO("stat", path, err)
	}
	if !info.Mode().IsRegular() {
		return invalid("file", path, ErrNotRegular)
	}
	if info.Size() > MaxDeckSize {
		return invalid("file", path, fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, info.Size(), MaxDeckSize))
	}
	return nil
}

// RelWithin returns path relative to base, failing if it resolves outside
// base. The result uses the host separator.
func RelWithin(base, path string) (string, error) {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", apperrors.NewIO("resolve", base, err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", apperrors.NewIO("resolve", path, err)
	}
	rel, err := filepath.Rel(absBase, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", invalid("path", path, ErrPathTraversal)
	}
	return rel, nil
}

// FileKind is what an input file appears to be.
type FileKind string

const (
	KindDeck      FileKind = "deck"
	KindRecord    FileKind = "record"
	KindRecordXZ  FileKind = "record.xz"
	KindBundle    FileKind = "bundle"
	KindCatalog   FileKind = "catalog"
	KindDialect   FileKind = "dialect"
	KindBinary    FileKind = "binary"
	KindEmpty     FileKind = "empty"
	KindUndecided FileKind = "unknown"
)

var magicBytes = []struct {
	kind  FileKind
	magic []byte
}{
	{KindCatalog, []byte("SQLite format 3\x00")},
	{KindRecordXZ, []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}},
	{KindBundle, []byte{0x1f, 0x8b}},
}

// DetectKind sniffs the first bytes of r, together with filename, to
// decide what kind of input it is. An xz stream is a bundle when the name
// says ".tar.xz" and a compressed record otherwise.
func DetectKind(r io.Reader, filename string) (FileKind, error) {
	buf := make([]byte, 512)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return KindUndecided, apperrors.NewIO("read header", filename, err)
	}
	buf = buf[:n]
	if len(buf) == 0 {
		return KindEmpty, nil
	}

	lower := strings.ToLower(filename)
	for _, sig := range magicBytes {
		if bytes.HasPrefix(buf, sig.magic) {
			if sig.kind == KindRecordXZ && strings.HasSuffix(lower, ".tar.xz") {
				return KindBundle, nil
			}
			return sig.kind, nil
		}
	}

	if !LooksLikeText(buf) {
		return KindBinary, nil
	}
	switch {
	case strings.HasSuffix(lower, ".yaml"), strings.HasSuffix(lower, ".yml"):
		return KindDialect, nil
	case strings.HasSuffix(lower, ".json") && bytes.HasPrefix(bytes.TrimSpace(buf), []byte("{")):
		return KindRecord, nil
	}
	return KindDeck, nil
}

// DetectFileKind opens path and calls DetectKind.
func DetectFileKind(path string) (FileKind, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return KindUndecided, apperrors.NewNotFound("file", path)
		}
		return KindUndecided, apperrors.NewIO("open", path, err)
	}
	defer f.Close()
	return DetectKind(f, path)
}

// LooksLikeText reports whether buf is mostly printable text with no NUL
// bytes. Bytes of multi-byte UTF-8 sequences count as neutral.
func LooksLikeText(buf []byte) bool {
	if len(buf) == 0 {
		return false
	}
	if bytes.IndexByte(buf, 0) != -1 {
		return false
	}

	printable, control := 0, 0
	for _, b := range buf {
		switch {
		case b >= 0x20 && b <= 0x7e, b == '\t', b == '\n', b == '\r':
			printable++
		case b < 0x20:
			control++
		}
	}
	return printable > 0 && float64(printable)/float64(printable+control) > 0.95
}
