package batch

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/FocuswithJustin/deckir/core/errors"
)

// FindDecks returns the paths, relative to root, of every file below root
// whose name ends in ext (compared case-insensitively). Hidden directories
// are skipped. The result is sorted.
func FindDecks(root, ext string) ([]string, error) {
	if ext == "" {
		return nil, errors.NewValidation("extension", "must not be empty")
	}
	ext = strings.ToLower(ext)

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !strings.HasSuffix(strings.ToLower(d.Name()), ext) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound("input directory", root)
		}
		return nil, errors.NewIO("walk", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// ReadDeck reads a deck file, dropping invalid UTF-8 byte sequences
// rather than failing on them.
func ReadDeck(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewNotFound("input deck", path)
		}
		return "", errors.NewIO("read", path, err)
	}
	return decodeTolerant(data), nil
}

func decodeTolerant(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "")
}
