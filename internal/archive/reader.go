package archive

import (
	"encoding/json"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/deckir/core/errors"
)

// Read loads the record at path, decompressing it when path ends in ".xz".
func Read(path string) (*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound("record", path)
		}
		return nil, errors.NewIO("open", path, err)
	}
	defer f.Close()

	return decode(f, path)
}

func decode(r io.Reader, path string) (*Record, error) {
	if isCompressed(path) {
		xzr, err := xz.NewReader(r)
		if err != nil {
			return nil, &errors.ParseError{Format: "xz", Path: path, Message: err.Error(), Err: err}
		}
		r = xzr
	}
	var rec Record
	if err := json.NewDecoder(r).Decode(&rec); err != nil {
		return nil, &errors.ParseError{Format: "record JSON", Path: path, Message: err.Error(), Err: err}
	}
	return &rec, nil
}

// List returns the record files under dir, recursively, sorted by path.
// A missing dir yields an empty list.
func List(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == dir {
				return fs.SkipAll
			}
			return err
		}
		if !d.IsDir() && IsRecordFile(d.Name()) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.NewIO("list records", dir, err)
	}
	sort.Strings(out)
	return out, nil
}
