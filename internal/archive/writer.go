package archive

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/deckir/core/errors"
)

// Write stores rec at path as indented JSON, xz compressed when path ends
// in ".xz". The file is written to a temporary name first and renamed into
// place, so readers never observe a partial record.
func Write(path string, rec *Record) error {
	if rec == nil {
		return errors.NewValidation("record", "must not be nil")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.NewIO("create directory", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".record-*")
	if err != nil {
		return errors.NewIO("create temp file", dir, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := encode(tmp, rec, isCompressed(path)); err != nil {
		tmp.Close()
		return errors.NewIO("write record", path, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.NewIO("close temp file", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.NewIO("rename", path, err)
	}
	return nil
}

func encode(w io.Writer, rec *Record, compress bool) error {
	bw := bufio.NewWriter(w)
	var dst io.Writer = bw
	var xzw *xz.Writer
	if compress {
		var err error
		xzw, err = xz.NewWriter(bw)
		if err != nil {
			return err
		}
		dst = xzw
	}

	enc := json.NewEncoder(dst)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return err
	}
	if xzw != nil {
		if err := xzw.Close(); err != nil {
			return err
		}
	}
	return bw.Flush()
}
