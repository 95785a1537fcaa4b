package archive

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/deckir/core/errors"
)

// Bundle packs every record file under srcDir into a tar archive at
// dstPath. The archive is xz compressed for ".tar.xz" and gzip compressed
// for ".tar.gz". Entry names are slash-separated paths relative to srcDir
// and mod times are fixed, so bundling the same records twice yields the
// same tar stream. It returns the number of records written.
func Bundle(srcDir, dstPath string) (int, error) {
	if !strings.HasSuffix(dstPath, ".tar.xz") && !strings.HasSuffix(dstPath, ".tar.gz") {
		return 0, unsupportedFormat(dstPath)
	}
	files, err := List(srcDir)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return 0, errors.NewIO("create directory", filepath.Dir(dstPath), err)
	}

	out, err := os.Create(dstPath)
	if err != nil {
		return 0, errors.NewIO("create bundle", dstPath, err)
	}
	defer out.Close()

	compressor, err := newCompressor(out, dstPath)
	if err != nil {
		return 0, err
	}
	tw := tar.NewWriter(compressor)

	for _, file := range files {
		rel, err := filepath.Rel(srcDir, file)
		if err != nil {
			return 0, errors.NewIO("relativize", file, err)
		}
		if err := addFile(tw, file, filepath.ToSlash(rel)); err != nil {
			return 0, errors.NewIO("add to bundle", file, err)
		}
	}

	if err := tw.Close(); err != nil {
		return 0, errors.NewIO("finish tar", dstPath, err)
	}
	if err := compressor.Close(); err != nil {
		return 0, errors.NewIO("finish compression", dstPath, err)
	}
	if err := out.Close(); err != nil {
		return 0, errors.NewIO("close bundle", dstPath, err)
	}
	return len(files), nil
}

func addFile(tw *tar.Writer, src, name string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr := &tar.Header{
		Name:    name,
		Mode:    0644,
		Size:    info.Size(),
		ModTime: time.Unix(0, 0).UTC(),
		Format:  tar.FormatPAX,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}

func newCompressor(w io.Writer, name string) (io.WriteCloser, error) {
	switch {
	case strings.HasSuffix(name, ".tar.xz"):
		xzw, err := xz.NewWriter(w)
		if err != nil {
			return nil, errors.NewIO("xz writer", name, err)
		}
		return xzw, nil
	case strings.HasSuffix(name, ".tar.gz"):
		return gzip.NewWriter(w), nil
	default:
		return nil, unsupportedFormat(name)
	}
}

func unsupportedFormat(name string) error {
	return &errors.ValidationError{Field: "bundle", Value: name, Message: "unsupported format (want .tar.xz or .tar.gz)"}
}

// BundleReader reads records back out of a bundle.
type BundleReader struct {
	tr           *tar.Reader
	file         *os.File
	decompressor io.Closer
	path         string
}

// OpenBundle opens the bundle at path.
func OpenBundle(path string) (*BundleReader, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound("bundle", path)
		}
		return nil, errors.NewIO("open", path, err)
	}

	var r io.Reader
	var closer io.Closer
	switch {
	case strings.HasSuffix(path, ".tar.xz"):
		xzr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, &errors.ParseError{Format: "xz", Path: path, Message: err.Error(), Err: err}
		}
		r = xzr
	case strings.HasSuffix(path, ".tar.gz"):
		gzr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, &errors.ParseError{Format: "gzip", Path: path, Message: err.Error(), Err: err}
		}
		r, closer = gzr, gzr
	default:
		f.Close()
		return nil, unsupportedFormat(path)
	}

	return &BundleReader{tr: tar.NewReader(r), file: f, decompressor: closer, path: path}, nil
}

// Close releases the underlying file.
func (b *BundleReader) Close() error {
	var first error
	if b.decompressor != nil {
		first = b.decompressor.Close()
	}
	if err := b.file.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

// Visitor is called once per record in a bundle. Return stop=true to end
// iteration early.
type Visitor func(name string, rec *Record) (stop bool, err error)

// Iterate decodes each record entry in order and hands it to visit.
// Entries that are not record files are skipped.
func (b *BundleReader) Iterate(visit Visitor) error {
	for {
		hdr, err := b.tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &errors.ParseError{Format: "tar", Path: b.path, Message: err.Error(), Err: err}
		}
		if hdr.Typeflag != tar.TypeReg || !IsRecordFile(path.Base(hdr.Name)) {
			continue
		}

		rec, err := decode(b.tr, hdr.Name)
		if err != nil {
			return err
		}
		stop, err := visit(hdr.Name, rec)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
}

// IterateBundle opens path and iterates its records.
func IterateBundle(path string, visit Visitor) error {
	b, err := OpenBundle(path)
	if err != nil {
		return err
	}
	defer b.Close()
	return b.Iterate(visit)
}

// FindRecord returns the first record in the bundle whose id (file name
// without extension) equals id.
func FindRecord(bundlePath, id string) (*Record, error) {
	var found *Record
	err := IterateBundle(bundlePath, func(name string, rec *Record) (bool, error) {
		if RecordID(name) == id {
			found = rec
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, errors.NewNotFound("record", id)
	}
	return found, nil
}
