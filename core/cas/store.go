// Package cas provides content-addressed storage for deck texts.
// Blobs are stored by their BLAKE3 digest, so identical sources and
// renderings are kept once and can be verified on read.
package cas

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/FocuswithJustin/deckir/core/errors"
)

// osRename is a variable to allow testing of rename errors.
var osRename = os.Rename

// tempFileWrite is a function variable for writing to temp files (for testing).
var tempFileWrite = func(f *os.File, data []byte) (int, error) {
	return f.Write(data)
}

// tempFileClose is a function variable for closing temp files (for testing).
var tempFileClose = func(f io.Closer) error {
	return f.Close()
}

// ErrBlobNotFound is returned when no blob has the requested hash.
var ErrBlobNotFound = fmt.Errorf("blob %w", errors.ErrNotFound)

// ErrInvalidHash is returned when a hash is not a BLAKE3-256 hex digest.
var ErrInvalidHash = fmt.Errorf("hash format: %w", errors.ErrInvalidInput)

// ErrCorrupt is returned when a stored blob no longer matches its hash.
var ErrCorrupt = fmt.Errorf("blob content does not match hash: %w", errors.ErrIO)

// Store is a directory of blobs laid out as <root>/blobs/blake3/<2>/<hash>.
type Store struct {
	root string
}

// NewStore opens the store at root, creating its directories.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(root, "blobs", "blake3"), 0755); err != nil {
		return nil, errors.NewIO("create blob directory", root, err)
	}
	return &Store{root: root}, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// Put stores data and returns its hash. Storing existing content is a
// no-op.
func (s *Store) Put(data []byte) (string, error) {
	hash := Hash(data)
	path := s.pathForHash(hash)
	if _, err := os.Stat(path); err == nil {
		return hash, nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.NewIO("create prefix directory", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, ".blob-*")
	if err != nil {
		return "", errors.NewIO("create temp file", dir, err)
	}
	tempPath := tempFile.Name()

	if _, err := tempFileWrite(tempFile, data); err != nil {
		tempFileClose(tempFile)
		os.Remove(tempPath)
		return "", errors.NewIO("write blob", tempPath, err)
	}
	if err := tempFileClose(tempFile); err != nil {
		os.Remove(tempPath)
		return "", errors.NewIO("close blob", tempPath, err)
	}
	// Rename is atomic on POSIX, so readers never see a partial blob.
	if err := osRename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return "", errors.NewIO("rename blob", path, err)
	}
	return hash, nil
}

// PutString is Put for string content.
func (s *Store) PutString(text string) (string, error) {
	return s.Put([]byte(text))
}

// Get returns the blob with the given hash and checks its content.
func (s *Store) Get(hash string) ([]byte, error) {
	if !isValidHash(hash) {
		return nil, ErrInvalidHash
	}
	data, err := os.ReadFile(s.pathForHash(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, errors.NewIO("read blob", hash, err)
	}
	if !Verify(data, hash) {
		return nil, ErrCorrupt
	}
	return data, nil
}

// Has reports whether a blob with the given hash exists.
func (s *Store) Has(hash string) bool {
	if !isValidHash(hash) {
		return false
	}
	_, err := os.Stat(s.pathForHash(hash))
	return err == nil
}

func (s *Store) pathForHash(hash string) string {
	return filepath.Join(s.root, "blobs", "blake3", hash[:2], hash)
}
