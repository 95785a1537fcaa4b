package dialect

import (
	"bytes"
	stderrors "errors"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/FocuswithJustin/deckir/core/errors"
)

// Load reads a YAML dialect file. Fields absent from the file keep their
// DefaultSpec values, so a file only needs to list what it changes.
func Load(path string) (*Dialect, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIO("read", path, err)
	}
	return Parse(data, path)
}

// Parse decodes a YAML dialect document layered over DefaultSpec.
// Unknown fields are rejected.
func Parse(data []byte, source string) (*Dialect, error) {
	spec := DefaultSpec()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil && !stderrors.Is(err, io.EOF) {
		return nil, &errors.ParseError{
			Format:  "dialect YAML",
			Path:    source,
			Message: err.Error(),
			Err:     err,
		}
	}

	return New(spec)
}

// Marshal encodes the dialect's Spec as YAML.
func (d *Dialect) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d.Spec()); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
