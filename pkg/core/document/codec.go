package document

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jocelyn-stericker/satie-sub004/pkg/errors"
)

// Format is a score serialization format.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks a format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", errors.New(errors.ErrCodeInvalidFormat, "unsupported score format: %s", path)
}

// Decode reads a document in the given format. Segment part ids and measure
// indices are filled in from the document structure.
func Decode(r io.Reader, format Format) (*Document, error) {
	var doc Document
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&doc); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode json score")
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode yaml score")
		}
	default:
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unknown format %q", format)
	}
	for _, m := range doc.Measures {
		if m == nil {
			return nil, errors.New(errors.ErrCodeInvalidInput, "score contains a null measure")
		}
		m.Segments()
	}
	doc.Reindex()
	return &doc, nil
}

// Encode writes doc in the given format.
func Encode(w io.Writer, doc *Document, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	}
	return errors.New(errors.ErrCodeInvalidFormat, "unknown format %q", format)
}

// Unmarshal decodes a document from bytes.
func Unmarshal(data []byte, format Format) (*Document, error) {
	return Decode(bytes.NewReader(data), format)
}

// Marshal encodes a document to bytes.
func Marshal(doc *Document, format Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, doc, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadFile loads a score from disk, choosing the format by extension.
func ReadFile(path string) (*Document, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "open score")
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f, format)
}

// WriteFile saves a score to disk, choosing the format by extension.
func WriteFile(path string, doc *Document) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	data, err := Marshal(doc, format)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
