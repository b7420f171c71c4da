// Package metadata reads and writes the structured documents that describe
// saved objects on disk.
//
// Every object directory in the current format carries an OBJECT document at
// a fixed location containing at minimum a "type" string; handler-specific
// fields are opaque to the core. The legacy format instead stores one JSON
// document per resource path, optionally gzip-compressed.
package metadata

import (
	"os"
	"path/filepath"

	"github.com/ArtifactDB/alabaster-go/pkg/compression"
	"github.com/ArtifactDB/alabaster-go/pkg/errors"
	jsonpool "github.com/ArtifactDB/alabaster-go/pkg/json"
)

// ObjectFile is the name of the metadata document inside each object
// directory in the current format.
const ObjectFile = "OBJECT"

// Metadata is a decoded metadata document. Numeric fields are json.Number.
type Metadata map[string]interface{}

// Type returns the universal "type" field identifying the registered
// handler family for the node.
func (m Metadata) Type() (string, error) {
	raw, ok := m["type"]
	if !ok {
		return "", errors.New(errors.ErrorTypeMalformedMetadata, "metadata has no 'type' field")
	}
	tag, ok := raw.(string)
	if !ok || tag == "" {
		return "", errors.New(errors.ErrorTypeMalformedMetadata, "metadata 'type' field is not a non-empty string")
	}
	return tag, nil
}

// IsChild reports whether the document declares itself a child of an
// enclosing object. An absent flag means false.
func (m Metadata) IsChild() bool {
	flag, ok := m["is_child"].(bool)
	return ok && flag
}

// String returns a top-level string field.
func (m Metadata) String(key string) (string, bool) {
	s, ok := m[key].(string)
	return s, ok
}

// Int returns a top-level integer field, accepting the json.Number
// representation the decoder produces.
func (m Metadata) Int(key string) (int64, bool) {
	switch v := m[key].(type) {
	case jsonpool.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return n, true
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

// Section returns a nested object field.
func (m Metadata) Section(key string) (Metadata, bool) {
	obj, ok := m[key].(map[string]interface{})
	if !ok {
		return nil, false
	}
	return Metadata(obj), true
}

// ReadObjectFile reads the OBJECT document of the object stored at dir.
func ReadObjectFile(dir string) (Metadata, error) {
	return ReadDocument(filepath.Join(dir, ObjectFile))
}

// WriteObjectFile writes the OBJECT document for the object stored at dir.
// Encode-side handlers use this to record chosen container types and
// missing-value placeholders so readers need no additional inference.
func WriteObjectFile(dir string, m Metadata) error {
	buf := jsonpool.GetBuffer()
	defer jsonpool.PutBuffer(buf)

	if err := jsonpool.Encode(buf, m); err != nil {
		return errors.Wrap(err, errors.ErrorTypeMalformedMetadata, "failed to encode object metadata").
			WithDetail("dir", dir)
	}
	if err := os.WriteFile(filepath.Join(dir, ObjectFile), buf.Bytes(), 0o644); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write object metadata").
			WithDetail("dir", dir)
	}
	return nil
}

// ReadDocument reads one JSON metadata document. Compressed documents
// (".gz", ".zst") are decompressed transparently by suffix.
func ReadDocument(path string) (Metadata, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is the validation target supplied by the caller
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeMalformedMetadata, "failed to open metadata document").
			WithDetail("path", path)
	}
	defer f.Close()

	r, err := compression.OpenReader(f, path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeMalformedMetadata, "failed to decompress metadata document").
			WithDetail("path", path)
	}
	defer r.Close()

	var m Metadata
	if err := jsonpool.Decode(r, &m); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeMalformedMetadata, "failed to parse metadata document").
			WithDetail("path", path)
	}
	return m, nil
}

// ReadOptional reads an auxiliary document relative to dir. Read or parse
// failures are treated as "feature absent" rather than errors; only the
// OBJECT document itself is load-bearing.
func ReadOptional(dir, name string) (Metadata, bool) {
	m, err := ReadDocument(filepath.Join(dir, name))
	if err != nil {
		return nil, false
	}
	return m, true
}
