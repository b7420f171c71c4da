// Package compression provides transparent decompression for metadata
// documents. Legacy archives frequently store their JSON documents
// gzip-compressed, and newer tooling emits zstandard; the algorithm is
// derived from the filename suffix so callers never branch themselves.
package compression

import (
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/ArtifactDB/alabaster-go/pkg/errors"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// None represents no compression
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
)

// Detect maps a filename suffix to the algorithm used to store it.
func Detect(path string) Algorithm {
	switch {
	case strings.HasSuffix(path, ".gz"):
		return Gzip
	case strings.HasSuffix(path, ".zst"):
		return Zstd
	}
	return None
}

// reader pairs a decompressing stream with the closers behind it.
type reader struct {
	io.Reader
	close func() error
}

func (r *reader) Close() error {
	if r.close == nil {
		return nil
	}
	return r.close()
}

// NewReader wraps r with the decompressor for the given algorithm. The
// returned ReadCloser owns only the decompressor state, not r itself.
func NewReader(r io.Reader, algorithm Algorithm) (io.ReadCloser, error) {
	switch algorithm {
	case None:
		return &reader{Reader: r}, nil
	case Gzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open gzip stream")
		}
		return &reader{Reader: gz, close: gz.Close}, nil
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open zstd stream")
		}
		return &reader{Reader: zr, close: func() error { zr.Close(); return nil }}, nil
	}
	return nil, errors.Newf(errors.ErrorTypeFile, "unsupported compression algorithm %q", algorithm)
}

// OpenReader is NewReader with the algorithm detected from path.
func OpenReader(r io.Reader, path string) (io.ReadCloser, error) {
	return NewReader(r, Detect(path))
}
