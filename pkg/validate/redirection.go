package validate

import (
	"path/filepath"

	"github.com/ArtifactDB/alabaster-go/pkg/errors"
	"github.com/ArtifactDB/alabaster-go/pkg/metadata"
	"github.com/ArtifactDB/alabaster-go/pkg/registry"
)

// RedirectionType is the type tag of pointer nodes whose payload is an
// alternate path to resolve instead of normal decoding.
const RedirectionType = "redirection"

func init() {
	// Built-in handling so a fresh process validates redirect nodes without
	// extension code. KeepExisting lets embedders install their own first.
	_ = registry.RegisterValidate(RedirectionType, ValidateRedirection, registry.KeepExisting)
}

// ValidateRedirection checks a redirect node: the target must be recorded,
// must not be the redirect's own location, and must exist as a real,
// non-redirect object. Targets are resolved one hop; chains are rejected.
func ValidateRedirection(v registry.Validator, path string, meta metadata.Metadata) error {
	section, ok := meta.Section(RedirectionType)
	if !ok {
		return errors.Newf(errors.ErrorTypeRedirection,
			"invalid redirection at '%s': no redirection record", path)
	}
	target, ok := section.String("path")
	if !ok || target == "" {
		return errors.Newf(errors.ErrorTypeRedirection,
			"invalid redirection at '%s': no target path", path)
	}

	// Targets are recorded relative to the directory containing the
	// redirect node.
	resolved := filepath.Join(filepath.Dir(filepath.Clean(path)), target)
	if resolved == filepath.Clean(path) {
		return errors.Newf(errors.ErrorTypeRedirection,
			"redirection at '%s' points at its own location", path)
	}

	targetMeta, err := metadata.ReadObjectFile(resolved)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeRedirection,
			"invalid redirection").
			WithDetail("path", path).
			WithDetail("target", resolved)
	}
	tag, err := targetMeta.Type()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeRedirection, "invalid redirection target").
			WithDetail("path", path).
			WithDetail("target", resolved)
	}
	if tag == RedirectionType {
		return errors.Newf(errors.ErrorTypeRedirection,
			"redirection at '%s' targets another redirection at '%s'", path, resolved)
	}
	return nil
}
