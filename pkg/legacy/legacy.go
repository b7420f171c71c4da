// Package legacy validates the older metadata-graph layout, where every
// object is described by a standalone JSON document and parents enumerate
// their children as resource references inside their own document.
//
// Unlike the current format, nothing here dispatches through the type
// registry: the whole graph is loaded into memory and checked for
// referential consistency in one pass.
package legacy

import (
	"context"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ArtifactDB/alabaster-go/pkg/errors"
	"github.com/ArtifactDB/alabaster-go/pkg/logger"
	"github.com/ArtifactDB/alabaster-go/pkg/metadata"
	"github.com/ArtifactDB/alabaster-go/pkg/metrics"
	"github.com/ArtifactDB/alabaster-go/pkg/observability"
)

// document is one parsed metadata file plus its bookkeeping state.
type document struct {
	// physical is the metadata file's path relative to the root,
	// slash-separated.
	physical string

	// declared is the document's own "path" property, the node identity
	// that every reference in the graph resolves against.
	declared string

	isChild    bool
	redirect   string
	isRedirect bool
	children   []string
	referenced int
}

// Validator checks a legacy directory for internal consistency.
type Validator struct {
	logger *zap.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithLogger replaces the default component logger.
func WithLogger(log *zap.Logger) Option {
	return func(v *Validator) {
		v.logger = log
	}
}

// New creates a legacy Validator.
func New(opts ...Option) *Validator {
	v := &Validator{
		logger: logger.WithComponent("legacy_validator"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate loads every metadata document under root and checks the whole
// graph: declared paths against physical locations, child references
// against the index, redirection targets, and filesystem coverage. The
// first violation is returned and nothing is retained across calls.
func (v *Validator) Validate(ctx context.Context, root string) error {
	timer := metrics.NewTimer("legacy")
	defer timer.Stop()

	_, span := observability.StartValidation(ctx, "legacy", root)
	err := v.run(root)
	observability.EndValidation(span, err)

	if err != nil {
		metrics.ValidationFailures.WithLabelValues(string(errors.TypeOf(err))).Inc()
		v.logger.Warn("legacy validation failed",
			zap.String("root", root),
			zap.Error(err))
		return err
	}

	v.logger.Debug("legacy validation succeeded", zap.String("root", root))
	return nil
}

func (v *Validator) run(root string) error {
	files, docs, err := v.load(root)
	if err != nil {
		return err
	}

	index := make(map[string]*document, len(docs))
	for _, doc := range docs {
		if prev, ok := index[doc.declared]; ok {
			return errors.Newf(errors.ErrorTypeStructural,
				"unexpected path '%s': already declared by '%s'", doc.physical, prev.physical)
		}
		index[doc.declared] = doc
	}

	for _, doc := range docs {
		if doc.isRedirect {
			if err := checkRedirect(doc, index); err != nil {
				return err
			}
			continue
		}
		if err := checkReferences(doc, index); err != nil {
			return err
		}
	}

	for _, doc := range docs {
		if err := checkCoverage(doc, index); err != nil {
			return err
		}
	}

	return checkUnknownFiles(files, index)
}

// load walks the tree, parses every metadata document and verifies each
// filename against its declared path. Documents come back sorted by
// declared path so that failure order is deterministic.
func (v *Validator) load(root string) ([]string, []*document, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return relErr
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to walk legacy directory").
			WithDetail("root", root)
	}
	sort.Strings(files)

	var docs []*document
	for _, rel := range files {
		declared, ok := documentPath(rel)
		if !ok {
			continue
		}

		meta, readErr := metadata.ReadDocument(filepath.Join(root, filepath.FromSlash(rel)))
		if readErr != nil {
			return nil, nil, readErr
		}

		doc := &document{physical: rel, isChild: meta.IsChild()}
		doc.declared, ok = meta.String("path")
		if !ok {
			return nil, nil, errors.Newf(errors.ErrorTypeMalformedMetadata,
				"metadata document at '%s' has no path property", rel)
		}

		if section, has := meta.Section("redirection"); has {
			doc.isRedirect = true
			doc.redirect, _ = section.String("path")
			if doc.redirect == "" {
				return nil, nil, errors.Newf(errors.ErrorTypeRedirection,
					"redirection at '%s' has no target path", rel)
			}
		} else {
			doc.children = collectResources(meta)
		}

		if doc.declared != declared {
			if doc.isRedirect {
				return nil, nil, errors.Newf(errors.ErrorTypeRedirection,
					"redirection at '%s' references an unexpected path '%s'", rel, doc.declared)
			}
			return nil, nil, errors.Newf(errors.ErrorTypeStructural,
				"unexpected path '%s' in metadata document at '%s'", doc.declared, rel)
		}

		docs = append(docs, doc)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].declared < docs[j].declared })
	return files, docs, nil
}

// documentPath strips the metadata suffix from a filename, reporting
// whether the file is a metadata document at all.
func documentPath(rel string) (string, bool) {
	switch {
	case strings.HasSuffix(rel, ".json.gz"):
		return strings.TrimSuffix(rel, ".json.gz"), true
	case strings.HasSuffix(rel, ".json.zst"):
		return strings.TrimSuffix(rel, ".json.zst"), true
	case strings.HasSuffix(rel, ".json"):
		return strings.TrimSuffix(rel, ".json"), true
	}
	return "", false
}

func checkRedirect(doc *document, index map[string]*document) error {
	if doc.redirect == doc.declared {
		return errors.Newf(errors.ErrorTypeRedirection,
			"redirection from existing path '%s'", doc.declared)
	}
	target, ok := index[doc.redirect]
	if !ok {
		return errors.Newf(errors.ErrorTypeRedirection,
			"invalid redirection from '%s' to '%s'", doc.declared, doc.redirect)
	}
	// Targets resolve one hop; a redirect target covers both chains and
	// cycles, since every member of a cycle points at another redirect.
	if target.isRedirect {
		return errors.Newf(errors.ErrorTypeRedirection,
			"invalid redirection from '%s' to '%s': target is itself a redirection",
			doc.declared, doc.redirect)
	}
	return nil
}

func checkReferences(doc *document, index map[string]*document) error {
	prefix := path.Dir(doc.declared)
	for _, childPath := range doc.children {
		child, ok := index[childPath]
		if !ok {
			return errors.Newf(errors.ErrorTypeStructural,
				"missing child object '%s' (referenced by '%s')", childPath, doc.declared)
		}
		if prefix != "." && !strings.HasPrefix(childPath, prefix+"/") {
			return errors.Newf(errors.ErrorTypeStructural,
				"'%s' references non-nested child at '%s'", doc.declared, childPath)
		}
		child.referenced++
		if child.referenced > 1 {
			return errors.Newf(errors.ErrorTypeStructural,
				"multiple references to child at '%s'", childPath)
		}
		if !child.isChild {
			return errors.Newf(errors.ErrorTypeStructural,
				"non-child object at '%s' is referenced by '%s'", childPath, doc.declared)
		}
	}
	return nil
}

// checkCoverage verifies that every unreferenced document is a
// legitimate root: redirects and top-level non-children stand alone,
// everything else must be claimed by exactly one parent.
func checkCoverage(doc *document, index map[string]*document) error {
	if doc.referenced > 0 || doc.isRedirect {
		return nil
	}

	if doc.isChild {
		if owner := enclosing(doc.declared, index); owner != "" {
			return errors.Newf(errors.ErrorTypeStructural,
				"non-child object at '%s' is nested inside the directory of '%s'", doc.declared, owner)
		}
		return errors.Newf(errors.ErrorTypeStructural,
			"non-referenced child object at '%s'", doc.declared)
	}

	if path.Dir(doc.declared) != "." {
		return errors.Newf(errors.ErrorTypeStructural,
			"non-referenced child object at '%s'", doc.declared)
	}
	return nil
}

// enclosing finds a document whose own path contains the given one.
func enclosing(declared string, index map[string]*document) string {
	owners := make([]string, 0, len(index))
	for other := range index {
		owners = append(owners, other)
	}
	sort.Strings(owners)
	for _, other := range owners {
		if other != declared && strings.HasPrefix(declared, other+"/") {
			return other
		}
	}
	return ""
}

// checkUnknownFiles requires every filesystem entry to be accounted for
// by the index, either as a metadata document or as a declared data file.
func checkUnknownFiles(files []string, index map[string]*document) error {
	for _, rel := range files {
		if declared, ok := documentPath(rel); ok {
			if _, known := index[declared]; known {
				continue
			}
		}
		if _, ok := index[rel]; ok {
			continue
		}
		return errors.Newf(errors.ErrorTypeStructural, "unknown file '%s'", rel)
	}
	return nil
}

// collectResources walks an arbitrary metadata value and gathers every
// nested child reference of the form {"resource": {"path": ...}}.
func collectResources(value interface{}) []string {
	var out []string
	switch v := value.(type) {
	case metadata.Metadata:
		out = collectResources(map[string]interface{}(v))
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if key == "resource" {
				if res, ok := v[key].(map[string]interface{}); ok {
					if p, ok := res["path"].(string); ok {
						out = append(out, p)
						continue
					}
				}
			}
			out = append(out, collectResources(v[key])...)
		}
	case []interface{}:
		for _, entry := range v {
			out = append(out, collectResources(entry)...)
		}
	}
	return out
}

// ValidateDirectory checks a legacy directory with a default Validator.
func ValidateDirectory(ctx context.Context, root string) error {
	return New().Validate(ctx, root)
}
