// Package validate walks a saved object's directory tree and proves that its
// metadata, child references, and redirections are mutually consistent.
//
// Validation is handler-driven: the validator reads a node's OBJECT document,
// looks up its type tag in the registry, and invokes the registered validate
// handler. Handlers recurse into the children they know about by calling back
// into the validator through the session passed to them, which also tracks
// the child-reference bookkeeping (strict nesting, is_child marking, exactly
// one reference per child). Traversal is top-down, depth-first, and
// short-circuits on the first failure.
package validate

import (
	"context"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ArtifactDB/alabaster-go/pkg/errors"
	"github.com/ArtifactDB/alabaster-go/pkg/logger"
	"github.com/ArtifactDB/alabaster-go/pkg/metadata"
	"github.com/ArtifactDB/alabaster-go/pkg/metrics"
	"github.com/ArtifactDB/alabaster-go/pkg/observability"
	"github.com/ArtifactDB/alabaster-go/pkg/registry"
)

// DefaultMaxDepth bounds handler recursion. Tree depth is data-driven, so a
// runaway reference chain fails deterministically instead of exhausting the
// stack.
const DefaultMaxDepth = 64

// Validator checks object directories against the handlers of one registry.
// A Validator is stateless across calls and safe for concurrent use; each
// Validate call derives the tree from disk anew.
type Validator struct {
	reg      *registry.Registry
	logger   *zap.Logger
	maxDepth int
}

// Option configures a Validator.
type Option func(*Validator)

// WithMaxDepth overrides the recursion bound.
func WithMaxDepth(depth int) Option {
	return func(v *Validator) {
		if depth > 0 {
			v.maxDepth = depth
		}
	}
}

// WithLogger overrides the component logger.
func WithLogger(l *zap.Logger) Option {
	return func(v *Validator) {
		v.logger = l
	}
}

// New creates a Validator dispatching to the given registry. A nil registry
// means the process-wide default registry.
func New(reg *registry.Registry, opts ...Option) *Validator {
	if reg == nil {
		reg = registry.Default()
	}
	v := &Validator{
		reg:      reg,
		logger:   logger.WithComponent("object_validator"),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks the object stored at root and everything reachable from
// it. It is the top-level entry; handlers re-enter through the session they
// receive instead.
func (v *Validator) Validate(ctx context.Context, root string) error {
	timer := metrics.NewTimer("object")
	defer timer.Stop()

	_, span := observability.StartValidation(ctx, "object", root)

	s := &session{
		validator:  v,
		references: make(map[string]int),
	}
	err := s.ValidateObject(root)
	observability.EndValidation(span, err)

	if err != nil {
		metrics.ValidationFailures.WithLabelValues(string(errors.TypeOf(err))).Inc()
		v.logger.Error("directory validation failed",
			zap.String("root", root),
			zap.Error(err))
		return err
	}

	v.logger.Debug("directory validation passed", zap.String("root", root))
	return nil
}

// session carries the per-call traversal state: recursion depth and the
// child paths claimed so far. It implements registry.Validator for handler
// re-entry.
type session struct {
	validator  *Validator
	depth      int
	references map[string]int
}

var _ registry.Validator = (*session)(nil)

// ValidateObject validates one node: resolve its type, dispatch the
// registered validate handler, and let the handler recurse.
func (s *session) ValidateObject(path string) error {
	s.depth++
	defer func() { s.depth-- }()
	if s.depth > s.validator.maxDepth {
		return errors.Newf(errors.ErrorTypeStructural,
			"maximum nesting depth %d exceeded at '%s'", s.validator.maxDepth, path)
	}

	meta, err := metadata.ReadObjectFile(path)
	if err != nil {
		return err
	}
	return s.dispatch(path, meta)
}

func (s *session) dispatch(path string, meta metadata.Metadata) error {
	tag, err := meta.Type()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeMalformedMetadata, "cannot resolve object type").
			WithDetail("path", path)
	}

	fn, err := s.validator.reg.LookupValidate(tag)
	if err != nil {
		return err
	}

	if err := fn(s, path, meta); err != nil {
		metrics.ObjectsValidated.WithLabelValues(tag, "failure").Inc()
		return err
	}
	metrics.ObjectsValidated.WithLabelValues(tag, "success").Inc()
	return nil
}

// ValidateChild validates an object referenced as a child of parentPath,
// enforcing the reference invariants: the child must be a strict sub-path of
// the parent, must be marked is_child, and must be claimed by exactly one
// parent across the whole traversal.
func (s *session) ValidateChild(parentPath, childPath string) error {
	rel, err := filepath.Rel(parentPath, childPath)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return errors.Newf(errors.ErrorTypeStructural,
			"object at '%s' references non-nested child '%s'", parentPath, childPath)
	}

	claimed := filepath.Clean(childPath)
	s.references[claimed]++
	if s.references[claimed] > 1 {
		return errors.Newf(errors.ErrorTypeStructural,
			"multiple references to child at '%s'", childPath)
	}

	meta, err := metadata.ReadObjectFile(childPath)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeStructural, "missing child object").
			WithDetail("parent", parentPath).
			WithDetail("child", childPath)
	}
	if !meta.IsChild() {
		return errors.Newf(errors.ErrorTypeStructural,
			"non-child object at '%s' is referenced by '%s'", childPath, parentPath)
	}

	s.depth++
	defer func() { s.depth-- }()
	if s.depth > s.validator.maxDepth {
		return errors.Newf(errors.ErrorTypeStructural,
			"maximum nesting depth %d exceeded at '%s'", s.validator.maxDepth, childPath)
	}
	return s.dispatch(childPath, meta)
}

// Height returns the declared first-dimension extent of the object at path.
// The absence of a registered height handler is a hard error distinct from
// validation success.
func (s *session) Height(path string) (int64, error) {
	meta, err := metadata.ReadObjectFile(path)
	if err != nil {
		return 0, err
	}
	tag, err := meta.Type()
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeMalformedMetadata, "cannot resolve object type").
			WithDetail("path", path)
	}
	fn, err := s.validator.reg.LookupHeight(tag)
	if err != nil {
		return 0, err
	}
	return fn(s, path, meta)
}

// Dimensions returns all declared extents of the object at path.
func (s *session) Dimensions(path string) ([]int64, error) {
	meta, err := metadata.ReadObjectFile(path)
	if err != nil {
		return nil, err
	}
	tag, err := meta.Type()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeMalformedMetadata, "cannot resolve object type").
			WithDetail("path", path)
	}
	fn, err := s.validator.reg.LookupDimensions(tag)
	if err != nil {
		return nil, err
	}
	return fn(s, path, meta)
}

// Satisfies answers interface membership purely from the registry, without
// re-running any validation.
func (s *session) Satisfies(typeTag, interfaceName string) bool {
	return s.validator.reg.Satisfies(typeTag, interfaceName)
}

// Height reads the object's metadata and dispatches its height handler.
// Convenience for enclosing containers outside a traversal.
func (v *Validator) Height(path string) (int64, error) {
	s := &session{validator: v, references: make(map[string]int)}
	return s.Height(path)
}

// Dimensions reads the object's metadata and dispatches its dimensions
// handler.
func (v *Validator) Dimensions(path string) ([]int64, error) {
	s := &session{validator: v, references: make(map[string]int)}
	return s.Dimensions(path)
}

// Satisfies answers interface membership from the validator's registry.
func (v *Validator) Satisfies(typeTag, interfaceName string) bool {
	return v.reg.Satisfies(typeTag, interfaceName)
}

// ValidateObject validates the object at path against the default registry.
func ValidateObject(ctx context.Context, path string) error {
	return New(nil).Validate(ctx, path)
}

// Height dispatches the height handler for the object at path using the
// default registry.
func Height(path string) (int64, error) {
	return New(nil).Height(path)
}

// Dimensions dispatches the dimensions handler for the object at path using
// the default registry.
func Dimensions(path string) ([]int64, error) {
	return New(nil).Dimensions(path)
}
