// Package registry manages the per-type handlers that the object-directory
// validator dispatches to.
//
// Each type tag may independently register a validate, height, and
// dimensions handler, declare named structural interfaces it satisfies, and
// declare derivation (subclass-of) relationships through which interface
// membership is inherited. Registration is serialized behind a single lock so
// a lookup racing a registration observes either the old or the new handler,
// never a half-updated entry.
package registry

import (
	"sync"

	"go.uber.org/zap"

	"github.com/ArtifactDB/alabaster-go/pkg/errors"
	"github.com/ArtifactDB/alabaster-go/pkg/logger"
	"github.com/ArtifactDB/alabaster-go/pkg/metadata"
)

// Validator is the re-entry surface handed to handlers. A validate handler
// recurses into the children it knows about by calling back into the
// validator; an enclosing container confirms child extents and interface
// membership the same way.
type Validator interface {
	// ValidateObject validates the object stored at path.
	ValidateObject(path string) error
	// ValidateChild validates a nested object and enforces the child
	// bookkeeping: strict nesting, is_child marking, single reference.
	ValidateChild(parentPath, childPath string) error
	// Height returns the declared first-dimension extent of the object at path.
	Height(path string) (int64, error)
	// Dimensions returns all declared extents of the object at path.
	Dimensions(path string) ([]int64, error)
	// Satisfies reports whether a type tag declares the named interface,
	// directly or through derivation.
	Satisfies(typeTag, interfaceName string) bool
}

// ValidateFunc checks the on-disk representation of one object.
type ValidateFunc func(v Validator, path string, meta metadata.Metadata) error

// HeightFunc reports the first-dimension extent of one object.
type HeightFunc func(v Validator, path string, meta metadata.Metadata) (int64, error)

// DimensionsFunc reports all extents of one object.
type DimensionsFunc func(v Validator, path string, meta metadata.Metadata) ([]int64, error)

// ConflictPolicy decides what happens when a registration collides with an
// existing entry for the same tag.
type ConflictPolicy int

const (
	// KeepExisting leaves the already-registered handler in place.
	KeepExisting ConflictPolicy = iota
	// Replace installs the new handler over the existing one.
	Replace
	// ErrorOnConflict fails the registration without mutating the registry.
	ErrorOnConflict
)

// Registry maps type tags to their registered capabilities.
type Registry struct {
	mu          sync.RWMutex
	validate    map[string]ValidateFunc
	height      map[string]HeightFunc
	dimensions  map[string]DimensionsFunc
	interfaces  map[string]map[string]struct{}
	derivations map[string]map[string]struct{}
	logger      *zap.Logger
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry creates a new, empty registry.
func NewRegistry() *Registry {
	return &Registry{
		validate:    make(map[string]ValidateFunc),
		height:      make(map[string]HeightFunc),
		dimensions:  make(map[string]DimensionsFunc),
		interfaces:  make(map[string]map[string]struct{}),
		derivations: make(map[string]map[string]struct{}),
		logger:      logger.WithComponent("type_registry"),
	}
}

// Default returns the process-wide registry that package-level helpers and
// init-time handler registrations target.
func Default() *Registry {
	return globalRegistry
}

// RegisterValidate registers a validate handler for a type tag. A nil
// handler always removes the entry regardless of policy.
func (r *Registry) RegisterValidate(tag string, fn ValidateFunc, policy ConflictPolicy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if fn == nil {
		delete(r.validate, tag)
		r.logger.Info("validate handler removed", zap.String("type", tag))
		return nil
	}
	if _, exists := r.validate[tag]; exists {
		switch policy {
		case KeepExisting:
			return nil
		case ErrorOnConflict:
			return errors.Newf(errors.ErrorTypeConflict, "validate handler for type '%s' already registered", tag)
		}
	}

	r.validate[tag] = fn
	r.logger.Info("validate handler registered", zap.String("type", tag))
	return nil
}

// RegisterHeight registers a height handler for a type tag, independent of
// any validate registration. A nil handler removes the entry.
func (r *Registry) RegisterHeight(tag string, fn HeightFunc, policy ConflictPolicy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if fn == nil {
		delete(r.height, tag)
		r.logger.Info("height handler removed", zap.String("type", tag))
		return nil
	}
	if _, exists := r.height[tag]; exists {
		switch policy {
		case KeepExisting:
			return nil
		case ErrorOnConflict:
			return errors.Newf(errors.ErrorTypeConflict, "height handler for type '%s' already registered", tag)
		}
	}

	r.height[tag] = fn
	r.logger.Info("height handler registered", zap.String("type", tag))
	return nil
}

// RegisterDimensions registers a dimensions handler for a type tag. A nil
// handler removes the entry.
func (r *Registry) RegisterDimensions(tag string, fn DimensionsFunc, policy ConflictPolicy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if fn == nil {
		delete(r.dimensions, tag)
		r.logger.Info("dimensions handler removed", zap.String("type", tag))
		return nil
	}
	if _, exists := r.dimensions[tag]; exists {
		switch policy {
		case KeepExisting:
			return nil
		case ErrorOnConflict:
			return errors.Newf(errors.ErrorTypeConflict, "dimensions handler for type '%s' already registered", tag)
		}
	}

	r.dimensions[tag] = fn
	r.logger.Info("dimensions handler registered", zap.String("type", tag))
	return nil
}

// LookupValidate returns the validate handler for a tag, distinguishing an
// entirely unknown tag from a known tag missing this capability.
func (r *Registry) LookupValidate(tag string) (ValidateFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if fn, ok := r.validate[tag]; ok {
		return fn, nil
	}
	if r.knownLocked(tag) {
		return nil, errors.Newf(errors.ErrorTypeCapability, "no registered validate function for type '%s'", tag)
	}
	return nil, errors.Newf(errors.ErrorTypeUnknownType, "unknown object type '%s'", tag)
}

// LookupHeight returns the height handler for a tag.
func (r *Registry) LookupHeight(tag string) (HeightFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if fn, ok := r.height[tag]; ok {
		return fn, nil
	}
	if r.knownLocked(tag) {
		return nil, errors.Newf(errors.ErrorTypeCapability, "no registered height function for type '%s'", tag)
	}
	return nil, errors.Newf(errors.ErrorTypeUnknownType, "unknown object type '%s'", tag)
}

// LookupDimensions returns the dimensions handler for a tag.
func (r *Registry) LookupDimensions(tag string) (DimensionsFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if fn, ok := r.dimensions[tag]; ok {
		return fn, nil
	}
	if r.knownLocked(tag) {
		return nil, errors.Newf(errors.ErrorTypeCapability, "no registered dimensions function for type '%s'", tag)
	}
	return nil, errors.Newf(errors.ErrorTypeUnknownType, "unknown object type '%s'", tag)
}

// knownLocked reports whether the tag appears anywhere in the registry.
// Callers must hold at least a read lock.
func (r *Registry) knownLocked(tag string) bool {
	if _, ok := r.validate[tag]; ok {
		return true
	}
	if _, ok := r.height[tag]; ok {
		return true
	}
	if _, ok := r.dimensions[tag]; ok {
		return true
	}
	if _, ok := r.interfaces[tag]; ok {
		return true
	}
	if _, ok := r.derivations[tag]; ok {
		return true
	}
	return false
}

// DeclareInterface records that a type tag satisfies a named structural
// interface.
func (r *Registry) DeclareInterface(tag, interfaceName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.interfaces[tag]
	if !ok {
		set = make(map[string]struct{})
		r.interfaces[tag] = set
	}
	set[interfaceName] = struct{}{}
}

// RevokeInterface removes a previously declared interface membership.
func (r *Registry) RevokeInterface(tag, interfaceName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if set, ok := r.interfaces[tag]; ok {
		delete(set, interfaceName)
		if len(set) == 0 {
			delete(r.interfaces, tag)
		}
	}
}

// DeclareDerivation records that tag derives from baseTag, inheriting its
// interface memberships. Registrations that would close a derivation cycle
// are rejected.
func (r *Registry) DeclareDerivation(tag, baseTag string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tag == baseTag || r.derivesLocked(baseTag, tag) {
		return errors.Newf(errors.ErrorTypeConflict,
			"derivation of '%s' from '%s' would form a cycle", tag, baseTag)
	}

	set, ok := r.derivations[tag]
	if !ok {
		set = make(map[string]struct{})
		r.derivations[tag] = set
	}
	set[baseTag] = struct{}{}
	return nil
}

// Satisfies reports whether a type tag declares the named interface, either
// directly or through any chain of derivation edges.
func (r *Registry) Satisfies(tag, interfaceName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	visited := make(map[string]struct{})
	queue := []string{tag}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if _, seen := visited[current]; seen {
			continue
		}
		visited[current] = struct{}{}

		if _, ok := r.interfaces[current][interfaceName]; ok {
			return true
		}
		for base := range r.derivations[current] {
			queue = append(queue, base)
		}
	}
	return false
}

// Derives reports whether tag derives from baseTag, transitively.
func (r *Registry) Derives(tag, baseTag string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.derivesLocked(tag, baseTag)
}

// derivesLocked walks derivation edges from tag looking for baseTag.
// Callers must hold at least a read lock.
func (r *Registry) derivesLocked(tag, baseTag string) bool {
	visited := make(map[string]struct{})
	queue := []string{tag}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if _, seen := visited[current]; seen {
			continue
		}
		visited[current] = struct{}{}

		for base := range r.derivations[current] {
			if base == baseTag {
				return true
			}
			queue = append(queue, base)
		}
	}
	return false
}

// Clear removes all registered handlers and relations (mainly for testing).
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.validate = make(map[string]ValidateFunc)
	r.height = make(map[string]HeightFunc)
	r.dimensions = make(map[string]DimensionsFunc)
	r.interfaces = make(map[string]map[string]struct{})
	r.derivations = make(map[string]map[string]struct{})
}

// Global registry functions

// RegisterValidate registers a validate handler in the default registry.
func RegisterValidate(tag string, fn ValidateFunc, policy ConflictPolicy) error {
	return globalRegistry.RegisterValidate(tag, fn, policy)
}

// RegisterHeight registers a height handler in the default registry.
func RegisterHeight(tag string, fn HeightFunc, policy ConflictPolicy) error {
	return globalRegistry.RegisterHeight(tag, fn, policy)
}

// RegisterDimensions registers a dimensions handler in the default registry.
func RegisterDimensions(tag string, fn DimensionsFunc, policy ConflictPolicy) error {
	return globalRegistry.RegisterDimensions(tag, fn, policy)
}

// DeclareInterface declares interface membership in the default registry.
func DeclareInterface(tag, interfaceName string) {
	globalRegistry.DeclareInterface(tag, interfaceName)
}

// DeclareDerivation declares a derivation edge in the default registry.
func DeclareDerivation(tag, baseTag string) error {
	return globalRegistry.DeclareDerivation(tag, baseTag)
}

// Satisfies queries interface membership in the default registry.
func Satisfies(tag, interfaceName string) bool {
	return globalRegistry.Satisfies(tag, interfaceName)
}
