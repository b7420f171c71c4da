// Package alabaster provides validation tooling for on-disk object
// directories, together with a storage encoding optimizer for choosing
// the smallest exact container type for in-memory collections.
//
// # Architecture
//
// The module is organized around three cooperating pieces:
//
// 1. Type Registry (pkg/registry): a global, concurrency-safe dispatch
// table mapping type tags to validate, height and dimensions handlers,
// plus interface membership and derivation edges for structural
// subtyping queries.
//
// 2. Validators (pkg/validate, pkg/legacy): the current-format validator
// walks a directory top-down, resolving each node's OBJECT metadata and
// dispatching through the registry; handlers recurse into children via
// the validator itself, which enforces nesting, single-reference and
// depth invariants. The legacy validator instead loads a whole metadata
// graph into memory and checks its referential consistency in one pass.
//
// 3. Storage Encoding Optimizer (pkg/encoding): given an in-memory
// collection and an optional missing mask, picks the narrowest integer
// container (or fixed-width string buffer) whose range covers every
// observed value, along with a placeholder value for missing entries
// that never collides with real data.
//
// # Quick Start
//
// Register a handler for a custom type and validate a directory:
//
//	registry.RegisterValidate("my_vector", func(v registry.Validator, path string, meta metadata.Metadata) error {
//		// inspect files under path, recurse with v.ValidateChild(...)
//		return nil
//	}, registry.ErrorOnConflict)
//
//	if err := validate.ValidateObject(context.Background(), "/data/experiment-1"); err != nil {
//		log.Fatal(err)
//	}
//
// Pick a storage type for a vector with missing values:
//
//	enc, err := encoding.ChooseIntegerStorage(values, mask)
//	// enc.Type.Container tells the writer which physical type to use;
//	// enc.Placeholder is substituted into masked slots before writing.
package alabaster
