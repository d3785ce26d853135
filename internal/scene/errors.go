package scene

import "errors"

var (
	// ErrStaleReference marks an operation on a proxy whose backing
	// handle was deleted by a mutation this process issued.
	ErrStaleReference = errors.New("scene: stale reference")

	// ErrFieldNotFound marks a field name the node's type does not declare.
	ErrFieldNotFound = errors.New("scene: field not found")

	// ErrTypeCoercion marks a value no coercion rule accepts for the
	// field's declared kind.
	ErrTypeCoercion = errors.New("scene: type coercion failed")

	// ErrAmbiguousReference marks a search that matched more than one
	// node where exactly one was expected.
	ErrAmbiguousReference = errors.New("scene: ambiguous reference")

	// ErrImportFailure marks a serialized subtree the engine rejected.
	ErrImportFailure = errors.New("scene: import failed")
)
