package types

import "github.com/cockroachdb/errors"

// The error kinds of the engine. Callers classify failures with
// errors.Is against these sentinels; contextual messages are
// attached with errors.Wrap/Mark at the failure site.
var (
	// A slotted page cannot fit the requested bytes. Always
	// recovered one level up by allocating a new page or sliding
	// in place.
	ErrNoRoom = errors.New("no room in block")

	// A lookup missed. Index misses surface as an empty handle
	// list instead.
	ErrNotFound = errors.New("not found")

	// Malformed row, unknown column or unsupported expression.
	ErrInvalidArgument = errors.New("invalid argument")

	// Duplicate table, duplicate key, dropping a schema table,
	// column type mismatch.
	ErrSchemaViolation = errors.New("schema violation")

	// Catalog read or write failure. Fatal to the statement.
	ErrCatalog = errors.New("catalog failure")

	// Feature not implemented.
	ErrUnsupported = errors.New("not supported")
)
