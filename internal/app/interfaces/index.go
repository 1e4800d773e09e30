package interfaces

import "vela/internal/app/types"

// The capability set of a secondary index over a relation.
type DbIndex interface {
	Create() error
	Drop() error
	Open() error
	Close() error

	// Lookup returns the handles whose key columns equal the given
	// values; a miss is an empty list, not an error.
	Lookup(key types.ValueDict) (types.Handles, error)

	// Range returns the handles whose keys fall in [min, max]. The
	// B+Tree index does not implement it and always fails with
	// ErrUnsupported.
	Range(minKey, maxKey types.ValueDict) (types.Handles, error)

	Insert(h types.Handle) error
	Del(h types.Handle) error

	KeyColumns() types.ColumnNames
	Relation() DbRelation
}
