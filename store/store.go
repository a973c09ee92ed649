// Package store implements the document store collaborator spec.md §1
// treats as external: insert-one, find-one-by-id, update-one, and
// iterate-collection over opaque string IDs, plus per-document atomic
// updates (spec.md §5).
//
// Grounded on the teacher's spec.Fixtures (map[ResourceID]interface{}) —
// generalized from a static, pre-baked fixture map to a live, mutable,
// per-type table store backed by a real embedded database pulled from the
// retrieval pack (github.com/hashicorp/go-memdb, seen in
// other_examples/manifests/axonops-axonops-schema-registry) rather than a
// hand-rolled map, per the "prefer a real third-party library" rule.
package store

import (
	"github.com/scidms/dms/dmserr"
)

// Document is one record in the store: an opaque ID plus its
// attribute-keyed data.
type Document struct {
	ID   string
	Data map[string]interface{}
}

// Store is the narrow contract spec.md §1 calls out as an external
// collaborator.
type Store interface {
	// InsertOne inserts data into collection and returns its new opaque ID.
	InsertOne(collection string, data map[string]interface{}) (string, error)

	// FindOneByID returns the document's data, or UnknownId if absent.
	FindOneByID(collection, id string) (map[string]interface{}, error)

	// UpdateOne atomically reads, mutates, and rewrites one document.
	// mutate is called with a fresh copy of the document's data; any
	// changes it makes are what gets persisted.
	UpdateOne(collection, id string, mutate func(map[string]interface{}) error) error

	// IterateCollection returns the IDs of every document in collection,
	// in store-defined order (not part of the contract — callers must
	// not depend on it, per spec.md §5).
	IterateCollection(collection string) ([]string, error)

	// Collections returns the collection (type) names this store knows
	// about.
	Collections() []string
}

func unknownID(collection, id string) error {
	return dmserr.New(dmserr.UnknownId, "no object %s with id=%s", collection, id)
}

// deepCopyValue recursively copies maps and slices so the store never
// shares backing storage with a caller's in-memory value — a single
// request's resolved paths and tracked objects are never shared across
// requests (spec.md §3 "Ownership"), and this is where that boundary is
// enforced.
func deepCopyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, v2 := range t {
			out[k] = deepCopyValue(v2)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, v2 := range t {
			out[i] = deepCopyValue(v2)
		}
		return out
	default:
		return v
	}
}

func deepCopyMap(m map[string]interface{}) map[string]interface{} {
	return deepCopyValue(m).(map[string]interface{})
}
