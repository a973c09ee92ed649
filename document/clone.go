package document

import (
	"github.com/scidms/dms/dmserr"
	"github.com/scidms/dms/schema"
	"github.com/scidms/dms/store"
)

// Clone materializes the whole object tree rooted at (typeName, id) with
// tracking and _meta enabled, then re-creates it as a brand new tree via
// Post — every nested object gets copied fresh once, a shared reference
// collapses to relative-path reuse just as it did in the dump, ids in
// shallow are reused as-is, and the new root's _meta.upstream records the
// id it was cloned from.
func Clone(sch *schema.Schema, st store.Store, typeName, id string, shallow []string) (string, error) {
	dump, err := Get(sch, st, typeName, id, GetOptions{
		MaxLevel: -1,
		Tracking: true,
		Meta:     true,
		Shallow:  shallow,
	})
	if err != nil {
		return "", err
	}
	data, ok := dump.(map[string]interface{})
	if !ok {
		return "", dmserr.New(dmserr.Internal, "clone source materialized to a non-object value")
	}
	return Post(sch, st, typeName, data)
}
