package document

import (
	"github.com/scidms/dms/dmserr"
	"github.com/scidms/dms/path"
	"github.com/scidms/dms/quantity"
	"github.com/scidms/dms/resolver"
	"github.com/scidms/dms/schema"
	"github.com/scidms/dms/store"
)

// Patch writes one non-link attribute on one or more objects. For a plain
// path, data must be a single object (a dict); for a non-plain path (one
// that fans out to several resolved targets via multiindex/slice), data
// must be a list with exactly as many elements as there are resolved
// targets, applied pairwise in resolution order.
func Patch(sch *schema.Schema, st store.Store, typeName, id, rawPath string, data interface{}) error {
	p, err := path.Parse(rawPath)
	if err != nil {
		return err
	}
	results, isPlain, err := resolver.Resolve(sch, st, typeName, id, p)
	if err != nil {
		return err
	}

	var items []interface{}
	if isPlain {
		m, ok := data.(map[string]interface{})
		if !ok {
			return dmserr.New(dmserr.TypeMismatch, "patch data must be an object for a plain path")
		}
		items = []interface{}{m}
	} else {
		list, ok := data.([]interface{})
		if !ok {
			return dmserr.New(dmserr.TypeMismatch, "patch data must be a list for a non-plain path")
		}
		items = list
	}
	if len(items) != len(results) {
		return dmserr.New(dmserr.ExtraKeys, "resolved %d targets but got %d data items", len(results), len(items))
	}

	for i, r := range results {
		if err := patchOne(sch, st, r, items[i]); err != nil {
			return err
		}
	}
	return nil
}

func patchOne(sch *schema.Schema, st store.Store, r resolver.Resolved, data interface{}) error {
	if len(r.Tail) == 0 {
		return dmserr.New(dmserr.PathTooLong, "objects cannot be patched directly; address an attribute")
	}
	ent := r.Tail[0]
	if ent.Index != nil {
		return dmserr.New(dmserr.IndexedAttribute, "path indexes an attribute; only a whole attribute can be written")
	}

	attr, err := sch.Attr(r.Type, ent.Attr)
	if err != nil {
		return err
	}
	converted, err := quantity.Validate(attr, data)
	if err != nil {
		return err
	}

	return st.UpdateOne(r.Type, r.ID, func(rec map[string]interface{}) error {
		rec[ent.Attr] = converted
		return nil
	})
}
