package document

import (
	"sort"

	"github.com/scidms/dms/dmserr"
	"github.com/scidms/dms/path"
	"github.com/scidms/dms/quantity"
	"github.com/scidms/dms/schema"
	"github.com/scidms/dms/store"
	"github.com/scidms/dms/tracker"
)

// Post creates a tree of objects rooted at one of typeName, depth-first:
// children are inserted before their parents so link attributes can always
// reference an already-minted id. A link value may be a nested object
// (create it first), an existing object id (reference it as-is), or a
// relative path string naming an object already created earlier in this
// same POST (resolved against the tracker). A relative path is resolved
// from the path of the link slot that holds it, so one leading dot names a
// sibling attribute of the same object (".beam.cs"). Attributes of each
// object are processed in sorted key order, so a relative path can only
// name an object created under a key that sorts earlier.
func Post(sch *schema.Schema, st store.Store, typeName string, data map[string]interface{}) (string, error) {
	tr := tracker.New()
	return newObject(sch, st, tr, typeName, data, path.Path{})
}

func newObject(sch *schema.Schema, st store.Store, tr *tracker.Tracker, klass string, data map[string]interface{}, p path.Path) (string, error) {
	typeSchema, err := sch.Type(klass)
	if err != nil {
		return "", err
	}

	rec := map[string]interface{}{}
	if meta, ok := data["_meta"].(map[string]interface{}); ok {
		if upstream, ok := meta["id"]; ok {
			rec["_meta"] = map[string]interface{}{"upstream": upstream}
		}
	}

	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		val := data[key]
		if key == "_meta" {
			continue
		}
		attr, ok := typeSchema[key]
		if !ok {
			return "", dmserr.New(dmserr.UnknownAttr, "unknown attribute %s.%s", klass, key)
		}

		if !attr.IsLink() {
			converted, err := quantity.Validate(attr, val)
			if err != nil {
				return "", err
			}
			rec[key] = converted
			continue
		}

		target := *attr.Link
		if attr.IsListLink() {
			list, ok := val.([]interface{})
			if !ok {
				return "", dmserr.New(dmserr.ShapeMismatch, "%s.%s should be a list", klass, key)
			}
			ids := make([]interface{}, len(list))
			for idx, elem := range list {
				id, err := resolveLinkElement(sch, st, tr, target, elem, p, key, intPtr(idx))
				if err != nil {
					return "", err
				}
				ids[idx] = id
			}
			rec[key] = ids
		} else {
			id, err := resolveLinkElement(sch, st, tr, target, val, p, key, nil)
			if err != nil {
				return "", err
			}
			rec[key] = id
		}
	}

	id, err := st.InsertOne(klass, rec)
	if err != nil {
		return "", err
	}
	tr.Add(p, id)
	return id, nil
}

func resolveLinkElement(sch *schema.Schema, st store.Store, tr *tracker.Tracker, target string, val interface{}, parentPath path.Path, key string, index *int) (string, error) {
	childPath := append(append(path.Path{}, parentPath...), path.Entry{Attr: key, Index: index})
	switch v := val.(type) {
	case map[string]interface{}:
		return newObject(sch, st, tr, target, v, childPath)
	case string:
		if isObjectID(v) {
			return v, nil
		}
		return tr.ResolveRelative(v, childPath)
	default:
		return "", dmserr.New(dmserr.TypeMismatch, "link value must be an object, an id, or a relative path (got %T)", val)
	}
}
