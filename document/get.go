package document

import (
	"sort"

	"github.com/scidms/dms/dmserr"
	"github.com/scidms/dms/path"
	"github.com/scidms/dms/quantity"
	"github.com/scidms/dms/resolver"
	"github.com/scidms/dms/schema"
	"github.com/scidms/dms/store"
	"github.com/scidms/dms/tracker"
)

// GetOptions controls how Get materializes a tree.
type GetOptions struct {
	// Path selects a sub-target within the root object; "" selects the
	// whole object.
	Path string
	// MaxLevel bounds recursion depth below the root; -1 means unbounded.
	MaxLevel int
	// Tracking replaces a repeated visit to an already-materialized
	// object with a relative path reference instead of re-embedding it.
	Tracking bool
	// Meta includes the _meta block (id, type, parent, upstream) on
	// every materialized object.
	Meta bool
	// Shallow lists ids that should be left as bare id strings instead
	// of being recursively expanded.
	Shallow []string
}

// Get materializes the tree (or a single attribute) addressed by
// opts.Path, rooted at (typeName, id). Attributes are visited in sorted key
// order, so with Tracking the first occurrence in that order carries the
// object body and later ones become relative path references.
func Get(sch *schema.Schema, st store.Store, typeName, id string, opts GetOptions) (interface{}, error) {
	p, err := path.Parse(opts.Path)
	if err != nil {
		return nil, err
	}
	results, isPlain, err := resolver.Resolve(sch, st, typeName, id, p)
	if err != nil {
		return nil, err
	}

	shallow := map[string]bool{}
	for _, s := range opts.Shallow {
		shallow[s] = true
	}

	var out []interface{}
	for _, r := range results {
		if len(r.Tail) == 0 {
			var tr *tracker.Tracker
			if opts.Tracking {
				tr = tracker.New()
			}
			obj, err := getObject(sch, st, tr, r.Type, r.ID, nil, path.Path{}, opts.MaxLevel, opts.Meta, shallow)
			if err != nil {
				return nil, err
			}
			out = append(out, obj)
			continue
		}

		if len(r.Tail) > 1 {
			return nil, dmserr.New(dmserr.PathTooLong, "path has too long a tail")
		}
		ent := r.Tail[0]
		if ent.Index != nil {
			return nil, dmserr.New(dmserr.IndexedAttribute, "path indexes an attribute; only whole attributes can be read this way")
		}
		attr, err := sch.Attr(r.Type, ent.Attr)
		if err != nil {
			return nil, err
		}
		value, err := attrToAPIValue(attr, r.Obj[ent.Attr])
		if err != nil {
			return nil, err
		}
		out = append(out, value)
	}

	if isPlain {
		if len(out) == 0 {
			return nil, dmserr.New(dmserr.PathNotFound, "path resolved to no target")
		}
		return out[0], nil
	}
	return out, nil
}

func attrToAPIValue(attr *schema.AttrDescriptor, stored interface{}) (interface{}, error) {
	if !attr.Dtype.IsQuantity() {
		return stored, nil
	}
	unit := ""
	if attr.Unit != nil {
		unit = *attr.Unit
	}
	return quantity.Wrap(stored, unit)
}

func getObject(sch *schema.Schema, st store.Store, tr *tracker.Tracker, klass, id string, parentID *string, p path.Path, maxLevel int, meta bool, shallow map[string]bool) (interface{}, error) {
	if tr != nil {
		if rel, ok := tr.Relativize(id, p); ok {
			return rel, nil
		}
	}
	if maxLevel >= 0 && len(p) > maxLevel {
		return map[string]interface{}{}, nil
	}

	obj, err := st.FindOneByID(klass, id)
	if err != nil {
		return nil, err
	}
	typeSchema, err := sch.Type(klass)
	if err != nil {
		return nil, err
	}

	ret := map[string]interface{}{}
	if meta {
		stored, _ := obj["_meta"].(map[string]interface{})
		overlay := map[string]interface{}{"id": id, "type": klass}
		if parentID != nil {
			overlay["parent"] = *parentID
		}
		m, err := mergeMeta(stored, overlay)
		if err != nil {
			return nil, err
		}
		ret["_meta"] = m
	}

	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		val := obj[key]
		if key == "_meta" {
			continue
		}
		attr, ok := typeSchema[key]
		if !ok {
			return nil, dmserr.New(dmserr.SchemaError, "stored attribute %s.%s is not in the schema", klass, key)
		}

		if !attr.IsLink() {
			value, err := attrToAPIValue(attr, val)
			if err != nil {
				return nil, err
			}
			ret[key] = value
			continue
		}

		if maxLevel >= 0 && len(p) == maxLevel {
			continue
		}

		target := *attr.Link
		if attr.IsListLink() {
			ids, err := toStringSlice(val)
			if err != nil {
				return nil, err
			}
			children := make([]interface{}, len(ids))
			for idx, lid := range ids {
				if shallow[lid] {
					children[idx] = lid
					continue
				}
				childPath := append(append(path.Path{}, p...), path.Entry{Attr: key, Index: intPtr(idx)})
				child, err := getObject(sch, st, tr, target, lid, &id, childPath, maxLevel, meta, shallow)
				if err != nil {
					return nil, err
				}
				children[idx] = child
			}
			ret[key] = children
		} else {
			lid, ok := val.(string)
			if !ok {
				return nil, dmserr.New(dmserr.LinkShapeMismatch, "%s.%s is not a scalar link value", klass, key)
			}
			if shallow[lid] {
				ret[key] = lid
			} else {
				childPath := append(append(path.Path{}, p...), path.Entry{Attr: key})
				child, err := getObject(sch, st, tr, target, lid, &id, childPath, maxLevel, meta, shallow)
				if err != nil {
					return nil, err
				}
				ret[key] = child
			}
		}
	}

	if tr != nil {
		tr.Add(p, id)
	}
	return ret, nil
}
