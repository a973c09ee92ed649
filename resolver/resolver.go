// Package resolver walks a parsed path (package path) through an object's
// link attributes (spec.md §4.4), turning a (db, type, id, path) request
// into one or more ResolvedPath targets.
//
// Grounded on the mupif/EDM prototype's _resolve_path_head / _descend
// (api/dms3.py): descend through link attributes one path segment at a
// time, stopping at the first non-link attribute (the "tail"); a list-link
// segment subscripted with a multiindex or slice branches the walk into one
// independent continuation per selected element.
package resolver

import (
	"github.com/scidms/dms/dmserr"
	"github.com/scidms/dms/path"
	"github.com/scidms/dms/schema"
	"github.com/scidms/dms/store"
)

// Resolved is one fully-walked target: the object the walk landed on, and
// the tail — the suffix of the path (normally one entry) naming the
// non-link attribute (and optional subscript) within that object that the
// caller actually wants to read or write.
type Resolved struct {
	Obj    map[string]interface{}
	Type   string
	ID     string
	Tail   path.Path
	Parent *Resolved
}

// Resolve walks p starting at (rootType, rootID) and returns every target
// it reaches, plus whether the path is plain (resolves to exactly one
// target, per path.Path.IsPlain).
func Resolve(sch *schema.Schema, st store.Store, rootType, rootID string, p path.Path) ([]Resolved, bool, error) {
	obj, err := st.FindOneByID(rootType, rootID)
	if err != nil {
		return nil, false, err
	}
	results, err := descend(sch, st, &Resolved{Obj: obj, Type: rootType, ID: rootID}, p)
	if err != nil {
		return nil, false, err
	}
	return results, p.IsPlain(), nil
}

func descend(sch *schema.Schema, st store.Store, cur *Resolved, p path.Path) ([]Resolved, error) {
	if len(p) == 0 {
		return []Resolved{*cur}, nil
	}

	entry := p[0]
	attr, err := sch.Attr(cur.Type, entry.Attr)
	if err != nil {
		return nil, err
	}

	if !attr.IsLink() {
		if len(p) > 1 {
			return nil, dmserr.New(dmserr.PathTooLong, "path continues past non-link attribute %s.%s", cur.Type, entry.Attr)
		}
		return []Resolved{{Obj: cur.Obj, Type: cur.Type, ID: cur.ID, Tail: p, Parent: cur.Parent}}, nil
	}

	rest := p[1:]
	target := *attr.Link

	if !attr.IsListLink() {
		if entry.HasSubscript() {
			return nil, dmserr.New(dmserr.IndexedScalar, "%s.%s is not a list and cannot be indexed", cur.Type, entry.Attr)
		}
		id, err := singleLinkID(cur, entry.Attr)
		if err != nil {
			return nil, err
		}
		return followOne(sch, st, cur, target, id, rest)
	}

	if !entry.HasSubscript() {
		return nil, dmserr.New(dmserr.UnindexedList, "%s.%s is a list and must be indexed", cur.Type, entry.Attr)
	}
	ids, err := listLinkIDs(cur, entry.Attr)
	if err != nil {
		return nil, err
	}

	switch {
	case entry.Index != nil:
		idx, err := normalizeIndex(*entry.Index, len(ids), cur.Type, entry.Attr)
		if err != nil {
			return nil, err
		}
		return followOne(sch, st, cur, target, ids[idx], rest)

	case entry.MultiIndex != nil:
		var out []Resolved
		for _, raw := range entry.MultiIndex {
			idx, err := normalizeIndex(raw, len(ids), cur.Type, entry.Attr)
			if err != nil {
				return nil, err
			}
			branch, err := followOne(sch, st, cur, target, ids[idx], rest)
			if err != nil {
				return nil, err
			}
			out = append(out, branch...)
		}
		return out, nil

	default: // entry.Slice != nil
		var out []Resolved
		for _, idx := range entry.Slice.ResolveIndices(len(ids)) {
			branch, err := followOne(sch, st, cur, target, ids[idx], rest)
			if err != nil {
				return nil, err
			}
			out = append(out, branch...)
		}
		return out, nil
	}
}

func followOne(sch *schema.Schema, st store.Store, parent *Resolved, targetType, targetID string, rest path.Path) ([]Resolved, error) {
	obj, err := st.FindOneByID(targetType, targetID)
	if err != nil {
		return nil, err
	}
	next := &Resolved{Obj: obj, Type: targetType, ID: targetID, Parent: parent}
	return descend(sch, st, next, rest)
}

func normalizeIndex(i, length int, typeName, attrName string) (int, error) {
	n := i
	if n < 0 {
		n += length
	}
	if n < 0 || n >= length {
		return 0, dmserr.New(dmserr.IndexOutOfRange, "index %d out of range for %s.%s (length %d)", i, typeName, attrName, length)
	}
	return n, nil
}

func singleLinkID(cur *Resolved, attrName string) (string, error) {
	raw, ok := cur.Obj[attrName]
	if !ok || raw == nil {
		return "", dmserr.New(dmserr.PathNotFound, "%s.%s is unset", cur.Type, attrName)
	}
	id, ok := raw.(string)
	if !ok {
		return "", dmserr.New(dmserr.LinkShapeMismatch, "%s.%s is not a scalar link value", cur.Type, attrName)
	}
	return id, nil
}

func listLinkIDs(cur *Resolved, attrName string) ([]string, error) {
	raw, ok := cur.Obj[attrName]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, len(v))
		for i, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, dmserr.New(dmserr.LinkShapeMismatch, "%s.%s contains a non-string link id", cur.Type, attrName)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, dmserr.New(dmserr.LinkShapeMismatch, "%s.%s is not a list link value", cur.Type, attrName)
	}
}
