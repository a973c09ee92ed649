// Package document implements the five document operations from spec.md
// §4.6/§6: POST (create a tree), GET (materialize a tree), PATCH (write one
// or more attributes), CLONE (get-then-post with provenance), and
// SAFE-LINKS (which nodes a planned modification would NOT touch).
//
// Grounded on the mupif/EDM prototype's dms_api_object_post /
// dms_api_path_get / dms_api_object_patch / dms_api_path_clone_get /
// dms_api_path_safe_links (api/dms3.py). github.com/imdario/mergo — the
// teacher's own dependency, there for OpenAPI allOf-merging — assembles the
// _meta record here instead, letting a stored "upstream" provenance field
// survive a materialize pass that also overlays the live id/type/parent.
package document

import (
	"github.com/imdario/mergo"

	"github.com/scidms/dms/dmserr"
)

func isObjectID(s string) bool {
	if len(s) != 24 {
		return false
	}
	for _, r := range s {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')) {
			return false
		}
	}
	return true
}

func toStringSlice(val interface{}) ([]string, error) {
	switch v := val.(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, len(v))
		for i, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, dmserr.New(dmserr.LinkShapeMismatch, "expected a list of link ids")
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, dmserr.New(dmserr.LinkShapeMismatch, "expected a list of link ids, got %T", val)
	}
}

func intPtr(i int) *int { return &i }

func nodeLabel(klass, id string, debug bool) string {
	if debug {
		return klass + "\n" + id
	}
	return id
}

func mergeMeta(stored map[string]interface{}, overlay map[string]interface{}) (map[string]interface{}, error) {
	base := map[string]interface{}{}
	for k, v := range stored {
		base[k] = v
	}
	if err := mergo.Merge(&base, overlay, mergo.WithOverride); err != nil {
		return nil, err
	}
	return base, nil
}
