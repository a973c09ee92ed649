// Package tracker implements the request-scoped object tracker from
// spec.md §4.5: a bidirectional path<->id map used to resolve relative
// references on the way in, and to relativize link targets on the way out.
//
// Grounded on the mupif/EDM prototype's _ObjectTracker (api/dms3.py):
// add() records a path the request has seen an object at; resolve_relative
// strips leading dots to walk up from the current path and resolves the
// remainder against a previously tracked path; relativize picks the
// shortest ../ path from the current location to a target id, per the
// fixed §9 open question (dots = len(current) - len(common prefix)).
package tracker

import (
	"strings"

	"github.com/scidms/dms/dmserr"
	"github.com/scidms/dms/path"
)

// Tracker is a single request's bidirectional path<->id map. It is not
// safe for concurrent use — each request gets its own Tracker, matching
// the store's "never shared across requests" ownership rule.
type Tracker struct {
	pathToID map[string]string
	idToPath map[string]path.Path
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{
		pathToID: make(map[string]string),
		idToPath: make(map[string]path.Path),
	}
}

// Add records that id was found at p, keyed by p's canonical unparse. Later
// Add calls for the same id keep the first path recorded for it (which is
// not necessarily the shortest), matching the prototype's
// insert-only-if-absent behavior.
func (t *Tracker) Add(p path.Path, id string) {
	key := path.Unparse(p)
	if _, ok := t.pathToID[key]; ok {
		return
	}
	t.pathToID[key] = id
	if _, ok := t.idToPath[id]; !ok {
		t.idToPath[id] = p
	}
}

// ResolveRelative resolves a (possibly relative) reference string against
// currentPath. Each leading dot in ref pops one entry off currentPath
// (zero dots pops nothing, leaving currentPath itself as the base); the
// remainder of ref is then parsed as a path and appended onto that base.
func (t *Tracker) ResolveRelative(ref string, currentPath path.Path) (string, error) {
	ups := 0
	for ups < len(ref) && ref[ups] == '.' {
		ups++
	}
	rest := ref[ups:]

	if ups > len(currentPath) {
		return "", dmserr.New(dmserr.RelativeRefUnresolved, "relative reference %q ascends above the root from %q", ref, path.Unparse(currentPath))
	}
	base := currentPath[:len(currentPath)-ups]

	restPath, err := path.Parse(rest)
	if err != nil {
		return "", err
	}
	full := append(append(path.Path{}, base...), restPath...)

	id, ok := t.pathToID[path.Unparse(full)]
	if !ok {
		return "", dmserr.New(dmserr.RelativeRefUnresolved, "relative reference %q (resolved to %q) was not seen in this request", ref, path.Unparse(full))
	}
	return id, nil
}

// Relativize returns the shortest relative reference from currentPath to
// the path id was tracked at, or false if id has not been tracked. The dot
// count is len(currentPath) - len(commonPrefix), the fixed form of the open
// question in spec.md §9: ascend from currentPath to the common ancestor,
// then descend the target's own suffix.
func (t *Tracker) Relativize(id string, currentPath path.Path) (string, bool) {
	target, ok := t.idToPath[id]
	if !ok {
		return "", false
	}

	common := 0
	for common < len(currentPath) && common < len(target) && entryEqual(currentPath[common], target[common]) {
		common++
	}

	dots := len(currentPath) - common
	suffix := target[common:]

	var b strings.Builder
	b.WriteString(strings.Repeat(".", dots))
	if dots == 0 {
		b.WriteString(path.Unparse(suffix))
		return b.String(), true
	}
	if len(suffix) > 0 {
		b.WriteString(path.Unparse(suffix))
	}
	return b.String(), true
}

// entryEqual compares two path entries by value. path.Entry cannot use ==
// directly since its MultiIndex field is a slice; the attribute name,
// index, multiindex, and slice bounds are all compared element by element.
func entryEqual(a, b path.Entry) bool {
	if a.Attr != b.Attr {
		return false
	}
	if (a.Index == nil) != (b.Index == nil) {
		return false
	}
	if a.Index != nil && *a.Index != *b.Index {
		return false
	}
	if len(a.MultiIndex) != len(b.MultiIndex) {
		return false
	}
	for i := range a.MultiIndex {
		if a.MultiIndex[i] != b.MultiIndex[i] {
			return false
		}
	}
	if (a.Slice == nil) != (b.Slice == nil) {
		return false
	}
	if a.Slice != nil {
		if !intPtrEqual(a.Slice.Start, b.Slice.Start) || !intPtrEqual(a.Slice.Stop, b.Slice.Stop) || !intPtrEqual(a.Slice.Step, b.Slice.Step) {
			return false
		}
	}
	return true
}

func intPtrEqual(a, b *int) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || *a == *b
}
