// Package path implements the dotted path language from spec.md §4.3: the
// grammar, a parser, a deterministic unparser, and the Entry value object
// (attribute name plus an optional index/multiindex/slice subscript).
//
// Grounded on the mupif/EDM prototype's _PathEntry/_parse_path/_unparse_path
// (api/dms3.py), translated from Python's re module to Go's RE2-compatible
// regexp/syntax — the grammar needs no backreferences or lookaround, so the
// translation is direct.
package path

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/scidms/dms/dmserr"
)

// Slice is a Pythonic half-open slice: start:stop:step, any component optional.
type Slice struct {
	Start *int
	Stop  *int
	Step  *int
}

// Entry is one segment of a parsed path: an attribute name plus at most one
// of Index / MultiIndex / Slice.
type Entry struct {
	Attr       string
	Index      *int
	MultiIndex []int
	Slice      *Slice
}

// HasSubscript reports whether this entry carries any subscript at all.
func (e Entry) HasSubscript() bool {
	return e.Index != nil || e.MultiIndex != nil || e.Slice != nil
}

// IsPlain reports whether this entry cannot expand to more than one
// resolved path: no subscript, or a single plain index.
func (e Entry) IsPlain() bool {
	return e.MultiIndex == nil && e.Slice == nil
}

// Subscript renders just the "[...]" portion of this entry, or "" if none.
func (e Entry) Subscript() string {
	switch {
	case e.Index != nil:
		return fmt.Sprintf("[%d]", *e.Index)
	case e.MultiIndex != nil:
		parts := make([]string, len(e.MultiIndex))
		for i, v := range e.MultiIndex {
			parts[i] = strconv.Itoa(v)
		}
		if len(e.MultiIndex) == 1 {
			// trailing comma disambiguates from a plain index
			return "[" + parts[0] + ",]"
		}
		return "[" + strings.Join(parts, ",") + "]"
	case e.Slice != nil:
		fmtOpt := func(p *int) string {
			if p == nil {
				return ""
			}
			return strconv.Itoa(*p)
		}
		s := "[" + fmtOpt(e.Slice.Start) + ":" + fmtOpt(e.Slice.Stop)
		if e.Slice.Step != nil {
			s += ":" + fmtOpt(e.Slice.Step)
		}
		return s + "]"
	default:
		return ""
	}
}

// String renders the full segment: attribute name plus subscript.
func (e Entry) String() string {
	return e.Attr + e.Subscript()
}

// Path is a parsed, ordered sequence of segments.
type Path []Entry

// IsPlain reports whether every segment in the path is plain, meaning the
// whole path resolves to exactly one target.
func (p Path) IsPlain() bool {
	for _, e := range p {
		if !e.IsPlain() {
			return false
		}
	}
	return true
}

// Unparse renders a Path back to its dotted string form. The only
// ambiguity in the grammar — a single-element multiindex — always
// round-trips thanks to its mandatory trailing comma.
func Unparse(p Path) string {
	parts := make([]string, len(p))
	for i, e := range p {
		parts[i] = e.String()
	}
	return strings.Join(parts, ".")
}

var segmentPattern = regexp.MustCompile(`^(?P<attr>[A-Za-z][A-Za-z0-9_]*)(?:\[(?P<suffix>.*)\])?$`)
var indexPattern = regexp.MustCompile(`^[+-]?[0-9]+$`)
var multiIndexPattern = regexp.MustCompile(`^([+-]?[0-9]+,)+([+-]?[0-9]+)?$`)
var slicePattern = regexp.MustCompile(`^(?P<s0>[+-]?[0-9]+)?:(?P<s1>[+-]?[0-9]+)?(?::(?P<s2>[+-]?[0-9]+)?)?$`)

// Parse parses a dotted path string such as "materials[1].name" or
// "csState[:].bendingMoment" into a Path. An empty string parses to an
// empty Path (the root object itself).
func Parse(raw string) (Path, error) {
	if raw == "" {
		return Path{}, nil
	}
	components := strings.Split(raw, ".")
	result := make(Path, 0, len(components))
	for _, c := range components {
		entry, err := parseSegment(raw, c)
		if err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, nil
}

func parseSegment(fullPath, segment string) (Entry, error) {
	m := segmentPattern.FindStringSubmatch(segment)
	if m == nil {
		return Entry{}, dmserr.New(dmserr.PathParseError, "failed to parse path %q (component %q)", fullPath, segment)
	}
	names := segmentPattern.SubexpNames()
	groups := map[string]string{}
	for i, name := range names {
		if name != "" && i < len(m) {
			groups[name] = m[i]
		}
	}
	attr := groups["attr"]
	suffix, hasSuffix := groups["suffix"]
	if !hasSuffix || (suffix == "" && !strings.Contains(segment, "[")) {
		return Entry{Attr: attr}, nil
	}

	switch {
	case indexPattern.MatchString(suffix):
		n, err := strconv.Atoi(suffix)
		if err != nil {
			return Entry{}, dmserr.New(dmserr.PathParseError, "failed to parse path %q (component %q)", fullPath, segment)
		}
		return Entry{Attr: attr, Index: &n}, nil

	case multiIndexPattern.MatchString(suffix):
		var values []int
		for _, piece := range strings.Split(suffix, ",") {
			if piece == "" {
				continue
			}
			n, err := strconv.Atoi(piece)
			if err != nil {
				return Entry{}, dmserr.New(dmserr.PathParseError, "failed to parse path %q (component %q)", fullPath, segment)
			}
			values = append(values, n)
		}
		return Entry{Attr: attr, MultiIndex: values}, nil

	case slicePattern.MatchString(suffix):
		sm := slicePattern.FindStringSubmatch(suffix)
		sNames := slicePattern.SubexpNames()
		sg := map[string]string{}
		for i, name := range sNames {
			if name != "" && i < len(sm) {
				sg[name] = sm[i]
			}
		}
		toIntPtr := func(s string) *int {
			if s == "" {
				return nil
			}
			n, _ := strconv.Atoi(s)
			return &n
		}
		return Entry{Attr: attr, Slice: &Slice{
			Start: toIntPtr(sg["s0"]),
			Stop:  toIntPtr(sg["s1"]),
			Step:  toIntPtr(sg["s2"]),
		}}, nil

	default:
		return Entry{}, dmserr.New(dmserr.PathParseError, "failed to parse path %q (component %q)", fullPath, segment)
	}
}

// ResolveIndices returns the list of concrete indices a slice selects
// out of a sequence of the given length, using Pythonic half-open,
// negative-index, and stride semantics.
func (s Slice) ResolveIndices(length int) []int {
	step := 1
	if s.Step != nil {
		step = *s.Step
	}
	if step == 0 {
		return nil
	}

	normalize := func(i, defLow, defHigh int) int {
		if i < 0 {
			i += length
		}
		if i < defLow {
			i = defLow
		}
		if i > defHigh {
			i = defHigh
		}
		return i
	}

	var start, stop int
	if step > 0 {
		start, stop = 0, length
		if s.Start != nil {
			start = normalize(*s.Start, 0, length)
		}
		if s.Stop != nil {
			stop = normalize(*s.Stop, 0, length)
		}
	} else {
		start, stop = length-1, -1
		if s.Start != nil {
			start = normalize(*s.Start, -1, length-1)
		}
		if s.Stop != nil {
			stop = normalize(*s.Stop, -1, length-1)
		}
	}

	var indices []int
	if step > 0 {
		for i := start; i < stop; i += step {
			indices = append(indices, i)
		}
	} else {
		for i := start; i > stop; i += step {
			indices = append(indices, i)
		}
	}
	return indices
}
