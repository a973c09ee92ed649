// Package units is the adapter the quantity engine uses to parse physical
// unit strings, check two units for dimensional compatibility, and convert
// a numeric value from one unit to another.
//
// Spec.md treats this as an external collaborator ("delegated to an
// external unit library"). No such library appears anywhere in the
// retrieval pack, so this is a small hand-written dimensional-analysis
// table covering the unit vocabulary the teacher domain actually needs
// (length, mass, time, and the derived force/pressure units used by the
// beam/RVE schema in testdata/dms-schema.json) rather than a general
// units system.
package units

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// dimension is an exponent vector over the base quantities this adapter
// knows about: length, mass, time.
type dimension struct {
	length int
	mass   int
	time   int
}

func (d dimension) add(o dimension, sign int) dimension {
	return dimension{
		length: d.length + sign*o.length,
		mass:   d.mass + sign*o.mass,
		time:   d.time + sign*o.time,
	}
}

func (d dimension) scale(n int) dimension {
	return dimension{length: d.length * n, mass: d.mass * n, time: d.time * n}
}

// Unit is a parsed unit: a dimension vector plus the scale factor that
// converts a value in this unit into the adapter's internal SI-like base
// (meter, kilogram, second).
type Unit struct {
	raw   string
	dim   dimension
	scale float64
}

// String returns the unit's original textual form, as declared in the schema.
func (u Unit) String() string { return u.raw }

var baseUnits = map[string]struct {
	dim   dimension
	scale float64
}{
	"m":  {dimension{length: 1}, 1},
	"g":  {dimension{mass: 1}, 0.001},
	"s":  {dimension{time: 1}, 1},
	"N":  {dimension{length: 1, mass: 1, time: -2}, 1},
	"Pa": {dimension{length: -1, mass: 1, time: -2}, 1},
}

var prefixes = map[string]float64{
	"n": 1e-9,
	"u": 1e-6,
	"m": 1e-3,
	"c": 1e-2,
	"d": 1e-1,
	"k": 1e3,
	"M": 1e6,
	"G": 1e9,
}

// parseAtom parses a single prefixed base symbol, e.g. "mm", "kg", "cm", "N".
func parseAtom(sym string) (dimension, float64, error) {
	if base, ok := baseUnits[sym]; ok {
		return base.dim, base.scale, nil
	}
	for p, factor := range prefixes {
		if strings.HasPrefix(sym, p) {
			rest := sym[len(p):]
			if base, ok := baseUnits[rest]; ok {
				return base.dim, base.scale * factor, nil
			}
		}
	}
	return dimension{}, 0, errors.Errorf("unrecognized unit symbol %q", sym)
}

// parseTerm parses one factor of a compound unit expression, including an
// optional trailing integer exponent, e.g. "m3", "cm3", "kg".
func parseTerm(term string) (dimension, float64, error) {
	i := len(term)
	for i > 0 && term[i-1] >= '0' && term[i-1] <= '9' {
		i--
	}
	sym, expStr := term[:i], term[i:]
	exp := 1
	if expStr != "" {
		n, err := strconv.Atoi(expStr)
		if err != nil {
			return dimension{}, 0, errors.Wrapf(err, "invalid exponent in unit term %q", term)
		}
		exp = n
	}
	if sym == "" {
		return dimension{}, 0, errors.Errorf("empty unit symbol in term %q", term)
	}
	dim, scale, err := parseAtom(sym)
	if err != nil {
		return dimension{}, 0, err
	}
	result := 1.0
	for n := 0; n < exp; n++ {
		result *= scale
	}
	return dim.scale(exp), result, nil
}

// Parse parses a unit string such as "mm", "kg/m3", "kN*m" into a Unit.
// An empty string parses to the dimensionless unit.
func Parse(raw string) (Unit, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Unit{raw: raw, dim: dimension{}, scale: 1}, nil
	}

	dim := dimension{}
	scale := 1.0
	sign := 1
	for _, piece := range splitTerms(trimmed) {
		op, term := piece.op, piece.term
		if op == '/' {
			sign = -1
		} else {
			sign = 1
		}
		termDim, termScale, err := parseTerm(term)
		if err != nil {
			return Unit{}, errors.Wrapf(err, "parsing unit %q", raw)
		}
		dim = dim.add(termDim, sign)
		if sign > 0 {
			scale *= termScale
		} else {
			scale /= termScale
		}
	}
	return Unit{raw: raw, dim: dim, scale: scale}, nil
}

type termOp struct {
	op   byte // '*' or '/'; first term always treated as '*'
	term string
}

func splitTerms(expr string) []termOp {
	var terms []termOp
	op := byte('*')
	start := 0
	for i := 0; i <= len(expr); i++ {
		if i == len(expr) || expr[i] == '*' || expr[i] == '/' {
			terms = append(terms, termOp{op: op, term: expr[start:i]})
			if i < len(expr) {
				op = expr[i]
			}
			start = i + 1
		}
	}
	return terms
}

// Compatible reports whether two units share the same physical dimension
// and can therefore be converted between each other.
func Compatible(a, b Unit) bool {
	return a.dim == b.dim
}

// Convert converts value from unit `from` to unit `to`. Returns an error if
// the units are not dimensionally compatible.
func Convert(value float64, from, to Unit) (float64, error) {
	if !Compatible(from, to) {
		return 0, errors.Errorf("incompatible units: %q and %q", from.raw, to.raw)
	}
	return value * from.scale / to.scale, nil
}
