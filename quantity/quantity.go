// Package quantity implements the quantity engine from spec.md §4.2:
// validating a raw attribute value (a bare number/sequence, {value}, or
// {value, unit}) against an AttrDescriptor's dtype, shape, and unit, and
// converting it to the schema's canonical unit.
//
// Grounded on the mupif/EDM prototype's _validated_quantity_2
// (api/dms3.py): peel the optional {value, unit} wrapper, check dtype by
// same-kind casting (no silent truncation), check shape axis by axis with
// only strictly-positive entries checked (0 and -1 both mean "any length"),
// then convert the numeric payload into the
// attribute's declared unit. github.com/imdario/mergo assembles the
// canonical {value, unit} record the teacher already depends on for its
// own allOf-merging — generalized here to quantity record assembly instead
// of OpenAPI schema composition.
package quantity

import (
	"github.com/imdario/mergo"

	"github.com/scidms/dms/dmserr"
	"github.com/scidms/dms/schema"
	"github.com/scidms/dms/units"
)

// Validate checks raw against attr's dtype/shape/unit and returns the
// canonical storable value: nested []interface{} / float64 / int64 / bool
// matching attr.Shape, converted into attr's declared unit if any.
func Validate(attr *schema.AttrDescriptor, raw interface{}) (interface{}, error) {
	if !attr.Dtype.IsQuantity() {
		return validateNonQuantity(attr, raw)
	}

	value, providedUnit, err := extractForm(raw)
	if err != nil {
		return nil, err
	}

	schemaUnit := attr.Unit != nil
	switch {
	case schemaUnit && providedUnit == nil:
		return nil, dmserr.New(dmserr.UnitMissing, "attribute requires a unit (declared unit %q)", *attr.Unit)
	case !schemaUnit && providedUnit != nil:
		return nil, dmserr.New(dmserr.UnitExtra, "attribute has no declared unit, but a unit was supplied")
	}

	converted, err := validateAxis(value, attr.Shape, attr.Dtype)
	if err != nil {
		return nil, err
	}

	if !schemaUnit {
		return converted, nil
	}

	from, err := units.Parse(*providedUnit)
	if err != nil {
		return nil, dmserr.Wrap(dmserr.UnitIncompatible, err)
	}
	to := attr.ParsedUnit()
	if !units.Compatible(from, to) {
		return nil, dmserr.New(dmserr.UnitIncompatible, "unit %q is not compatible with declared unit %q", *providedUnit, *attr.Unit)
	}

	return convertNumeric(converted, from, to)
}

// validateNonQuantity type-checks a str/bytes/object attribute; these
// dtypes never carry units or go through shape-based numeric validation.
func validateNonQuantity(attr *schema.AttrDescriptor, raw interface{}) (interface{}, error) {
	switch attr.Dtype {
	case schema.DtypeStr, schema.DtypeBytes:
		if _, ok := raw.(string); !ok {
			return nil, dmserr.New(dmserr.TypeMismatch, "expected a string value")
		}
		return raw, nil
	case schema.DtypeObject:
		return raw, nil
	default:
		return nil, dmserr.New(dmserr.SchemaError, "unsupported dtype %q", attr.Dtype)
	}
}

// quantityRecord is the canonical {value, unit} shape assembled via mergo
// when both fragments need combining before being handed back to a caller
// that expects the wrapped form (e.g. GET responses echoing unit info).
type quantityRecord struct {
	Value interface{} `json:"value"`
	Unit  string      `json:"unit,omitempty"`
}

// Wrap assembles the canonical {value, unit} record for a read response,
// merging the two fragments via mergo rather than a literal struct build so
// that a zero-value Unit (dimensionless attributes) cleanly drops out.
func Wrap(value interface{}, unit string) (map[string]interface{}, error) {
	base := map[string]interface{}{"value": value}
	overlay := quantityRecord{Unit: unit}
	overlayMap := map[string]interface{}{}
	if overlay.Unit != "" {
		overlayMap["unit"] = overlay.Unit
	}
	if err := mergo.Merge(&base, overlayMap); err != nil {
		return nil, err
	}
	return base, nil
}

func extractForm(raw interface{}) (interface{}, *string, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return raw, nil, nil
	}
	if _, hasValue := m["value"]; !hasValue {
		return raw, nil, nil
	}
	for k := range m {
		if k != "value" && k != "unit" {
			return nil, nil, dmserr.New(dmserr.ExtraKeys, "unexpected key %q in quantity value", k)
		}
	}
	value := m["value"]
	u, hasUnit := m["unit"]
	if !hasUnit {
		return value, nil, nil
	}
	us, ok := u.(string)
	if !ok {
		return nil, nil, dmserr.New(dmserr.TypeMismatch, "unit must be a string")
	}
	return value, &us, nil
}

// validateAxis walks shape one axis at a time; at shape length 0 it
// dtype-checks the leaf value. Only axis entries declared > 0 are checked
// for an exact length match; 0, -1, and any other non-positive entry are
// free (any length accepted), per the prototype's _validated_quantity_2.
func validateAxis(v interface{}, shape []int, dtype schema.Dtype) (interface{}, error) {
	if len(shape) == 0 {
		return convertLeaf(v, dtype)
	}

	arr, ok := v.([]interface{})
	if !ok {
		return nil, dmserr.New(dmserr.ShapeMismatch, "expected a sequence of length %d axes remaining", len(shape))
	}
	want := shape[0]
	if want > 0 && len(arr) != want {
		return nil, dmserr.New(dmserr.DimensionMismatch, "expected %d elements, got %d", want, len(arr))
	}

	out := make([]interface{}, len(arr))
	for i, e := range arr {
		converted, err := validateAxis(e, shape[1:], dtype)
		if err != nil {
			return nil, err
		}
		out[i] = converted
	}
	return out, nil
}

func convertLeaf(v interface{}, dtype schema.Dtype) (interface{}, error) {
	switch dtype {
	case schema.DtypeBool:
		b, ok := v.(bool)
		if !ok {
			return nil, dmserr.New(dmserr.TypeMismatch, "expected a bool value, got %T", v)
		}
		return b, nil

	case schema.DtypeFloat:
		f, ok := v.(float64)
		if !ok {
			return nil, dmserr.New(dmserr.TypeMismatch, "expected a numeric value, got %T", v)
		}
		return f, nil

	case schema.DtypeInt:
		f, ok := v.(float64)
		if !ok {
			return nil, dmserr.New(dmserr.TypeMismatch, "expected a numeric value, got %T", v)
		}
		if f != float64(int64(f)) {
			return nil, dmserr.New(dmserr.TypeMismatch, "expected an integer value, got %v (no truncation)", f)
		}
		return int64(f), nil

	default:
		return nil, dmserr.New(dmserr.SchemaError, "dtype %q is not a quantity dtype", dtype)
	}
}

// convertNumeric applies a unit conversion to every numeric leaf of a
// validated value, preserving its nested-list structure.
func convertNumeric(v interface{}, from, to units.Unit) (interface{}, error) {
	switch t := v.(type) {
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			converted, err := convertNumeric(e, from, to)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	case float64:
		return units.Convert(t, from, to)
	case int64:
		converted, err := units.Convert(float64(t), from, to)
		if err != nil {
			return nil, err
		}
		if converted != float64(int64(converted)) {
			return nil, dmserr.New(dmserr.TypeMismatch, "unit conversion of an integer attribute produced a non-integer value")
		}
		return int64(converted), nil
	case bool:
		return t, nil
	default:
		return v, nil
	}
}
