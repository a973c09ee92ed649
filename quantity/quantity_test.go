package quantity

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scidms/dms/dmserr"
	"github.com/scidms/dms/schema"
)

func attr(t *testing.T, dtype schema.Dtype, unit string, shape []int) *schema.AttrDescriptor {
	var unitJSON string
	if unit != "" {
		unitJSON = `"unit":"` + unit + `",`
	}
	shapeJSON := "[]"
	if shape != nil {
		shapeJSON = intsJSON(shape)
	}
	full := `{"a":{"dtype":"` + string(dtype) + `",` + unitJSON + `"shape":` + shapeJSON + `}}`
	s, err := schema.Parse([]byte(`{"T":` + full + `}`))
	require.NoError(t, err)
	a, err := s.Attr("T", "a")
	require.NoError(t, err)
	return a
}

func intsJSON(shape []int) string {
	out := "["
	for i, v := range shape {
		if i > 0 {
			out += ","
		}
		out += itoa(v)
	}
	return out + "]"
}

func itoa(v int) string {
	if v < 0 {
		return "-" + itoa(-v)
	}
	if v == 0 {
		return "0"
	}
	digits := ""
	for v > 0 {
		digits = string(rune('0'+v%10)) + digits
		v /= 10
	}
	return digits
}

func TestValidateBareScalarNoUnit(t *testing.T) {
	a := attr(t, schema.DtypeFloat, "", nil)
	v, err := Validate(a, 2.5)
	require.NoError(t, err)
	require.Equal(t, 2.5, v)
}

func TestValidateUnitMissingWhenSchemaRequiresOne(t *testing.T) {
	a := attr(t, schema.DtypeFloat, "m", nil)
	_, err := Validate(a, 2.5)
	require.Error(t, err)
	derr, ok := dmserr.As(err)
	require.True(t, ok)
	require.Equal(t, dmserr.UnitMissing, derr.Kind)
}

func TestValidateUnitExtraWhenSchemaHasNone(t *testing.T) {
	a := attr(t, schema.DtypeFloat, "", nil)
	_, err := Validate(a, map[string]interface{}{"value": 2.5, "unit": "m"})
	require.Error(t, err)
	derr, ok := dmserr.As(err)
	require.True(t, ok)
	require.Equal(t, dmserr.UnitExtra, derr.Kind)
}

func TestValidateConvertsMillimetersToMeters(t *testing.T) {
	a := attr(t, schema.DtypeFloat, "m", nil)
	v, err := Validate(a, map[string]interface{}{"value": 2500.0, "unit": "mm"})
	require.NoError(t, err)
	require.Equal(t, 2.5, v)
}

func TestValidateIncompatibleUnit(t *testing.T) {
	a := attr(t, schema.DtypeFloat, "m", nil)
	_, err := Validate(a, map[string]interface{}{"value": 1.0, "unit": "s"})
	require.Error(t, err)
	derr, ok := dmserr.As(err)
	require.True(t, ok)
	require.Equal(t, dmserr.UnitIncompatible, derr.Kind)
}

func TestValidateShapeMismatch(t *testing.T) {
	a := attr(t, schema.DtypeFloat, "m", []int{3})
	_, err := Validate(a, map[string]interface{}{"value": 2.5, "unit": "m"})
	require.Error(t, err)
	derr, ok := dmserr.As(err)
	require.True(t, ok)
	require.Equal(t, dmserr.ShapeMismatch, derr.Kind)
}

func TestValidateDimensionMismatch(t *testing.T) {
	a := attr(t, schema.DtypeFloat, "m", []int{3})
	_, err := Validate(a, map[string]interface{}{
		"value": []interface{}{1.0, 2.0},
		"unit":  "m",
	})
	require.Error(t, err)
	derr, ok := dmserr.As(err)
	require.True(t, ok)
	require.Equal(t, dmserr.DimensionMismatch, derr.Kind)
}

func TestValidateFreeAxisAcceptsAnyLength(t *testing.T) {
	a := attr(t, schema.DtypeFloat, "", []int{-1})
	v, err := Validate(a, []interface{}{1.0, 2.0, 3.0, 4.0})
	require.NoError(t, err)
	require.Equal(t, []interface{}{1.0, 2.0, 3.0, 4.0}, v)
}

func TestValidateZeroShapeEntryIsFree(t *testing.T) {
	a := attr(t, schema.DtypeFloat, "", []int{0})
	v, err := Validate(a, []interface{}{1.0, 2.0, 3.0})
	require.NoError(t, err)
	require.Equal(t, []interface{}{1.0, 2.0, 3.0}, v)
}

func TestValidateIntRejectsFractional(t *testing.T) {
	a := attr(t, schema.DtypeInt, "", nil)
	_, err := Validate(a, 2.5)
	require.Error(t, err)
	derr, ok := dmserr.As(err)
	require.True(t, ok)
	require.Equal(t, dmserr.TypeMismatch, derr.Kind)
}

func TestValidateIntAcceptsWholeFloat(t *testing.T) {
	a := attr(t, schema.DtypeInt, "", nil)
	v, err := Validate(a, 4.0)
	require.NoError(t, err)
	require.Equal(t, int64(4), v)
}

func TestValidateBoolRejectsNumber(t *testing.T) {
	a := attr(t, schema.DtypeBool, "", []int{-1})
	_, err := Validate(a, []interface{}{true, 1.0})
	require.Error(t, err)
	derr, ok := dmserr.As(err)
	require.True(t, ok)
	require.Equal(t, dmserr.TypeMismatch, derr.Kind)
}

func TestValidateExtraKeysRejected(t *testing.T) {
	a := attr(t, schema.DtypeFloat, "m", nil)
	_, err := Validate(a, map[string]interface{}{"value": 1.0, "unit": "m", "bogus": true})
	require.Error(t, err)
	derr, ok := dmserr.As(err)
	require.True(t, ok)
	require.Equal(t, dmserr.ExtraKeys, derr.Kind)
}

func TestValidateStrDtype(t *testing.T) {
	a := attr(t, schema.DtypeStr, "", nil)
	v, err := Validate(a, "hello")
	require.NoError(t, err)
	require.Equal(t, "hello", v)
}

func TestWrapAssemblesRecord(t *testing.T) {
	rec, err := Wrap(2.5, "m")
	require.NoError(t, err)
	require.Equal(t, 2.5, rec["value"])
	require.Equal(t, "m", rec["unit"])
}
