// Package schema implements the schema-of-schemas model: parsing, the
// load-time invariants from spec.md §3, and the read-only accessors that
// the rest of the service uses to interpret stored records.
//
// Grounded on the teacher's spec.Schema/Components (spec/spec.go): the
// same technique of a custom UnmarshalJSON that rejects any field outside
// an allow-list, generalized from OpenAPI's JSON-schema dialect to this
// service's narrower AttrDescriptor dialect. The invariants themselves
// follow the mupif/EDM prototype's ItemSchema/SchemaSchema pydantic
// validators (link_shape, links_valid, unit_valid).
package schema

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/scidms/dms/dmserr"
	"github.com/scidms/dms/units"
)

// Dtype is one of the six primitive storage kinds an attribute may declare.
type Dtype string

const (
	DtypeFloat  Dtype = "f"
	DtypeInt    Dtype = "i"
	DtypeBool   Dtype = "?"
	DtypeStr    Dtype = "str"
	DtypeBytes  Dtype = "bytes"
	DtypeObject Dtype = "object"
)

// IsQuantity reports whether this dtype is one of the three that may carry
// a unit and go through the quantity engine.
func (d Dtype) IsQuantity() bool {
	return d == DtypeFloat || d == DtypeInt || d == DtypeBool
}

var validDtypes = map[Dtype]bool{
	DtypeFloat: true, DtypeInt: true, DtypeBool: true,
	DtypeStr: true, DtypeBytes: true, DtypeObject: true,
}

// AttrDescriptor is the four-field schema record for one attribute of one
// type, as defined in spec.md §3.
type AttrDescriptor struct {
	Dtype Dtype   `json:"dtype"`
	Unit  *string `json:"unit,omitempty"`
	Shape []int   `json:"shape,omitempty"`
	Link  *string `json:"link,omitempty"`

	unit units.Unit // parsed form of Unit, populated by validate (run by Parse)
}

// ParsedUnit returns the parsed form of Unit. Only valid after the owning
// Schema has been loaded through Parse.
func (a *AttrDescriptor) ParsedUnit() units.Unit { return a.unit }

// IsLink reports whether this attribute is a link attribute.
func (a *AttrDescriptor) IsLink() bool { return a.Link != nil }

// IsListLink reports whether this is a link attribute holding a list of
// references (shape length 1) as opposed to a single reference (shape
// length 0).
func (a *AttrDescriptor) IsListLink() bool { return a.IsLink() && len(a.Shape) == 1 }

var allowedAttrFields = map[string]bool{
	"dtype": true, "unit": true, "shape": true, "link": true,
}

// UnmarshalJSON rejects any field other than dtype/unit/shape/link, the
// same strict-decode discipline the teacher's Schema.UnmarshalJSON uses
// for OpenAPI schema fragments.
func (a *AttrDescriptor) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for field := range raw {
		if !allowedAttrFields[field] {
			return dmserr.New(dmserr.SchemaError, "unsupported field in attribute descriptor: %q", field)
		}
	}
	type alias AttrDescriptor
	var inner alias
	inner.Dtype = DtypeFloat // matches the prototype's ItemSchema default
	if err := json.Unmarshal(data, &inner); err != nil {
		return err
	}
	*a = AttrDescriptor(inner)
	return nil
}

// TypeSchema maps an attribute name to its descriptor for one declared type.
type TypeSchema map[string]*AttrDescriptor

// Schema is the parsed, validated schema-of-schemas for one database:
// TypeName -> AttrName -> AttrDescriptor.
type Schema struct {
	types map[string]TypeSchema
}

// Parse decodes raw schema JSON (the §6 "Schema JSON" shape) and runs the
// load-time invariants from spec.md §3. It does not mutate any cache.
func Parse(raw []byte) (*Schema, error) {
	var types map[string]TypeSchema
	if err := json.Unmarshal(raw, &types); err != nil {
		return nil, dmserr.Wrap(dmserr.SchemaError, err)
	}
	s := &Schema{types: types}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// validate enforces: every link target is declared, a link attribute has
// shape length 0 or 1 and no unit, and every declared unit parses.
func (s *Schema) validate() error {
	for typeName, attrs := range s.types {
		for attrName, attr := range attrs {
			if attr.Link != nil {
				if _, ok := s.types[*attr.Link]; !ok {
					return dmserr.New(dmserr.SchemaError,
						"%s.%s: link to undeclared type %q", typeName, attrName, *attr.Link)
				}
				if len(attr.Shape) > 1 {
					return dmserr.New(dmserr.SchemaError,
						"%s.%s: link attributes must be scalar (shape=[]) or 1-d (shape=[n])", typeName, attrName)
				}
				if attr.Unit != nil {
					return dmserr.New(dmserr.SchemaError,
						"%s.%s: unit not permitted on a link attribute", typeName, attrName)
				}
				continue
			}
			if len(attr.Shape) > 5 {
				return dmserr.New(dmserr.SchemaError,
					"%s.%s: shape has more than 5 axes", typeName, attrName)
			}
			if !validDtypes[attr.Dtype] {
				return dmserr.New(dmserr.SchemaError, "%s.%s: unknown dtype %q", typeName, attrName, attr.Dtype)
			}
			if attr.Unit != nil && !attr.Dtype.IsQuantity() {
				return dmserr.New(dmserr.SchemaError,
					"%s.%s: unit only permitted on quantity dtypes (f, i, ?)", typeName, attrName)
			}
			if attr.Unit != nil {
				parsed, err := units.Parse(*attr.Unit)
				if err != nil {
					return dmserr.Wrap(dmserr.SchemaError, errors.Wrapf(err, "%s.%s: invalid unit %q", typeName, attrName, *attr.Unit))
				}
				attr.unit = parsed
			}
		}
	}
	return nil
}

// Types returns the declared type names.
func (s *Schema) Types() []string {
	names := make([]string, 0, len(s.types))
	for name := range s.types {
		names = append(names, name)
	}
	return names
}

// Type returns the attribute map for a declared type.
func (s *Schema) Type(name string) (TypeSchema, error) {
	t, ok := s.types[name]
	if !ok {
		return nil, dmserr.New(dmserr.UnknownType, "unknown type %q", name)
	}
	return t, nil
}

// Attr returns the descriptor for one attribute of one declared type.
func (s *Schema) Attr(typeName, attrName string) (*AttrDescriptor, error) {
	t, err := s.Type(typeName)
	if err != nil {
		return nil, err
	}
	attr, ok := t[attrName]
	if !ok {
		return nil, dmserr.New(dmserr.UnknownAttr, "unknown attribute %s.%s", typeName, attrName)
	}
	return attr, nil
}

// Raw returns the schema re-encoded as JSON, for the GET /{db}/schema
// endpoint.
func (s *Schema) Raw() ([]byte, error) {
	return json.Marshal(s.types)
}
