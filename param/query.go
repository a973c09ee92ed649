// Package param builds and validates the query-parameter schema for each
// GET/PATCH-family route in spec.md §6: max_level, tracking, meta, shallow,
// path, paths, debug, force, include_id.
//
// Grounded on the teacher's spec/query.go (BuildQuerySchema) and its
// server.go call site (`route.requestValidator.Validate(requestData)`):
// the teacher builds one go-jsschema Schema per OpenAPI operation and
// compiles it to a go-jsval validator via go-jsval/builder. This package
// does the same thing against a much smaller, hand-declared ParamSpec list
// per route instead of an OpenAPI document, since this service has no
// OpenAPI document of its own to derive one from.
package param

import (
	"net/url"
	"strconv"

	"github.com/lestrrat/go-jsschema"
	"github.com/lestrrat/go-jsval"
	"github.com/lestrrat/go-jsval/builder"

	"github.com/scidms/dms/dmserr"
)

// Kind is the primitive type a query parameter coerces to.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindBool
)

// Spec describes one query parameter accepted by a route.
type Spec struct {
	Name     string
	Kind     Kind
	Required bool
	Default  interface{}
}

// Schema is a compiled query-parameter validator for one route.
type Schema struct {
	specs []Spec
	jsv   *jsval.JSVal
}

// Build compiles specs into a Schema. AdditionalProperties is false: a
// route rejects query parameters it doesn't declare.
func Build(specs []Spec) (*Schema, error) {
	s := schema.New()
	s.Properties = map[string]*schema.Schema{}
	for _, spec := range specs {
		ps := schema.New()
		switch spec.Kind {
		case KindInt:
			ps.Type = schema.PrimitiveTypes{schema.IntegerType}
		case KindBool:
			ps.Type = schema.PrimitiveTypes{schema.BooleanType}
		default:
			ps.Type = schema.PrimitiveTypes{schema.StringType}
		}
		s.Properties[spec.Name] = ps
		if spec.Required {
			s.Required = append(s.Required, spec.Name)
		}
	}
	s.AdditionalProperties = &schema.AdditionalProperties{}

	b := builder.New()
	jsv, err := b.Build(s)
	if err != nil {
		return nil, dmserr.Wrap(dmserr.SchemaError, err)
	}
	return &Schema{specs: specs, jsv: jsv}, nil
}

// Parse coerces raw HTTP query values against the schema's declared kinds,
// validates the result, and returns a name -> typed-value map.
func (s *Schema) Parse(values url.Values) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(s.specs))
	for _, spec := range s.specs {
		raw, ok := values[spec.Name]
		if !ok || len(raw) == 0 {
			if spec.Default != nil {
				out[spec.Name] = spec.Default
			}
			continue
		}
		v, err := coerce(raw[0], spec.Kind)
		if err != nil {
			return nil, dmserr.New(dmserr.TypeMismatch, "query parameter %q: %s", spec.Name, err.Error())
		}
		out[spec.Name] = v
	}
	for name := range values {
		if !s.declares(name) {
			return nil, dmserr.New(dmserr.ExtraKeys, "unknown query parameter %q", name)
		}
	}
	if err := s.jsv.Validate(out); err != nil {
		return nil, dmserr.Wrap(dmserr.SchemaError, err)
	}
	return out, nil
}

func (s *Schema) declares(name string) bool {
	for _, spec := range s.specs {
		if spec.Name == name {
			return true
		}
	}
	return false
}

func coerce(raw string, kind Kind) (interface{}, error) {
	switch kind {
	case KindInt:
		return strconv.Atoi(raw)
	case KindBool:
		return strconv.ParseBool(raw)
	default:
		return raw, nil
	}
}
