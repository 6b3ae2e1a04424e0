package schema

import (
	"github.com/google/jsonschema-go/jsonschema"
)

type jsSchema = jsonschema.Schema

// JSONSchema serializes a schema node tree to its JSON Schema representation.
// This is the shape returned by the dispatcher's schema action.
func JSONSchema(s Schema) *jsonschema.Schema {
	out := s.jsonSchema()
	out.Schema = "https://json-schema.org/draft/2020-12/schema"
	return out
}

func (s *Scalar) jsonSchema() *jsSchema {
	out := &jsSchema{
		Type:      string(s.Type),
		Pattern:   s.Pattern,
		Minimum:   s.Min,
		Maximum:   s.Max,
		MinLength: s.MinLength,
		MaxLength: s.MaxLength,
	}
	if len(s.Enum) > 0 {
		out.Enum = append(out.Enum, s.Enum...)
	}
	return out
}

func (o *Object) jsonSchema() *jsSchema {
	out := &jsSchema{
		Type:       "object",
		Properties: make(map[string]*jsSchema, len(o.Fields)),
	}
	for _, f := range o.Fields {
		out.Properties[f.Name] = f.Schema.jsonSchema()
		out.PropertyOrder = append(out.PropertyOrder, f.Name)
		if !isOptional(f.Schema) {
			out.Required = append(out.Required, f.Name)
		}
	}
	return out
}

func (a *Array) jsonSchema() *jsSchema {
	return &jsSchema{
		Type:  "array",
		Items: a.Of.jsonSchema(),
	}
}

func (o *Optional) jsonSchema() *jsSchema {
	return o.Of.jsonSchema()
}

func (n *Nullable) jsonSchema() *jsSchema {
	inner := n.Of.jsonSchema()
	if inner.Type != "" {
		inner.Types = []string{inner.Type, "null"}
		inner.Type = ""
		return inner
	}
	return &jsSchema{OneOf: []*jsSchema{inner, {Type: "null"}}}
}

func (o *OneOf) jsonSchema() *jsSchema {
	out := &jsSchema{}
	for _, alt := range o.Alternatives {
		out.OneOf = append(out.OneOf, alt.jsonSchema())
	}
	return out
}
