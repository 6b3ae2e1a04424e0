// Package schema implements the closed set of schema node kinds used by the
// validation compiler: scalars with constraints, objects of fields, arrays,
// optional/nullable wrappers and one-of alternatives. Every node can both
// validate a decoded JSON value and serialize itself to a JSON Schema form
// for introspection.
package schema

import (
	"fmt"
	"math"
	"regexp"
)

// Schema is the contract shared by all node kinds.
type Schema interface {
	// validate checks the value at the given field path and returns a
	// human-readable *Error on the first violation.
	validate(path string, value interface{}) error

	jsonSchema() *jsSchema
}

// Error is a validation failure with a human-readable message in the form
// `"<field>" <constraint>`.
type Error struct {
	Field   string
	Message string
}

// Error returns the message verbatim; callers surface it unchanged.
func (e *Error) Error() string {
	return e.Message
}

func newError(path, format string, args ...interface{}) *Error {
	return &Error{
		Field:   path,
		Message: fmt.Sprintf("%q ", path) + fmt.Sprintf(format, args...),
	}
}

// Validate checks a decoded JSON value against the schema.
func Validate(s Schema, value interface{}) error {
	return s.validate("value", value)
}

// ScalarType enumerates the primitive types a Scalar node can carry.
type ScalarType string

const (
	TypeString  ScalarType = "string"
	TypeInteger ScalarType = "integer"
	TypeNumber  ScalarType = "number"
	TypeBoolean ScalarType = "boolean"
)

// Scalar is a primitive value with optional constraints.
type Scalar struct {
	Type      ScalarType
	Min       *float64
	Max       *float64
	MinLength *int
	MaxLength *int
	Pattern   string
	Enum      []interface{}

	pattern *regexp.Regexp
}

// NewScalar creates a scalar node, compiling the pattern if one is set.
// An invalid pattern is a programming error in the model declaration.
func NewScalar(t ScalarType) *Scalar {
	return &Scalar{Type: t}
}

// WithPattern sets a regular expression constraint on a string scalar.
func (s *Scalar) WithPattern(pattern string) *Scalar {
	s.Pattern = pattern
	s.pattern = regexp.MustCompile(pattern)
	return s
}

// WithRange sets numeric bounds.
func (s *Scalar) WithRange(min, max *float64) *Scalar {
	s.Min = min
	s.Max = max
	return s
}

// WithLength sets string length bounds.
func (s *Scalar) WithLength(min, max *int) *Scalar {
	s.MinLength = min
	s.MaxLength = max
	return s
}

// WithEnum restricts the scalar to a fixed set of values.
func (s *Scalar) WithEnum(values ...interface{}) *Scalar {
	s.Enum = values
	return s
}

func (s *Scalar) validate(path string, value interface{}) error {
	if value == nil {
		return newError(path, "must not be null")
	}

	switch s.Type {
	case TypeString:
		str, ok := value.(string)
		if !ok {
			return newError(path, "must be a string")
		}
		if s.MinLength != nil && len(str) < *s.MinLength {
			return newError(path, "must be at least %d characters long", *s.MinLength)
		}
		if s.MaxLength != nil && len(str) > *s.MaxLength {
			return newError(path, "must be at most %d characters long", *s.MaxLength)
		}
		if s.pattern == nil && s.Pattern != "" {
			s.pattern = regexp.MustCompile(s.Pattern)
		}
		if s.pattern != nil && !s.pattern.MatchString(str) {
			return newError(path, "must match pattern %s", s.Pattern)
		}

	case TypeInteger:
		f, ok := numeric(value)
		if !ok || f != math.Trunc(f) {
			return newError(path, "must be an integer")
		}
		if err := s.checkRange(path, f); err != nil {
			return err
		}

	case TypeNumber:
		f, ok := numeric(value)
		if !ok {
			return newError(path, "must be a number")
		}
		if err := s.checkRange(path, f); err != nil {
			return err
		}

	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return newError(path, "must be a boolean")
		}

	default:
		return newError(path, "has unsupported type %q", s.Type)
	}

	if len(s.Enum) > 0 && !enumContains(s.Enum, value) {
		return newError(path, "must be one of %v", s.Enum)
	}
	return nil
}

func (s *Scalar) checkRange(path string, f float64) error {
	if s.Min != nil && f < *s.Min {
		return newError(path, "must be greater than or equal to %v", *s.Min)
	}
	if s.Max != nil && f > *s.Max {
		return newError(path, "must be less than or equal to %v", *s.Max)
	}
	return nil
}

// Field is a named member of an Object node.
type Field struct {
	Name   string
	Schema Schema
}

// Object validates a JSON object with a fixed field set.
// Unknown fields are rejected; absent fields are rejected unless the field
// schema is wrapped in Optional.
type Object struct {
	Fields []Field
}

// NewObject creates an object node with fields in declaration order.
func NewObject(fields ...Field) *Object {
	return &Object{Fields: fields}
}

// Field returns the schema of a named field, or nil.
func (o *Object) Field(name string) Schema {
	for _, f := range o.Fields {
		if f.Name == name {
			return f.Schema
		}
	}
	return nil
}

func (o *Object) validate(path string, value interface{}) error {
	if value == nil {
		return newError(path, "must not be null")
	}
	doc, ok := asMap(value)
	if !ok {
		return newError(path, "must be an object")
	}

	known := make(map[string]struct{}, len(o.Fields))
	for _, f := range o.Fields {
		known[f.Name] = struct{}{}
		v, present := doc[f.Name]
		if !present {
			if isOptional(f.Schema) {
				continue
			}
			return &Error{Field: f.Name, Message: fmt.Sprintf("%q is required", f.Name)}
		}
		if err := f.Schema.validate(f.Name, v); err != nil {
			return err
		}
	}
	for name := range doc {
		if _, ok := known[name]; !ok {
			return &Error{Field: name, Message: fmt.Sprintf("%q is not allowed", name)}
		}
	}
	return nil
}

// Array validates a JSON array whose elements all match Of.
type Array struct {
	Of Schema
}

// NewArray creates an array node.
func NewArray(of Schema) *Array {
	return &Array{Of: of}
}

func (a *Array) validate(path string, value interface{}) error {
	if value == nil {
		return newError(path, "must not be null")
	}
	items, ok := asSlice(value)
	if !ok {
		return newError(path, "must be an array")
	}
	for i, item := range items {
		if err := a.Of.validate(fmt.Sprintf("%s[%d]", path, i), item); err != nil {
			return err
		}
	}
	return nil
}

// Optional marks an object field as allowed to be absent.
type Optional struct {
	Of Schema
}

// NewOptional wraps a schema as optional.
func NewOptional(of Schema) *Optional {
	return &Optional{Of: of}
}

func (o *Optional) validate(path string, value interface{}) error {
	return o.Of.validate(path, value)
}

// Nullable allows an explicit null in place of the wrapped schema.
type Nullable struct {
	Of Schema
}

// NewNullable wraps a schema as nullable.
func NewNullable(of Schema) *Nullable {
	return &Nullable{Of: of}
}

func (n *Nullable) validate(path string, value interface{}) error {
	if value == nil {
		return nil
	}
	return n.Of.validate(path, value)
}

// OneOf accepts a value matching any of its alternatives.
type OneOf struct {
	Alternatives []Schema
}

// NewOneOf creates a one-of node.
func NewOneOf(alternatives ...Schema) *OneOf {
	return &OneOf{Alternatives: alternatives}
}

func (o *OneOf) validate(path string, value interface{}) error {
	for _, alt := range o.Alternatives {
		if alt.validate(path, value) == nil {
			return nil
		}
	}
	return newError(path, "does not match any allowed form")
}

func isOptional(s Schema) bool {
	switch v := s.(type) {
	case *Optional:
		return true
	case *Nullable:
		return isOptional(v.Of)
	default:
		return false
	}
}

func numeric(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func enumContains(enum []interface{}, value interface{}) bool {
	for _, e := range enum {
		if e == value {
			return true
		}
		ef, eok := numeric(e)
		vf, vok := numeric(value)
		if eok && vok && ef == vf {
			return true
		}
	}
	return false
}

func asMap(value interface{}) (map[string]interface{}, bool) {
	switch v := value.(type) {
	case map[string]interface{}:
		return v, true
	default:
		return nil, false
	}
}

func asSlice(value interface{}) ([]interface{}, bool) {
	switch v := value.(type) {
	case []interface{}:
		return v, true
	default:
		return nil, false
	}
}
