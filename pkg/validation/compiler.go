// Package validation compiles the collection registry and the field-rule pool
// into per-model create/read/update/delete schemas. It runs once per engine
// start; the compiled set is immutable during serving.
package validation

import (
	"github.com/declarion/declarion/pkg/model"
	"github.com/declarion/declarion/pkg/schema"
)

// IdentityField is the document identity field name.
const IdentityField = "_id"

// Identity returns the schema of an external identity value: a 24-character
// hex string, the textual form of a document store object id.
func Identity() schema.Schema {
	return schema.NewScalar(schema.TypeString).WithPattern("^[0-9a-fA-F]{24}$")
}

// Compiled is the materialized validation of one model. Read is always
// present; Create, Update and Delete are nil when the permission mask
// disables the matching operation.
type Compiled struct {
	Model  string
	Info   model.CollectionInfo
	Create schema.Schema
	Read   schema.Schema
	Update schema.Schema
	Delete schema.Schema
}

// Set holds the compiled validations of one engine start.
type Set struct {
	byModel map[string]*Compiled
	order   []string
}

// Find returns the compiled validation for a model.
func (s *Set) Find(modelName string) (*Compiled, bool) {
	c, ok := s.byModel[modelName]
	return c, ok
}

// Models returns the compiled model names in compile order.
func (s *Set) Models() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

type compiler struct {
	registry *model.Registry
	rules    map[string][]model.FieldRule
}

// Compile drains the rule pool and derives the four schemas for every
// registered model that has at least one rule. Models without rules are
// skipped; requests against them surface NoValidationError at dispatch time.
func Compile(registry *model.Registry, pool *model.RulePool) (*Set, error) {
	c := &compiler{
		registry: registry,
		rules:    make(map[string][]model.FieldRule),
	}
	for _, rule := range pool.Drain() {
		c.rules[rule.Model] = append(c.rules[rule.Model], rule)
	}

	set := &Set{byModel: make(map[string]*Compiled)}
	for _, info := range registry.All() {
		rules := c.gather(info.Name)
		if len(rules) == 0 {
			continue
		}

		read, err := c.buildRead(info.Name, nil)
		if err != nil {
			return nil, err
		}

		compiled := &Compiled{Model: info.Name, Info: info, Read: read}
		if info.Permissions.AllowsCreate() {
			compiled.Create = c.buildCreate(rules)
		}
		if info.Permissions.AllowsUpdate() {
			compiled.Update = c.buildUpdate(rules)
		}
		if info.Permissions.AllowsDelete() {
			compiled.Delete = buildDelete()
		}

		if _, seen := set.byModel[info.Name]; !seen {
			set.order = append(set.order, info.Name)
		}
		// Last registration wins on duplicate names.
		set.byModel[info.Name] = compiled
	}
	return set, nil
}

// gather returns a model's own rules plus the rules of every ancestor named
// by its InheritedFrom chains. Ancestors fold in first, in declared order; a
// rule declared on the model itself shadows an inherited rule of the same
// field name.
func (c *compiler) gather(modelName string) []model.FieldRule {
	own := c.rules[modelName]

	var ancestors []string
	seen := map[string]struct{}{}
	for _, rule := range own {
		for _, ancestor := range rule.InheritedFrom {
			if _, ok := seen[ancestor]; ok {
				continue
			}
			seen[ancestor] = struct{}{}
			ancestors = append(ancestors, ancestor)
		}
	}

	byField := map[string]int{}
	var out []model.FieldRule
	add := func(rule model.FieldRule) {
		if i, ok := byField[rule.Field]; ok {
			out[i] = rule
			return
		}
		byField[rule.Field] = len(out)
		out = append(out, rule)
	}
	for _, ancestor := range ancestors {
		for _, rule := range c.rules[ancestor] {
			add(rule)
		}
	}
	for _, rule := range own {
		add(rule)
	}
	return out
}

// buildRead derives the read schema, recursively expanding relationship rules
// into the related model's read schema. Every field is optional on read: read
// validation is a type check over whatever the store returned, not a presence
// check. The path slice guards against relationship cycles.
func (c *compiler) buildRead(modelName string, path []string) (schema.Schema, error) {
	for _, visited := range path {
		if visited == modelName {
			return nil, &CyclicRelationshipError{Path: append(append([]string{}, path...), modelName)}
		}
	}
	path = append(path, modelName)

	var fields []schema.Field
	for _, rule := range c.gather(modelName) {
		if !rule.IsRelationship() {
			fields = append(fields, schema.Field{
				Name:   rule.Field,
				Schema: schema.NewOptional(rule.Scalar),
			})
			continue
		}

		nested, err := c.buildRead(rule.RelatedModel, path)
		if err != nil {
			return nil, err
		}
		switch rule.Cardinality {
		case model.OneToOne:
			fields = append(fields, schema.Field{
				Name:   rule.Field,
				Schema: schema.NewOptional(schema.NewNullable(nested)),
			})
		case model.OneToMany:
			fields = append(fields, schema.Field{
				Name:   rule.Field,
				Schema: schema.NewOptional(schema.NewArray(nested)),
			})
		default:
			// Unknown cardinality joins nothing and exposes nothing.
		}
	}
	return schema.NewObject(fields...), nil
}

// buildCreate derives the create schema: every rule except the identity
// field, with relationship rules replaced by foreign-id references.
func (c *compiler) buildCreate(rules []model.FieldRule) schema.Schema {
	var fields []schema.Field
	for _, rule := range rules {
		if rule.Field == IdentityField {
			continue
		}
		if f, ok := referenceField(rule, false); ok {
			fields = append(fields, f)
		}
	}
	return schema.NewObject(fields...)
}

// buildUpdate derives the update schema: a required identity plus an
// updateSet carrying every non-identity field as optional.
func (c *compiler) buildUpdate(rules []model.FieldRule) schema.Schema {
	var fields []schema.Field
	for _, rule := range rules {
		if rule.Field == IdentityField {
			continue
		}
		if f, ok := referenceField(rule, true); ok {
			fields = append(fields, f)
		}
	}
	return schema.NewObject(
		schema.Field{Name: "id", Schema: Identity()},
		schema.Field{Name: "updateSet", Schema: schema.NewObject(fields...)},
	)
}

func buildDelete() schema.Schema {
	return schema.NewObject(
		schema.Field{Name: "id", Schema: Identity()},
	)
}

// referenceField maps a rule to its create/update field form: scalars keep
// their constraint schema, relationships become id references (a nullable
// single id for one-to-one, an id array for one-to-many).
func referenceField(rule model.FieldRule, optional bool) (schema.Field, bool) {
	var s schema.Schema
	switch {
	case !rule.IsRelationship():
		s = rule.Scalar
		if optional {
			s = schema.NewOptional(s)
		}
	case rule.Cardinality == model.OneToOne:
		s = schema.NewOptional(schema.NewNullable(Identity()))
	case rule.Cardinality == model.OneToMany:
		s = schema.NewOptional(schema.NewArray(Identity()))
	default:
		return schema.Field{}, false
	}
	return schema.Field{Name: rule.Field, Schema: s}, true
}
