package model

import (
	"sync"

	"github.com/declarion/declarion/pkg/schema"
)

// FieldRule is one field-level validation rule accumulated during model
// declaration. Exactly one of Scalar or RelatedModel is set: a scalar rule
// carries a constraint schema, a relationship rule names the related model
// and its cardinality. InheritedFrom lists the owning model's ancestors in
// fold order; the compiler pulls the ancestors' own rules in as well.
type FieldRule struct {
	Field         string
	Model         string
	Scalar        schema.Schema
	RelatedModel  string
	Cardinality   Cardinality
	InheritedFrom []string
}

// NewScalarRule declares a scalar field rule.
func NewScalarRule(owningModel, field string, s schema.Schema, ancestors ...string) FieldRule {
	return FieldRule{
		Field:         field,
		Model:         owningModel,
		Scalar:        s,
		InheritedFrom: ancestors,
	}
}

// NewRelationshipRule declares a relationship field rule.
func NewRelationshipRule(owningModel, field, relatedModel string, cardinality Cardinality, ancestors ...string) FieldRule {
	return FieldRule{
		Field:         field,
		Model:         owningModel,
		RelatedModel:  relatedModel,
		Cardinality:   cardinality,
		InheritedFrom: ancestors,
	}
}

// IsRelationship reports whether the rule references another model.
func (r FieldRule) IsRelationship() bool {
	return r.RelatedModel != ""
}

// RulePool collects field rules during model declaration. The validation
// compiler drains it exactly once per engine start.
type RulePool struct {
	mu    sync.Mutex
	rules []FieldRule
}

// NewRulePool creates an empty pool.
func NewRulePool() *RulePool {
	return &RulePool{}
}

// Add appends a rule in declaration order.
func (p *RulePool) Add(rule FieldRule) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rules = append(p.rules, rule)
}

// Drain returns every accumulated rule and clears the pool.
func (p *RulePool) Drain() []FieldRule {
	p.mu.Lock()
	defer p.mu.Unlock()
	rules := p.rules
	p.rules = nil
	return rules
}

// Len returns the number of pending rules.
func (p *RulePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.rules)
}
