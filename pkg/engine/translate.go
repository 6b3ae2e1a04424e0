package engine

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/declarion/declarion/pkg/validation"
)

// idFields returns the set of identity-bearing field names for a model: the
// document identity plus every relationship's local field.
func idFields(c *validation.Compiled) map[string]struct{} {
	fields := map[string]struct{}{
		validation.IdentityField: {},
	}
	for _, rel := range c.Info.Relationships {
		fields[rel.LocalField] = struct{}{}
	}
	return fields
}

// translateID converts an external 24-hex identity string (or a list of
// them) into the store's native object id. Anything else passes through.
func translateID(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		if oid, err := primitive.ObjectIDFromHex(v); err == nil {
			return oid
		}
		return v
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = translateID(item)
		}
		return out
	default:
		return value
	}
}

// translateFilter rewrites identity-bearing fields and the supported
// operators ($in, $or, $and, $ne, $eq, raw equality) of a read filter from
// external hex form to native ids.
func translateFilter(filter bson.M, fields map[string]struct{}) bson.M {
	out := bson.M{}
	for key, value := range filter {
		switch key {
		case "$or", "$and":
			out[key] = translateBranches(value, fields)
		default:
			if _, ok := fields[key]; ok {
				out[key] = translateOperand(value)
			} else {
				out[key] = value
			}
		}
	}
	return out
}

func translateBranches(value interface{}, fields map[string]struct{}) interface{} {
	branches, ok := value.([]interface{})
	if !ok {
		return value
	}
	out := make([]interface{}, len(branches))
	for i, branch := range branches {
		if m, ok := branch.(map[string]interface{}); ok {
			out[i] = translateFilter(bson.M(m), fields)
		} else {
			out[i] = branch
		}
	}
	return out
}

// translateOperand handles both raw equality values and operator documents
// on an identity-bearing field.
func translateOperand(value interface{}) interface{} {
	operators, ok := value.(map[string]interface{})
	if !ok {
		return translateID(value)
	}
	out := bson.M{}
	for op, operand := range operators {
		switch op {
		case "$in", "$ne", "$eq":
			out[op] = translateID(operand)
		default:
			out[op] = operand
		}
	}
	return out
}

// translateDocument rewrites the identity-bearing fields of a create or
// update payload to native ids.
func translateDocument(doc map[string]interface{}, fields map[string]struct{}) bson.M {
	out := bson.M{}
	for key, value := range doc {
		if _, ok := fields[key]; ok {
			out[key] = translateID(value)
		} else {
			out[key] = value
		}
	}
	return out
}
