package engine

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/declarion/declarion/pkg/schema"
)

// shapeDocument projects a raw store document onto a read schema: native
// ids become hex strings, one-to-one embeds become an object or an explicit
// null, one-to-many embeds become an array (never nil), and fields the schema
// does not know are dropped.
func shapeDocument(obj *schema.Object, doc map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(obj.Fields))
	for _, f := range obj.Fields {
		inner := unwrapSchema(f.Schema)
		value, present := doc[f.Name]

		switch node := inner.(type) {
		case *schema.Object:
			if m, ok := toMap(value); present && ok {
				out[f.Name] = shapeDocument(node, m)
			} else {
				out[f.Name] = nil
			}

		case *schema.Array:
			items, _ := toSlice(value)
			shaped := make([]interface{}, 0, len(items))
			elem := unwrapSchema(node.Of)
			for _, item := range items {
				if elemObj, ok := elem.(*schema.Object); ok {
					if m, ok := toMap(item); ok {
						shaped = append(shaped, shapeDocument(elemObj, m))
						continue
					}
				}
				shaped = append(shaped, normalizeValue(item))
			}
			out[f.Name] = shaped

		default:
			if !present {
				continue
			}
			out[f.Name] = normalizeValue(value)
		}
	}
	return out
}

// applyProjection recursively keeps only the requested properties. A boolean
// true keeps the field as-is; a nested object recurses into embedded objects
// and each element of embedded arrays.
func applyProjection(properties map[string]interface{}, doc map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(properties))
	for key, spec := range properties {
		value, present := doc[key]
		if !present {
			continue
		}
		switch s := spec.(type) {
		case bool:
			if s {
				out[key] = value
			}
		case map[string]interface{}:
			switch v := value.(type) {
			case map[string]interface{}:
				out[key] = applyProjection(s, v)
			case []interface{}:
				projected := make([]interface{}, 0, len(v))
				for _, item := range v {
					if m, ok := item.(map[string]interface{}); ok {
						projected = append(projected, applyProjection(s, m))
					} else {
						projected = append(projected, item)
					}
				}
				out[key] = projected
			default:
				out[key] = value
			}
		}
	}
	return out
}

func unwrapSchema(s schema.Schema) schema.Schema {
	for {
		switch v := s.(type) {
		case *schema.Optional:
			s = v.Of
		case *schema.Nullable:
			s = v.Of
		default:
			return s
		}
	}
}

func normalizeValue(value interface{}) interface{} {
	switch v := value.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case bson.M:
		return normalizeMap(v)
	case map[string]interface{}:
		return normalizeMap(v)
	case bson.D:
		return normalizeMap(v.Map())
	case primitive.A:
		return normalizeSlice(v)
	case []interface{}:
		return normalizeSlice(v)
	default:
		return v
	}
}

func normalizeMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeSlice(items []interface{}) []interface{} {
	out := make([]interface{}, len(items))
	for i, item := range items {
		out[i] = normalizeValue(item)
	}
	return out
}

func toMap(value interface{}) (map[string]interface{}, bool) {
	switch v := value.(type) {
	case bson.M:
		return v, true
	case map[string]interface{}:
		return v, true
	case bson.D:
		return v.Map(), true
	default:
		return nil, false
	}
}

func toSlice(value interface{}) ([]interface{}, bool) {
	switch v := value.(type) {
	case primitive.A:
		return v, true
	case []interface{}:
		return v, true
	default:
		return nil, false
	}
}
