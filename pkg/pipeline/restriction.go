package pipeline

import (
	"fmt"
	"sort"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
)

// RestrictionsKey is the read-parameter key carrying sort/skip/limit. It is
// stripped from the filter before matching.
const RestrictionsKey = "RESTRICTIONS"

// Restriction is the optional sort/skip/limit modifier of a read request.
type Restriction struct {
	Sort  bson.D
	Skip  *int64
	Limit *int64
}

// Extract splits a read parameter into the match filter and the restriction,
// if one was attached. The returned filter never contains RestrictionsKey.
func Extract(parameter map[string]interface{}) (bson.M, *Restriction, error) {
	filter := bson.M{}
	var restriction *Restriction
	for key, value := range parameter {
		if key != RestrictionsKey {
			filter[key] = value
			continue
		}
		raw, ok := value.(map[string]interface{})
		if !ok {
			return nil, nil, fmt.Errorf("%s must be an object", RestrictionsKey)
		}
		parsed, err := parseRestriction(raw)
		if err != nil {
			return nil, nil, err
		}
		restriction = parsed
	}
	return filter, restriction, nil
}

func parseRestriction(raw map[string]interface{}) (*Restriction, error) {
	r := &Restriction{}
	if rawSort, ok := raw["sort"]; ok {
		sortDoc, ok := rawSort.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("restriction sort must be an object")
		}
		fields := make([]string, 0, len(sortDoc))
		for field := range sortDoc {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			direction, err := asInt64(sortDoc[field])
			if err != nil {
				return nil, fmt.Errorf("restriction sort direction for %s: %w", field, err)
			}
			r.Sort = append(r.Sort, bson.E{Key: field, Value: direction})
		}
	}
	if rawSkip, ok := raw["skip"]; ok {
		skip, err := asInt64(rawSkip)
		if err != nil {
			return nil, fmt.Errorf("restriction skip: %w", err)
		}
		r.Skip = &skip
	}
	if rawLimit, ok := raw["limit"]; ok {
		limit, err := asInt64(rawLimit)
		if err != nil {
			return nil, fmt.Errorf("restriction limit: %w", err)
		}
		r.Limit = &limit
	}
	return r, nil
}

func asInt64(value interface{}) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("not an integer: %v", value)
	}
}
