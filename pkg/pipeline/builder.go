// Package pipeline converts a read request (filter, restriction, projection)
// and a model's relationship descriptors into an ordered MongoDB aggregation
// pipeline. Stage order is fixed: joins, match, sort, skip, limit, projection.
package pipeline

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/declarion/declarion/pkg/model"
)

// JoinStages returns a relationship's aggregation-stage fragment.
// One-to-one: a lookup followed by an unwind preserving documents where the
// join found nothing (left-outer semantics). One-to-many: a lookup only.
// Unknown cardinality is a no-op join.
func JoinStages(rel model.Relationship) []bson.D {
	lookup := bson.D{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: rel.From},
		{Key: "localField", Value: rel.LocalField},
		{Key: "foreignField", Value: rel.ForeignField},
		{Key: "as", Value: rel.LocalField},
	}}}

	switch rel.Cardinality {
	case model.OneToOne:
		unwind := bson.D{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$" + rel.LocalField},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}}
		return []bson.D{lookup, unwind}
	case model.OneToMany:
		return []bson.D{lookup}
	default:
		return nil
	}
}

// Build assembles the full pipeline for a read request. Relationship joins
// come first in declaration order, then the match filter (if non-empty), the
// restriction stages, and finally the projection.
func Build(relationships []model.Relationship, filter bson.M, restriction *Restriction, projection bson.M) mongo.Pipeline {
	var stages mongo.Pipeline

	for _, rel := range relationships {
		stages = append(stages, JoinStages(rel)...)
	}

	if len(filter) > 0 {
		stages = append(stages, bson.D{{Key: "$match", Value: filter}})
	}

	if restriction != nil {
		if len(restriction.Sort) > 0 {
			stages = append(stages, bson.D{{Key: "$sort", Value: restriction.Sort}})
		}
		if restriction.Skip != nil {
			stages = append(stages, bson.D{{Key: "$skip", Value: *restriction.Skip}})
		}
		if restriction.Limit != nil {
			stages = append(stages, bson.D{{Key: "$limit", Value: *restriction.Limit}})
		}
	}

	if len(projection) > 0 {
		stages = append(stages, bson.D{{Key: "$project", Value: projection}})
	}

	return stages
}
