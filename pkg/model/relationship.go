package model

// Cardinality defines the shape of a relationship between two collections.
type Cardinality string

const (
	// OneToOne embeds a single related document (or null) at read time.
	OneToOne Cardinality = "one-to-one"
	// OneToMany embeds an array of related documents at read time.
	OneToMany Cardinality = "one-to-many"
	// Unknown produces a no-op join.
	Unknown Cardinality = "unknown"
)

// Relationship describes a named join between two collections: the foreign
// collection, the field pair used to correlate documents, and the cardinality.
type Relationship struct {
	From         string
	LocalField   string
	ForeignField string
	Cardinality  Cardinality
}

// NewRelationship creates a relationship descriptor. All three name fields
// must be non-empty.
func NewRelationship(from, localField, foreignField string, cardinality Cardinality) (Relationship, error) {
	if from == "" {
		return Relationship{}, NewInvalidDefinitionError("relationship requires a source collection")
	}
	if localField == "" {
		return Relationship{}, NewInvalidDefinitionError("relationship requires a local field")
	}
	if foreignField == "" {
		return Relationship{}, NewInvalidDefinitionError("relationship requires a foreign field")
	}
	return Relationship{
		From:         from,
		LocalField:   localField,
		ForeignField: foreignField,
		Cardinality:  cardinality,
	}, nil
}
