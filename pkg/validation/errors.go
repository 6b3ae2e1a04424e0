package validation

import (
	"fmt"
	"strings"
)

// NoValidationError is returned when a model was registered but never given a
// field rule, so no compiled validation exists for it.
type NoValidationError struct {
	Model string
}

func (e *NoValidationError) Error() string {
	return fmt.Sprintf("no validation found for model %s", e.Model)
}

// NewNoValidationError creates a new NoValidationError.
func NewNoValidationError(model string) *NoValidationError {
	return &NoValidationError{Model: model}
}

// CyclicRelationshipError is returned when relationship expansion would
// recurse forever (A -> B -> A). The baseline behavior here was an unbounded
// recursion; compilation fails fast instead.
type CyclicRelationshipError struct {
	Path []string
}

func (e *CyclicRelationshipError) Error() string {
	return fmt.Sprintf("cyclic relationship: %s", strings.Join(e.Path, " -> "))
}
