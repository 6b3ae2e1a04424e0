// Package model holds the collection catalog: collection metadata,
// relationship descriptors and the pool of field validation rules that model
// declarations accumulate before the validation compiler runs.
package model

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/mongo"
)

// InvalidDefinitionError reports malformed model-declaration input.
type InvalidDefinitionError struct {
	Reason string
}

func (e *InvalidDefinitionError) Error() string {
	return e.Reason
}

// NewInvalidDefinitionError creates a new InvalidDefinitionError.
func NewInvalidDefinitionError(format string, args ...interface{}) *InvalidDefinitionError {
	return &InvalidDefinitionError{Reason: fmt.Sprintf(format, args...)}
}

// IndexSetup provisions indexes for a model's collection at engine start.
type IndexSetup func(ctx context.Context, collection *mongo.Collection) error

// PermissionMask gates create/update/delete per model by character position:
// position 0 must be 'C' to allow create, position 1 'U' for update,
// position 2 'D' for delete. Read is always allowed. Membership is positional,
// not set-based: "CXD" allows create and delete but NOT update, and "UCD"
// allows none of the three. This mirrors the declared contract exactly.
type PermissionMask string

// AllowsCreate reports whether position 0 is 'C'.
func (m PermissionMask) AllowsCreate() bool {
	return len(m) > 0 && m[0] == 'C'
}

// AllowsUpdate reports whether position 1 is 'U'.
func (m PermissionMask) AllowsUpdate() bool {
	return len(m) > 1 && m[1] == 'U'
}

// AllowsDelete reports whether position 2 is 'D'.
func (m PermissionMask) AllowsDelete() bool {
	return len(m) > 2 && m[2] == 'D'
}

// CollectionInfo is the declared metadata of one model/collection.
type CollectionInfo struct {
	Name          string
	Description   string
	Relationships []Relationship
	IndexSetup    IndexSetup
	Permissions   PermissionMask
}

// Registry is the process-wide catalog of registered collections. It is
// mutated only between Clear and the validation compile; during serving it is
// read-only.
type Registry struct {
	mu    sync.RWMutex
	infos []CollectionInfo
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a collection. Duplicate names are not rejected; when iterated
// the earlier entry is still visited, but Find returns the last registration.
func (r *Registry) Register(info CollectionInfo) error {
	if info.Name == "" {
		return NewInvalidDefinitionError("collection requires a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.infos = append(r.infos, info)
	return nil
}

// Find returns the collection registered under name. The last registration
// for a name wins.
func (r *Registry) Find(name string) (CollectionInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.infos) - 1; i >= 0; i-- {
		if r.infos[i].Name == name {
			return r.infos[i], true
		}
	}
	return CollectionInfo{}, false
}

// All returns the registered collections in registration order.
func (r *Registry) All() []CollectionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]CollectionInfo, len(r.infos))
	copy(out, r.infos)
	return out
}

// Clear removes every registration so the catalog can be rebuilt.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.infos = nil
}
