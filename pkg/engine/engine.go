// Package engine ties the compiled validations, the pipeline builder and the
// storage adapter together behind the fixed action vocabulary
// create|read|update|delete|operation|transaction|schema.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/declarion/declarion/pkg/model"
	"github.com/declarion/declarion/pkg/observability/logger"
	"github.com/declarion/declarion/pkg/validation"
)

// OperationFunc is a registered named operation. It receives an invoker
// handle for re-entering the engine and the request's free-form parameter.
type OperationFunc func(ctx context.Context, invoker *Invoker, parameter interface{}) (interface{}, error)

// Invoker is the handle passed to named operations.
type Invoker struct {
	engine *Engine
}

// Dispatch re-enters the engine from inside an operation.
func (i *Invoker) Dispatch(ctx context.Context, req Request) Response {
	return i.engine.Dispatch(ctx, req)
}

// Authorizer decides whether a request may proceed. A non-nil error rejects
// the request with an opaque "forbidden".
type Authorizer func(ctx context.Context, req Request) error

// Engine is the serving component. Collections, field rules and operations
// register before Start; Start compiles the validation set; Stop tears
// everything down so the engine can be rebuilt in-process.
type Engine struct {
	store Store
	log   logger.Logger

	registry *model.Registry
	rules    *model.RulePool

	mu          sync.RWMutex
	validations *validation.Set
	operations  map[string]OperationFunc
	authorize   Authorizer
	started     bool
}

// New creates an engine over a store.
func New(store Store, log logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{
		store:      store,
		log:        log,
		registry:   model.NewRegistry(),
		rules:      model.NewRulePool(),
		operations: make(map[string]OperationFunc),
	}
}

// WithAuthorizer installs the authorization predicate.
func (e *Engine) WithAuthorizer(fn Authorizer) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.authorize = fn
	return e
}

// RegisterCollection adds collection metadata to the catalog.
func (e *Engine) RegisterCollection(info model.CollectionInfo) error {
	return e.registry.Register(info)
}

// RegisterFieldRule accumulates a field validation rule for the next Start.
func (e *Engine) RegisterFieldRule(rule model.FieldRule) {
	e.rules.Add(rule)
}

// RegisterOperation registers a named operation.
func (e *Engine) RegisterOperation(name string, op OperationFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.operations[name] = op
}

// Registry exposes the collection catalog.
func (e *Engine) Registry() *model.Registry {
	return e.registry
}

// Start compiles the validation set, ensures one collection per registered
// model and runs declared index-setup callbacks. It must be called before
// Dispatch and may be called again after Stop.
func (e *Engine) Start(ctx context.Context) error {
	set, err := validation.Compile(e.registry, e.rules)
	if err != nil {
		return fmt.Errorf("validation compile failed: %w", err)
	}

	for _, info := range e.registry.All() {
		if err := e.store.EnsureCollection(ctx, info.Name); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", info.Name, err)
		}
		if info.IndexSetup != nil {
			provider, ok := e.store.(CollectionProvider)
			if !ok {
				continue
			}
			if err := info.IndexSetup(ctx, provider.Collection(info.Name)); err != nil {
				return fmt.Errorf("index setup failed for %s: %w", info.Name, err)
			}
		}
	}

	e.mu.Lock()
	e.validations = set
	e.started = true
	e.mu.Unlock()

	e.log.Info("engine started", "models", len(set.Models()))
	return nil
}

// Stop discards compiled state and clears the catalog and rule pool. A
// subsequent declaration pass plus Start rebuilds everything.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.validations = nil
	e.started = false
	e.mu.Unlock()
	e.registry.Clear()
	e.rules.Drain()
	e.log.Info("engine stopped")
}

// Validations returns the current compiled set.
func (e *Engine) Validations() *validation.Set {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.validations
}

func (e *Engine) compiled(modelName string) (*validation.Compiled, error) {
	e.mu.RLock()
	set := e.validations
	e.mu.RUnlock()
	if set == nil {
		return nil, fmt.Errorf("engine is not started")
	}
	c, ok := set.Find(modelName)
	if !ok {
		return nil, validation.NewNoValidationError(modelName)
	}
	return c, nil
}
