package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/declarion/declarion/pkg/observability/logger"
	"github.com/declarion/declarion/pkg/observability/metrics"
	"github.com/declarion/declarion/pkg/pipeline"
	"github.com/declarion/declarion/pkg/schema"
	"github.com/declarion/declarion/pkg/validation"
)

// Dispatch routes a request envelope to its action and shapes the uniform
// response envelope. Every failure is converted here; dispatch never panics
// the serving process.
func (e *Engine) Dispatch(ctx context.Context, req Request) Response {
	start := time.Now()
	ctx = logger.WithRequestID(ctx, uuid.NewString())
	log := e.log.WithContext(ctx)

	metrics.IncrementInFlight()
	defer metrics.DecrementInFlight()

	data, err := e.dispatch(ctx, req)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.RecordDispatch(string(req.Action), req.Model, outcome, time.Since(start))

	if err != nil {
		log.Error("dispatch failed",
			"action", req.Action,
			"model", req.Model,
			"error", err,
		)
		return Response{Errors: err.Error()}
	}
	log.Debug("dispatch completed", "action", req.Action, "model", req.Model)
	return Response{Data: data}
}

func (e *Engine) dispatch(ctx context.Context, req Request) (interface{}, error) {
	e.mu.RLock()
	authorize := e.authorize
	e.mu.RUnlock()
	if authorize != nil {
		if err := authorize(ctx, req); err != nil {
			return nil, &AuthorizationError{}
		}
	}

	switch req.Action {
	case ActionCreate:
		param, err := objectParameter(req)
		if err != nil {
			return nil, err
		}
		return e.create(ctx, req.Model, param)
	case ActionRead:
		param, err := objectParameter(req)
		if err != nil {
			return nil, err
		}
		return e.read(ctx, req.Model, param, req.Properties)
	case ActionUpdate:
		param, err := objectParameter(req)
		if err != nil {
			return nil, err
		}
		return e.update(ctx, req.Model, param)
	case ActionDelete:
		param, err := objectParameter(req)
		if err != nil {
			return nil, err
		}
		return e.delete(ctx, req.Model, param)
	case ActionOperation:
		return e.operation(ctx, req)
	case ActionSchema:
		param, err := objectParameter(req)
		if err != nil {
			return nil, err
		}
		return e.schemaFor(req.Model, param)
	case ActionTransaction:
		return e.transact(ctx, req.Parameter)
	default:
		return nil, fmt.Errorf("action %s not supported", req.Action)
	}
}

func objectParameter(req Request) (map[string]interface{}, error) {
	if req.Parameter == nil {
		return map[string]interface{}{}, nil
	}
	param, ok := req.Parameter.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("parameter for %s must be an object", req.Action)
	}
	return param, nil
}

func (e *Engine) create(ctx context.Context, modelName string, param map[string]interface{}) (interface{}, error) {
	c, err := e.compiled(modelName)
	if err != nil {
		return nil, err
	}
	if c.Create == nil {
		return nil, fmt.Errorf("create not allowed for model %s", modelName)
	}
	if err := schema.Validate(c.Create, param); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	doc := translateDocument(param, idFields(c))
	doc["createdAt"] = now
	doc["updatedAt"] = now

	id, err := e.store.InsertOne(ctx, modelName, doc)
	if err != nil {
		return nil, err
	}

	inserted := make(map[string]interface{}, len(param)+3)
	for k, v := range param {
		inserted[k] = v
	}
	inserted[validation.IdentityField] = normalizeValue(id)
	inserted["createdAt"] = now
	inserted["updatedAt"] = now
	return inserted, nil
}

func (e *Engine) read(ctx context.Context, modelName string, param map[string]interface{}, properties map[string]interface{}) (interface{}, error) {
	c, err := e.compiled(modelName)
	if err != nil {
		return nil, err
	}

	filter, restriction, err := pipeline.Extract(param)
	if err != nil {
		return nil, err
	}
	filter = translateFilter(filter, idFields(c))

	stages := pipeline.Build(c.Info.Relationships, filter, restriction, nil)
	results, err := e.store.Aggregate(ctx, modelName, stages)
	if err != nil {
		return nil, err
	}

	readSchema, ok := c.Read.(*schema.Object)
	if !ok {
		return nil, fmt.Errorf("read schema for model %s is not an object", modelName)
	}

	shaped := make([]interface{}, 0, len(results))
	for _, raw := range results {
		doc := shapeDocument(readSchema, raw)
		if err := schema.Validate(c.Read, doc); err != nil {
			return nil, err
		}
		if len(properties) > 0 {
			doc = applyProjection(properties, doc)
		}
		shaped = append(shaped, doc)
	}
	return shaped, nil
}

func (e *Engine) update(ctx context.Context, modelName string, param map[string]interface{}) (interface{}, error) {
	c, err := e.compiled(modelName)
	if err != nil {
		return nil, err
	}
	if c.Update == nil {
		return nil, fmt.Errorf("update not allowed for model %s", modelName)
	}
	if err := schema.Validate(c.Update, param); err != nil {
		return nil, err
	}

	id := translateID(param["id"])
	set := bson.M{"updatedAt": time.Now().UTC()}
	if updateSet, ok := param["updateSet"].(map[string]interface{}); ok {
		for k, v := range translateDocument(updateSet, idFields(c)) {
			set[k] = v
		}
	}

	if _, err := e.store.UpdateByID(ctx, modelName, id, set); err != nil {
		return nil, err
	}
	return true, nil
}

func (e *Engine) delete(ctx context.Context, modelName string, param map[string]interface{}) (interface{}, error) {
	c, err := e.compiled(modelName)
	if err != nil {
		return nil, err
	}
	if c.Delete == nil {
		return nil, fmt.Errorf("delete not allowed for model %s", modelName)
	}
	if err := schema.Validate(c.Delete, param); err != nil {
		return nil, err
	}

	// Deleting an already-absent identity affects zero documents and still
	// succeeds.
	if _, err := e.store.DeleteByID(ctx, modelName, translateID(param["id"])); err != nil {
		return nil, err
	}
	return true, nil
}

func (e *Engine) operation(ctx context.Context, req Request) (interface{}, error) {
	e.mu.RLock()
	op, ok := e.operations[req.Model]
	e.mu.RUnlock()
	if !ok {
		return nil, &OperationNotFoundError{Name: req.Model}
	}
	return op(ctx, &Invoker{engine: e}, req.Parameter)
}

// schemaFor returns the JSON-Schema form of one compiled schema, selected by
// parameter type. A schema the permission mask disabled yields nil data with
// no error; an unrecognized type yields an envelope error.
func (e *Engine) schemaFor(modelName string, param map[string]interface{}) (interface{}, error) {
	c, err := e.compiled(modelName)
	if err != nil {
		return nil, err
	}

	schemaType, _ := param["type"].(string)
	var s schema.Schema
	switch schemaType {
	case "create":
		s = c.Create
	case "read":
		s = c.Read
	case "update":
		s = c.Update
	case "delete":
		s = c.Delete
	default:
		return nil, fmt.Errorf("schematype %s not found", schemaType)
	}

	if s == nil {
		return nil, nil
	}
	return schema.JSONSchema(s), nil
}
