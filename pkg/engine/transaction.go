package engine

import (
	"context"
	"fmt"

	"github.com/declarion/declarion/pkg/observability/metrics"
)

// txState tracks the coordinator's lifecycle: Idle -> Active ->
// Committed | Aborted.
type txState int

const (
	txIdle txState = iota
	txActive
	txCommitted
	txAborted
)

func (s txState) String() string {
	switch s {
	case txIdle:
		return "idle"
	case txActive:
		return "active"
	case txCommitted:
		return "committed"
	case txAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// subOperation is one create/update/delete staged inside a transaction.
type subOperation struct {
	action     Action
	model      string
	parameter  map[string]interface{}
	properties map[string]interface{}
}

// transact executes an ordered list of sub-operations under one storage
// transaction, all-or-nothing. A non-array parameter is rejected before any
// session is opened; an empty list succeeds without a session.
func (e *Engine) transact(ctx context.Context, parameter interface{}) (interface{}, error) {
	rawOps, ok := parameter.([]interface{})
	if !ok {
		return nil, &TransactionError{Message: "transaction params must be an array"}
	}
	if len(rawOps) == 0 {
		return true, nil
	}

	ops, err := parseSubOperations(rawOps)
	if err != nil {
		return nil, &TransactionError{Message: err.Error()}
	}

	session, err := e.store.Begin(ctx)
	if err != nil {
		return nil, newTransactionError(err)
	}
	state := txActive
	defer session.End(ctx)

	txCtx := session.Bind(ctx)
	for _, op := range ops {
		if err := e.applySubOperation(txCtx, op); err != nil {
			state = txAborted
			if abortErr := session.Abort(ctx); abortErr != nil {
				e.log.Error("transaction abort failed", "error", abortErr)
			}
			metrics.RecordTransaction(state.String())
			return nil, newTransactionError(err)
		}
	}

	if err := session.Commit(ctx); err != nil {
		state = txAborted
		if abortErr := session.Abort(ctx); abortErr != nil {
			e.log.Error("transaction abort failed", "error", abortErr)
		}
		metrics.RecordTransaction(state.String())
		return nil, newTransactionError(err)
	}
	state = txCommitted
	metrics.RecordTransaction(state.String())
	return true, nil
}

func parseSubOperations(rawOps []interface{}) ([]subOperation, error) {
	ops := make([]subOperation, 0, len(rawOps))
	for i, raw := range rawOps {
		doc, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("transaction operation %d must be an object", i)
		}
		action, _ := doc["action"].(string)
		switch Action(action) {
		case ActionCreate, ActionUpdate, ActionDelete:
		default:
			return nil, fmt.Errorf("transaction operation %d has unsupported action %q", i, action)
		}
		modelName, _ := doc["model"].(string)
		param, _ := doc["parameter"].(map[string]interface{})
		properties, _ := doc["properties"].(map[string]interface{})
		ops = append(ops, subOperation{
			action:     Action(action),
			model:      modelName,
			parameter:  param,
			properties: properties,
		})
	}
	return ops, nil
}

// applySubOperation re-enters the dispatcher's per-operation logic with the
// session-bound context, so every storage call is staged in the transaction.
func (e *Engine) applySubOperation(ctx context.Context, op subOperation) error {
	var err error
	switch op.action {
	case ActionCreate:
		_, err = e.create(ctx, op.model, op.parameter)
	case ActionUpdate:
		_, err = e.update(ctx, op.model, op.parameter)
	case ActionDelete:
		_, err = e.delete(ctx, op.model, op.parameter)
	}
	return err
}
