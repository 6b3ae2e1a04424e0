package engine

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/declarion/declarion/pkg/schema"
	"github.com/declarion/declarion/pkg/validation"
)

// ValidationError is a payload failure against a compiled schema. The
// validator's message is surfaced verbatim.
type ValidationError = schema.Error

// NoValidationError marks a request against a model that compiled no
// validation.
type NoValidationError = validation.NoValidationError

// OperationNotFoundError marks a call to an unregistered named operation.
type OperationNotFoundError struct {
	Name string
}

func (e *OperationNotFoundError) Error() string {
	return fmt.Sprintf("operation not found %s", e.Name)
}

// AuthorizationError marks a request rejected by the authorization
// predicate. The message is deliberately opaque.
type AuthorizationError struct{}

func (e *AuthorizationError) Error() string {
	return "forbidden"
}

// TransactionError wraps any failure inside an active transaction. The
// transaction is always aborted before this error propagates.
type TransactionError struct {
	Message   string
	Cause     error
	retryable bool
}

func (e *TransactionError) Error() string {
	return e.Message
}

func (e *TransactionError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the failure was a lock/commit timeout the caller
// may retry.
func (e *TransactionError) Retryable() bool {
	return e.retryable
}

func newTransactionError(cause error) *TransactionError {
	return &TransactionError{
		Message:   fmt.Sprintf("error on transaction %s", cause.Error()),
		Cause:     cause,
		retryable: isTransientTxnError(cause),
	}
}

// isTransientTxnError classifies lock-wait and commit timeouts as retryable.
func isTransientTxnError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.HasErrorLabel("TransientTransactionError") ||
			cmdErr.HasErrorLabel("UnknownTransactionCommitResult")
	}
	return false
}
