package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

// Session is one storage transaction session. Operations run against the
// transaction when issued through a context returned by Bind.
type Session struct {
	session mongo.Session
}

// Begin opens a session and starts a transaction on it.
func (a *Adapter) Begin(ctx context.Context) (*Session, error) {
	a.mu.RLock()
	closed := a.closed
	a.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("mongodb adapter is closed")
	}

	session, err := a.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	if err := session.StartTransaction(a.transactionOptions()); err != nil {
		session.EndSession(ctx)
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	return &Session{session: session}, nil
}

// Bind returns a context that routes storage calls through this session.
func (s *Session) Bind(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, s.session)
}

// Commit commits the active transaction.
func (s *Session) Commit(ctx context.Context) error {
	return s.session.CommitTransaction(ctx)
}

// Abort rolls the active transaction back.
func (s *Session) Abort(ctx context.Context) error {
	return s.session.AbortTransaction(ctx)
}

// End releases the session.
func (s *Session) End(ctx context.Context) {
	s.session.EndSession(ctx)
}
