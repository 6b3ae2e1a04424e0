// Package mongodb provides the MongoDB storage adapter: document CRUD,
// aggregation, collection management and session-scoped transactions.
package mongodb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/declarion/declarion/pkg/observability/logger"
)

// Adapter provides MongoDB connectivity.
type Adapter struct {
	client   *mongo.Client
	database string
	logger   logger.Logger
	timeout  time.Duration
	txnLock  time.Duration
	mu       sync.RWMutex
	closed   bool
}

// Config holds MongoDB adapter configuration.
type Config struct {
	URL          string
	Database     string
	ReplicaSet   string
	AuthDatabase string
	Username     string
	Password     string

	ConnectTimeout   time.Duration
	OperationTimeout time.Duration
	// TxnLockTimeout bounds how long a transaction waits on contended
	// documents before aborting as retryable.
	TxnLockTimeout time.Duration
}

// NewAdapter connects to MongoDB and verifies connectivity with a ping.
// It does not create collections or indexes.
func NewAdapter(cfg Config, log logger.Logger) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("mongodb URL is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("mongodb database is required")
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 5 * time.Second
	}
	if cfg.TxnLockTimeout <= 0 {
		cfg.TxnLockTimeout = 150 * time.Millisecond
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	opts := options.Client().ApplyURI(cfg.URL)
	if cfg.ReplicaSet != "" {
		opts = opts.SetReplicaSet(cfg.ReplicaSet)
	}
	if cfg.Username != "" {
		opts = opts.SetAuth(options.Credential{
			Username:   cfg.Username,
			Password:   cfg.Password,
			AuthSource: cfg.AuthDatabase,
		})
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	log.Info("MongoDB connection established", "database", cfg.Database)
	return &Adapter{
		client:   client,
		database: cfg.Database,
		logger:   log,
		timeout:  cfg.OperationTimeout,
		txnLock:  cfg.TxnLockTimeout,
	}, nil
}

// Client returns the underlying driver client.
func (a *Adapter) Client() *mongo.Client {
	return a.client
}

// Database returns a handle to the configured database.
func (a *Adapter) Database() *mongo.Database {
	return a.client.Database(a.database)
}

// Collection returns a handle to a named collection.
func (a *Adapter) Collection(name string) *mongo.Collection {
	return a.Database().Collection(name)
}

// Ping verifies the connection is alive.
func (a *Adapter) Ping(ctx context.Context) error {
	a.mu.RLock()
	closed := a.closed
	a.mu.RUnlock()
	if closed {
		return fmt.Errorf("mongodb adapter is closed")
	}
	return a.client.Ping(ctx, readpref.Primary())
}

// HealthCheck pings with a short deadline.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	hcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := a.Ping(hcCtx); err != nil {
		a.logger.Error("MongoDB health check failed", "error", err)
		return fmt.Errorf("mongodb health check failed: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to close mongodb connection: %w", err)
	}
	return nil
}

// InsertOne inserts a document and returns its generated identity.
func (a *Adapter) InsertOne(ctx context.Context, collection string, doc bson.M) (interface{}, error) {
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	result, err := a.Collection(collection).InsertOne(opCtx, doc)
	if err != nil {
		return nil, err
	}
	return result.InsertedID, nil
}

// Aggregate runs a pipeline and decodes the full result set.
func (a *Adapter) Aggregate(ctx context.Context, collection string, stages mongo.Pipeline) ([]bson.M, error) {
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	cursor, err := a.Collection(collection).Aggregate(opCtx, stages)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(opCtx)

	var results []bson.M
	if err := cursor.All(opCtx, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// UpdateByID performs a partial field replace on every document matching the
// identity and returns the matched count.
func (a *Adapter) UpdateByID(ctx context.Context, collection string, id interface{}, set bson.M) (int64, error) {
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	result, err := a.Collection(collection).UpdateMany(opCtx,
		bson.M{"_id": id},
		bson.M{"$set": set},
	)
	if err != nil {
		return 0, err
	}
	return result.MatchedCount, nil
}

// DeleteByID removes the single document matching the identity and returns
// the deleted count (zero when already absent).
func (a *Adapter) DeleteByID(ctx context.Context, collection string, id interface{}) (int64, error) {
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	result, err := a.Collection(collection).DeleteOne(opCtx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// EnsureCollection creates a collection if it does not exist yet.
func (a *Adapter) EnsureCollection(ctx context.Context, name string) error {
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	existing, err := a.Database().ListCollectionNames(opCtx, bson.M{"name": name})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	if err := a.Database().CreateCollection(opCtx, name); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	return nil
}

// ListCollections returns every collection name in the database.
func (a *Adapter) ListCollections(ctx context.Context) ([]string, error) {
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	return a.Database().ListCollectionNames(opCtx, bson.M{})
}

// DropCollection drops a collection and its documents.
func (a *Adapter) DropCollection(ctx context.Context, name string) error {
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	return a.Collection(name).Drop(opCtx)
}

// transactionOptions bounds commit time so contended transactions abort
// within the configured lock window rather than queueing indefinitely.
func (a *Adapter) transactionOptions() *options.TransactionOptions {
	maxCommit := a.txnLock
	return options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority()).
		SetMaxCommitTime(&maxCommit)
}

func (a *Adapter) withOperationTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.timeout)
}
