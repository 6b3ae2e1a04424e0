package engine

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	mongostore "github.com/declarion/declarion/pkg/store/mongodb"
)

// Store is the document-store contract the engine dispatches against.
type Store interface {
	InsertOne(ctx context.Context, collection string, doc bson.M) (interface{}, error)
	Aggregate(ctx context.Context, collection string, stages mongo.Pipeline) ([]bson.M, error)
	UpdateByID(ctx context.Context, collection string, id interface{}, set bson.M) (int64, error)
	DeleteByID(ctx context.Context, collection string, id interface{}) (int64, error)
	EnsureCollection(ctx context.Context, name string) error
	Begin(ctx context.Context) (Session, error)
}

// Session is one active storage transaction. Calls issued through a context
// returned by Bind are staged in the transaction.
type Session interface {
	Bind(ctx context.Context) context.Context
	Commit(ctx context.Context) error
	Abort(ctx context.Context) error
	End(ctx context.Context)
}

// CollectionProvider is implemented by stores that can hand out driver
// collection handles, used to run declared index-setup callbacks.
type CollectionProvider interface {
	Collection(name string) *mongo.Collection
}

// MongoStore adapts the MongoDB adapter to the engine's Store contract.
type MongoStore struct {
	adapter *mongostore.Adapter
}

// NewMongoStore wraps a connected MongoDB adapter.
func NewMongoStore(adapter *mongostore.Adapter) *MongoStore {
	return &MongoStore{adapter: adapter}
}

func (s *MongoStore) InsertOne(ctx context.Context, collection string, doc bson.M) (interface{}, error) {
	return s.adapter.InsertOne(ctx, collection, doc)
}

func (s *MongoStore) Aggregate(ctx context.Context, collection string, stages mongo.Pipeline) ([]bson.M, error) {
	return s.adapter.Aggregate(ctx, collection, stages)
}

func (s *MongoStore) UpdateByID(ctx context.Context, collection string, id interface{}, set bson.M) (int64, error) {
	return s.adapter.UpdateByID(ctx, collection, id, set)
}

func (s *MongoStore) DeleteByID(ctx context.Context, collection string, id interface{}) (int64, error) {
	return s.adapter.DeleteByID(ctx, collection, id)
}

func (s *MongoStore) EnsureCollection(ctx context.Context, name string) error {
	return s.adapter.EnsureCollection(ctx, name)
}

func (s *MongoStore) Begin(ctx context.Context) (Session, error) {
	return s.adapter.Begin(ctx)
}

// Collection exposes the driver collection handle for index provisioning.
func (s *MongoStore) Collection(name string) *mongo.Collection {
	return s.adapter.Collection(name)
}
