package engine

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// fakeStore is an in-memory Store with just enough aggregation support
// ($lookup, $unwind, $match, $sort, $skip, $limit) to execute the pipelines
// the engine builds. Sessions stage writes and apply them on commit.
type fakeStore struct {
	mu          sync.Mutex
	collections map[string][]bson.M
	beginCount  int
	failInsert  map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		collections: map[string][]bson.M{},
		failInsert:  map[string]error{},
	}
}

type fakeTxKey struct{}

type fakeSession struct {
	store *fakeStore
	mu    sync.Mutex
	ops   []func(collections map[string][]bson.M)
}

func (s *fakeSession) Bind(ctx context.Context) context.Context {
	return context.WithValue(ctx, fakeTxKey{}, s)
}

func (s *fakeSession) Commit(ctx context.Context) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range s.ops {
		op(s.store.collections)
	}
	s.ops = nil
	return nil
}

func (s *fakeSession) Abort(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = nil
	return nil
}

func (s *fakeSession) End(ctx context.Context) {}

func sessionFrom(ctx context.Context) *fakeSession {
	session, _ := ctx.Value(fakeTxKey{}).(*fakeSession)
	return session
}

func (f *fakeStore) Begin(ctx context.Context) (Session, error) {
	f.mu.Lock()
	f.beginCount++
	f.mu.Unlock()
	return &fakeSession{store: f}, nil
}

func (f *fakeStore) InsertOne(ctx context.Context, collection string, doc bson.M) (interface{}, error) {
	f.mu.Lock()
	failErr := f.failInsert[collection]
	f.mu.Unlock()
	if failErr != nil {
		return nil, failErr
	}

	stored := cloneDoc(doc)
	id := primitive.NewObjectID()
	if _, ok := stored["_id"]; !ok {
		stored["_id"] = id
	} else {
		id = stored["_id"].(primitive.ObjectID)
	}

	if session := sessionFrom(ctx); session != nil {
		session.mu.Lock()
		session.ops = append(session.ops, func(collections map[string][]bson.M) {
			collections[collection] = append(collections[collection], stored)
		})
		session.mu.Unlock()
		return id, nil
	}

	f.mu.Lock()
	f.collections[collection] = append(f.collections[collection], stored)
	f.mu.Unlock()
	return id, nil
}

func (f *fakeStore) UpdateByID(ctx context.Context, collection string, id interface{}, set bson.M) (int64, error) {
	apply := func(collections map[string][]bson.M) int64 {
		var matched int64
		for _, doc := range collections[collection] {
			if equalValues(doc["_id"], id) {
				for k, v := range set {
					doc[k] = v
				}
				matched++
			}
		}
		return matched
	}

	if session := sessionFrom(ctx); session != nil {
		session.mu.Lock()
		session.ops = append(session.ops, func(collections map[string][]bson.M) { apply(collections) })
		session.mu.Unlock()
		return 1, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return apply(f.collections), nil
}

func (f *fakeStore) DeleteByID(ctx context.Context, collection string, id interface{}) (int64, error) {
	apply := func(collections map[string][]bson.M) int64 {
		docs := collections[collection]
		for i, doc := range docs {
			if equalValues(doc["_id"], id) {
				collections[collection] = append(docs[:i:i], docs[i+1:]...)
				return 1
			}
		}
		return 0
	}

	if session := sessionFrom(ctx); session != nil {
		session.mu.Lock()
		session.ops = append(session.ops, func(collections map[string][]bson.M) { apply(collections) })
		session.mu.Unlock()
		return 1, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return apply(f.collections), nil
}

func (f *fakeStore) EnsureCollection(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.collections[name]; !ok {
		f.collections[name] = nil
	}
	return nil
}

func (f *fakeStore) Aggregate(ctx context.Context, collection string, stages mongo.Pipeline) ([]bson.M, error) {
	f.mu.Lock()
	docs := make([]bson.M, 0, len(f.collections[collection]))
	for _, doc := range f.collections[collection] {
		docs = append(docs, cloneDoc(doc))
	}
	foreign := map[string][]bson.M{}
	for name, coll := range f.collections {
		for _, doc := range coll {
			foreign[name] = append(foreign[name], cloneDoc(doc))
		}
	}
	f.mu.Unlock()

	for _, stage := range stages {
		if len(stage) == 0 {
			continue
		}
		switch stage[0].Key {
		case "$lookup":
			docs = applyLookup(docs, stage[0].Value.(bson.D), foreign)
		case "$unwind":
			docs = applyUnwind(docs, stage[0].Value.(bson.D))
		case "$match":
			docs = applyMatch(docs, stage[0].Value.(bson.M))
		case "$sort":
			docs = applySort(docs, stage[0].Value.(bson.D))
		case "$skip":
			n := int(stage[0].Value.(int64))
			if n > len(docs) {
				n = len(docs)
			}
			docs = docs[n:]
		case "$limit":
			n := int(stage[0].Value.(int64))
			if n < len(docs) {
				docs = docs[:n]
			}
		}
	}
	return docs, nil
}

func (f *fakeStore) count(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.collections[collection])
}

func applyLookup(docs []bson.M, spec bson.D, foreign map[string][]bson.M) []bson.M {
	params := spec.Map()
	from := params["from"].(string)
	localField := params["localField"].(string)
	foreignField := params["foreignField"].(string)
	as := params["as"].(string)

	for _, doc := range docs {
		local := doc[localField]
		var matches primitive.A
		for _, candidate := range foreign[from] {
			if localMatches(local, candidate[foreignField]) {
				matches = append(matches, cloneDoc(candidate))
			}
		}
		if matches == nil {
			matches = primitive.A{}
		}
		doc[as] = matches
	}
	return docs
}

func localMatches(local, foreignValue interface{}) bool {
	if items, ok := local.(primitive.A); ok {
		for _, item := range items {
			if equalValues(item, foreignValue) {
				return true
			}
		}
		return false
	}
	if items, ok := local.([]interface{}); ok {
		for _, item := range items {
			if equalValues(item, foreignValue) {
				return true
			}
		}
		return false
	}
	return equalValues(local, foreignValue)
}

func applyUnwind(docs []bson.M, spec bson.D) []bson.M {
	params := spec.Map()
	field := strings.TrimPrefix(params["path"].(string), "$")
	preserve, _ := params["preserveNullAndEmptyArrays"].(bool)

	var out []bson.M
	for _, doc := range docs {
		items, _ := doc[field].(primitive.A)
		if len(items) == 0 {
			if preserve {
				copied := cloneDoc(doc)
				delete(copied, field)
				out = append(out, copied)
			}
			continue
		}
		for _, item := range items {
			copied := cloneDoc(doc)
			copied[field] = item
			out = append(out, copied)
		}
	}
	return out
}

func applyMatch(docs []bson.M, filter bson.M) []bson.M {
	var out []bson.M
	for _, doc := range docs {
		if matchDoc(doc, filter) {
			out = append(out, doc)
		}
	}
	return out
}

func matchDoc(doc bson.M, filter bson.M) bool {
	for key, cond := range filter {
		switch key {
		case "$or":
			branches := cond.([]interface{})
			matched := false
			for _, branch := range branches {
				if matchDoc(doc, toBsonM(branch)) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		case "$and":
			for _, branch := range cond.([]interface{}) {
				if !matchDoc(doc, toBsonM(branch)) {
					return false
				}
			}
		default:
			if !matchValue(doc[key], cond) {
				return false
			}
		}
	}
	return true
}

func matchValue(value, cond interface{}) bool {
	operators := toBsonM(cond)
	if operators == nil {
		return equalValues(value, cond)
	}
	for op, operand := range operators {
		if !strings.HasPrefix(op, "$") {
			return false
		}
		switch op {
		case "$eq":
			if !equalValues(value, operand) {
				return false
			}
		case "$ne":
			if equalValues(value, operand) {
				return false
			}
		case "$in":
			items, _ := operand.([]interface{})
			found := false
			for _, item := range items {
				if equalValues(value, item) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func applySort(docs []bson.M, keys bson.D) []bson.M {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, key := range keys {
			cmp := compareValues(docs[i][key.Key], docs[j][key.Key])
			if cmp == 0 {
				continue
			}
			direction, _ := toInt64(key.Value)
			if direction < 0 {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	return docs
}

func compareValues(a, b interface{}) int {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs)
	}
	aid, aok := a.(primitive.ObjectID)
	bid, bok := b.(primitive.ObjectID)
	if aok && bok {
		return strings.Compare(aid.Hex(), bid.Hex())
	}
	return 0
}

func equalValues(a, b interface{}) bool {
	if aid, ok := a.(primitive.ObjectID); ok {
		bid, ok := b.(primitive.ObjectID)
		return ok && aid == bid
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return a == b
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

func toInt64(value interface{}) (int64, bool) {
	f, ok := toFloat(value)
	return int64(f), ok
}

func toBsonM(value interface{}) bson.M {
	switch v := value.(type) {
	case bson.M:
		return v
	case map[string]interface{}:
		return v
	default:
		return nil
	}
}

func cloneDoc(doc bson.M) bson.M {
	out := make(bson.M, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
