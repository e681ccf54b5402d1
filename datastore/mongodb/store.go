/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package mongodb

import (
	"context"
	stderrors "errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/suparena/persistkit/datastore"
	"github.com/suparena/persistkit/entity"
	"github.com/suparena/persistkit/errors"
)

// Document field names.
const (
	fieldID      = "_id"
	fieldKind    = "kind"
	fieldKeyName = "name"
	fieldKeyID   = "id"
	fieldParent  = "parent"
	fieldVersion = "version"
	fieldProps   = "props"
	fieldSeq     = "seq"
)

const (
	OpGet      = "mongodb.Get"
	OpPut      = "mongodb.Put"
	OpDelete   = "mongodb.Delete"
	OpFind     = "mongodb.Find"
	OpCount    = "mongodb.Count"
	OpNextID   = "mongodb.NextID"
)

// document is the stored form of a record; _id is the encoded key.
type document struct {
	ID      string `bson:"_id"`
	Kind    string `bson:"kind"`
	Name    string `bson:"name,omitempty"`
	KeyID   int64  `bson:"id,omitempty"`
	Parent  string `bson:"parent,omitempty"`
	Version int64  `bson:"version"`
	Props   bson.M `bson:"props,omitempty"`
}

// Store implements datastore.Store[*Query] on one MongoDB collection.
type Store struct {
	client   *mongo.Client
	coll     *mongo.Collection
	counters *mongo.Collection
	logger   *zap.Logger
	owned    bool
}

// Option configures a Store.
type Option func(*Store)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New uses an existing client. Missing collection names fall back to DefaultConfig.
func New(client *mongo.Client, cfg Config, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, errors.NewInvalidArgumentError("client", "must not be nil")
	}
	def := DefaultConfig()
	if cfg.Database == "" {
		cfg.Database = def.Database
	}
	if cfg.Collection == "" {
		cfg.Collection = def.Collection
	}
	if cfg.CountersCollection == "" {
		cfg.CountersCollection = def.CountersCollection
	}

	db := client.Database(cfg.Database)
	s := &Store{
		client:   client,
		coll:     db.Collection(cfg.Collection),
		counters: db.Collection(cfg.CountersCollection),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Open connects with cfg and returns a store that disconnects on Close.
func Open(cfg Config, opts ...Option) (*Store, error) {
	s := &Store{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	client, err := Connect(cfg, s.logger)
	if err != nil {
		return nil, errors.NewStorageError("mongodb connect", err)
	}
	store, err := New(client, cfg, opts...)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	store.owned = true
	return store, nil
}

// Close disconnects the client when the store opened it.
func (s *Store) Close(ctx context.Context) error {
	if !s.owned {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func (s *Store) Get(ctx context.Context, key *entity.Key) (*datastore.Record, error) {
	var doc document
	err := s.coll.FindOne(ctx, bson.D{{Key: fieldID, Value: key.Encode()}}).Decode(&doc)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.NewNotFoundError(key.Kind, key.Encode())
	}
	if err != nil {
		return nil, errors.NewStorageError(OpGet, err)
	}
	return fromDocument(&doc, false)
}

func (s *Store) Put(ctx context.Context, rec *datastore.Record) (*entity.Key, error) {
	if rec == nil || rec.Key == nil || rec.Key.Kind == "" {
		return nil, errors.NewInvalidArgumentError("key", "record has no kind")
	}
	key := rec.Key
	if key.Incomplete() {
		id, err := s.nextID(ctx, key.Kind)
		if err != nil {
			return nil, err
		}
		key = entity.NewIDKey(key.Kind, id, key.Parent)
	}

	doc, err := toDocument(key, rec)
	if err != nil {
		return nil, err
	}
	_, err = s.coll.ReplaceOne(ctx,
		bson.D{{Key: fieldID, Value: doc.ID}},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return nil, errors.NewStorageError(OpPut, err)
	}
	return key, nil
}

func (s *Store) Delete(ctx context.Context, key *entity.Key) error {
	if _, err := s.coll.DeleteOne(ctx, bson.D{{Key: fieldID, Value: key.Encode()}}); err != nil {
		return errors.NewStorageError(OpDelete, err)
	}
	return nil
}

// Transact runs fn inside a session transaction. The operations handed to fn
// are the store's own, bound to the session through ctx. Requires a replica set.
// Commit errors are returned unmodified.
func (s *Store) Transact(ctx context.Context, fn func(ctx context.Context, tx datastore.Ops) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)

	var fnErr error
	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		fnErr = fn(ctx, s)
		return nil, fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	return err
}

func (s *Store) Run(ctx context.Context, q *Query, keysOnly bool) ([]datastore.Record, error) {
	opts := options.Find().SetSort(q.Sort)
	if q.Offset > 0 {
		opts.SetSkip(int64(q.Offset))
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	if keysOnly {
		opts.SetProjection(bson.D{{Key: fieldKind, Value: 1}, {Key: fieldVersion, Value: 1}})
	}

	cur, err := s.coll.Find(ctx, q.Filter, opts)
	if err != nil {
		return nil, errors.NewStorageError(OpFind, err)
	}
	defer cur.Close(ctx)

	var records []datastore.Record
	for cur.Next(ctx) {
		var doc document
		if err := cur.Decode(&doc); err != nil {
			return nil, errors.NewStorageError(OpFind, err)
		}
		rec, err := fromDocument(&doc, keysOnly)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := cur.Err(); err != nil {
		return nil, errors.NewStorageError(OpFind, err)
	}
	return records, nil
}

func (s *Store) Count(ctx context.Context, q *Query) (int, error) {
	opts := options.Count()
	if q.Offset > 0 {
		opts.SetSkip(int64(q.Offset))
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	n, err := s.coll.CountDocuments(ctx, q.Filter, opts)
	if err != nil {
		return 0, errors.NewStorageError(OpCount, err)
	}
	return int(n), nil
}

// nextID increments the kind's counter document. Ids start at 1.
func (s *Store) nextID(ctx context.Context, kind string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.D{{Key: fieldID, Value: kind}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: fieldSeq, Value: int64(1)}}}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, errors.NewStorageError(OpNextID, err)
	}
	return counter.Seq, nil
}

func toDocument(key *entity.Key, rec *datastore.Record) (*document, error) {
	props, err := entity.NormalizeProperties(rec.Properties)
	if err != nil {
		return nil, err
	}
	doc := &document{
		ID:      key.Encode(),
		Kind:    key.Kind,
		Name:    key.Name,
		KeyID:   key.ID,
		Version: rec.Version,
		Props:   bson.M(props),
	}
	if key.Parent != nil {
		doc.Parent = key.Parent.Encode()
	}
	return doc, nil
}

func fromDocument(doc *document, headerOnly bool) (*datastore.Record, error) {
	key, err := entity.DecodeKey(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("corrupt document id %q: %w", doc.ID, err)
	}
	rec := &datastore.Record{Key: key, Version: doc.Version}
	if headerOnly {
		return rec, nil
	}
	rec.Properties = make(entity.Properties, len(doc.Props))
	for k, v := range doc.Props {
		nv, err := fromBSON(v)
		if err != nil {
			return nil, fmt.Errorf("property %s of %s: %w", k, doc.ID, err)
		}
		rec.Properties[k] = nv
	}
	return rec, nil
}

// fromBSON maps decoded BSON values onto normalized property values.
func fromBSON(v any) (any, error) {
	switch tv := v.(type) {
	case nil, string, bool, int64, float64:
		return tv, nil
	case int32:
		return int64(tv), nil
	case int:
		return int64(tv), nil
	case bson.D:
		m := make(map[string]any, len(tv))
		for _, e := range tv {
			inner, err := fromBSON(e.Value)
			if err != nil {
				return nil, err
			}
			m[e.Key] = inner
		}
		return m, nil
	case bson.M:
		return fromBSON(map[string]any(tv))
	case map[string]any:
		m := make(map[string]any, len(tv))
		for k, inner := range tv {
			nv, err := fromBSON(inner)
			if err != nil {
				return nil, err
			}
			m[k] = nv
		}
		return m, nil
	case bson.A:
		return fromBSON([]any(tv))
	case []any:
		out := make([]any, len(tv))
		for i, inner := range tv {
			nv, err := fromBSON(inner)
			if err != nil {
				return nil, err
			}
			out[i] = nv
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported bson value %T", v)
}
