/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package badgerkv

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/suparena/persistkit/criteria"
	"github.com/suparena/persistkit/datastore"
	"github.com/suparena/persistkit/datastore/memquery"
	"github.com/suparena/persistkit/entity"
	"github.com/suparena/persistkit/errors"
)

const (
	recordPrefix   = "r\x00"
	sequencePrefix = "s\x00"
	sep            = "\x00"
	// sequenceBandwidth is how many ids one lease reserves.
	sequenceBandwidth = 100
)

// Store implements datastore.Store[*memquery.Query] on an embedded badger database.
type Store struct {
	db         *badger.DB
	gc         *gcRunner
	logger     *zap.Logger
	maxRetries int

	seqMu sync.Mutex
	seqs  map[string]*badger.Sequence
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for the store and badger itself.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open opens the database described by cfg.
func Open(cfg Config, opts ...Option) (*Store, error) {
	s := &Store{
		logger:     zap.NewNop(),
		maxRetries: cfg.MaxTxnRetries,
		seqs:       make(map[string]*badger.Sequence),
	}
	for _, opt := range opts {
		opt(s)
	}

	db, err := openDB(cfg, s.logger)
	if err != nil {
		return nil, errors.NewStorageError("badger open", err)
	}
	s.db = db

	if cfg.GCInterval > 0 && !cfg.InMemory {
		runner, err := newGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, s.logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("create GC runner: %w", err)
		}
		s.gc = runner
		runner.start()
	}

	s.logger.Info("badger store opened", zap.String("path", cfg.Path), zap.Bool("inMemory", cfg.InMemory))
	return s, nil
}

// OpenInMemory opens a throwaway in-memory store.
func OpenInMemory(opts ...Option) (*Store, error) {
	return Open(InMemoryConfig(), opts...)
}

// Close releases id leases, stops GC and closes the database.
func (s *Store) Close() error {
	if s.gc != nil {
		s.gc.stop()
	}
	s.seqMu.Lock()
	for kind, seq := range s.seqs {
		if err := seq.Release(); err != nil {
			s.logger.Warn("failed to release id sequence", zap.String("kind", kind), zap.Error(err))
		}
	}
	s.seqs = map[string]*badger.Sequence{}
	s.seqMu.Unlock()
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, key *entity.Key) (*datastore.Record, error) {
	var rec *datastore.Record
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) Put(ctx context.Context, rec *datastore.Record) (*entity.Key, error) {
	var key *entity.Key
	err := s.db.Update(func(txn *badger.Txn) error {
		var err error
		key, err = s.putRecord(txn, rec)
		return err
	})
	if err != nil {
		return nil, err
	}
	return key, nil
}

func (s *Store) Delete(ctx context.Context, key *entity.Key) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(recordKey(key))
	})
}

// Transact runs fn in a read-write badger transaction, retrying on write conflicts.
func (s *Store) Transact(ctx context.Context, fn func(ctx context.Context, tx datastore.Ops) error) error {
	for attempt := 0; ; attempt++ {
		err := s.db.Update(func(txn *badger.Txn) error {
			return fn(ctx, &txnOps{store: s, txn: txn})
		})
		if stderrors.Is(err, badger.ErrConflict) && attempt < s.maxRetries {
			s.logger.Debug("retrying conflicted transaction", zap.Int("attempt", attempt+1))
			continue
		}
		return err
	}
}

// Run scans the kind's records and evaluates q in process.
func (s *Store) Run(ctx context.Context, q *memquery.Query, keysOnly bool) ([]datastore.Record, error) {
	headerOnly := keysOnly && q.Match == nil && q.Parent == nil && q.Unordered()

	var records []datastore.Record
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := kindPrefix(q.Kind)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			key, err := entity.DecodeKey(string(item.Key()[len(prefix):]))
			if err != nil {
				return fmt.Errorf("corrupt record key %q: %w", item.Key(), err)
			}
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			rec, err := decodeRecord(key, data, headerOnly)
			if err != nil {
				return err
			}
			records = append(records, *rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if headerOnly {
		lo, hi := criteria.Spec{Limit: q.Limit, Offset: q.Offset}.Window(len(records))
		return records[lo:hi], nil
	}
	results := q.Apply(records)
	if keysOnly {
		for i := range results {
			results[i] = results[i].KeysOnly()
		}
	}
	return results, nil
}

func (s *Store) Count(ctx context.Context, q *memquery.Query) (int, error) {
	records, err := s.Run(ctx, q, true)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// nextID leases ids per kind from a badger sequence. Ids start at 1.
func (s *Store) nextID(kind string) (int64, error) {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	seq, ok := s.seqs[kind]
	if !ok {
		var err error
		seq, err = s.db.GetSequence([]byte(sequencePrefix+kind), sequenceBandwidth)
		if err != nil {
			return 0, fmt.Errorf("open id sequence for %s: %w", kind, err)
		}
		s.seqs[kind] = seq
	}
	n, err := seq.Next()
	if err != nil {
		return 0, fmt.Errorf("next id for %s: %w", kind, err)
	}
	return int64(n) + 1, nil
}

func (s *Store) putRecord(txn *badger.Txn, rec *datastore.Record) (*entity.Key, error) {
	if rec == nil || rec.Key == nil || rec.Key.Kind == "" {
		return nil, errors.NewInvalidArgumentError("key", "record has no kind")
	}
	key := rec.Key
	if key.Incomplete() {
		id, err := s.nextID(key.Kind)
		if err != nil {
			return nil, err
		}
		key = entity.NewIDKey(key.Kind, id, key.Parent)
	}
	data, err := json.Marshal(storedValue{Version: rec.Version, Properties: rec.Properties})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", key.Encode(), err)
	}
	if err := txn.Set(recordKey(key), data); err != nil {
		return nil, err
	}
	return key, nil
}

func getRecord(txn *badger.Txn, key *entity.Key) (*datastore.Record, error) {
	item, err := txn.Get(recordKey(key))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return nil, errors.NewNotFoundError(key.Kind, key.Encode())
	}
	if err != nil {
		return nil, err
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	return decodeRecord(key, data, false)
}

// txnOps exposes one badger transaction as datastore.Ops.
type txnOps struct {
	store *Store
	txn   *badger.Txn
}

func (t *txnOps) Get(ctx context.Context, key *entity.Key) (*datastore.Record, error) {
	return getRecord(t.txn, key)
}

func (t *txnOps) Put(ctx context.Context, rec *datastore.Record) (*entity.Key, error) {
	return t.store.putRecord(t.txn, rec)
}

func (t *txnOps) Delete(ctx context.Context, key *entity.Key) error {
	return t.txn.Delete(recordKey(key))
}

type storedValue struct {
	Version    int64          `json:"v"`
	Properties map[string]any `json:"p,omitempty"`
}

type storedHeader struct {
	Version int64 `json:"v"`
}

func decodeRecord(key *entity.Key, data []byte, headerOnly bool) (*datastore.Record, error) {
	if headerOnly {
		var h storedHeader
		if err := json.Unmarshal(data, &h); err != nil {
			return nil, fmt.Errorf("corrupt record %s: %w", key.Encode(), err)
		}
		return &datastore.Record{Key: key, Version: h.Version}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v storedValue
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("corrupt record %s: %w", key.Encode(), err)
	}
	props, err := entity.NormalizeProperties(v.Properties)
	if err != nil {
		return nil, err
	}
	return &datastore.Record{Key: key, Version: v.Version, Properties: props}, nil
}

func kindPrefix(kind string) []byte {
	return []byte(recordPrefix + kind + sep)
}

func recordKey(key *entity.Key) []byte {
	return []byte(recordPrefix + key.Kind + sep + key.Encode())
}
