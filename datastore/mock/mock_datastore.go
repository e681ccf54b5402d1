/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package mock provides an in-memory datastore.Store for testing, with fault injection
package mock

import (
	"context"
	"sort"
	"sync"

	"github.com/suparena/persistkit/datastore"
	"github.com/suparena/persistkit/datastore/memquery"
	"github.com/suparena/persistkit/entity"
	"github.com/suparena/persistkit/errors"
)

// DataStore is an in-memory implementation of datastore.Store[*memquery.Query]
type DataStore struct {
	mu            sync.RWMutex
	data          map[string]*datastore.Record
	nextID        int64
	puts          int
	getError      error
	putError      error
	deleteError   error
	transactError error
	failPutAfter  int
	failPutError  error
	queryFunc     func(ctx context.Context, q *memquery.Query, keysOnly bool) ([]datastore.Record, error)
}

// New creates a new mock DataStore
func New() *DataStore {
	return &DataStore{
		data: make(map[string]*datastore.Record),
	}
}

// WithGetError makes Get operations return an error
func (m *DataStore) WithGetError(err error) *DataStore {
	m.getError = err
	return m
}

// WithPutError makes Put operations return an error
func (m *DataStore) WithPutError(err error) *DataStore {
	m.putError = err
	return m
}

// WithDeleteError makes Delete operations return an error
func (m *DataStore) WithDeleteError(err error) *DataStore {
	m.deleteError = err
	return m
}

// WithTransactError makes every transaction fail at commit with err
func (m *DataStore) WithTransactError(err error) *DataStore {
	m.transactError = err
	return m
}

// FailPutAfter lets n puts succeed, then makes every later put return err
func (m *DataStore) FailPutAfter(n int, err error) *DataStore {
	m.failPutAfter = n
	m.failPutError = err
	return m
}

// WithQueryFunc sets a custom query function for testing
func (m *DataStore) WithQueryFunc(f func(ctx context.Context, q *memquery.Query, keysOnly bool) ([]datastore.Record, error)) *DataStore {
	m.queryFunc = f
	return m
}

// Get retrieves a record by key
func (m *DataStore) Get(ctx context.Context, key *entity.Key) (*datastore.Record, error) {
	if m.getError != nil {
		return nil, m.getError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if rec, exists := m.data[key.Encode()]; exists {
		return rec.Clone(), nil
	}
	return nil, errors.NewNotFoundError(key.Kind, key.Encode())
}

// Put stores a record, assigning an id to incomplete keys
func (m *DataStore) Put(ctx context.Context, rec *datastore.Record) (*entity.Key, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkPut(); err != nil {
		return nil, err
	}
	stored, err := m.prepare(rec)
	if err != nil {
		return nil, err
	}
	m.data[stored.Key.Encode()] = stored
	return stored.Key, nil
}

// Delete removes a record by key; missing records are ignored
func (m *DataStore) Delete(ctx context.Context, key *entity.Key) error {
	if m.deleteError != nil {
		return m.deleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key.Encode())
	return nil
}

// Transact stages writes made through tx and applies them only if fn succeeds
func (m *DataStore) Transact(ctx context.Context, fn func(ctx context.Context, tx datastore.Ops) error) error {
	tx := &txn{store: m, writes: make(map[string]*datastore.Record)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if m.transactError != nil {
		return m.transactError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range tx.order {
		if rec := tx.writes[k]; rec != nil {
			m.data[k] = rec
		} else {
			delete(m.data, k)
		}
	}
	return nil
}

// Run executes a compiled query over the stored records
func (m *DataStore) Run(ctx context.Context, q *memquery.Query, keysOnly bool) ([]datastore.Record, error) {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, q, keysOnly)
	}

	results := q.Apply(m.snapshot())
	if keysOnly {
		for i := range results {
			results[i] = results[i].KeysOnly()
		}
	}
	return results, nil
}

// Count returns the number of records Run would return
func (m *DataStore) Count(ctx context.Context, q *memquery.Query) (int, error) {
	results, err := m.Run(ctx, q, true)
	if err != nil {
		return 0, err
	}
	return len(results), nil
}

func (m *DataStore) snapshot() []datastore.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]datastore.Record, 0, len(m.data))
	for _, rec := range m.data {
		out = append(out, *rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Encode() < out[j].Key.Encode() })
	return out
}

// checkPut applies injected put failures. Callers hold m.mu.
func (m *DataStore) checkPut() error {
	if m.putError != nil {
		return m.putError
	}
	if m.failPutError != nil && m.puts >= m.failPutAfter {
		return m.failPutError
	}
	m.puts++
	return nil
}

// prepare normalizes rec and completes its key. Callers hold m.mu.
func (m *DataStore) prepare(rec *datastore.Record) (*datastore.Record, error) {
	if rec == nil || rec.Key == nil || rec.Key.Kind == "" {
		return nil, errors.NewInvalidArgumentError("key", "record has no kind")
	}
	props, err := entity.NormalizeProperties(rec.Properties)
	if err != nil {
		return nil, err
	}
	key := rec.Key
	if key.Incomplete() {
		m.nextID++
		key = entity.NewIDKey(key.Kind, m.nextID, key.Parent)
	}
	return &datastore.Record{Key: key, Version: rec.Version, Properties: props}, nil
}

// txn buffers writes of one transaction and reads its own writes first
type txn struct {
	store  *DataStore
	writes map[string]*datastore.Record
	order  []string
}

func (t *txn) Get(ctx context.Context, key *entity.Key) (*datastore.Record, error) {
	if rec, staged := t.writes[key.Encode()]; staged {
		if rec == nil {
			return nil, errors.NewNotFoundError(key.Kind, key.Encode())
		}
		return rec.Clone(), nil
	}
	return t.store.Get(ctx, key)
}

func (t *txn) Put(ctx context.Context, rec *datastore.Record) (*entity.Key, error) {
	t.store.mu.Lock()
	if err := t.store.checkPut(); err != nil {
		t.store.mu.Unlock()
		return nil, err
	}
	stored, err := t.store.prepare(rec)
	t.store.mu.Unlock()
	if err != nil {
		return nil, err
	}
	t.stage(stored.Key.Encode(), stored)
	return stored.Key, nil
}

func (t *txn) Delete(ctx context.Context, key *entity.Key) error {
	if t.store.deleteError != nil {
		return t.store.deleteError
	}
	t.stage(key.Encode(), nil)
	return nil
}

func (t *txn) stage(k string, rec *datastore.Record) {
	if _, seen := t.writes[k]; !seen {
		t.order = append(t.order, k)
	}
	t.writes[k] = rec
}

// Helper methods for testing

// SetData replaces the stored records (for testing)
func (m *DataStore) SetData(records ...*datastore.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string]*datastore.Record, len(records))
	for _, rec := range records {
		m.data[rec.Key.Encode()] = rec.Clone()
	}
}

// GetData returns a copy of the stored records keyed by encoded key (for testing)
func (m *DataStore) GetData() map[string]*datastore.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]*datastore.Record, len(m.data))
	for k, v := range m.data {
		result[k] = v.Clone()
	}
	return result
}

// Len returns the number of stored records
func (m *DataStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Puts returns how many puts were accepted, inside or outside transactions
func (m *DataStore) Puts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}

// Clear removes all data
func (m *DataStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string]*datastore.Record)
}
