/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/suparena/persistkit/criteria"
	"github.com/suparena/persistkit/datastore"
	"github.com/suparena/persistkit/datastore/memquery"
	"github.com/suparena/persistkit/entity"
	"github.com/suparena/persistkit/errors"
	"github.com/suparena/persistkit/registry"
)

const (
	counterPrefix = "_IDCounter#"
	counterSK     = "_IDCounter"
	attrSeq       = "Seq"

	// maxTransactItems is the DynamoDB limit for one TransactWriteItems call.
	maxTransactItems = 100
)

// Store implements datastore.Store[*Query] on a single DynamoDB table.
type Store struct {
	client    API
	tableName string
	index     GSIConfig
	indexMaps *registry.IndexMaps
	logger    *zap.Logger

	pageSize     int32
	maxRetries   int
	retryBackoff time.Duration
}

// Option configures a Store.
type Option func(*Store)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithIndexMaps adds per-kind attributes expanded from {prop} macros to every item.
func WithIndexMaps(m *registry.IndexMaps) Option {
	return func(s *Store) {
		s.indexMaps = m
	}
}

// WithKindIndex overrides the GSI used for queries.
func WithKindIndex(cfg GSIConfig) Option {
	return func(s *Store) {
		s.index = cfg
	}
}

// WithRetry sets how often a throttled query page is retried.
func WithRetry(maxRetries int, backoff time.Duration) Option {
	return func(s *Store) {
		s.maxRetries = maxRetries
		s.retryBackoff = backoff
	}
}

// WithPageSize sets the Limit of each query page.
func WithPageSize(n int32) Option {
	return func(s *Store) {
		s.pageSize = n
	}
}

// New creates a store over client and tableName.
func New(client API, tableName string, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, errors.NewInvalidArgumentError("client", "must not be nil")
	}
	if tableName == "" {
		return nil, errors.NewInvalidArgumentError("tableName", "must not be empty")
	}
	defaults := DefaultStreamOptions()
	s := &Store{
		client:       client,
		tableName:    tableName,
		index:        DefaultGSIConfigs[KindIndex],
		logger:       zap.NewNop(),
		pageSize:     defaults.PageSize,
		maxRetries:   defaults.MaxRetries,
		retryBackoff: defaults.RetryBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Open builds a client from cfg and returns a store over its table.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, errors.NewStorageError("dynamodb connect", err)
	}
	return New(client, cfg.TableName, opts...)
}

func (s *Store) Get(ctx context.Context, key *entity.Key) (*datastore.Record, error) {
	out, err := s.client.GetItem(ctx, &sdk.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            primaryKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, errors.NewStorageError("dynamodb get", err)
	}
	if len(out.Item) == 0 {
		return nil, errors.NewNotFoundError(key.Kind, key.Encode())
	}
	return fromItem(out.Item, false)
}

func (s *Store) Put(ctx context.Context, rec *datastore.Record) (*entity.Key, error) {
	key, item, err := s.prepare(ctx, rec)
	if err != nil {
		return nil, err
	}
	_, err = s.client.PutItem(ctx, &sdk.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return nil, errors.NewStorageError("dynamodb put", err)
	}
	return key, nil
}

func (s *Store) Delete(ctx context.Context, key *entity.Key) error {
	_, err := s.client.DeleteItem(ctx, &sdk.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       primaryKey(key),
	})
	if err != nil {
		return errors.NewStorageError("dynamodb delete", err)
	}
	return nil
}

// Transact buffers the writes made through tx and commits them with one
// TransactWriteItems call. Reads inside fn see the buffered writes. Errors from
// fn and from the commit are returned unmodified.
func (s *Store) Transact(ctx context.Context, fn func(ctx context.Context, tx datastore.Ops) error) error {
	tx := &txn{store: s, writes: make(map[string]types.TransactWriteItem)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if len(tx.order) == 0 {
		return nil
	}
	if len(tx.order) > maxTransactItems {
		return errors.NewInvalidArgumentError("transaction", fmt.Sprintf("%d writes exceed the limit of %d", len(tx.order), maxTransactItems))
	}

	items := make([]types.TransactWriteItem, 0, len(tx.order))
	for _, k := range tx.order {
		items = append(items, tx.writes[k])
	}
	if _, err := s.client.TransactWriteItems(ctx, &sdk.TransactWriteItemsInput{TransactItems: items}); err != nil {
		return err
	}
	s.logger.Debug("transaction committed", zap.Int("writes", len(items)))
	return nil
}

// Run queries the kind index, then orders and windows the matches client-side.
func (s *Store) Run(ctx context.Context, q *Query, keysOnly bool) ([]datastore.Record, error) {
	sorted := len(q.Orders) > 0
	input := s.queryInput(q, keysOnly)

	var records []datastore.Record
	err := s.scan(ctx, input, func(out *sdk.QueryOutput) error {
		for _, item := range out.Items {
			rec, err := fromItem(item, keysOnly && !sorted)
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

	(&memquery.Query{Orders: q.Orders}).Sort(records)
	lo, hi := criteria.Spec{Limit: q.Limit, Offset: q.Offset}.Window(len(records))
	records = records[lo:hi]
	if keysOnly && sorted {
		for i := range records {
			records[i] = records[i].KeysOnly()
		}
	}
	return records, nil
}

// Count uses Select COUNT unless a window has to be applied.
func (s *Store) Count(ctx context.Context, q *Query) (int, error) {
	if q.Limit > 0 || q.Offset > 0 {
		records, err := s.Run(ctx, q, true)
		if err != nil {
			return 0, err
		}
		return len(records), nil
	}

	input := s.queryInput(q, false)
	input.Select = types.SelectCount
	total := 0
	err := s.scan(ctx, input, func(out *sdk.QueryOutput) error {
		total += int(out.Count)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) queryInput(q *Query, keysOnly bool) *sdk.QueryInput {
	names := map[string]string{"#kind": s.index.PartitionKeyName}
	values := map[string]types.AttributeValue{":kind": &types.AttributeValueMemberS{Value: q.Kind}}
	for k, v := range q.Names {
		names[k] = v
	}
	for k, v := range q.Values {
		values[k] = v
	}

	input := &sdk.QueryInput{
		TableName:                 aws.String(s.tableName),
		IndexName:                 aws.String(s.index.IndexName),
		KeyConditionExpression:    aws.String("#kind = :kind"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		Limit:                     aws.Int32(s.pageSize),
	}
	if q.Filter != "" {
		input.FilterExpression = aws.String(q.Filter)
	}
	if keysOnly {
		// The client-side sort still needs the ordered properties.
		paths, ok := orderProjection(q.Orders, names)
		if ok {
			names["#pk"] = attrPK
			names["#sk"] = attrSK
			names["#ver"] = attrVersion
			input.ProjectionExpression = aws.String(strings.Join(append([]string{"#pk", "#sk", "#ver"}, paths...), ", "))
		}
	}
	return input
}

// orderProjection adds placeholders for the Props paths read by orders and
// returns those paths. Paths nested under another ordered path are covered by
// it. ok is false when a path cannot be projected.
func orderProjection(orders []criteria.OrderRule, names map[string]string) (paths []string, ok bool) {
	var props []string
	for _, o := range orders {
		if slices.Contains(props, o.Property) {
			continue
		}
		for _, seg := range strings.Split(o.Property, ".") {
			if seg == "" {
				return nil, false
			}
		}
		props = append(props, o.Property)
	}
	if len(props) == 0 {
		return nil, true
	}

	names["#props"] = attrProps
	placeholders := map[string]string{}
	for _, p := range props {
		if slices.ContainsFunc(props, func(other string) bool { return strings.HasPrefix(p, other+".") }) {
			continue
		}
		out := []string{"#props"}
		for _, seg := range strings.Split(p, ".") {
			ph, seen := placeholders[seg]
			if !seen {
				ph = fmt.Sprintf("#o%d", len(placeholders))
				placeholders[seg] = ph
				names[ph] = seg
			}
			out = append(out, ph)
		}
		paths = append(paths, strings.Join(out, "."))
	}
	return paths, true
}

// scan pages through a query, retrying throttled pages.
func (s *Store) scan(ctx context.Context, input *sdk.QueryInput, page func(out *sdk.QueryOutput) error) error {
	opts := StreamOptions{MaxRetries: s.maxRetries, RetryBackoff: s.retryBackoff}
	for {
		out, err := queryWithRetry(ctx, s.client, input, opts)
		if err != nil {
			return errors.NewStorageError("dynamodb query", err)
		}
		if err := page(out); err != nil {
			return err
		}
		if len(out.LastEvaluatedKey) == 0 {
			return nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// prepare completes the key of rec and encodes it as an item.
func (s *Store) prepare(ctx context.Context, rec *datastore.Record) (*entity.Key, map[string]types.AttributeValue, error) {
	if rec == nil || rec.Key == nil || rec.Key.Kind == "" {
		return nil, nil, errors.NewInvalidArgumentError("key", "record has no kind")
	}
	key := rec.Key
	if key.Incomplete() {
		id, err := s.nextID(ctx, key.Kind)
		if err != nil {
			return nil, nil, err
		}
		key = entity.NewIDKey(key.Kind, id, key.Parent)
	}
	idxMap, _ := s.indexMaps.Get(key.Kind)
	item, err := toItem(key, rec, idxMap)
	if err != nil {
		return nil, nil, err
	}
	return key, item, nil
}

// nextID increments the per-kind counter item. Ids start at 1.
func (s *Store) nextID(ctx context.Context, kind string) (int64, error) {
	out, err := s.client.UpdateItem(ctx, &sdk.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			attrPK: &types.AttributeValueMemberS{Value: counterPrefix + kind},
			attrSK: &types.AttributeValueMemberS{Value: counterSK},
		},
		UpdateExpression:          aws.String("ADD #seq :one"),
		ExpressionAttributeNames:  map[string]string{"#seq": attrSeq},
		ExpressionAttributeValues: map[string]types.AttributeValue{":one": &types.AttributeValueMemberN{Value: "1"}},
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, errors.NewStorageError("dynamodb allocate id", err)
	}
	n, ok := out.Attributes[attrSeq].(*types.AttributeValueMemberN)
	if !ok {
		return 0, errors.NewStorageError("dynamodb allocate id", fmt.Errorf("counter for %s returned no value", kind))
	}
	id, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, errors.NewStorageError("dynamodb allocate id", err)
	}
	return id, nil
}

// txn stages writes for one TransactWriteItems call.
type txn struct {
	store  *Store
	writes map[string]types.TransactWriteItem
	staged map[string]*datastore.Record
	order  []string
}

func (t *txn) Get(ctx context.Context, key *entity.Key) (*datastore.Record, error) {
	k := key.Encode()
	if _, ok := t.writes[k]; ok {
		rec := t.staged[k]
		if rec == nil {
			return nil, errors.NewNotFoundError(key.Kind, k)
		}
		return rec.Clone(), nil
	}
	return t.store.Get(ctx, key)
}

func (t *txn) Put(ctx context.Context, rec *datastore.Record) (*entity.Key, error) {
	key, item, err := t.store.prepare(ctx, rec)
	if err != nil {
		return nil, err
	}
	staged, err := fromItem(item, false)
	if err != nil {
		return nil, err
	}
	t.stage(key.Encode(), types.TransactWriteItem{
		Put: &types.Put{TableName: aws.String(t.store.tableName), Item: item},
	}, staged)
	return key, nil
}

func (t *txn) Delete(ctx context.Context, key *entity.Key) error {
	t.stage(key.Encode(), types.TransactWriteItem{
		Delete: &types.Delete{TableName: aws.String(t.store.tableName), Key: primaryKey(key)},
	}, nil)
	return nil
}

func (t *txn) stage(k string, w types.TransactWriteItem, rec *datastore.Record) {
	if _, seen := t.writes[k]; !seen {
		t.order = append(t.order, k)
	}
	if t.staged == nil {
		t.staged = make(map[string]*datastore.Record)
	}
	t.writes[k] = w
	t.staged[k] = rec
}
