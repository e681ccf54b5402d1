/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suparena/persistkit/cascade"
	"github.com/suparena/persistkit/criteria"
	"github.com/suparena/persistkit/datastore"
	"github.com/suparena/persistkit/entity"
	"github.com/suparena/persistkit/errors"
	"github.com/suparena/persistkit/registry"
)

type item struct {
	entity.Identity
}

func newTestStore(t *testing.T, api *fakeAPI, opts ...Option) *Store {
	t.Helper()
	s, err := New(api, "entities", opts...)
	require.NoError(t, err)
	return s
}

func build(t *testing.T, c *criteria.Criteria[*item]) *Query {
	t.Helper()
	q, err := Builder{}.Build(c.Spec())
	require.NoError(t, err)
	return q
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, "entities")
	assert.True(t, errors.IsInvalidArgument(err))
	_, err = New(newFakeAPI(), "")
	assert.True(t, errors.IsInvalidArgument(err))
}

func TestPutGetDelete(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	s := newTestStore(t, api)
	parent := entity.NewNameKey("Customer", "acme", nil)

	key, err := s.Put(ctx, &datastore.Record{
		Key:     entity.NewIncompleteKey("Order", parent),
		Version: 3,
		Properties: entity.Properties{
			"total":  int64(1) << 60,
			"rate":   0.25,
			"note":   "",
			"paid":   true,
			"tags":   []any{"a", int64(2)},
			"nested": map[string]any{"x": "y"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), key.ID)
	assert.True(t, key.Parent.Equal(parent))

	raw, err := api.item(key.Encode(), "Order")
	require.NoError(t, err)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "Order"}, raw[attrEntityType])
	assert.Equal(t, &types.AttributeValueMemberS{Value: parent.Encode()}, raw[attrParentKey])

	rec, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.Version)
	assert.Equal(t, int64(1)<<60, rec.Properties["total"])
	assert.Equal(t, 0.25, rec.Properties["rate"])
	assert.Equal(t, "", rec.Properties["note"])
	assert.Equal(t, true, rec.Properties["paid"])
	assert.Equal(t, []any{"a", int64(2)}, rec.Properties["tags"])
	assert.Equal(t, map[string]any{"x": "y"}, rec.Properties["nested"])

	second, err := s.Put(ctx, &datastore.Record{Key: entity.NewIncompleteKey("Order", nil)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.ID)

	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Get(ctx, key)
	assert.True(t, errors.IsNotFound(err))
	assert.NoError(t, s.Delete(ctx, key))
}

func TestEmptyStringRoundTrip(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	s := newTestStore(t, api)
	key := entity.NewNameKey("Note", "blank", nil)

	_, err := s.Put(ctx, &datastore.Record{Key: key, Properties: entity.Properties{"body": "", "tags": []any{""}}})
	require.NoError(t, err)

	raw, err := api.item(key.Encode(), "Note")
	require.NoError(t, err)
	props, ok := raw[attrProps].(*types.AttributeValueMemberM)
	require.True(t, ok)
	assert.Equal(t, &types.AttributeValueMemberS{Value: ""}, props.Value["body"])

	rec, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "", rec.Properties["body"])
	assert.Equal(t, []any{""}, rec.Properties["tags"])

	q := filterOf(t, criteria.Eq("body", ""))
	assert.Equal(t, &types.AttributeValueMemberS{Value: ""}, q.Values[":v0"])
}

func TestPutFailureIsStorageError(t *testing.T) {
	api := newFakeAPI()
	api.putErr = stderrors.New("throttled")
	s := newTestStore(t, api)

	_, err := s.Put(context.Background(), &datastore.Record{Key: entity.NewNameKey("Order", "a", nil)})
	assert.True(t, errors.IsStorageFailure(err))

	_, err = s.Put(context.Background(), &datastore.Record{Key: &entity.Key{}})
	assert.True(t, errors.IsInvalidArgument(err))
}

func TestIndexMaps(t *testing.T) {
	maps := registry.NewIndexMaps()
	require.NoError(t, maps.Register("User", map[string]string{
		"GSI1PK": "EMAIL#{Email}",
		"GSI1SK": "USER#{ID}",
		"GSI2PK": "TEAM#{Team}",
	}))
	api := newFakeAPI()
	s := newTestStore(t, api, WithIndexMaps(maps))

	key, err := s.Put(context.Background(), &datastore.Record{
		Key:        entity.NewIncompleteKey("User", nil),
		Properties: entity.Properties{"Email": "a@example.com"},
	})
	require.NoError(t, err)

	raw, err := api.item(key.Encode(), "User")
	require.NoError(t, err)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "EMAIL#a@example.com"}, raw["GSI1PK"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "USER#1"}, raw["GSI1SK"])
	assert.NotContains(t, raw, "GSI2PK")
}

func TestTransact(t *testing.T) {
	ctx := context.Background()
	key := entity.NewNameKey("Order", "a", nil)

	t.Run("CallbackErrorSkipsCommit", func(t *testing.T) {
		api := newFakeAPI()
		s := newTestStore(t, api)
		abort := stderrors.New("abort")
		err := s.Transact(ctx, func(ctx context.Context, tx datastore.Ops) error {
			if _, err := tx.Put(ctx, &datastore.Record{Key: key, Version: 1}); err != nil {
				return err
			}
			return abort
		})
		assert.Same(t, abort, err)
		assert.Empty(t, api.transactions)
	})

	t.Run("ReadOwnWritesAndCommitOnce", func(t *testing.T) {
		api := newFakeAPI()
		s := newTestStore(t, api)
		other := entity.NewNameKey("Order", "b", nil)
		require.NoError(t, func() error { _, err := s.Put(ctx, &datastore.Record{Key: other}); return err }())

		err := s.Transact(ctx, func(ctx context.Context, tx datastore.Ops) error {
			if _, err := tx.Put(ctx, &datastore.Record{Key: key, Version: 1}); err != nil {
				return err
			}
			if _, err := tx.Put(ctx, &datastore.Record{Key: key, Version: 2, Properties: entity.Properties{"n": 1}}); err != nil {
				return err
			}
			rec, err := tx.Get(ctx, key)
			if err != nil {
				return err
			}
			assert.Equal(t, int64(2), rec.Version)
			assert.Equal(t, int64(1), rec.Properties["n"])

			if err := tx.Delete(ctx, other); err != nil {
				return err
			}
			_, err = tx.Get(ctx, other)
			assert.True(t, errors.IsNotFound(err))
			return nil
		})
		require.NoError(t, err)
		require.Len(t, api.transactions, 1)
		assert.Len(t, api.transactions[0].TransactItems, 2)

		rec, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, int64(2), rec.Version)
		_, err = s.Get(ctx, other)
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("EmptyTransactionMakesNoCall", func(t *testing.T) {
		api := newFakeAPI()
		s := newTestStore(t, api)
		require.NoError(t, s.Transact(ctx, func(ctx context.Context, tx datastore.Ops) error { return nil }))
		assert.Empty(t, api.transactions)
	})

	t.Run("CommitFailureIsReturnedUnchanged", func(t *testing.T) {
		api := newFakeAPI()
		cancelled := &types.TransactionCanceledException{Message: aws.String("cancelled")}
		api.transactErr = cancelled
		s := newTestStore(t, api)
		err := s.Transact(ctx, func(ctx context.Context, tx datastore.Ops) error {
			_, err := tx.Put(ctx, &datastore.Record{Key: key})
			return err
		})
		assert.Same(t, cancelled, err)
		assert.False(t, errors.IsStorageFailure(err))
	})
}

type parentItem struct {
	entity.Identity `json:"-"`
	Child           *entity.Ref `json:"child,omitempty"`
}

func (p *parentItem) References() []entity.Edge {
	return []entity.Edge{{Name: "child", Ref: p.Child}}
}

func TestCascadeSave(t *testing.T) {
	ctx := context.Background()

	t.Run("FinalPassIsOneTransaction", func(t *testing.T) {
		api := newFakeAPI()
		s := newTestStore(t, api)
		child := &parentItem{Identity: entity.NewIdentity("Item", nil)}
		root := &parentItem{Identity: entity.NewIdentity("Parent", nil), Child: entity.RefTo(child)}

		require.NoError(t, cascade.New(s).Save(ctx, root))
		require.Len(t, api.transactions, 1)
		assert.Len(t, api.transactions[0].TransactItems, 2)
		assert.Equal(t, int64(2), root.Version())

		rec, err := s.Get(ctx, root.Key())
		require.NoError(t, err)
		assert.Equal(t, child.Key().Encode(), rec.Properties["child"])
	})

	t.Run("CommitErrorIsReturnedUnchanged", func(t *testing.T) {
		api := newFakeAPI()
		boom := stderrors.New("boom")
		api.transactErr = boom
		s := newTestStore(t, api)
		child := &parentItem{Identity: entity.NewIdentity("Item", nil)}
		root := &parentItem{Identity: entity.NewIdentity("Parent", nil), Child: entity.RefTo(child)}

		err := cascade.New(s).Save(ctx, root)
		assert.Same(t, boom, err)
		assert.Equal(t, int64(1), root.Version())
		assert.False(t, child.Identified())
	})
}

func seed(t *testing.T, s *Store, values ...int64) []*entity.Key {
	t.Helper()
	keys := make([]*entity.Key, 0, len(values))
	for _, n := range values {
		key, err := s.Put(context.Background(), &datastore.Record{
			Key:        entity.NewIncompleteKey("Item", nil),
			Version:    1,
			Properties: entity.Properties{"n": n},
		})
		require.NoError(t, err)
		keys = append(keys, key)
	}
	return keys
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	s := newTestStore(t, api, WithPageSize(2))
	keys := seed(t, s, 5, 1, 3)
	_, err := s.Put(ctx, &datastore.Record{Key: entity.NewNameKey("Other", "x", nil)})
	require.NoError(t, err)

	t.Run("KeysOnlyUsesProjection", func(t *testing.T) {
		api.queries = nil
		out, err := s.Run(ctx, build(t, criteria.New[*item]("Item")), true)
		require.NoError(t, err)
		require.Len(t, out, 3)
		for i, rec := range out {
			assert.True(t, rec.Key.Equal(keys[i]))
			assert.Nil(t, rec.Properties)
			assert.Equal(t, int64(1), rec.Version)
		}
		require.Len(t, api.queries, 2, "three items with page size two")
		q := api.queries[0]
		assert.Equal(t, KindIndex, aws.ToString(q.IndexName))
		assert.Equal(t, "#kind = :kind", aws.ToString(q.KeyConditionExpression))
		assert.Equal(t, "#pk, #sk, #ver", aws.ToString(q.ProjectionExpression))
		assert.Nil(t, q.FilterExpression)
	})

	t.Run("OrderedProjectsSortProperties", func(t *testing.T) {
		api.queries = nil
		out, err := s.Run(ctx, build(t, criteria.New[*item]("Item").OrderBy("n", criteria.Desc).Offset(1).Limit(1)), true)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.True(t, out[0].Key.Equal(keys[2]))
		assert.Nil(t, out[0].Properties)

		q := api.queries[0]
		assert.Equal(t, "#pk, #sk, #ver, #props.#o0", aws.ToString(q.ProjectionExpression))
		assert.Equal(t, "Props", q.ExpressionAttributeNames["#props"])
		assert.Equal(t, "n", q.ExpressionAttributeNames["#o0"])
	})

	t.Run("FilterIsPassedThrough", func(t *testing.T) {
		api.queries = nil
		_, err := s.Run(ctx, build(t, criteria.New[*item]("Item").Where(criteria.Gt("n", 2))), false)
		require.NoError(t, err)
		q := api.queries[0]
		assert.Equal(t, "#n0.#n1 > :v0", aws.ToString(q.FilterExpression))
		assert.Equal(t, "Props", q.ExpressionAttributeNames["#n0"])
		assert.Equal(t, "EntityType", q.ExpressionAttributeNames["#kind"])
		assert.Equal(t, &types.AttributeValueMemberN{Value: "2"}, q.ExpressionAttributeValues[":v0"])
	})
}

func TestOrderProjection(t *testing.T) {
	orders := func(props ...string) []criteria.OrderRule {
		var out []criteria.OrderRule
		for _, p := range props {
			out = append(out, criteria.OrderRule{Property: p})
		}
		return out
	}

	t.Run("NestedPathsShareSegments", func(t *testing.T) {
		names := map[string]string{}
		paths, ok := orderProjection(orders("meta.rank", "n", "meta.rank", "rank"), names)
		require.True(t, ok)
		assert.Equal(t, []string{"#props.#o0.#o1", "#props.#o2", "#props.#o1"}, paths)
		assert.Equal(t, map[string]string{"#props": "Props", "#o0": "meta", "#o1": "rank", "#o2": "n"}, names)
	})

	t.Run("CoveredPathIsSkipped", func(t *testing.T) {
		paths, ok := orderProjection(orders("meta.rank", "meta"), map[string]string{})
		require.True(t, ok)
		assert.Equal(t, []string{"#props.#o0"}, paths)
	})

	t.Run("NoOrders", func(t *testing.T) {
		names := map[string]string{}
		paths, ok := orderProjection(nil, names)
		require.True(t, ok)
		assert.Empty(t, paths)
		assert.Empty(t, names)
	})

	t.Run("EmptySegmentFetchesFullItems", func(t *testing.T) {
		_, ok := orderProjection(orders("a..b"), map[string]string{})
		assert.False(t, ok)
	})
}

func TestKindIndexOverride(t *testing.T) {
	api := newFakeAPI()
	s := newTestStore(t, api, WithKindIndex(GSIConfig{
		IndexName:        "ByType",
		PartitionKeyName: "Type",
		SortKeyName:      attrPK,
	}))

	_, err := s.Run(context.Background(), build(t, criteria.New[*item]("Item")), false)
	require.NoError(t, err)
	require.Len(t, api.queries, 1)
	assert.Equal(t, "ByType", aws.ToString(api.queries[0].IndexName))
	assert.Equal(t, "Type", api.queries[0].ExpressionAttributeNames["#kind"])
}

func TestCount(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	s := newTestStore(t, api, WithPageSize(2))
	seed(t, s, 1, 2, 3, 4, 5)

	api.queries = nil
	n, err := s.Count(ctx, build(t, criteria.New[*item]("Item")))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, types.SelectCount, api.queries[0].Select)

	n, err = s.Count(ctx, build(t, criteria.New[*item]("Item").Offset(1).Limit(3)))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestQueryRetry(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	s := newTestStore(t, api, WithRetry(2, time.Millisecond))
	seed(t, s, 1)

	api.queryErrs = []error{&types.ProvisionedThroughputExceededException{Message: aws.String("slow down")}}
	out, err := s.Run(ctx, build(t, criteria.New[*item]("Item")), false)
	require.NoError(t, err)
	assert.Len(t, out, 1)

	api.queryErrs = []error{&types.ResourceNotFoundException{Message: aws.String("no table")}}
	_, err = s.Run(ctx, build(t, criteria.New[*item]("Item")), false)
	assert.True(t, errors.IsStorageFailure(err))
	var notFound *types.ResourceNotFoundException
	assert.ErrorAs(t, err, &notFound)
}
