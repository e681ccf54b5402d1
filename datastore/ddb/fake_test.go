/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeAPI keeps items in memory. Query honors the kind key condition, paging
// and projections but ignores FilterExpression.
type fakeAPI struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue

	queries      []*sdk.QueryInput
	transactions []*sdk.TransactWriteItemsInput
	queryErrs    []error
	putErr       error
	transactErr  error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{items: make(map[string]map[string]types.AttributeValue)}
}

func itemID(key map[string]types.AttributeValue) string {
	return key[attrPK].(*types.AttributeValueMemberS).Value + "|" + key[attrSK].(*types.AttributeValueMemberS).Value
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func (f *fakeAPI) GetItem(ctx context.Context, in *sdk.GetItemInput, _ ...func(*sdk.Options)) (*sdk.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[itemID(in.Key)]
	if !ok {
		return &sdk.GetItemOutput{}, nil
	}
	return &sdk.GetItemOutput{Item: copyItem(item)}, nil
}

func (f *fakeAPI) PutItem(ctx context.Context, in *sdk.PutItemInput, _ ...func(*sdk.Options)) (*sdk.PutItemOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[itemID(in.Item)] = copyItem(in.Item)
	return &sdk.PutItemOutput{}, nil
}

func (f *fakeAPI) DeleteItem(ctx context.Context, in *sdk.DeleteItemInput, _ ...func(*sdk.Options)) (*sdk.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, itemID(in.Key))
	return &sdk.DeleteItemOutput{}, nil
}

// UpdateItem only supports the id counter's ADD.
func (f *fakeAPI) UpdateItem(ctx context.Context, in *sdk.UpdateItemInput, _ ...func(*sdk.Options)) (*sdk.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := itemID(in.Key)
	item, ok := f.items[id]
	if !ok {
		item = copyItem(in.Key)
	}
	var n int64
	if cur, ok := item[attrSeq].(*types.AttributeValueMemberN); ok {
		n, _ = strconv.ParseInt(cur.Value, 10, 64)
	}
	n++
	item[attrSeq] = &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
	f.items[id] = item
	return &sdk.UpdateItemOutput{Attributes: map[string]types.AttributeValue{attrSeq: item[attrSeq]}}, nil
}

func (f *fakeAPI) TransactWriteItems(ctx context.Context, in *sdk.TransactWriteItemsInput, _ ...func(*sdk.Options)) (*sdk.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transactions = append(f.transactions, in)
	if f.transactErr != nil {
		return nil, f.transactErr
	}
	for _, w := range in.TransactItems {
		switch {
		case w.Put != nil:
			f.items[itemID(w.Put.Item)] = copyItem(w.Put.Item)
		case w.Delete != nil:
			delete(f.items, itemID(w.Delete.Key))
		}
	}
	return &sdk.TransactWriteItemsOutput{}, nil
}

func (f *fakeAPI) Query(ctx context.Context, in *sdk.QueryInput, _ ...func(*sdk.Options)) (*sdk.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	snapshot := *in
	f.queries = append(f.queries, &snapshot)
	if len(f.queryErrs) > 0 {
		err := f.queryErrs[0]
		f.queryErrs = f.queryErrs[1:]
		if err != nil {
			return nil, err
		}
	}

	kind := in.ExpressionAttributeValues[":kind"].(*types.AttributeValueMemberS).Value
	var matched []map[string]types.AttributeValue
	for _, item := range f.items {
		et, ok := item[attrEntityType].(*types.AttributeValueMemberS)
		if ok && et.Value == kind {
			matched = append(matched, item)
		}
	}
	pk := func(item map[string]types.AttributeValue) string {
		return item[attrPK].(*types.AttributeValueMemberS).Value
	}
	sort.Slice(matched, func(i, j int) bool { return pk(matched[i]) < pk(matched[j]) })

	if in.ExclusiveStartKey != nil {
		start := pk(in.ExclusiveStartKey)
		i := sort.Search(len(matched), func(i int) bool { return pk(matched[i]) > start })
		matched = matched[i:]
	}

	out := &sdk.QueryOutput{}
	if limit := int(aws.ToInt32(in.Limit)); limit > 0 && len(matched) > limit {
		matched = matched[:limit]
		last := matched[limit-1]
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			attrPK:         last[attrPK],
			attrSK:         last[attrSK],
			attrEntityType: last[attrEntityType],
		}
	}
	out.Count = int32(len(matched))
	if in.Select == types.SelectCount {
		return out, nil
	}
	for _, item := range matched {
		if in.ProjectionExpression != nil {
			item = map[string]types.AttributeValue{
				attrPK:      item[attrPK],
				attrSK:      item[attrSK],
				attrVersion: item[attrVersion],
			}
		}
		out.Items = append(out.Items, copyItem(item))
	}
	return out, nil
}

func (f *fakeAPI) item(pk, sk string) (map[string]types.AttributeValue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[pk+"|"+sk]
	if !ok {
		return nil, fmt.Errorf("no item %s|%s", pk, sk)
	}
	return item, nil
}
