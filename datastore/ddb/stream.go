/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/suparena/persistkit/errors"
)

// Stream reads the records matching q page by page without buffering the whole
// result. Records arrive in key order; order rules are rejected, while offset
// and limit are honored. The channel is closed when the stream ends.
func (s *Store) Stream(ctx context.Context, q *Query, opts ...StreamOption) <-chan StreamResult {
	options := DefaultStreamOptions()
	for _, opt := range opts {
		opt(&options)
	}

	resultCh := make(chan StreamResult, options.BufferSize)
	if len(q.Orders) > 0 {
		resultCh <- StreamResult{
			Error: errors.NewInvalidArgumentError("orders", "stream returns records in key order only"),
			Meta:  StreamMeta{Timestamp: time.Now()},
		}
		close(resultCh)
		return resultCh
	}

	input := s.queryInput(q, false)
	input.Limit = aws.Int32(options.PageSize)
	go s.streamWorker(ctx, input, q.Offset, q.Limit, options, resultCh)
	return resultCh
}

// streamWorker handles the actual streaming logic
func (s *Store) streamWorker(
	ctx context.Context,
	input *sdk.QueryInput,
	offset, limit int,
	options StreamOptions,
	resultCh chan<- StreamResult,
) {
	defer close(resultCh)

	var itemIndex int64
	var pageNumber int
	var skipped int
	startTime := time.Now()
	var errs []error
	var mu sync.Mutex

	reportProgress := func(lastKey map[string]types.AttributeValue) {
		if options.ProgressHandler == nil {
			return
		}
		mu.Lock()
		progress := StreamProgress{
			ItemsProcessed: atomic.LoadInt64(&itemIndex),
			PagesProcessed: pageNumber,
			LastKey:        lastKey,
			Errors:         append([]error(nil), errs...),
			StartTime:      startTime,
		}
		mu.Unlock()

		if elapsed := time.Since(startTime).Seconds(); elapsed > 0 {
			progress.CurrentRate = float64(progress.ItemsProcessed) / elapsed
		}
		options.ProgressHandler(progress)
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		out, err := queryWithRetry(ctx, s.client, input, options)
		if err != nil {
			if options.ErrorHandler != nil && options.ErrorHandler(err) {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				s.logger.Warn("stream page failed, retrying", zap.Int("page", pageNumber+1), zap.Error(err))
				continue
			}
			select {
			case resultCh <- StreamResult{
				Error: errors.NewStorageError("dynamodb stream", err),
				Meta: StreamMeta{
					Index:      atomic.LoadInt64(&itemIndex),
					PageNumber: pageNumber,
					Timestamp:  time.Now(),
				},
			}:
			case <-ctx.Done():
			}
			return
		}

		pageNumber++

		for _, item := range out.Items {
			if skipped < offset {
				skipped++
				continue
			}
			if limit > 0 && atomic.LoadInt64(&itemIndex) >= int64(limit) {
				reportProgress(nil)
				return
			}

			result := processItem(item, atomic.LoadInt64(&itemIndex), pageNumber)
			atomic.AddInt64(&itemIndex, 1)

			select {
			case <-ctx.Done():
				return
			case resultCh <- result:
			}

			if result.Error != nil {
				mu.Lock()
				errs = append(errs, result.Error)
				mu.Unlock()
			}
		}

		reportProgress(out.LastEvaluatedKey)

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}

	reportProgress(nil)
}

// queryWithRetry executes a query with configurable retry logic
func queryWithRetry(
	ctx context.Context,
	client API,
	input *sdk.QueryInput,
	options StreamOptions,
) (*sdk.QueryOutput, error) {
	var lastErr error

	for attempt := 0; attempt <= options.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		out, err := client.Query(ctx, input)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !isRetryableError(err) {
			return nil, err
		}

		// Don't sleep after last attempt
		if attempt < options.MaxRetries {
			backoff := time.Duration(attempt+1) * options.RetryBackoff
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, fmt.Errorf("query failed after %d retries: %w", options.MaxRetries, lastErr)
}

// processItem converts a DynamoDB item to a stream result
func processItem(item map[string]types.AttributeValue, index int64, pageNumber int) StreamResult {
	meta := StreamMeta{
		Index:      index,
		PageNumber: pageNumber,
		Timestamp:  time.Now(),
	}

	rawCopy := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		rawCopy[k] = v
	}

	rec, err := fromItem(item, false)
	if err != nil {
		return StreamResult{Error: err, Raw: rawCopy, Meta: meta}
	}
	return StreamResult{Record: rec, Raw: rawCopy, Meta: meta}
}

// isRetryableError determines if a DynamoDB error is retryable
func isRetryableError(err error) bool {
	switch err.(type) {
	case *types.ProvisionedThroughputExceededException:
		return true
	case *types.RequestLimitExceeded:
		return true
	case *types.InternalServerError:
		return true
	}

	if awsErr, ok := err.(interface{ IsRetryable() bool }); ok {
		return awsErr.IsRetryable()
	}

	return false
}
