/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package property

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/suparena/persistkit/datastore/mock"
	"github.com/suparena/persistkit/errors"
)

func TestConverters(t *testing.T) {
	n, err := ToInt("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	f, err := ToFloat("2.5")
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)

	b, err := ToBool("true")
	require.NoError(t, err)
	assert.True(t, b)

	d, err := ToDuration("1m30s")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	tm, err := ToTime("2025-03-01T12:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, 2025, tm.Year())

	_, err = ToInt("forty-two")
	assert.True(t, errors.IsConversionFailure(err))
	_, err = ToBool("maybe")
	assert.True(t, errors.IsConversionFailure(err))
	_, err = ToTime("not a time")
	assert.True(t, errors.IsConversionFailure(err))
}

func TestTypedGetters(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.DebugLevel)
	s := New(mock.New(), WithLogger(zap.New(core)))

	require.NoError(t, s.Set(ctx, "retries", 3))
	require.NoError(t, s.Set(ctx, "ratio", 0.75))
	require.NoError(t, s.Set(ctx, "enabled", true))
	require.NoError(t, s.Set(ctx, "timeout", "5s"))
	require.NoError(t, s.Set(ctx, "since", time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)))

	retries, err := s.GetInt(ctx, "retries")
	require.NoError(t, err)
	require.NotNil(t, retries)
	assert.Equal(t, int64(3), *retries)

	ratio, err := s.GetFloat(ctx, "ratio")
	require.NoError(t, err)
	assert.Equal(t, 0.75, *ratio)

	enabled, err := s.GetBool(ctx, "enabled")
	require.NoError(t, err)
	assert.True(t, *enabled)

	timeout, err := s.GetDuration(ctx, "timeout")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, *timeout)

	since, err := s.GetTime(ctx, "since")
	require.NoError(t, err)
	assert.True(t, since.Equal(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)))

	raw, ok, err := s.Get(ctx, "retries")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "3", raw)

	// Conversion failures read as unset.
	bad, err := s.GetInt(ctx, "timeout")
	require.NoError(t, err)
	assert.Nil(t, bad)
	assert.Equal(t, 1, logs.FilterMessage("property conversion failed").Len())

	missing, err := s.GetBool(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSetOverwritesAndDelete(t *testing.T) {
	ctx := context.Background()
	store := mock.New()
	s := New(store)

	require.NoError(t, s.Set(ctx, "mode", "a"))
	require.NoError(t, s.Set(ctx, "mode", "b"))
	raw, _, err := s.Get(ctx, "mode")
	require.NoError(t, err)
	assert.Equal(t, "b", raw)
	assert.Equal(t, 1, store.Len())

	require.NoError(t, s.Delete(ctx, "mode"))
	_, ok, err := s.Get(ctx, "mode")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, s.Delete(ctx, "mode"))
}

func TestErrors(t *testing.T) {
	ctx := context.Background()
	s := New(mock.New())

	assert.True(t, errors.IsInvalidArgument(s.Set(ctx, "", 1)))
	assert.True(t, errors.IsConversionFailure(s.Set(ctx, "x", struct{}{})))

	getErr := stderrors.New("backend down")
	failing := New(mock.New().WithGetError(getErr))
	_, err := failing.GetInt(ctx, "x")
	assert.ErrorIs(t, err, getErr)
}
