//go:build integration
// +build integration

/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package persistkit_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suparena/persistkit"
	"github.com/suparena/persistkit/cascade"
	"github.com/suparena/persistkit/config"
	"github.com/suparena/persistkit/criteria"
	"github.com/suparena/persistkit/datastore/ddb"
	"github.com/suparena/persistkit/entity"
	"github.com/suparena/persistkit/errors"
	"github.com/suparena/persistkit/registry"
)

// Integration tests run against a real table with a KindIndex GSI
// (hash EntityType, range PK). Configure with PERSISTKIT_BACKEND=dynamodb
// and PERSISTKIT_DYNAMODB_TABLE_NAME, or the same keys in a .env file.

type integrationUser struct {
	entity.Identity `json:"-"`
	Email           string    `json:"Email"`
	Name            string    `json:"Name"`
	CreatedAt       time.Time `json:"CreatedAt"`
}

type integrationOrder struct {
	entity.Identity `json:"-"`
	Status          string      `json:"Status"`
	Amount          float64     `json:"Amount"`
	User            *entity.Ref `json:"User,omitempty"`
}

func (o *integrationOrder) References() []entity.Edge {
	return []entity.Edge{{Name: "User", Ref: o.User}}
}

func setupIntegrationStore(t *testing.T) (*ddb.Store, *registry.Registry) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	cfg, err := config.Load("")
	require.NoError(t, err)
	if cfg.Backend != config.BackendDynamoDB {
		t.Skip("PERSISTKIT_BACKEND is not dynamodb, skipping integration test")
	}

	maps := registry.NewIndexMaps()
	require.NoError(t, maps.Register("IntegrationUser", map[string]string{
		"GSI1PK": "EMAIL#{Email}",
		"GSI1SK": "USER#{ID}",
	}))

	store, err := ddb.Open(context.Background(), cfg.DynamoDB, ddb.WithIndexMaps(maps))
	require.NoError(t, err)

	reg := registry.New()
	registry.Register(reg, "IntegrationUser", func() *integrationUser { return &integrationUser{} })
	registry.Register(reg, "IntegrationOrder", func() *integrationOrder { return &integrationOrder{} })
	return store, reg
}

func TestIntegrationBasicOperations(t *testing.T) {
	ctx := context.Background()
	store, reg := setupIntegrationStore(t)
	x := persistkit.NewExecutor[*ddb.Query](store, ddb.Builder{}, reg)

	user := &integrationUser{
		Identity:  entity.NamedIdentity("IntegrationUser", fmt.Sprintf("test-%d", time.Now().UnixNano()), nil),
		Email:     "test@example.com",
		Name:      "Test User",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, cascade.New(store).Save(ctx, user))
	assert.Equal(t, int64(1), user.Version())

	got, err := persistkit.Get[*integrationUser](ctx, x, user.Key())
	require.NoError(t, err)
	assert.Equal(t, user.Email, got.Email)
	assert.True(t, user.CreatedAt.Equal(got.CreatedAt))

	user.Name = "Updated Name"
	require.NoError(t, cascade.New(store).Save(ctx, user))
	assert.Equal(t, int64(2), user.Version())

	require.NoError(t, store.Delete(ctx, user.Key()))
	_, err = persistkit.Get[*integrationUser](ctx, x, user.Key())
	assert.True(t, errors.IsNotFound(err), "expected not found, got %v", err)
}

func TestIntegrationCascadeAndQuery(t *testing.T) {
	ctx := context.Background()
	store, reg := setupIntegrationStore(t)
	x := persistkit.NewExecutor[*ddb.Query](store, ddb.Builder{}, reg)

	user := &integrationUser{
		Identity: entity.NewIdentity("IntegrationUser", nil),
		Email:    fmt.Sprintf("buyer-%d@example.com", time.Now().UnixNano()),
	}
	var orders []*integrationOrder
	for i, status := range []string{"pending", "shipped", "pending"} {
		orders = append(orders, &integrationOrder{
			Identity: entity.NewIdentity("IntegrationOrder", nil),
			Status:   status,
			Amount:   float64(i+1) * 10.5,
			User:     entity.RefTo(user),
		})
	}

	// the first order saves its user through the reference, the others find it identified
	engine := cascade.New(store)
	for _, o := range orders {
		require.NoError(t, engine.Save(ctx, o))
	}
	require.True(t, user.Identified())
	assert.Equal(t, int64(1), user.Version())
	t.Cleanup(func() {
		for _, o := range orders {
			_ = store.Delete(ctx, o.Key())
		}
		_ = store.Delete(ctx, user.Key())
	})

	byUser := criteria.ReferenceID("User", "IntegrationUser", user.ID())
	pending, err := persistkit.List(ctx, x, criteria.New[*integrationOrder]("IntegrationOrder").
		Where(byUser, criteria.Eq("Status", "pending")).
		OrderBy("Amount", criteria.Desc))
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, 31.5, pending[0].Amount)
	assert.True(t, pending[0].User.Key().Equal(user.Key()))

	n, err := persistkit.Count(ctx, x, criteria.New[*integrationOrder]("IntegrationOrder").Where(byUser))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	var streamed int
	for r := range store.Stream(ctx, mustBuild(t, criteria.New[*integrationOrder]("IntegrationOrder").Where(byUser))) {
		require.NoError(t, r.Error)
		streamed++
	}
	assert.Equal(t, 3, streamed)
}

func mustBuild(t *testing.T, c *criteria.Criteria[*integrationOrder]) *ddb.Query {
	t.Helper()
	q, err := ddb.Builder{}.Build(c.Spec())
	require.NoError(t, err)
	return q
}
