/*
Package persistkit is a persistence layer over key-based document stores.

Application code describes queries as criteria and entity graphs as values with
explicit references; backends translate criteria into their native queries and
provide an atomic transaction primitive.

The root package holds the Executor, which runs criteria and hydrates results
through an explicit kind registry:

	reg := registry.New()
	registry.Register(reg, "Order", func() *Order { return &Order{} })

	store, _ := badgerkv.OpenInMemory()
	exec := persistkit.NewExecutor(store, memquery.Builder{}, reg)

	c := criteria.New[*Order]("Order").
		Where(criteria.Between("total", 10, 100, criteria.Soft, criteria.Hard)).
		OrderBy("total", criteria.Desc).
		Limit(20)

	orders, err := persistkit.List(ctx, exec, c)
	ids, err := persistkit.FetchIDs(ctx, exec, c) // keys-only, same order

Related packages:
  - cascade persists entity graphs in dependency order
  - hashcode detects property changes through stored hashes
  - timestamp rejects out-of-order updates
  - datastore/* hold the backends: mock, badgerkv, ddb, mongodb and the cached decorator
*/
package persistkit
