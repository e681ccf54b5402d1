/*
Package ddb provides a DynamoDB implementation of datastore.Store.

All kinds share one table. Every item carries:
  - PK, the encoded entity key, and SK, its kind
  - EntityType, KeyID, KeyName and ParentKey for filtering
  - Version and Props, the entity properties as a map

Queries run against the KindIndex GSI (EntityType, PK). Builder lowers a
criteria.Spec into a FilterExpression with #n and :v placeholders; ordering,
offset and limit are applied client-side.

Index Maps:
Extra attributes, typically keys of further GSIs, can be derived per kind from
macros that are replaced with property values:

	maps := registry.NewIndexMaps()
	maps.Register("User", map[string]string{
	    "GSI1PK": "EMAIL#{Email}",
	    "GSI1SK": "USER#{ID}",
	})
	store, err := ddb.New(client, "entities", ddb.WithIndexMaps(maps))

Streaming:
Stream reads large result sets page by page:

	results := store.Stream(ctx, q,
	    ddb.WithBufferSize(100),
	    ddb.WithStreamPageSize(25),
	    ddb.WithMaxRetries(3),
	    ddb.WithProgressHandler(func(p ddb.StreamProgress) {
	        log.Printf("Processed %d items", p.ItemsProcessed)
	    }),
	)
*/
package ddb
