/*
Package datastore defines the backing store boundary.

A Backend offers get, put (assigning ids to incomplete keys), delete and an
atomic Transact. A Querier[Q] executes the native query type Q produced by a
criteria.Builder[Q]. Implementations:

  - datastore/mock: in-memory, with fault injection, for tests
  - datastore/badgerkv: embedded badger database
  - datastore/ddb: AWS DynamoDB
  - datastore/mongodb: MongoDB
  - datastore/cached: read-through cache decorator over any Backend

Records hold normalized properties (see entity.Properties) so every backend
evaluates and hashes the same values.
*/
package datastore
