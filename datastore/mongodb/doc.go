// Package mongodb provides a MongoDB implementation of datastore.Store.
//
// Records live in one collection as documents keyed by the encoded entity key,
// with kind, name, id and parent stored alongside for filtering and the
// entity properties under "props". Ids for incomplete keys come from a
// per-kind counter document. Transactions use sessions and therefore need a
// replica set or sharded cluster.
package mongodb
