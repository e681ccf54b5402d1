// Package cache provides the read-through cache used by datastore/cached.
//
// The default implementation wraps sturdyc. When the configuration is invalid
// or the cache cannot be built, New logs a warning and substitutes Noop, which
// always calls through to the source.
package cache
