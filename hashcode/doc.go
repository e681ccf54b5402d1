/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package hashcode detects changes to persisted entities by storing an
// xxhash64 of selected properties in a detached record per owner.
//
// Each named slot hashes its own property list and is stored as one field of
// the owner's _PropertiesHashCode record, so snapshotting one slot never alters
// another.
package hashcode
