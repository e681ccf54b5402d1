/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package timestamp decides whether an incoming update is stale.
//
// A Timestamp is keyed by a resource type and an ordered list of identifying
// strings, joined as type::id1::id2. It holds the last trusted modification time
// and the incoming time being evaluated:
//
//	ts, err := tracker.Of(ctx, "Order", []string{orderID}, &event.ModifiedAt)
//	if err != nil {
//		return err
//	}
//	if ts.IsObsolete() {
//		return nil
//	}
//	// apply the update
//	return ts.Done(ctx)
//
// A timestamp that was never stored starts one millisecond before its incoming
// time, so the first update always applies.
package timestamp
