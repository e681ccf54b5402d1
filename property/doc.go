/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package property stores named configuration values as strings and reads
// them back typed.
//
// Each property is a record of kind _Property keyed by its name. Set accepts
// any value and stores its string form; the typed getters convert on read:
//
//	props := property.New(store, property.WithLogger(logger))
//	if err := props.Set(ctx, "sync.interval", "90s"); err != nil {
//		return err
//	}
//	interval, err := props.GetDuration(ctx, "sync.interval")
//	if err != nil {
//		return err
//	}
//	if interval == nil {
//		// unset or unparsable
//	}
//
// The converters (ToInt, ToFloat, ToBool, ToDuration, ToTime) are exported for
// callers that hold a raw value already.
package property
