/*
Package errors provides the error taxonomy shared by every persistkit package.

Errors are sentinel values plus typed errors whose Is method matches the
sentinel, so callers use the standard errors.Is() function or the helpers.

Common Errors:

	var (
	    ErrNotFound          = errors.New("entity not found")
	    ErrInvalidArgument   = errors.New("invalid argument")
	    ErrStorageFailure    = errors.New("storage failure")
	    ErrConversionFailure = errors.New("conversion failure")
	    ErrCycle             = errors.New("reference cycle")
	)

Usage:

	props, err := executor.LoadProperties(ctx, order)
	if err != nil {
	    if errors.IsNotFound(err) {
	        // the owning entity was never saved
	    }
	    return err
	}

	ts, err := tracker.Of(ctx, "Order", nil, nil)
	// errors.IsInvalidArgument(err) == true

StorageFailure and ConversionFailure are usually recovered where they occur.
A cache that cannot be built degrades to a no-op cache. A property that cannot
be parsed reads as nil. Transaction errors from a backend are never wrapped.
*/
package errors
