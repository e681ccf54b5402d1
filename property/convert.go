/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package property

import (
	"time"

	"github.com/spf13/cast"

	"github.com/suparena/persistkit/errors"
)

// The converters are stateless; failures are errors.ErrConversionFailure.

// ToInt parses a decimal integer.
func ToInt(s string) (int64, error) {
	v, err := cast.ToInt64E(s)
	if err != nil {
		return 0, errors.NewConversionError(s, "int64", err)
	}
	return v, nil
}

// ToFloat parses a floating point number.
func ToFloat(s string) (float64, error) {
	v, err := cast.ToFloat64E(s)
	if err != nil {
		return 0, errors.NewConversionError(s, "float64", err)
	}
	return v, nil
}

// ToBool parses true/false, 1/0 and the other forms strconv.ParseBool accepts.
func ToBool(s string) (bool, error) {
	v, err := cast.ToBoolE(s)
	if err != nil {
		return false, errors.NewConversionError(s, "bool", err)
	}
	return v, nil
}

// ToDuration parses a Go duration such as 1h30m. A bare number is nanoseconds.
func ToDuration(s string) (time.Duration, error) {
	v, err := cast.ToDurationE(s)
	if err != nil {
		return 0, errors.NewConversionError(s, "time.Duration", err)
	}
	return v, nil
}

// ToTime parses RFC3339 and the other layouts cast recognizes.
func ToTime(s string) (time.Time, error) {
	v, err := cast.ToTimeE(s)
	if err != nil {
		return time.Time{}, errors.NewConversionError(s, "time.Time", err)
	}
	return v, nil
}

// FromValue renders v in the stored string form.
func FromValue(v any) (string, error) {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(time.RFC3339Nano), nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", errors.NewConversionError(v, "string", err)
	}
	return s, nil
}
