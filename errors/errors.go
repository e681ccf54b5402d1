/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Common sentinel errors
var (
	// ErrNotFound is returned when an entity or record does not exist
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidArgument is returned when a caller supplies an unusable argument
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrStorageFailure is returned when a backend or cache cannot be constructed or reached
	ErrStorageFailure = errors.New("storage failure")

	// ErrConversionFailure is returned when a stored value cannot be converted to the requested type
	ErrConversionFailure = errors.New("conversion failure")

	// ErrCycle is returned when a cascading save finds a reference cycle between unidentified entities
	ErrCycle = errors.New("reference cycle")

	// ErrNoIndexMap is returned when no index map is registered for a kind
	ErrNoIndexMap = errors.New("no index map found for kind")
)

// NotFoundError represents an error when an entity is not found
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with key %q not found", e.Kind, e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// InvalidArgumentError represents a rejected argument
type InvalidArgumentError struct {
	Field   string
	Message string
}

func (e *InvalidArgumentError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid argument %q: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid argument: %s", e.Message)
}

func (e *InvalidArgumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// StorageError wraps a failure of the storage layer itself
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("storage failure during %s", e.Op)
	}
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorageFailure
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ConversionError represents a typed value that could not be parsed
type ConversionError struct {
	Value  any
	Target string
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert %v (%T) to %s: %v", e.Value, e.Value, e.Target, e.Err)
}

func (e *ConversionError) Is(target error) bool {
	return target == ErrConversionFailure
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// CycleError lists the encoded keys or kinds forming a reference cycle
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("reference cycle between unidentified entities: %s", strings.Join(e.Path, " -> "))
}

// Is matches ErrCycle and ErrInvalidArgument; a cyclic graph is a bad argument to a save.
func (e *CycleError) Is(target error) bool {
	return target == ErrCycle || target == ErrInvalidArgument
}

// Helper functions for creating errors

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(kind, key string) error {
	return &NotFoundError{Kind: kind, Key: key}
}

// NewInvalidArgumentError creates a new InvalidArgumentError
func NewInvalidArgumentError(field, message string) error {
	return &InvalidArgumentError{Field: field, Message: message}
}

// NewStorageError creates a new StorageError
func NewStorageError(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// NewConversionError creates a new ConversionError
func NewConversionError(value any, target string, err error) error {
	return &ConversionError{Value: value, Target: target, Err: err}
}

// NewCycleError creates a new CycleError
func NewCycleError(path []string) error {
	return &CycleError{Path: path}
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidArgument checks if an error is an invalid argument error
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsStorageFailure checks if an error is a storage failure
func IsStorageFailure(err error) bool {
	return errors.Is(err, ErrStorageFailure)
}

// IsConversionFailure checks if an error is a conversion failure
func IsConversionFailure(err error) bool {
	return errors.Is(err, ErrConversionFailure)
}

// IsCycle checks if an error is a reference cycle error
func IsCycle(err error) bool {
	return errors.Is(err, ErrCycle)
}
