// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates invalid input from the caller.
var ErrValidation = errors.New("validation error")

// ErrMalformedTrace indicates a trace file that is not valid JSON or has the wrong shape.
var ErrMalformedTrace = errors.New("malformed trace")

// ErrNoTrace indicates an operation that needs a loaded trace was called before one was loaded.
var ErrNoTrace = errors.New("no trace loaded")
