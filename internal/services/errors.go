package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors shared by the services. Handlers map them onto HTTP
// statuses; the CLI maps them onto exit codes.
var (
	// ErrNotFound means the document or client number does not resolve for
	// the given owner.
	ErrNotFound = errors.New("not found")
	// ErrConflict covers integrity refusals, e.g. deleting a quote that has
	// already been invoiced.
	ErrConflict = errors.New("conflict")
	// ErrNoClientEmail is returned by explicit send actions when the client
	// has no address on file.
	ErrNoClientEmail = errors.New("client has no email address")
)

// ValidationError carries per-field messages for input that was rejected
// before anything touched the store.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func newValidationError() *ValidationError {
	return &ValidationError{Fields: map[string]string{}}
}
