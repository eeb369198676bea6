// Package store persists journals.
package store

import "accounting/pkg/platform/sentinel"

// ErrNotFound is returned when no journal has the requested ID.
var ErrNotFound = sentinel.ErrNotFound
