// Package store persists chart-of-accounts entries.
package store

import "accounting/pkg/platform/sentinel"

// ErrNotFound is returned when no account has the requested ID.
var ErrNotFound = sentinel.ErrNotFound
