// Package store persists categories in memory or PostgreSQL and caches them
// in Redis.
package store

import "accounting/pkg/platform/sentinel"

// ErrNotFound is returned when no category has the requested key.
var ErrNotFound = sentinel.ErrNotFound
