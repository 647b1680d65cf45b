// Package store implements the registry substrate: an in-memory variant for
// tests and development and a PostgreSQL variant for production.
package store

import "time"

func nowUTC() time.Time {
	return time.Now().UTC()
}
