// Package repository holds the storage contracts shared by the service
// packages. Implementations live in repository/postgres.
package repository

import "errors"

// ErrNotFound is returned by every store when the row does not exist or
// belongs to another account.
var ErrNotFound = errors.New("not found")
