// Package idgen generates the opaque string identifiers assigned to every
// ledger entity at construction time.
package idgen

import "github.com/google/uuid"

// New returns a fresh globally unique identifier string.
func New() string { return uuid.New().String() }
