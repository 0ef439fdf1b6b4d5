// Package repository defines the persistence gateway for the listing collection.
// Implementations live in subpackages (file, postgres, sqlite, object, redis).
package repository

import (
	"context"

	"classificados/internal/model"
)

// ListingRepository loads and saves the whole listing collection.
//
// Load returns an empty collection, not an error, when nothing has been saved yet.
// Save replaces everything previously stored; a failed Save leaves the prior
// contents intact. Implementations must not retain the slice passed to Save.
type ListingRepository interface {
	Load(ctx context.Context) ([]model.Listing, error)
	Save(ctx context.Context, listings []model.Listing) error
}

// Pinger is implemented by backends that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}
