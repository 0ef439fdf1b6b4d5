// Package object persists the listing collection as one JSON object in a storage.Storage bucket.
package object

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"classificados/internal/model"
	"classificados/internal/repository"
	"classificados/internal/storage"
)

const contentType = "application/json"

var _ repository.ListingRepository = (*ListingObject)(nil)

// ListingObject keeps the whole collection under a single key.
// Object stores replace a key atomically, so a failed Put leaves the previous document.
type ListingObject struct {
	store storage.Storage
	key   string
}

func NewListingObject(store storage.Storage, key string) *ListingObject {
	return &ListingObject{store: store, key: key}
}

// Load returns an empty collection when the object does not exist yet.
func (r *ListingObject) Load(ctx context.Context) ([]model.Listing, error) {
	rc, _, err := r.store.Get(ctx, r.key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return []model.Listing{}, nil
		}
		return nil, fmt.Errorf("get %s: %w", r.key, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.key, err)
	}
	return repository.DecodeListings(data)
}

func (r *ListingObject) Save(ctx context.Context, listings []model.Listing) error {
	data, err := repository.EncodeListings(listings)
	if err != nil {
		return fmt.Errorf("encode listings: %w", err)
	}
	if _, err := r.store.Put(ctx, r.key, bytes.NewReader(data), storage.PutObjectOptions{
		Size:        int64(len(data)),
		ContentType: contentType,
	}); err != nil {
		return fmt.Errorf("put %s: %w", r.key, err)
	}
	return nil
}
