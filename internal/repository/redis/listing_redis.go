// Package redis persists the listing collection as one JSON value under a redis key.
package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"classificados/internal/model"
	"classificados/internal/repository"
)

var _ repository.ListingRepository = (*ListingRedis)(nil)

// ListingRedis stores the encoded collection with a single SET, which redis applies atomically.
type ListingRedis struct {
	client goredis.UniversalClient
	key    string
}

func NewListingRedis(client goredis.UniversalClient, key string) *ListingRedis {
	return &ListingRedis{client: client, key: key}
}

// Load returns an empty collection when the key does not exist.
func (r *ListingRedis) Load(ctx context.Context) ([]model.Listing, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return []model.Listing{}, nil
		}
		return nil, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	return repository.DecodeListings(data)
}

func (r *ListingRedis) Save(ctx context.Context, listings []model.Listing) error {
	data, err := repository.EncodeListings(listings)
	if err != nil {
		return fmt.Errorf("encode listings: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}

func (r *ListingRedis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
