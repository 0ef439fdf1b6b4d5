// Package file persists the listing collection as a single JSON document on local disk.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"classificados/internal/model"
	"classificados/internal/repository"
)

var _ repository.ListingRepository = (*ListingFile)(nil)

// ListingFile stores the collection at path. Writes go to a temp file in the
// same directory which is fsynced and renamed over the target.
type ListingFile struct {
	path string
}

func NewListingFile(path string) *ListingFile {
	return &ListingFile{path: path}
}

// Load returns an empty collection when the file is absent or cannot be read or decoded.
func (f *ListingFile) Load(ctx context.Context) ([]model.Listing, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("component", "repository").Str("path", f.path).Msg("listing file unreadable, starting empty")
		}
		return []model.Listing{}, nil
	}

	listings, err := repository.DecodeListings(data)
	if err != nil {
		log.Warn().Err(err).Str("component", "repository").Str("path", f.path).Msg("listing file malformed, starting empty")
		return []model.Listing{}, nil
	}
	return listings, nil
}

func (f *ListingFile) Save(ctx context.Context, listings []model.Listing) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := repository.EncodeListings(listings)
	if err != nil {
		return fmt.Errorf("encode listings: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace listing file: %w", err)
	}
	return nil
}

// Ping reports whether the data directory is reachable.
func (f *ListingFile) Ping(ctx context.Context) error {
	st, err := os.Stat(filepath.Dir(f.path))
	if err != nil {
		return err
	}
	if !st.IsDir() {
		return fmt.Errorf("%s is not a directory", filepath.Dir(f.path))
	}
	return nil
}
