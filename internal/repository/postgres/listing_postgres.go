package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"classificados/internal/model"
	"classificados/internal/repository"
)

// ListingPostgres is a PostgreSQL implementation of repository.ListingRepository.
// Each Save replaces the table contents inside one transaction; the position
// column preserves insertion order.
type ListingPostgres struct {
	db *sql.DB
}

// NewListingPostgres creates a new ListingPostgres repository.
func NewListingPostgres(db *sql.DB) *ListingPostgres {
	return &ListingPostgres{db: db}
}

var _ repository.ListingRepository = (*ListingPostgres)(nil)

// Load reads every listing ordered by insertion position.
func (r *ListingPostgres) Load(ctx context.Context) ([]model.Listing, error) {
	const q = `
		SELECT id, title, description, price::text, category, seller, contact, condition,
		       images::text, created_at, active, sold_at
		FROM listings
		ORDER BY position ASC
	`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Listing, 0)
	for rows.Next() {
		var (
			l      model.Listing
			price  string
			images string
			soldAt sql.NullTime
		)
		if err := rows.Scan(
			&l.ID,
			&l.Title,
			&l.Description,
			&price,
			&l.Category,
			&l.Seller,
			&l.Contact,
			&l.Condition,
			&images,
			&l.CreatedAt,
			&l.Active,
			&soldAt,
		); err != nil {
			return nil, err
		}
		if l.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("listing %s: price: %w", l.ID, err)
		}
		if err := json.Unmarshal([]byte(images), &l.Images); err != nil {
			return nil, fmt.Errorf("listing %s: images: %w", l.ID, err)
		}
		if l.Images == nil {
			l.Images = []string{}
		}
		l.CreatedAt = l.CreatedAt.UTC()
		if soldAt.Valid {
			t := soldAt.Time.UTC()
			l.SoldAt = &t
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Save replaces the stored collection atomically.
func (r *ListingPostgres) Save(ctx context.Context, listings []model.Listing) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM listings`); err != nil {
		return err
	}

	const q = `
		INSERT INTO listings (id, position, title, description, price, category, seller, contact,
		                      condition, images, created_at, active, sold_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	for i, l := range listings {
		images := l.Images
		if images == nil {
			images = []string{}
		}
		imagesJSON, mErr := json.Marshal(images)
		if mErr != nil {
			return mErr
		}
		var soldAt sql.NullTime
		if l.SoldAt != nil {
			soldAt = sql.NullTime{Time: *l.SoldAt, Valid: true}
		}
		if _, err = tx.ExecContext(ctx, q,
			l.ID,
			i,
			l.Title,
			l.Description,
			l.Price.String(),
			l.Category,
			l.Seller,
			l.Contact,
			l.Condition,
			string(imagesJSON),
			l.CreatedAt,
			l.Active,
			soldAt,
		); err != nil {
			return fmt.Errorf("insert listing %s: %w", l.ID, err)
		}
	}

	return tx.Commit()
}

// Ping checks database connectivity.
func (r *ListingPostgres) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
