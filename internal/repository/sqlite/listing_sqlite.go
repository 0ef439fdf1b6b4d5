// Package sqlite persists the listing collection in an embedded SQLite database through gorm.
package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"classificados/internal/model"
	"classificados/internal/repository"
)

// listingRow is the table layout. Price and images are stored as text to keep
// decimals exact and the image list ordered.
type listingRow struct {
	ID          string    `gorm:"primaryKey"`
	Position    int       `gorm:"not null;uniqueIndex"`
	Title       string    `gorm:"not null"`
	Description string    `gorm:"not null"`
	Price       string    `gorm:"not null"`
	Category    string    `gorm:"not null;index"`
	Seller      string    `gorm:"not null"`
	Contact     string    `gorm:"not null"`
	Condition   string    `gorm:"not null"`
	Images      string    `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime:false"`
	Active      bool      `gorm:"not null"`
	SoldAt      *time.Time
}

func (listingRow) TableName() string { return "listings" }

var _ repository.ListingRepository = (*ListingSQLite)(nil)

type ListingSQLite struct {
	db *gorm.DB
}

// NewListingSQLite migrates the listings table and returns the repository.
func NewListingSQLite(db *gorm.DB) (*ListingSQLite, error) {
	if err := db.AutoMigrate(&listingRow{}); err != nil {
		return nil, fmt.Errorf("migrate listings: %w", err)
	}
	return &ListingSQLite{db: db}, nil
}

func (r *ListingSQLite) Load(ctx context.Context) ([]model.Listing, error) {
	var rows []listingRow
	if err := r.db.WithContext(ctx).Order("position ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]model.Listing, 0, len(rows))
	for _, row := range rows {
		price, err := decimal.NewFromString(row.Price)
		if err != nil {
			return nil, fmt.Errorf("listing %s: price: %w", row.ID, err)
		}
		images := []string{}
		if err := json.Unmarshal([]byte(row.Images), &images); err != nil {
			return nil, fmt.Errorf("listing %s: images: %w", row.ID, err)
		}
		l := model.Listing{
			ID:          row.ID,
			Title:       row.Title,
			Description: row.Description,
			Price:       price,
			Category:    row.Category,
			Seller:      row.Seller,
			Contact:     row.Contact,
			Condition:   row.Condition,
			Images:      images,
			CreatedAt:   row.CreatedAt,
			Active:      row.Active,
			SoldAt:      row.SoldAt,
		}
		repository.ReconcileSoldState(&l)
		out = append(out, l)
	}
	return out, nil
}

// Save replaces the table contents in one transaction.
func (r *ListingSQLite) Save(ctx context.Context, listings []model.Listing) error {
	rows := make([]listingRow, 0, len(listings))
	for i, l := range listings {
		images := l.Images
		if images == nil {
			images = []string{}
		}
		b, err := json.Marshal(images)
		if err != nil {
			return err
		}
		rows = append(rows, listingRow{
			ID:          l.ID,
			Position:    i,
			Title:       l.Title,
			Description: l.Description,
			Price:       l.Price.String(),
			Category:    l.Category,
			Seller:      l.Seller,
			Contact:     l.Contact,
			Condition:   l.Condition,
			Images:      string(b),
			CreatedAt:   l.CreatedAt,
			Active:      l.Active,
			SoldAt:      l.SoldAt,
		})
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&listingRow{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 100).Error
	})
}

// Ping checks the underlying connection.
func (r *ListingSQLite) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
