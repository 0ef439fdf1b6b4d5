package repository

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"classificados/internal/model"
)

// listingDocument is the on-disk shape of a listing. Pointer fields let the
// decoder tell an absent key from a zero value.
type listingDocument struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Seller      string          `json:"seller"`
	Contact     string          `json:"contact"`
	Condition   string          `json:"condition"`
	Images      []string        `json:"images"`
	CreatedAt   time.Time       `json:"created_at"`
	Active      *bool           `json:"active,omitempty"`
	SoldAt      *time.Time      `json:"sold_at,omitempty"`
}

// EncodeListings serializes the collection as an indented JSON array.
func EncodeListings(listings []model.Listing) ([]byte, error) {
	docs := make([]listingDocument, len(listings))
	for i, l := range listings {
		active := l.Active
		images := l.Images
		if images == nil {
			images = []string{}
		}
		docs[i] = listingDocument{
			ID:          l.ID,
			Title:       l.Title,
			Description: l.Description,
			Price:       l.Price,
			Category:    l.Category,
			Seller:      l.Seller,
			Contact:     l.Contact,
			Condition:   l.Condition,
			Images:      images,
			CreatedAt:   l.CreatedAt,
			Active:      &active,
			SoldAt:      l.SoldAt,
		}
	}
	return json.MarshalIndent(docs, "", "  ")
}

// DecodeListings parses a JSON array written by EncodeListings.
// Missing optional fields take their defaults; a missing active flag means active.
// Empty input decodes to an empty collection.
func DecodeListings(data []byte) ([]model.Listing, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return []model.Listing{}, nil
	}

	var docs []listingDocument
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decode listings: %w", err)
	}

	out := make([]model.Listing, len(docs))
	for i, d := range docs {
		l := model.Listing{
			ID:          d.ID,
			Title:       d.Title,
			Description: d.Description,
			Price:       d.Price,
			Category:    d.Category,
			Seller:      d.Seller,
			Contact:     d.Contact,
			Condition:   d.Condition,
			Images:      d.Images,
			CreatedAt:   d.CreatedAt,
			Active:      d.Active == nil || *d.Active,
			SoldAt:      d.SoldAt,
		}
		if l.Category == "" {
			l.Category = model.DefaultCategory
		}
		if l.Condition == "" {
			l.Condition = model.DefaultCondition
		}
		if l.Images == nil {
			l.Images = []string{}
		}
		ReconcileSoldState(&l)
		out[i] = l
	}
	return out, nil
}

// ReconcileSoldState enforces that a listing carries a sold timestamp exactly
// when it is retired. A recorded sold_at marks the listing retired. A retired
// listing without one keeps its flag. Both cases are logged.
func ReconcileSoldState(l *model.Listing) {
	switch {
	case l.Active && l.SoldAt != nil:
		log.Warn().Str("component", "repository").Str("listing_id", l.ID).Msg("active listing has sold_at, treating as retired")
		l.Active = false
	case !l.Active && l.SoldAt == nil:
		log.Warn().Str("component", "repository").Str("listing_id", l.ID).Msg("retired listing has no sold_at")
	}
}
