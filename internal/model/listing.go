package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DefaultCategory is applied when a draft carries no category.
	DefaultCategory = "outros"
	// DefaultCondition is applied when a draft carries no condition.
	DefaultCondition = "usado"
	// MaxImages is the upper bound of image paths a listing may reference.
	MaxImages = 5
)

// Listing is a single marketplace item.
// Price is serialized as a quoted decimal string to avoid float rounding on the wire.
type Listing struct {
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
	Active      bool            `json:"active"`
	SoldAt      *time.Time      `json:"sold_at,omitempty"`
}

// Clone returns a copy that shares no mutable memory with l.
func (l Listing) Clone() Listing {
	out := l
	out.Images = make([]string, len(l.Images))
	copy(out.Images, l.Images)
	if l.SoldAt != nil {
		t := *l.SoldAt
		out.SoldAt = &t
	}
	return out
}

// CloneAll deep-copies a slice of listings, preserving order.
func CloneAll(ls []Listing) []Listing {
	out := make([]Listing, len(ls))
	for i := range ls {
		out[i] = ls[i].Clone()
	}
	return out
}
