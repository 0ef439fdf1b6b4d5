// Package repotest provides fixtures and comparisons shared by gateway tests.
package repotest

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"classificados/internal/model"
)

// Listings returns a small collection mixing active and retired listings,
// with whole-second timestamps so every backend can store them exactly.
func Listings() []model.Listing {
	created := time.Date(2024, 3, 10, 14, 30, 0, 0, time.UTC)
	sold := created.Add(48 * time.Hour)
	return []model.Listing{
		{
			ID:          "0b6f3a6e-8a36-4c1e-9a43-2b1a8f1b9c01",
			Title:       "Bicicleta aro 29",
			Description: "Pouco uso, revisada",
			Price:       decimal.RequireFromString("1250.90"),
			Category:    "esportes",
			Seller:      "Ana",
			Contact:     "ana@example.com",
			Condition:   "usado",
			Images:      []string{"/uploads/1710081000000-123.jpg", "/uploads/1710081000000-456.png"},
			CreatedAt:   created,
			Active:      true,
		},
		{
			ID:          "5d1f7f0c-34a2-4a8e-8f4b-61a3f7f0c202",
			Title:       "Geladeira",
			Description: "Frost free",
			Price:       decimal.Zero,
			Category:    "outros",
			Seller:      "Bruno",
			Contact:     "",
			Condition:   "novo",
			Images:      []string{},
			CreatedAt:   created.Add(time.Minute),
			Active:      false,
			SoldAt:      &sold,
		},
	}
}

// AssertListingsEqual compares listings field by field, using value equality
// for prices and instants rather than struct identity.
func AssertListingsEqual(t *testing.T, want, got []model.Listing) {
	t.Helper()
	if !assert.Len(t, got, len(want)) {
		return
	}
	for i := range want {
		w, g := want[i], got[i]
		assert.Equal(t, w.ID, g.ID)
		assert.Equal(t, w.Title, g.Title)
		assert.Equal(t, w.Description, g.Description)
		assert.True(t, w.Price.Equal(g.Price), "price of %s: want %s got %s", w.ID, w.Price, g.Price)
		assert.Equal(t, w.Category, g.Category)
		assert.Equal(t, w.Seller, g.Seller)
		assert.Equal(t, w.Contact, g.Contact)
		assert.Equal(t, w.Condition, g.Condition)
		assert.Equal(t, normalize(w.Images), normalize(g.Images))
		assert.True(t, w.CreatedAt.Equal(g.CreatedAt), "created_at of %s: want %s got %s", w.ID, w.CreatedAt, g.CreatedAt)
		assert.Equal(t, w.Active, g.Active)
		if w.SoldAt == nil {
			assert.Nil(t, g.SoldAt)
		} else if assert.NotNil(t, g.SoldAt) {
			assert.True(t, w.SoldAt.Equal(*g.SoldAt))
		}
	}
}

func normalize(images []string) []string {
	if images == nil {
		return []string{}
	}
	return images
}
