package repository

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classificados/internal/model"
	"classificados/internal/repository/repotest"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	listings := repotest.Listings()

	data, err := EncodeListings(listings)
	require.NoError(t, err)

	got, err := DecodeListings(data)
	require.NoError(t, err)
	repotest.AssertListingsEqual(t, listings, got)
}

func TestDecodeListings_Defaults(t *testing.T) {
	data := []byte(`[{"id":"a","title":"Mesa","description":"Madeira","price":"10","seller":"Ana","created_at":"2024-01-01T00:00:00Z"}]`)

	got, err := DecodeListings(data)
	require.NoError(t, err)
	require.Len(t, got, 1)

	l := got[0]
	assert.Equal(t, model.DefaultCategory, l.Category)
	assert.Equal(t, model.DefaultCondition, l.Condition)
	assert.Equal(t, "", l.Contact)
	assert.NotNil(t, l.Images)
	assert.Empty(t, l.Images)
	assert.True(t, l.Active)
	assert.Nil(t, l.SoldAt)
}

func TestDecodeListings_NumericPrice(t *testing.T) {
	got, err := DecodeListings([]byte(`[{"id":"a","price":99.9,"active":false,"sold_at":"2024-02-01T00:00:00Z"}]`))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Price.Equal(decimal.RequireFromString("99.9")))
	assert.False(t, got[0].Active)
	require.NotNil(t, got[0].SoldAt)
	assert.True(t, got[0].SoldAt.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))
}

func TestDecodeListings_ReconcilesSoldState(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	got, err := DecodeListings([]byte(`[
		{"id":"sold-flag-missing","price":"1","active":true,"sold_at":"2024-02-01T00:00:00Z"},
		{"id":"no-sold-at","price":"1","active":false},
		{"id":"consistent","price":"1","active":false,"sold_at":"2024-02-01T00:00:00Z"}
	]`))
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.False(t, got[0].Active, "sold_at marks the listing retired")
	require.NotNil(t, got[0].SoldAt)

	assert.False(t, got[1].Active)
	assert.Nil(t, got[1].SoldAt)

	assert.False(t, got[2].Active)

	logs := buf.String()
	assert.Contains(t, logs, `"listing_id":"sold-flag-missing"`)
	assert.Contains(t, logs, `"listing_id":"no-sold-at"`)
	assert.NotContains(t, logs, `"listing_id":"consistent"`)
}

func TestDecodeListings_Empty(t *testing.T) {
	for _, in := range []string{"", "  \n", "null", "[]"} {
		got, err := DecodeListings([]byte(in))
		require.NoError(t, err, "input %q", in)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	}
}

func TestDecodeListings_Malformed(t *testing.T) {
	_, err := DecodeListings([]byte(`{"not":"an array"`))
	assert.Error(t, err)
}

func TestEncodeListings_InactiveKeepsFlag(t *testing.T) {
	data, err := EncodeListings([]model.Listing{{ID: "a", Active: false}})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"active": false`)
}
