// Package events publishes listing lifecycle notifications after they are durable.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	SubjectListingCreated = "listing.created"
	SubjectListingSold    = "listing.sold"
)

// Publisher delivers a payload on a subject. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
	Close()
}

// ListingSold is the payload of SubjectListingSold.
type ListingSold struct {
	ID     string    `json:"id"`
	SoldAt time.Time `json:"sold_at"`
}

// Encode marshals a payload the way every publisher puts it on the wire.
func Encode(payload any) ([]byte, error) {
	return json.Marshal(payload)
}

// Noop drops every event after logging it at debug level.
type Noop struct{}

func (Noop) Publish(ctx context.Context, subject string, payload any) error {
	log.Debug().Str("component", "events").Str("subject", subject).Msg("event dropped, no broker configured")
	return nil
}

func (Noop) Close() {}
