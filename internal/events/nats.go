package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes JSON payloads on core NATS subjects.
type NATSPublisher struct {
	conn *nats.Conn
}

var _ Publisher = (*NATSPublisher)(nil)

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("classificados"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", subject, err)
	}
	return p.conn.Publish(subject, data)
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	_ = p.conn.Drain()
}
