package service

import (
	"context"
	"errors"
	"io"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"classificados/internal/events"
	"classificados/internal/model"
	"classificados/internal/query"
	"classificados/internal/storage"
)

// ListingService defines the use cases exposed to the HTTP layer.
type ListingService interface {
	// List returns active listings, newest first.
	List(ctx context.Context) []model.Listing

	// Search filters active listings by free text and category.
	Search(ctx context.Context, c query.Criteria) []model.Listing

	// Get returns an active listing by id.
	Get(ctx context.Context, id string) (model.Listing, error)

	// Create stores the uploads, creates the listing referencing them and commits.
	// Stored uploads are removed again if the listing cannot be created.
	Create(ctx context.Context, d Draft, uploads []Upload) (model.Listing, error)

	// MarkSold retires an active listing.
	MarkSold(ctx context.Context, id string) (model.Listing, error)

	// OpenAttachment streams a stored image by object key.
	OpenAttachment(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error)
}

// Metrics counts listing mutations by outcome.
type Metrics struct {
	mutations *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listing_mutations_total",
				Help: "Listing create and retire operations by result.",
			},
			[]string{"operation", "result"},
		),
	}
	if err := reg.Register(m.mutations); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) record(op string, err error) {
	if m == nil {
		return
	}
	result := "success"
	switch {
	case err == nil:
	case errors.Is(err, ErrValidation), errors.Is(err, ErrAttachment):
		result = "rejected"
	case errors.Is(err, ErrNotFound):
		result = "not_found"
	default:
		result = "error"
	}
	m.mutations.WithLabelValues(op, result).Inc()
}

type listingService struct {
	store       *ListingStore
	attachments *AttachmentService
	events      events.Publisher
	metrics     *Metrics
}

// NewListingService composes the store with the attachment adapter and an event publisher.
// A nil publisher drops events; nil metrics records nothing.
func NewListingService(store *ListingStore, attachments *AttachmentService, pub events.Publisher, metrics *Metrics) ListingService {
	if pub == nil {
		pub = events.Noop{}
	}
	return &listingService{store: store, attachments: attachments, events: pub, metrics: metrics}
}

func (s *listingService) List(ctx context.Context) []model.Listing {
	s.refresh(ctx)
	return query.ListActive(s.store.Snapshot())
}

func (s *listingService) Search(ctx context.Context, c query.Criteria) []model.Listing {
	s.refresh(ctx)
	return query.Search(s.store.Snapshot(), c)
}

func (s *listingService) Get(ctx context.Context, id string) (model.Listing, error) {
	s.refresh(ctx)
	return s.store.Get(id)
}

// refresh picks up writes from other processes. On failure the last loaded
// collection is served.
func (s *listingService) refresh(ctx context.Context) {
	if err := s.store.Refresh(ctx); err != nil {
		log.Warn().Err(err).Str("component", "store").Msg("refresh failed, serving cached listings")
	}
}

func (s *listingService) Create(ctx context.Context, d Draft, uploads []Upload) (l model.Listing, err error) {
	defer func() { s.metrics.record("create", err) }()

	if len(uploads) > 0 {
		if err := s.attachments.Validate(uploads); err != nil {
			return model.Listing{}, err
		}
	}

	// Reject a bad draft before any attachment is written.
	if err := ValidateDraft(d, len(uploads)); err != nil {
		return model.Listing{}, err
	}

	var stored []string
	if len(uploads) > 0 {
		stored, err = s.attachments.Store(ctx, uploads)
		if err != nil {
			return model.Listing{}, err
		}
	}

	d.Images = append(slices.Clone(d.Images), stored...)
	l, err = s.store.Create(ctx, d)
	if err != nil {
		s.attachments.Discard(context.WithoutCancel(ctx), stored)
		return model.Listing{}, err
	}

	s.publish(ctx, events.SubjectListingCreated, l)
	return l, nil
}

func (s *listingService) MarkSold(ctx context.Context, id string) (l model.Listing, err error) {
	defer func() { s.metrics.record("retire", err) }()

	l, err = s.store.Retire(ctx, id)
	if err != nil {
		return model.Listing{}, err
	}
	s.publish(ctx, events.SubjectListingSold, events.ListingSold{ID: l.ID, SoldAt: *l.SoldAt})
	return l, nil
}

func (s *listingService) OpenAttachment(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	if !ValidKey(key) {
		return nil, storage.ObjectInfo{}, ErrNotFound
	}
	rc, info, err := s.attachments.Open(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, storage.ObjectInfo{}, ErrNotFound
		}
		return nil, storage.ObjectInfo{}, &StorageError{Op: "open attachment", Err: err}
	}
	return rc, info, nil
}

// publish runs after the commit, so a delivery failure is logged and not returned.
func (s *listingService) publish(ctx context.Context, subject string, payload any) {
	if err := s.events.Publish(ctx, subject, payload); err != nil {
		log.Warn().Err(err).Str("component", "events").Str("subject", subject).Msg("event publish failed")
	}
}
