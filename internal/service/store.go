package service

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"classificados/internal/model"
	"classificados/internal/repository"
)

// Draft is the unvalidated input for a new listing. Price is the raw text
// received from the client.
type Draft struct {
	Title       string
	Description string
	Price       string
	Category    string
	Seller      string
	Contact     string
	Condition   string
	Images      []string
}

// ListingStore owns the canonical listing collection.
//
// Mutations are serialized by writeMu. Each one reloads the durable collection,
// applies its change to that copy, commits it through the repository and only
// then publishes it, so processes sharing the medium do not overwrite each
// other. Readers copy the published slice under mu and never wait on a commit
// in progress.
type ListingStore struct {
	repo  repository.ListingRepository
	now   func() time.Time
	newID func() string

	writeMu  sync.Mutex
	mu       sync.RWMutex
	listings []model.Listing
}

func NewListingStore(repo repository.ListingRepository) *ListingStore {
	return &ListingStore{
		repo:     repo,
		now:      time.Now,
		newID:    uuid.NewString,
		listings: []model.Listing{},
	}
}

// Open replaces the in-memory collection with what the repository holds.
func (s *ListingStore) Open(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	loaded, err := s.load(ctx, "load")
	if err != nil {
		return err
	}
	s.publish(loaded)
	return nil
}

// Refresh reloads the collection so writes made by other processes sharing the
// medium become visible. It is a no-op while a mutation holds the write lock,
// since that mutation reloads and publishes on its own.
func (s *ListingStore) Refresh(ctx context.Context) error {
	if !s.writeMu.TryLock() {
		return nil
	}
	defer s.writeMu.Unlock()

	loaded, err := s.load(ctx, "refresh")
	if err != nil {
		return err
	}
	s.publish(loaded)
	return nil
}

// ValidateDraft checks d without touching the store. pending is the number of
// attachments that will be appended to d.Images once stored.
func ValidateDraft(d Draft, pending int) error {
	_, err := listingFromDraft(d, pending)
	return err
}

// Create validates d, appends the new listing to the durable collection and commits.
// On a failed commit the collection is left unchanged and a *StorageError is returned.
func (s *ListingStore) Create(ctx context.Context, d Draft) (model.Listing, error) {
	l, err := listingFromDraft(d, 0)
	if err != nil {
		return model.Listing{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	// Once started, a mutation runs to completion even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	cur, err := s.load(ctx, "create")
	if err != nil {
		return model.Listing{}, err
	}

	l.ID = s.newID()
	l.CreatedAt = s.now().UTC()
	if n := len(cur); n > 0 && l.CreatedAt.Before(cur[n-1].CreatedAt) {
		l.CreatedAt = cur[n-1].CreatedAt
	}
	l.Active = true

	next := make([]model.Listing, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, l)

	if err := s.repo.Save(ctx, next); err != nil {
		return model.Listing{}, &StorageError{Op: "create", Err: err}
	}
	s.publish(next)
	return l.Clone(), nil
}

// Retire marks an active listing as sold and commits.
// Unknown or already retired ids yield ErrNotFound.
func (s *ListingStore) Retire(ctx context.Context, id string) (model.Listing, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	ctx = context.WithoutCancel(ctx)

	cur, err := s.load(ctx, "retire")
	if err != nil {
		return model.Listing{}, err
	}
	idx := slices.IndexFunc(cur, func(l model.Listing) bool { return l.ID == id && l.Active })
	if idx < 0 {
		return model.Listing{}, ErrNotFound
	}

	soldAt := s.now().UTC()
	next := slices.Clone(cur)
	retired := next[idx].Clone()
	retired.Active = false
	retired.SoldAt = &soldAt
	next[idx] = retired

	if err := s.repo.Save(ctx, next); err != nil {
		return model.Listing{}, &StorageError{Op: "retire", Err: err}
	}
	s.publish(next)
	return retired.Clone(), nil
}

// Get returns an active listing by id.
func (s *ListingStore) Get(id string) (model.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.listings {
		if l.ID == id && l.Active {
			return l.Clone(), nil
		}
	}
	return model.Listing{}, ErrNotFound
}

// Snapshot returns a deep copy of the whole collection, retired listings included.
func (s *ListingStore) Snapshot() []model.Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.CloneAll(s.listings)
}

// load reads the durable collection. Callers hold writeMu.
func (s *ListingStore) load(ctx context.Context, op string) ([]model.Listing, error) {
	loaded, err := s.repo.Load(ctx)
	if err != nil {
		return nil, &StorageError{Op: op, Err: err}
	}
	if loaded == nil {
		loaded = []model.Listing{}
	}
	return loaded, nil
}

func (s *ListingStore) publish(next []model.Listing) {
	s.mu.Lock()
	s.listings = next
	s.mu.Unlock()
}

func listingFromDraft(d Draft, pending int) (model.Listing, error) {
	l := model.Listing{
		Title:       strings.TrimSpace(d.Title),
		Description: strings.TrimSpace(d.Description),
		Category:    strings.TrimSpace(d.Category),
		Seller:      strings.TrimSpace(d.Seller),
		Contact:     strings.TrimSpace(d.Contact),
		Condition:   strings.TrimSpace(d.Condition),
	}

	switch {
	case l.Title == "":
		return model.Listing{}, &ValidationError{Field: "title", Reason: "is required"}
	case l.Description == "":
		return model.Listing{}, &ValidationError{Field: "description", Reason: "is required"}
	case l.Seller == "":
		return model.Listing{}, &ValidationError{Field: "seller", Reason: "is required"}
	}

	raw := strings.TrimSpace(d.Price)
	if raw == "" {
		return model.Listing{}, &ValidationError{Field: "price", Reason: "is required"}
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return model.Listing{}, &ValidationError{Field: "price", Reason: "must be a number"}
	}
	if price.IsNegative() {
		return model.Listing{}, &ValidationError{Field: "price", Reason: "must not be negative"}
	}
	l.Price = price

	if len(d.Images)+pending > model.MaxImages {
		return model.Listing{}, &ValidationError{Field: "images", Reason: "must not exceed 5 entries"}
	}
	for _, p := range d.Images {
		if _, ok := KeyFromPath(p); !ok {
			return model.Listing{}, &ValidationError{Field: "images", Reason: "must reference stored attachments"}
		}
	}
	l.Images = make([]string, len(d.Images))
	copy(l.Images, d.Images)

	if l.Category == "" {
		l.Category = model.DefaultCategory
	}
	if l.Condition == "" {
		l.Condition = model.DefaultCondition
	}
	return l, nil
}
