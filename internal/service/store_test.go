package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"classificados/internal/model"
	"classificados/internal/repository/file"
	repoMocks "classificados/internal/repository/mocks"
	"classificados/internal/repository/repotest"
)

// memRepo keeps the last committed collection in memory. When saveErr is set,
// Save fails without changing it.
type memRepo struct {
	mu      sync.Mutex
	saved   []model.Listing
	saves   int
	saveErr error
}

func (r *memRepo) Load(ctx context.Context) ([]model.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return model.CloneAll(r.saved), nil
}

func (r *memRepo) Save(ctx context.Context, listings []model.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saved = model.CloneAll(listings)
	r.saves++
	return nil
}

func validDraft() Draft {
	return Draft{
		Title:       "  Bicicleta aro 29 ",
		Description: "Pouco uso",
		Price:       "1250.90",
		Seller:      " Ana ",
	}
}

func fixedClock(times ...time.Time) func() time.Time {
	var mu sync.Mutex
	i := 0
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := times[i]
		if i < len(times)-1 {
			i++
		}
		return t
	}
}

func TestListingStore_Create(t *testing.T) {
	ctx := context.Background()
	repo := &memRepo{}
	s := NewListingStore(repo)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = fixedClock(now)
	s.newID = func() string { return "id-1" }

	l, err := s.Create(ctx, validDraft())
	require.NoError(t, err)

	assert.Equal(t, "id-1", l.ID)
	assert.Equal(t, "Bicicleta aro 29", l.Title)
	assert.Equal(t, "Ana", l.Seller)
	assert.True(t, l.Price.Equal(decimal.RequireFromString("1250.9")))
	assert.Equal(t, model.DefaultCategory, l.Category)
	assert.Equal(t, model.DefaultCondition, l.Condition)
	assert.Equal(t, "", l.Contact)
	assert.Empty(t, l.Images)
	assert.True(t, l.Active)
	assert.Nil(t, l.SoldAt)
	assert.True(t, l.CreatedAt.Equal(now))

	// read-your-writes
	got, err := s.Get("id-1")
	require.NoError(t, err)
	assert.Equal(t, l.Title, got.Title)

	// durable equals in-memory
	assert.Equal(t, 1, repo.saves)
	repotest.AssertListingsEqual(t, s.Snapshot(), repo.saved)
}

func TestListingStore_CreateKeepsProvidedFields(t *testing.T) {
	s := NewListingStore(&memRepo{})
	d := validDraft()
	d.Category = "esportes"
	d.Condition = "novo"
	d.Contact = "ana@example.com"
	d.Images = []string{"/uploads/1-1.jpg", "/uploads/1-2.png"}

	l, err := s.Create(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, "esportes", l.Category)
	assert.Equal(t, "novo", l.Condition)
	assert.Equal(t, "ana@example.com", l.Contact)
	assert.Equal(t, []string{"/uploads/1-1.jpg", "/uploads/1-2.png"}, l.Images)

	// the caller's slice is not retained
	d.Images[0] = "/uploads/1-9.jpg"
	got, err := s.Get(l.ID)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/1-1.jpg", got.Images[0])
}

func TestListingStore_CreateValidation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(d *Draft)
		wantField string
	}{
		{name: "missing title", mutate: func(d *Draft) { d.Title = "" }, wantField: "title"},
		{name: "blank description", mutate: func(d *Draft) { d.Description = "   " }, wantField: "description"},
		{name: "missing seller", mutate: func(d *Draft) { d.Seller = "" }, wantField: "seller"},
		{name: "missing price", mutate: func(d *Draft) { d.Price = " " }, wantField: "price"},
		{name: "non-numeric price", mutate: func(d *Draft) { d.Price = "abc" }, wantField: "price"},
		{name: "negative price", mutate: func(d *Draft) { d.Price = "-0.01" }, wantField: "price"},
		{name: "too many images", mutate: func(d *Draft) { d.Images = make([]string, 6) }, wantField: "images"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(repoMocks.MockListingRepository)
			s := NewListingStore(repo)
			d := validDraft()
			tt.mutate(&d)

			_, err := s.Create(context.Background(), d)

			assert.ErrorIs(t, err, ErrValidation)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.wantField, vErr.Field)
			assert.Empty(t, s.Snapshot())
			repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		})
	}
}

func TestListingStore_CreateZeroPriceAndFiveImages(t *testing.T) {
	s := NewListingStore(&memRepo{})
	d := validDraft()
	d.Price = "0"
	d.Images = []string{"/uploads/1-1.jpg", "/uploads/1-2.jpg", "/uploads/1-3.png", "/uploads/1-4.webp", "/uploads/1-5.jpeg"}

	l, err := s.Create(context.Background(), d)
	require.NoError(t, err)
	assert.True(t, l.Price.IsZero())
	assert.Len(t, l.Images, 5)
}

func TestListingStore_CreateStorageFailure(t *testing.T) {
	ctx := context.Background()
	repo := new(repoMocks.MockListingRepository)
	cause := errors.New("disk full")
	repo.On("Load", mock.Anything).Return([]model.Listing{}, nil).Once()
	repo.On("Save", mock.Anything, mock.Anything).Return(cause).Once()
	s := NewListingStore(repo)

	_, err := s.Create(ctx, validDraft())

	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, cause)
	assert.Empty(t, s.Snapshot())
	repo.AssertExpectations(t)
}

func TestListingStore_CreatedAtNeverDecreases(t *testing.T) {
	s := NewListingStore(&memRepo{})
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = fixedClock(t0, t0.Add(-time.Hour), t0.Add(time.Minute))

	first, err := s.Create(context.Background(), validDraft())
	require.NoError(t, err)
	second, err := s.Create(context.Background(), validDraft())
	require.NoError(t, err)
	third, err := s.Create(context.Background(), validDraft())
	require.NoError(t, err)

	assert.True(t, second.CreatedAt.Equal(first.CreatedAt))
	assert.True(t, third.CreatedAt.After(second.CreatedAt))
}

func TestListingStore_Retire(t *testing.T) {
	ctx := context.Background()
	s := NewListingStore(&memRepo{})
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	soldAt := created.Add(time.Hour)
	s.now = fixedClock(created, soldAt)

	l, err := s.Create(ctx, validDraft())
	require.NoError(t, err)

	retired, err := s.Retire(ctx, l.ID)
	require.NoError(t, err)
	assert.False(t, retired.Active)
	require.NotNil(t, retired.SoldAt)
	assert.True(t, retired.SoldAt.Equal(soldAt))
	assert.True(t, retired.CreatedAt.Equal(l.CreatedAt))
	assert.Equal(t, l.ID, retired.ID)

	_, err = s.Get(l.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.False(t, snap[0].Active)
	assert.NotNil(t, snap[0].SoldAt)

	_, err = s.Retire(ctx, l.ID)
	assert.ErrorIs(t, err, ErrNotFound, "retiring twice is not found")

	_, err = s.Retire(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListingStore_RetireStorageFailure(t *testing.T) {
	ctx := context.Background()
	repo := &memRepo{}
	s := NewListingStore(repo)

	l, err := s.Create(ctx, validDraft())
	require.NoError(t, err)

	repo.saveErr = errors.New("io error")
	_, err = s.Retire(ctx, l.ID)
	assert.ErrorIs(t, err, ErrStorage)

	got, err := s.Get(l.ID)
	require.NoError(t, err, "listing stays active after a failed commit")
	assert.True(t, got.Active)
	assert.True(t, repo.saved[0].Active)
}

func TestListingStore_LoadFailureAbortsMutation(t *testing.T) {
	ctx := context.Background()
	repo := new(repoMocks.MockListingRepository)
	repo.On("Load", mock.Anything).Return(nil, errors.New("connection refused"))
	s := NewListingStore(repo)

	_, err := s.Create(ctx, validDraft())
	assert.ErrorIs(t, err, ErrStorage)

	_, err = s.Retire(ctx, "id-1")
	assert.ErrorIs(t, err, ErrStorage)

	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestListingStore_CommitIgnoresCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	live := mock.MatchedBy(func(c context.Context) bool { return c.Err() == nil })
	repo := new(repoMocks.MockListingRepository)
	repo.On("Load", live).Return([]model.Listing{}, nil).Once()
	repo.On("Save", live, mock.Anything).Return(nil).Once()
	s := NewListingStore(repo)

	l, err := s.Create(ctx, validDraft())
	require.NoError(t, err)
	_, err = s.Get(l.ID)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestListingStore_SharedMedium(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "listings.json")

	a := NewListingStore(file.NewListingFile(path))
	b := NewListingStore(file.NewListingFile(path))
	require.NoError(t, a.Open(ctx))
	require.NoError(t, b.Open(ctx))

	fromA, err := a.Create(ctx, validDraft())
	require.NoError(t, err)
	fromB, err := b.Create(ctx, validDraft())
	require.NoError(t, err)

	// b retires a listing it has never seen in memory.
	_, err = b.Retire(ctx, fromA.ID)
	require.NoError(t, err)

	_, err = a.Retire(ctx, fromA.ID)
	assert.ErrorIs(t, err, ErrNotFound, "already retired through b")

	fresh := NewListingStore(file.NewListingFile(path))
	require.NoError(t, fresh.Open(ctx))
	snap := fresh.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, fromA.ID, snap[0].ID)
	assert.False(t, snap[0].Active)
	assert.Equal(t, fromB.ID, snap[1].ID)
	assert.True(t, snap[1].Active)

	require.NoError(t, a.Refresh(ctx))
	_, err = a.Get(fromB.ID)
	assert.NoError(t, err, "refresh exposes writes made through b")
}

func TestListingStore_CreateRejectsForeignImagePaths(t *testing.T) {
	for _, p := range []string{
		"https://evil.example/x.exe",
		"/uploads/../../etc/passwd",
		"",
		"/uploads/listings.json",
		"1700000000000-42.jpg",
	} {
		t.Run(p, func(t *testing.T) {
			repo := new(repoMocks.MockListingRepository)
			s := NewListingStore(repo)
			d := validDraft()
			d.Images = []string{"/uploads/1-1.jpg", p}

			_, err := s.Create(context.Background(), d)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, "images", vErr.Field)
			repo.AssertNotCalled(t, "Load", mock.Anything)
			repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		})
	}
}

func TestListingStore_SnapshotIsDeepCopy(t *testing.T) {
	s := NewListingStore(&memRepo{})
	d := validDraft()
	d.Images = []string{"/uploads/1-1.jpg"}
	l, err := s.Create(context.Background(), d)
	require.NoError(t, err)

	snap := s.Snapshot()
	snap[0].Title = "changed"
	snap[0].Images[0] = "changed"

	got, err := s.Get(l.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bicicleta aro 29", got.Title)
	assert.Equal(t, "/uploads/1-1.jpg", got.Images[0])
}

func TestListingStore_Open(t *testing.T) {
	ctx := context.Background()

	t.Run("loads collection", func(t *testing.T) {
		repo := new(repoMocks.MockListingRepository)
		repo.On("Load", ctx).Return(repotest.Listings(), nil).Once()
		s := NewListingStore(repo)

		require.NoError(t, s.Open(ctx))
		repotest.AssertListingsEqual(t, repotest.Listings(), s.Snapshot())
		repo.AssertExpectations(t)
	})

	t.Run("load failure", func(t *testing.T) {
		repo := new(repoMocks.MockListingRepository)
		repo.On("Load", ctx).Return(nil, errors.New("connection refused")).Once()
		s := NewListingStore(repo)

		assert.ErrorIs(t, s.Open(ctx), ErrStorage)
	})
}

func TestListingStore_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "listings.json")

	s := NewListingStore(file.NewListingFile(path))
	require.NoError(t, s.Open(ctx))
	a, err := s.Create(ctx, validDraft())
	require.NoError(t, err)
	_, err = s.Create(ctx, validDraft())
	require.NoError(t, err)
	_, err = s.Retire(ctx, a.ID)
	require.NoError(t, err)

	restarted := NewListingStore(file.NewListingFile(path))
	require.NoError(t, restarted.Open(ctx))
	repotest.AssertListingsEqual(t, s.Snapshot(), restarted.Snapshot())
}

func TestListingStore_ConcurrentMutations(t *testing.T) {
	ctx := context.Background()
	repo := &memRepo{}
	s := NewListingStore(repo)

	const writers = 50
	var wg sync.WaitGroup
	ids := make(chan string, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d := validDraft()
			d.Title = fmt.Sprintf("item %d", i)
			l, err := s.Create(ctx, d)
			if assert.NoError(t, err) {
				ids <- l.ID
			}
		}(i)
	}

	// concurrent readers only ever observe whole listings
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, l := range s.Snapshot() {
				assert.NotEmpty(t, l.ID)
				assert.True(t, l.Active)
			}
		}()
	}

	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}

	snap := s.Snapshot()
	assert.Len(t, snap, writers)
	assert.Equal(t, writers, repo.saves)
	for i := 1; i < len(snap); i++ {
		assert.False(t, snap[i].CreatedAt.Before(snap[i-1].CreatedAt), "created_at decreased at %d", i)
	}
	repotest.AssertListingsEqual(t, snap, repo.saved)

	// retire half of them concurrently, each exactly once
	var retired sync.WaitGroup
	for _, l := range snap[:writers/2] {
		for j := 0; j < 2; j++ {
			retired.Add(1)
			go func(id string) {
				defer retired.Done()
				_, err := s.Retire(ctx, id)
				if err != nil {
					assert.ErrorIs(t, err, ErrNotFound)
				}
			}(l.ID)
		}
	}
	retired.Wait()

	inactive := 0
	for _, l := range s.Snapshot() {
		if !l.Active {
			inactive++
			assert.NotNil(t, l.SoldAt)
		}
	}
	assert.Equal(t, writers/2, inactive)
	assert.Equal(t, writers+writers/2, repo.saves)
}
