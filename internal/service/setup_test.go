package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/listenupapp/library-server/internal/clock"
	"github.com/listenupapp/library-server/internal/domain"
	"github.com/listenupapp/library-server/internal/events"
	"github.com/listenupapp/library-server/internal/lock"
	"github.com/listenupapp/library-server/internal/logger"
	"github.com/listenupapp/library-server/internal/search"
	"github.com/listenupapp/library-server/internal/store"
	"github.com/listenupapp/library-server/internal/store/kv"
	"github.com/listenupapp/library-server/internal/store/sqlite"
	"github.com/listenupapp/library-server/internal/validation"
)

var testEpoch = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

// flakyCatalog fails the next N SetBookStatus calls.
type flakyCatalog struct {
	store.CatalogStore
	failStatus atomic.Int32
}

var errDiskFull = errors.New("disk full")

func (f *flakyCatalog) SetBookStatus(ctx context.Context, bookID string, status *domain.LoanStatus) error {
	if f.failStatus.Load() > 0 {
		f.failStatus.Add(-1)
		return errDiskFull
	}
	return f.CatalogStore.SetBookStatus(ctx, bookID, status)
}

// noLock hands out the lease without excluding anyone.
type noLock struct{}

func (noLock) Lock(context.Context, string) (func(), error) { return func() {}, nil }

type fixture struct {
	store   *sqlite.Store
	ledger  store.LoanLedger
	catalog *flakyCatalog
	clock   *clock.Manual
	events  *events.Recorder
	index   *search.Index
	locker  lock.Locker

	lending  *LendingService
	query    *LoanQueryService
	catalogs *CatalogService

	member *domain.User
	admin  *domain.User
	author *domain.Author
	book   *domain.Book
	other  *domain.Book
}

type fixtureOption func(*fixture, *lock.Locker)

func withoutLease() fixtureOption {
	return func(_ *fixture, l *lock.Locker) { *l = noLock{} }
}

func newFixture(t *testing.T, backend string, opts ...fixtureOption) *fixture {
	t.Helper()
	log := logger.Discard()

	s, err := sqlite.Open(filepath.Join(t.TempDir(), "library.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	var ledger store.LoanLedger = s
	if backend == "badger" {
		l, err := kv.OpenInMemory(log)
		require.NoError(t, err)
		t.Cleanup(func() { l.Close() })
		ledger = l
	}

	idx, err := search.NewInMemory(log)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	f := &fixture{
		store:   s,
		ledger:  ledger,
		catalog: &flakyCatalog{CatalogStore: s},
		clock:   clock.NewManual(testEpoch),
		events:  &events.Recorder{},
		index:   idx,
	}

	var locker lock.Locker = lock.NewKeyedMutex()
	for _, o := range opts {
		o(f, &locker)
	}

	f.locker = locker
	f.lending = NewLendingService(s, f.catalog, ledger, locker, f.events, f.clock, log)
	f.query = NewLoanQueryService(s, f.catalog, ledger, log)
	f.catalogs = NewCatalogService(f.catalog, ledger, locker, idx, validation.New(), f.clock, log)

	f.admin = f.addUser(t, "admin@example.com", domain.RoleAdmin)
	f.member = f.addUser(t, "reader@example.com", domain.RoleMember)
	f.author = f.addAuthor(t, "Ursula", "Le Guin")
	f.book = f.addBook(t, "Earthsea")
	f.other = f.addBook(t, "The Dispossessed")
	return f
}

// forEachLedger runs fn against both ledger backends.
func forEachLedger(t *testing.T, fn func(t *testing.T, f *fixture), opts ...fixtureOption) {
	for _, backend := range []string{"sqlite", "badger"} {
		t.Run(backend, func(t *testing.T) {
			fn(t, newFixture(t, backend, opts...))
		})
	}
}

func (f *fixture) addUser(t *testing.T, email string, role domain.Role) *domain.User {
	t.Helper()
	u := &domain.User{
		Record:       domain.Record{ID: "user-" + email},
		Email:        email,
		PasswordHash: "$argon2id$unused",
		Role:         role,
	}
	u.Stamp(f.clock.Now())
	require.NoError(t, f.store.CreateUser(context.Background(), u))
	return u
}

func (f *fixture) addAuthor(t *testing.T, first, last string) *domain.Author {
	t.Helper()
	a := &domain.Author{
		Record:    domain.Record{ID: fmt.Sprintf("author-%s-%s", first, last)},
		FirstName: first,
		LastName:  last,
		Age:       60,
	}
	a.Stamp(f.clock.Now())
	require.NoError(t, f.store.CreateAuthor(context.Background(), a))
	return a
}

func (f *fixture) addBook(t *testing.T, title string) *domain.Book {
	t.Helper()
	b := &domain.Book{
		Record:      domain.Record{ID: "book-" + title},
		Title:       title,
		Description: "A novel",
		Genre:       "Fantasy",
		Year:        1968,
		AuthorID:    f.author.ID,
	}
	b.Stamp(f.clock.Now())
	require.NoError(t, f.store.CreateBook(context.Background(), b))
	return b
}

func (f *fixture) mirror(t *testing.T, bookID string) *domain.LoanStatus {
	t.Helper()
	b, err := f.store.GetBook(context.Background(), bookID)
	require.NoError(t, err)
	return b.Status
}
