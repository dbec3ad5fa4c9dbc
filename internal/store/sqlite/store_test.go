package sqlite

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/listenupapp/library-server/internal/domain"
	"github.com/listenupapp/library-server/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedAuthor(t *testing.T, s *Store, id string) *domain.Author {
	t.Helper()
	now := time.Now()
	a := &domain.Author{Record: domain.Record{ID: id, CreatedAt: now, UpdatedAt: now}, FirstName: "Ursula", LastName: id, Age: 60}
	if err := s.CreateAuthor(context.Background(), a); err != nil {
		t.Fatalf("CreateAuthor: %v", err)
	}
	return a
}

func seedBook(t *testing.T, s *Store, id, authorID string) *domain.Book {
	t.Helper()
	now := time.Now()
	b := &domain.Book{
		Record:      domain.Record{ID: id, CreatedAt: now, UpdatedAt: now},
		Title:       "Title " + id,
		Description: "A book",
		Genre:       "Fantasy",
		Year:        1968,
		AuthorID:    authorID,
	}
	if err := s.CreateBook(context.Background(), b); err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	return b
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)

	var journalMode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode: got %q, want %q", journalMode, "wal")
	}

	var fk int
	if err := s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys: got %d, want 1", fk)
	}

	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestOpen_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	s, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	seedAuthor(t, s, "author-1")
	s.Close()

	s, err = Open(dbPath, logger)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer s.Close()

	if _, err := s.GetAuthor(context.Background(), "author-1"); err != nil {
		t.Errorf("author lost across reopen: %v", err)
	}
}

func TestUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	u := &domain.User{Record: domain.Record{ID: "user-1", CreatedAt: now, UpdatedAt: now}, Email: "Alice@Example.com", PasswordHash: "hash", Role: domain.RoleAdmin}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	dup := *u
	dup.ID = "user-2"
	dup.Email = "alice@example.COM"
	if err := s.CreateUser(ctx, &dup); !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("duplicate email: got %v, want ErrAlreadyExists", err)
	}

	got, err := s.GetUserByEmail(ctx, "ALICE@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got.ID != "user-1" || got.Role != domain.RoleAdmin || got.PasswordHash != "hash" {
		t.Errorf("unexpected user: %+v", got)
	}
	if !got.CreatedAt.Equal(now.UTC()) {
		t.Errorf("CreatedAt: got %v, want %v", got.CreatedAt, now.UTC())
	}

	ok, err := s.UserExists(ctx, "user-1")
	if err != nil || !ok {
		t.Errorf("UserExists(user-1) = %v, %v", ok, err)
	}
	ok, err = s.UserExists(ctx, "user-404")
	if err != nil || ok {
		t.Errorf("UserExists(user-404) = %v, %v", ok, err)
	}

	if _, err := s.GetUser(ctx, "user-404"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetUser missing: got %v, want ErrNotFound", err)
	}

	got.Email = "alice@new.example"
	if err := s.UpdateUser(ctx, got); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if _, err := s.GetUserByEmail(ctx, "alice@new.example"); err != nil {
		t.Errorf("lookup by new email: %v", err)
	}

	n, err := s.CountUsers(ctx)
	if err != nil || n != 1 {
		t.Errorf("CountUsers = %d, %v", n, err)
	}
}

func TestAuthors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := seedAuthor(t, s, "author-1")

	dup := *a
	dup.ID = "author-2"
	if err := s.CreateAuthor(ctx, &dup); !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("duplicate name: got %v, want ErrAlreadyExists", err)
	}

	got, err := s.GetAuthorByName(ctx, "Ursula", "author-1")
	if err != nil {
		t.Fatalf("GetAuthorByName: %v", err)
	}
	if got.ID != a.ID {
		t.Errorf("ID: got %q, want %q", got.ID, a.ID)
	}

	got.Age = 61
	if err := s.UpdateAuthor(ctx, got); err != nil {
		t.Fatalf("UpdateAuthor: %v", err)
	}

	seedBook(t, s, "book-1", a.ID)
	if err := s.DeleteAuthor(ctx, a.ID); !errors.Is(err, store.ErrReferenced) {
		t.Errorf("delete referenced author: got %v, want ErrReferenced", err)
	}

	if err := s.DeleteBook(ctx, "book-1"); err != nil {
		t.Fatalf("DeleteBook: %v", err)
	}
	if err := s.DeleteAuthor(ctx, a.ID); err != nil {
		t.Fatalf("DeleteAuthor: %v", err)
	}
	if err := s.DeleteAuthor(ctx, a.ID); !errors.Is(err, store.ErrAuthorNotFound) {
		t.Errorf("second delete: got %v, want ErrAuthorNotFound", err)
	}
}

func TestBooks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedAuthor(t, s, "author-1")
	b := seedBook(t, s, "book-1", "author-1")

	dup := *b
	dup.ID = "book-2"
	if err := s.CreateBook(ctx, &dup); !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("duplicate title: got %v, want ErrAlreadyExists", err)
	}

	orphan := *b
	orphan.ID = "book-3"
	orphan.Title = "Orphan"
	orphan.AuthorID = "author-404"
	if err := s.CreateBook(ctx, &orphan); !errors.Is(err, store.ErrAuthorNotFound) {
		t.Errorf("unknown author: got %v, want ErrAuthorNotFound", err)
	}

	got, err := s.GetBook(ctx, "book-1")
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}
	if got.Status != nil {
		t.Errorf("new book status: got %v, want nil", *got.Status)
	}

	if err := s.SetBookStatus(ctx, "book-1", domain.LoanActive.Ptr()); err != nil {
		t.Fatalf("SetBookStatus: %v", err)
	}

	// UpdateBook must not touch the mirror.
	got.Title = "Renamed"
	if err := s.UpdateBook(ctx, got); err != nil {
		t.Fatalf("UpdateBook: %v", err)
	}
	got, err = s.GetBookByTitle(ctx, "Renamed")
	if err != nil {
		t.Fatalf("GetBookByTitle: %v", err)
	}
	if got.Status == nil || *got.Status != domain.LoanActive {
		t.Errorf("status after UpdateBook: got %v, want active", got.Status)
	}

	if err := s.SetBookStatus(ctx, "book-1", nil); err != nil {
		t.Fatalf("clear status: %v", err)
	}
	got, _ = s.GetBook(ctx, "book-1")
	if got.Status != nil {
		t.Errorf("cleared status: got %v, want nil", *got.Status)
	}

	if err := s.SetBookStatus(ctx, "book-404", nil); !errors.Is(err, store.ErrBookNotFound) {
		t.Errorf("SetBookStatus missing: got %v, want ErrBookNotFound", err)
	}

	books, err := s.ListBooks(ctx)
	if err != nil || len(books) != 1 {
		t.Errorf("ListBooks = %d books, %v", len(books), err)
	}
}
