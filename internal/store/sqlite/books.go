package sqlite

import (
	"context"
	"database/sql"

	"github.com/listenupapp/library-server/internal/domain"
	"github.com/listenupapp/library-server/internal/store"
)

const bookColumns = `id, created_at, updated_at, title, description, genre, year, author_id, loan_status`

func scanBook(sc scanner) (*domain.Book, error) {
	var (
		b                    domain.Book
		createdAt, updatedAt string
		status               sql.NullString
	)
	err := sc.Scan(&b.ID, &createdAt, &updatedAt, &b.Title, &b.Description, &b.Genre, &b.Year, &b.AuthorID, &status)
	if err != nil {
		return nil, err
	}

	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if status.Valid {
		st, err := domain.ParseLoanStatus(status.String)
		if err != nil {
			return nil, err
		}
		b.Status = &st
	}
	return &b, nil
}

func nullStatus(s *domain.LoanStatus) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*s), Valid: true}
}

// CreateBook inserts a book. Returns store.ErrAlreadyExists for a duplicate title
// and store.ErrAuthorNotFound when the author does not exist.
func (s *Store) CreateBook(ctx context.Context, b *domain.Book) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO books (id, created_at, updated_at, title, description, genre, year, author_id, loan_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, formatTime(b.CreatedAt), formatTime(b.UpdatedAt),
		b.Title, b.Description, b.Genre, b.Year, b.AuthorID, nullStatus(b.Status))
	switch {
	case isUniqueViolation(err):
		return store.ErrAlreadyExists
	case isForeignKeyViolation(err):
		return store.ErrAuthorNotFound
	}
	return err
}

// GetBook returns store.ErrBookNotFound if no book has id.
func (s *Store) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	b, err := scanBook(s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = ?`, id))
	if isNoRows(err) {
		return nil, store.ErrBookNotFound
	}
	return b, err
}

// GetBookByTitle looks a book up by exact title.
func (s *Store) GetBookByTitle(ctx context.Context, title string) (*domain.Book, error) {
	b, err := scanBook(s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE title = ?`, title))
	if isNoRows(err) {
		return nil, store.ErrBookNotFound
	}
	return b, err
}

// BookExists reports whether a book with id exists.
func (s *Store) BookExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM books WHERE id = ?)`, id).Scan(&exists)
	return exists, err
}

// UpdateBook writes the descriptive fields. loan_status is owned by SetBookStatus.
func (s *Store) UpdateBook(ctx context.Context, b *domain.Book) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE books SET updated_at = ?, title = ?, description = ?, genre = ?, year = ?, author_id = ?
		WHERE id = ?`,
		formatTime(b.UpdatedAt), b.Title, b.Description, b.Genre, b.Year, b.AuthorID, b.ID)
	switch {
	case isUniqueViolation(err):
		return store.ErrAlreadyExists
	case isForeignKeyViolation(err):
		return store.ErrAuthorNotFound
	case err != nil:
		return err
	}
	if ok, err := rowsAffected(res); err != nil {
		return err
	} else if !ok {
		return store.ErrBookNotFound
	}
	return nil
}

// DeleteBook removes a book. Loans that referenced it are left in the ledger.
func (s *Store) DeleteBook(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if ok, err := rowsAffected(res); err != nil {
		return err
	} else if !ok {
		return store.ErrBookNotFound
	}
	return nil
}

// ListBooks returns all books ordered by title.
func (s *Store) ListBooks(ctx context.Context) ([]*domain.Book, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+bookColumns+` FROM books ORDER BY title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// SetBookStatus writes the loan status mirror; nil clears it.
func (s *Store) SetBookStatus(ctx context.Context, bookID string, status *domain.LoanStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE books SET loan_status = ? WHERE id = ?`, nullStatus(status), bookID)
	if err != nil {
		return err
	}
	if ok, err := rowsAffected(res); err != nil {
		return err
	} else if !ok {
		return store.ErrBookNotFound
	}
	return nil
}
