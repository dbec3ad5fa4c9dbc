package sqlite

import (
	"context"

	"github.com/listenupapp/library-server/internal/domain"
	"github.com/listenupapp/library-server/internal/store"
)

const authorColumns = `id, created_at, updated_at, first_name, last_name, age`

func scanAuthor(sc scanner) (*domain.Author, error) {
	var (
		a                    domain.Author
		createdAt, updatedAt string
	)
	if err := sc.Scan(&a.ID, &createdAt, &updatedAt, &a.FirstName, &a.LastName, &a.Age); err != nil {
		return nil, err
	}

	var err error
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAuthor inserts an author. Returns store.ErrAlreadyExists for a duplicate name pair.
func (s *Store) CreateAuthor(ctx context.Context, a *domain.Author) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO authors (id, created_at, updated_at, first_name, last_name, age)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, formatTime(a.CreatedAt), formatTime(a.UpdatedAt), a.FirstName, a.LastName, a.Age)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

// GetAuthor returns store.ErrAuthorNotFound if no author has id.
func (s *Store) GetAuthor(ctx context.Context, id string) (*domain.Author, error) {
	a, err := scanAuthor(s.db.QueryRowContext(ctx,
		`SELECT `+authorColumns+` FROM authors WHERE id = ?`, id))
	if isNoRows(err) {
		return nil, store.ErrAuthorNotFound
	}
	return a, err
}

// GetAuthorByName looks an author up by exact first and last name.
func (s *Store) GetAuthorByName(ctx context.Context, firstName, lastName string) (*domain.Author, error) {
	a, err := scanAuthor(s.db.QueryRowContext(ctx,
		`SELECT `+authorColumns+` FROM authors WHERE first_name = ? AND last_name = ?`, firstName, lastName))
	if isNoRows(err) {
		return nil, store.ErrAuthorNotFound
	}
	return a, err
}

// UpdateAuthor overwrites the author's names and age.
func (s *Store) UpdateAuthor(ctx context.Context, a *domain.Author) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE authors SET updated_at = ?, first_name = ?, last_name = ?, age = ? WHERE id = ?`,
		formatTime(a.UpdatedAt), a.FirstName, a.LastName, a.Age, a.ID)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	if err != nil {
		return err
	}
	if ok, err := rowsAffected(res); err != nil {
		return err
	} else if !ok {
		return store.ErrAuthorNotFound
	}
	return nil
}

// DeleteAuthor removes an author. Returns store.ErrReferenced while books still point at it.
func (s *Store) DeleteAuthor(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM authors WHERE id = ?`, id)
	if isForeignKeyViolation(err) {
		return store.ErrReferenced
	}
	if err != nil {
		return err
	}
	if ok, err := rowsAffected(res); err != nil {
		return err
	} else if !ok {
		return store.ErrAuthorNotFound
	}
	return nil
}

// ListAuthors returns all authors ordered by last then first name.
func (s *Store) ListAuthors(ctx context.Context) ([]*domain.Author, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+authorColumns+` FROM authors ORDER BY last_name, first_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Author
	for rows.Next() {
		a, err := scanAuthor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
