package sqlite

import (
	"context"

	"github.com/listenupapp/library-server/internal/domain"
	"github.com/listenupapp/library-server/internal/store"
)

// userColumns must match the scan order in scanUser.
const userColumns = `id, created_at, updated_at, email, password_hash, role`

func scanUser(sc scanner) (*domain.User, error) {
	var (
		u                    domain.User
		createdAt, updatedAt string
		role                 string
	)
	if err := sc.Scan(&u.ID, &createdAt, &updatedAt, &u.Email, &u.PasswordHash, &role); err != nil {
		return nil, err
	}

	var err error
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	return &u, nil
}

// CreateUser inserts a user. Returns store.ErrAlreadyExists if the email is taken.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, created_at, updated_at, email, email_lower, password_hash, role)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
		user.Email,
		domain.NormalizeEmail(user.Email),
		user.PasswordHash,
		string(user.Role),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

// GetUser returns store.ErrUserNotFound if no user has id.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if isNoRows(err) {
		return nil, store.ErrUserNotFound
	}
	return u, err
}

// GetUserByEmail matches case-insensitively.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email_lower = ?`, domain.NormalizeEmail(email)))
	if isNoRows(err) {
		return nil, store.ErrUserNotFound
	}
	return u, err
}

// UserExists reports whether a user with id exists.
func (s *Store) UserExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`, id).Scan(&exists)
	return exists, err
}

// UpdateUser overwrites email, password hash and role.
func (s *Store) UpdateUser(ctx context.Context, user *domain.User) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET updated_at = ?, email = ?, email_lower = ?, password_hash = ?, role = ?
		WHERE id = ?`,
		formatTime(user.UpdatedAt),
		user.Email,
		domain.NormalizeEmail(user.Email),
		user.PasswordHash,
		string(user.Role),
		user.ID,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	if err != nil {
		return err
	}
	if ok, err := rowsAffected(res); err != nil {
		return err
	} else if !ok {
		return store.ErrUserNotFound
	}
	return nil
}

// CountUsers returns the number of registered users.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}
