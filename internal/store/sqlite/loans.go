package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/listenupapp/library-server/internal/domain"
	"github.com/listenupapp/library-server/internal/store"
)

const loanColumns = `seq, id, label, borrowed_at, returned_at, status, user_id, book_id`

const loanOrder = ` ORDER BY borrowed_at DESC, seq DESC`

func scanLoan(sc scanner) (*domain.Loan, error) {
	var (
		l          domain.Loan
		borrowedAt string
		returnedAt sql.NullString
		status     string
	)
	if err := sc.Scan(&l.Seq, &l.ID, &l.Label, &borrowedAt, &returnedAt, &status, &l.UserID, &l.BookID); err != nil {
		return nil, err
	}

	var err error
	if l.BorrowedAt, err = parseTime(borrowedAt); err != nil {
		return nil, err
	}
	if l.ReturnedAt, err = parseNullableTime(returnedAt); err != nil {
		return nil, err
	}
	if l.Status, err = domain.ParseLoanStatus(status); err != nil {
		return nil, err
	}
	return &l, nil
}

func nullSeq(seq int64) sql.NullInt64 {
	if seq == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: seq, Valid: true}
}

// CreateLoan inserts a loan. The partial unique index on active loans turns a
// second active loan for the same book into store.ErrActiveLoanExists.
func (s *Store) CreateLoan(ctx context.Context, l *domain.Loan) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO loans (seq, id, label, borrowed_at, returned_at, status, user_id, book_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING seq`,
		nullSeq(l.Seq), l.ID, l.Label, formatTime(l.BorrowedAt), nullTimeString(l.ReturnedAt),
		string(l.Status), l.UserID, l.BookID,
	).Scan(&l.Seq)
	if isUniqueViolation(err) {
		msg := err.Error()
		if strings.Contains(msg, "loans.book_id") || strings.Contains(msg, "idx_loans_one_active") {
			return store.ErrActiveLoanExists
		}
		return store.ErrAlreadyExists
	}
	return err
}

// GetLoan returns store.ErrLoanNotFound if no loan has id.
func (s *Store) GetLoan(ctx context.Context, id string) (*domain.Loan, error) {
	l, err := scanLoan(s.db.QueryRowContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE id = ?`, id))
	if isNoRows(err) {
		return nil, store.ErrLoanNotFound
	}
	return l, err
}

// UpdateLoan writes status and returned_at if the stored status is still expected.
func (s *Store) UpdateLoan(ctx context.Context, l *domain.Loan, expected domain.LoanStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE loans SET status = ?, returned_at = ? WHERE id = ? AND status = ?`,
		string(l.Status), nullTimeString(l.ReturnedAt), l.ID, string(expected))
	if isUniqueViolation(err) {
		return store.ErrActiveLoanExists
	}
	if err != nil {
		return err
	}
	ok, err := rowsAffected(res)
	if err != nil || ok {
		return err
	}

	// Nothing matched: tell a vanished loan apart from a concurrent transition.
	if _, err := s.GetLoan(ctx, l.ID); err != nil {
		return err
	}
	return store.ErrLoanStateChanged
}

// DeleteLoan removes a loan in any state.
func (s *Store) DeleteLoan(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM loans WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if ok, err := rowsAffected(res); err != nil {
		return err
	} else if !ok {
		return store.ErrLoanNotFound
	}
	return nil
}

// ListLoans returns every loan, most recent first.
func (s *Store) ListLoans(ctx context.Context) ([]*domain.Loan, error) {
	return s.queryLoans(ctx, `SELECT `+loanColumns+` FROM loans`+loanOrder)
}

// ListLoansByUser returns a user's loans, most recent first.
func (s *Store) ListLoansByUser(ctx context.Context, userID string) ([]*domain.Loan, error) {
	return s.queryLoans(ctx, `SELECT `+loanColumns+` FROM loans WHERE user_id = ?`+loanOrder, userID)
}

// HasActiveLoan reports whether bookID has an active loan.
func (s *Store) HasActiveLoan(ctx context.Context, bookID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM loans WHERE book_id = ? AND status = 'active')`, bookID).Scan(&exists)
	return exists, err
}

// LatestLoanForBook returns the most recent loan for bookID.
func (s *Store) LatestLoanForBook(ctx context.Context, bookID string) (*domain.Loan, error) {
	l, err := scanLoan(s.db.QueryRowContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE book_id = ?`+loanOrder+` LIMIT 1`, bookID))
	if isNoRows(err) {
		return nil, store.ErrLoanNotFound
	}
	return l, err
}

func (s *Store) queryLoans(ctx context.Context, query string, args ...any) ([]*domain.Loan, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Loan{}
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
