package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/listenupapp/library-server/internal/domain"
	"github.com/listenupapp/library-server/internal/lock"
	"github.com/listenupapp/library-server/internal/store"
)

// ReconcileBookStatuses repairs mirrors that disagree with the ledger about
// availability, as left behind by a crash between a ledger write and its
// mirror write. It returns the number of books fixed.
//
// A book with an active loan must read active. A book that reads active
// without one takes its latest loan's status, or none.
func (s *LendingService) ReconcileBookStatuses(ctx context.Context) (int, error) {
	books, err := s.catalog.ListBooks(ctx)
	if err != nil {
		return 0, fmt.Errorf("list books: %w", err)
	}

	fixed := 0
	for _, b := range books {
		changed, err := s.reconcileBook(ctx, b.ID)
		if err != nil {
			return fixed, fmt.Errorf("reconcile book %s: %w", b.ID, err)
		}
		if changed {
			fixed++
		}
	}

	if fixed > 0 {
		s.logger.Warn("repaired book status mirrors", "books", fixed)
	}
	return fixed, nil
}

func (s *LendingService) reconcileBook(ctx context.Context, bookID string) (bool, error) {
	unlock, err := s.locker.Lock(ctx, lock.BookKey(bookID))
	if err != nil {
		return false, err
	}
	defer unlock()

	book, err := s.catalog.GetBook(ctx, bookID)
	if errors.Is(err, store.ErrBookNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	active, err := s.ledger.HasActiveLoan(ctx, bookID)
	if err != nil {
		return false, err
	}

	var want *domain.LoanStatus
	switch {
	case active && !book.OnLoan():
		want = domain.LoanActive.Ptr()
	case !active && book.OnLoan():
		latest, err := s.ledger.LatestLoanForBook(ctx, bookID)
		switch {
		case errors.Is(err, store.ErrLoanNotFound):
		case err != nil:
			return false, err
		default:
			want = latest.Status.Ptr()
		}
	default:
		return false, nil
	}

	if err := s.catalog.SetBookStatus(ctx, bookID, want); err != nil {
		return false, err
	}
	s.logger.Info("book status mirror repaired", "book_id", bookID, "was", statusString(book.Status), "now", statusString(want))
	return true, nil
}
