// Package service holds the business logic of the library server: lending,
// loan queries, the catalog and accounts.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/listenupapp/library-server/internal/clock"
	"github.com/listenupapp/library-server/internal/domain"
	domainerrors "github.com/listenupapp/library-server/internal/errors"
	"github.com/listenupapp/library-server/internal/events"
	"github.com/listenupapp/library-server/internal/id"
	"github.com/listenupapp/library-server/internal/lock"
	"github.com/listenupapp/library-server/internal/store"
)

// Client-facing messages. Callers and tests match on them.
const (
	msgBookUnavailable   = "book currently unavailable"
	msgOnlyActiveReturn  = "only active loans can be returned"
	msgOnlyActiveCancel  = "only active loans can be cancelled"
	msgFailedBorrow      = "failed to borrow book"
	msgFailedReturn      = "failed to return book"
	msgFailedCancel      = "failed to cancel order"
	msgFailedDelete      = "failed to delete order"
	msgFailedLookupOrder = "failed to look up order"
)

// LendingService creates loans and moves them through their lifecycle,
// keeping each book's status mirror in step with the ledger.
//
// Every write for a book happens under that book's lease, so a book's mirror
// writes never interleave. The ledger's one-active-loan constraint backs the
// lease up.
type LendingService struct {
	accounts store.AccountStore
	catalog  store.CatalogStore
	ledger   store.LoanLedger
	locker   lock.Locker
	events   events.Publisher
	clock    clock.Clock
	logger   *slog.Logger
}

// NewLendingService creates a lending service.
func NewLendingService(
	accounts store.AccountStore,
	catalog store.CatalogStore,
	ledger store.LoanLedger,
	locker lock.Locker,
	publisher events.Publisher,
	clk clock.Clock,
	logger *slog.Logger,
) *LendingService {
	return &LendingService{
		accounts: accounts,
		catalog:  catalog,
		ledger:   ledger,
		locker:   locker,
		events:   publisher,
		clock:    clk,
		logger:   logger,
	}
}

// Borrow lends bookID to userID.
func (s *LendingService) Borrow(ctx context.Context, userID, bookID string) (*domain.Loan, error) {
	if ok, err := s.accounts.UserExists(ctx, userID); err != nil {
		return nil, domainerrors.Persistence(err, msgFailedBorrow)
	} else if !ok {
		return nil, domainerrors.NotFoundf("user not found with id: %s", userID)
	}

	unlock, err := s.locker.Lock(ctx, lock.BookKey(bookID))
	if err != nil {
		return nil, domainerrors.Persistence(err, msgFailedBorrow)
	}
	defer unlock()

	// Checked under the lease so a concurrent catalog delete cannot slip in.
	if ok, err := s.catalog.BookExists(ctx, bookID); err != nil {
		return nil, domainerrors.Persistence(err, msgFailedBorrow)
	} else if !ok {
		return nil, domainerrors.NotFoundf("book not found with id: %s", bookID)
	}

	active, err := s.ledger.HasActiveLoan(ctx, bookID)
	if err != nil {
		return nil, domainerrors.Persistence(err, msgFailedBorrow)
	}
	if active {
		return nil, domainerrors.Conflict(msgBookUnavailable)
	}

	now := s.clock.Now()
	loanID, err := id.Generate(id.PrefixLoan)
	if err != nil {
		return nil, domainerrors.Persistence(err, msgFailedBorrow)
	}
	label, err := id.Label(now)
	if err != nil {
		return nil, domainerrors.Persistence(err, msgFailedBorrow)
	}
	loan := &domain.Loan{
		ID:         loanID,
		Label:      label,
		BorrowedAt: now,
		Status:     domain.LoanActive,
		UserID:     userID,
		BookID:     bookID,
	}

	if err := s.ledger.CreateLoan(ctx, loan); err != nil {
		if errors.Is(err, store.ErrActiveLoanExists) {
			return nil, domainerrors.Conflict(msgBookUnavailable)
		}
		return nil, domainerrors.Persistence(err, msgFailedBorrow)
	}

	if err := s.catalog.SetBookStatus(ctx, bookID, domain.LoanActive.Ptr()); err != nil {
		s.compensate(ctx, "borrow", loan, func(ctx context.Context) error {
			return s.ledger.DeleteLoan(ctx, loan.ID)
		})
		return nil, domainerrors.Persistence(err, msgFailedBorrow)
	}

	s.logger.Info("book borrowed", "loan_id", loan.ID, "book_id", bookID, "user_id", userID)
	s.publish(ctx, events.LoanBorrowed, loan)
	return loan, nil
}

// ReturnBook marks an active loan returned.
func (s *LendingService) ReturnBook(ctx context.Context, loanID string) (*domain.Loan, error) {
	return s.transition(ctx, loanID, transition{
		name:    "return",
		invalid: msgOnlyActiveReturn,
		failed:  msgFailedReturn,
		event:   events.LoanReturned,
		apply:   func(l *domain.Loan) error { return l.Return(s.clock.Now()) },
		logMsg:  "book returned",
	})
}

// CancelOrder marks an active loan cancelled.
func (s *LendingService) CancelOrder(ctx context.Context, loanID string) (*domain.Loan, error) {
	return s.transition(ctx, loanID, transition{
		name:    "cancel",
		invalid: msgOnlyActiveCancel,
		failed:  msgFailedCancel,
		event:   events.LoanCancelled,
		apply:   func(l *domain.Loan) error { return l.Cancel() },
		logMsg:  "order cancelled",
	})
}

type transition struct {
	name    string
	invalid string // InvalidState message
	failed  string // Persistence message
	event   events.Type
	apply   func(*domain.Loan) error
	logMsg  string
}

func (s *LendingService) transition(ctx context.Context, loanID string, t transition) (*domain.Loan, error) {
	// Read once outside the lease to learn the book, again inside it to act.
	found, err := s.CheckLoanExists(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if found.Status != domain.LoanActive {
		return nil, domainerrors.InvalidState(t.invalid)
	}

	unlock, err := s.locker.Lock(ctx, lock.BookKey(found.BookID))
	if err != nil {
		return nil, domainerrors.Persistence(err, t.failed)
	}
	defer unlock()

	loan, err := s.CheckLoanExists(ctx, loanID)
	if err != nil {
		return nil, err
	}
	prev := loan.Clone()
	if err := t.apply(loan); err != nil {
		return nil, domainerrors.InvalidState(t.invalid)
	}

	if err := s.ledger.UpdateLoan(ctx, loan, domain.LoanActive); err != nil {
		switch {
		case errors.Is(err, store.ErrLoanStateChanged):
			return nil, domainerrors.InvalidState(t.invalid)
		case errors.Is(err, store.ErrLoanNotFound):
			return nil, domainerrors.NotFoundf("order not found with id: %s", loanID)
		default:
			return nil, domainerrors.Persistence(err, t.failed)
		}
	}

	if err := s.catalog.SetBookStatus(ctx, loan.BookID, loan.Status.Ptr()); err != nil {
		s.compensate(ctx, t.name, loan, func(ctx context.Context) error {
			return s.ledger.UpdateLoan(ctx, prev, loan.Status)
		})
		return nil, domainerrors.Persistence(err, t.failed)
	}

	s.logger.Info(t.logMsg, "loan_id", loan.ID, "book_id", loan.BookID, "status", loan.Status)
	s.publish(ctx, t.event, loan)
	return loan, nil
}

// DeleteOrder removes a loan in any state. The book's mirror is cleared only
// when the deleted loan was the book's most recent one: an older loan is never
// the one the mirror reflects, and clearing it would mark a book with a newer
// active loan as available.
func (s *LendingService) DeleteOrder(ctx context.Context, loanID string) error {
	found, err := s.CheckLoanExists(ctx, loanID)
	if err != nil {
		return err
	}

	unlock, err := s.locker.Lock(ctx, lock.BookKey(found.BookID))
	if err != nil {
		return domainerrors.Persistence(err, msgFailedDelete)
	}
	defer unlock()

	loan, err := s.CheckLoanExists(ctx, loanID)
	if err != nil {
		return err
	}

	latest, err := s.ledger.LatestLoanForBook(ctx, loan.BookID)
	if err != nil {
		return domainerrors.Persistence(err, msgFailedDelete)
	}
	wasLatest := latest.ID == loan.ID

	if err := s.ledger.DeleteLoan(ctx, loan.ID); err != nil {
		if errors.Is(err, store.ErrLoanNotFound) {
			return domainerrors.NotFoundf("order not found with id: %s", loanID)
		}
		return domainerrors.Persistence(err, msgFailedDelete)
	}

	if wasLatest {
		err := s.catalog.SetBookStatus(ctx, loan.BookID, nil)
		// The book may already be gone from the catalog; nothing to mirror then.
		if err != nil && !errors.Is(err, store.ErrBookNotFound) {
			s.compensate(ctx, "delete", loan, func(ctx context.Context) error {
				return s.ledger.CreateLoan(ctx, loan)
			})
			return domainerrors.Persistence(err, msgFailedDelete)
		}
	}

	s.logger.Info("order deleted", "loan_id", loan.ID, "book_id", loan.BookID, "mirror_cleared", wasLatest)
	s.publish(ctx, events.LoanDeleted, loan)
	return nil
}

// CheckLoanExists returns the loan or a NOT_FOUND error.
func (s *LendingService) CheckLoanExists(ctx context.Context, loanID string) (*domain.Loan, error) {
	loan, err := s.ledger.GetLoan(ctx, loanID)
	if errors.Is(err, store.ErrLoanNotFound) {
		return nil, domainerrors.NotFoundf("order not found with id: %s", loanID)
	}
	if err != nil {
		return nil, domainerrors.Persistence(err, msgFailedLookupOrder)
	}
	return loan, nil
}

// compensate undoes a ledger write after the mirror write failed. A failed
// undo is logged; the reconciler repairs the mirror on next start.
func (s *LendingService) compensate(ctx context.Context, op string, loan *domain.Loan, undo func(context.Context) error) {
	if err := undo(context.WithoutCancel(ctx)); err != nil {
		s.logger.Error("failed to compensate ledger write",
			"op", op,
			"loan_id", loan.ID,
			"book_id", loan.BookID,
			"error", err)
		return
	}
	s.logger.Warn("ledger write rolled back after mirror failure", "op", op, "loan_id", loan.ID)
}

func (s *LendingService) publish(ctx context.Context, t events.Type, loan *domain.Loan) {
	if err := s.events.PublishLoan(ctx, t, loan); err != nil {
		s.logger.Warn("failed to publish loan event", "type", t, "loan_id", loan.ID, "error", err)
	}
}

func statusString(s *domain.LoanStatus) string {
	if s == nil {
		return "none"
	}
	return string(*s)
}
