// Package storetest holds behavior tests shared by every store.LoanLedger implementation.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/library-server/internal/domain"
	"github.com/listenupapp/library-server/internal/store"
)

// NewLedger returns an empty ledger owned by t.
type NewLedger func(t *testing.T) store.LoanLedger

var base = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

// Loan builds an active loan borrowed offset after a fixed base time.
func Loan(id, userID, bookID string, offset time.Duration) *domain.Loan {
	return &domain.Loan{
		ID:         id,
		Label:      "order-" + id,
		BorrowedAt: base.Add(offset),
		Status:     domain.LoanActive,
		UserID:     userID,
		BookID:     bookID,
	}
}

// RunLedgerTests exercises newLedger against the LoanLedger contract.
func RunLedgerTests(t *testing.T, newLedger NewLedger) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, newLedger(t)) })
	t.Run("OneActivePerBook", func(t *testing.T) { testOneActivePerBook(t, newLedger(t)) })
	t.Run("ConcurrentCreate", func(t *testing.T) { testConcurrentCreate(t, newLedger(t)) })
	t.Run("UpdateCompareAndSwap", func(t *testing.T) { testUpdateCAS(t, newLedger(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newLedger(t)) })
	t.Run("Ordering", func(t *testing.T) { testOrdering(t, newLedger(t)) })
	t.Run("LatestForBook", func(t *testing.T) { testLatestForBook(t, newLedger(t)) })
}

func testCreateAndGet(t *testing.T, l store.LoanLedger) {
	ctx := context.Background()
	loan := Loan("order-1", "user-1", "book-1", 0)

	require.NoError(t, l.CreateLoan(ctx, loan))
	assert.NotZero(t, loan.Seq, "seq assigned on insert")

	got, err := l.GetLoan(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, loan.ID, got.ID)
	assert.Equal(t, loan.Label, got.Label)
	assert.True(t, loan.BorrowedAt.Equal(got.BorrowedAt))
	assert.Nil(t, got.ReturnedAt)
	assert.Equal(t, domain.LoanActive, got.Status)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "book-1", got.BookID)
	assert.Equal(t, loan.Seq, got.Seq)

	_, err = l.GetLoan(ctx, "order-404")
	assert.ErrorIs(t, err, store.ErrLoanNotFound)
	assert.ErrorIs(t, err, store.ErrNotFound)

	dup := Loan("order-1", "user-2", "book-2", time.Minute)
	assert.ErrorIs(t, l.CreateLoan(ctx, dup), store.ErrAlreadyExists)
}

func testOneActivePerBook(t *testing.T, l store.LoanLedger) {
	ctx := context.Background()

	require.NoError(t, l.CreateLoan(ctx, Loan("order-1", "user-1", "book-1", 0)))

	has, err := l.HasActiveLoan(ctx, "book-1")
	require.NoError(t, err)
	assert.True(t, has)

	err = l.CreateLoan(ctx, Loan("order-2", "user-2", "book-1", time.Minute))
	assert.ErrorIs(t, err, store.ErrActiveLoanExists)

	// Other books are unaffected.
	require.NoError(t, l.CreateLoan(ctx, Loan("order-3", "user-2", "book-2", time.Minute)))

	// Once the first loan is returned the book can be lent again.
	first, err := l.GetLoan(ctx, "order-1")
	require.NoError(t, err)
	require.NoError(t, first.Return(base.Add(time.Hour)))
	require.NoError(t, l.UpdateLoan(ctx, first, domain.LoanActive))

	has, err = l.HasActiveLoan(ctx, "book-1")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, l.CreateLoan(ctx, Loan("order-4", "user-2", "book-1", 2*time.Hour)))
}

func testConcurrentCreate(t *testing.T, l store.LoanLedger) {
	ctx := context.Background()
	const n = 8

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			loan := Loan("order-c"+string(rune('a'+i)), "user-1", "book-1", time.Duration(i)*time.Second)
			err := l.CreateLoan(ctx, loan)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, store.ErrActiveLoanExists)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded, "exactly one concurrent create wins")
}

func testUpdateCAS(t *testing.T, l store.LoanLedger) {
	ctx := context.Background()
	require.NoError(t, l.CreateLoan(ctx, Loan("order-1", "user-1", "book-1", 0)))

	a, err := l.GetLoan(ctx, "order-1")
	require.NoError(t, err)
	b := a.Clone()

	require.NoError(t, a.Return(base.Add(time.Hour)))
	require.NoError(t, l.UpdateLoan(ctx, a, domain.LoanActive))

	// b was read while active; its write must lose.
	require.NoError(t, b.Cancel())
	assert.ErrorIs(t, l.UpdateLoan(ctx, b, domain.LoanActive), store.ErrLoanStateChanged)

	got, err := l.GetLoan(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, domain.LoanReturned, got.Status)
	require.NotNil(t, got.ReturnedAt)
	assert.True(t, got.ReturnedAt.Equal(base.Add(time.Hour)))

	missing := Loan("order-404", "user-1", "book-1", 0)
	assert.ErrorIs(t, l.UpdateLoan(ctx, missing, domain.LoanActive), store.ErrLoanNotFound)
}

func testDelete(t *testing.T, l store.LoanLedger) {
	ctx := context.Background()
	loan := Loan("order-1", "user-1", "book-1", 0)
	require.NoError(t, l.CreateLoan(ctx, loan))

	require.NoError(t, l.DeleteLoan(ctx, "order-1"))
	_, err := l.GetLoan(ctx, "order-1")
	assert.ErrorIs(t, err, store.ErrLoanNotFound)
	assert.ErrorIs(t, l.DeleteLoan(ctx, "order-1"), store.ErrLoanNotFound)

	has, err := l.HasActiveLoan(ctx, "book-1")
	require.NoError(t, err)
	assert.False(t, has, "deleting an active loan frees the book")

	byUser, err := l.ListLoansByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, byUser)

	// Re-inserting with the original seq restores it in place.
	seq := loan.Seq
	require.NoError(t, l.CreateLoan(ctx, loan))
	got, err := l.GetLoan(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, seq, got.Seq)
}

func testOrdering(t *testing.T, l store.LoanLedger) {
	ctx := context.Background()

	// Two loans share a timestamp; the later insert must list first.
	loans := []*domain.Loan{
		Loan("order-a", "user-1", "book-1", 0),
		Loan("order-b", "user-1", "book-2", time.Hour),
		Loan("order-c", "user-2", "book-3", time.Hour),
		Loan("order-d", "user-1", "book-4", 30*time.Minute),
	}
	for _, loan := range loans {
		require.NoError(t, l.CreateLoan(ctx, loan))
	}

	all, err := l.ListLoans(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"order-c", "order-b", "order-d", "order-a"}, ids(all))

	mine, err := l.ListLoansByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"order-b", "order-d", "order-a"}, ids(mine))

	none, err := l.ListLoansByUser(ctx, "user-404")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testLatestForBook(t *testing.T, l store.LoanLedger) {
	ctx := context.Background()

	_, err := l.LatestLoanForBook(ctx, "book-1")
	assert.ErrorIs(t, err, store.ErrLoanNotFound)

	first := Loan("order-1", "user-1", "book-1", 0)
	require.NoError(t, l.CreateLoan(ctx, first))
	require.NoError(t, first.Cancel())
	require.NoError(t, l.UpdateLoan(ctx, first, domain.LoanActive))

	second := Loan("order-2", "user-2", "book-1", time.Hour)
	require.NoError(t, l.CreateLoan(ctx, second))

	latest, err := l.LatestLoanForBook(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, "order-2", latest.ID)

	require.NoError(t, l.DeleteLoan(ctx, "order-2"))
	latest, err = l.LatestLoanForBook(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, "order-1", latest.ID)
	assert.Equal(t, domain.LoanCancelled, latest.Status)
}

func ids(loans []*domain.Loan) []string {
	out := make([]string, len(loans))
	for i, l := range loans {
		out[i] = l.ID
	}
	return out
}
