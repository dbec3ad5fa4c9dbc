package domain

import (
	"errors"
	"fmt"
	"time"
)

// LoanStatus is the lifecycle state of a loan.
type LoanStatus string

const (
	LoanActive    LoanStatus = "active"
	LoanReturned  LoanStatus = "returned"
	LoanCancelled LoanStatus = "cancelled"
)

// ErrInvalidTransition is returned when a loan is asked to leave a state it cannot leave.
var ErrInvalidTransition = errors.New("invalid loan status transition")

// Valid reports whether s is a known status.
func (s LoanStatus) Valid() bool {
	switch s {
	case LoanActive, LoanReturned, LoanCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s LoanStatus) Terminal() bool {
	return s == LoanReturned || s == LoanCancelled
}

// CanTransitionTo reports whether s -> next is allowed.
// Only active loans move, and only to returned or cancelled.
func (s LoanStatus) CanTransitionTo(next LoanStatus) bool {
	return s == LoanActive && next.Terminal()
}

// Ptr returns a pointer to a copy of s, for the book status mirror.
func (s LoanStatus) Ptr() *LoanStatus {
	return &s
}

// ParseLoanStatus parses a stored status value.
func ParseLoanStatus(raw string) (LoanStatus, error) {
	s := LoanStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown loan status %q", raw)
	}
	return s, nil
}

// Loan records one borrowing of one book by one user.
type Loan struct {
	ID         string     `json:"id"`
	Label      string     `json:"label"`
	BorrowedAt time.Time  `json:"borrowed_at"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
	Status     LoanStatus `json:"status"`
	UserID     string     `json:"user_id"`
	BookID     string     `json:"book_id"`

	// Seq is assigned by the ledger on insert and breaks BorrowedAt ties.
	Seq int64 `json:"seq"`
}

// Return moves an active loan to returned and stamps ReturnedAt.
func (l *Loan) Return(now time.Time) error {
	if !l.Status.CanTransitionTo(LoanReturned) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, l.Status, LoanReturned)
	}
	l.Status = LoanReturned
	l.ReturnedAt = &now
	return nil
}

// Cancel moves an active loan to cancelled. ReturnedAt stays nil.
func (l *Loan) Cancel() error {
	if !l.Status.CanTransitionTo(LoanCancelled) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, l.Status, LoanCancelled)
	}
	l.Status = LoanCancelled
	return nil
}

// Clone returns a deep copy.
func (l *Loan) Clone() *Loan {
	c := *l
	if l.ReturnedAt != nil {
		t := *l.ReturnedAt
		c.ReturnedAt = &t
	}
	return &c
}

// NewerThan orders loans most recent first: later BorrowedAt, then later insert.
func (l *Loan) NewerThan(other *Loan) bool {
	if !l.BorrowedAt.Equal(other.BorrowedAt) {
		return l.BorrowedAt.After(other.BorrowedAt)
	}
	return l.Seq > other.Seq
}
