// Package events publishes loan lifecycle events for downstream consumers.
//
// Publishing is best effort: the lending engine logs a failed publish and
// carries on, since the ledger is the source of truth.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/listenupapp/library-server/internal/domain"
)

// Type names a loan event.
type Type string

const (
	LoanBorrowed  Type = "loan.borrowed"
	LoanReturned  Type = "loan.returned"
	LoanCancelled Type = "loan.cancelled"
	LoanDeleted   Type = "loan.deleted"
)

// schemaVersion is bumped when LoanPayload changes incompatibly.
const schemaVersion = 1

// Envelope wraps every event on the wire.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     Type            `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id"`
	Payload       json.RawMessage `json:"payload"`
}

// LoanPayload is the loan snapshot carried by every loan event.
type LoanPayload struct {
	LoanID     string            `json:"loan_id"`
	Label      string            `json:"label"`
	UserID     string            `json:"user_id"`
	BookID     string            `json:"book_id"`
	Status     domain.LoanStatus `json:"status"`
	BorrowedAt time.Time         `json:"borrowed_at"`
	ReturnedAt *time.Time        `json:"returned_at,omitempty"`
}

// NewLoanEnvelope builds the envelope for a change to loan.
func NewLoanEnvelope(t Type, loan *domain.Loan, producer string, at time.Time) (Envelope, error) {
	payload, err := json.Marshal(LoanPayload{
		LoanID:     loan.ID,
		Label:      loan.Label,
		UserID:     loan.UserID,
		BookID:     loan.BookID,
		Status:     loan.Status,
		BorrowedAt: loan.BorrowedAt,
		ReturnedAt: loan.ReturnedAt,
	})
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal loan payload: %w", err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     t,
		EventVersion:  schemaVersion,
		OccurredAt:    at.UTC(),
		Producer:      producer,
		CorrelationID: loan.ID,
		Payload:       payload,
	}, nil
}

// Publisher emits loan events.
type Publisher interface {
	PublishLoan(ctx context.Context, t Type, loan *domain.Loan) error
	Close() error
}

// Noop discards every event.
type Noop struct{}

func (Noop) PublishLoan(context.Context, Type, *domain.Loan) error { return nil }
func (Noop) Close() error                                           { return nil }

// Recorder keeps published events in memory. Used by tests.
type Recorder struct {
	mu     sync.Mutex
	events []RecordedEvent
	// Err, when set, is returned from every publish.
	Err error
}

// RecordedEvent is one call to Recorder.PublishLoan.
type RecordedEvent struct {
	Type Type
	Loan domain.Loan
}

func (r *Recorder) PublishLoan(_ context.Context, t Type, loan *domain.Loan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, RecordedEvent{Type: t, Loan: *loan.Clone()})
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []RecordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RecordedEvent(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}
