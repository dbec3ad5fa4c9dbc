package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/library-server/internal/clock"
	"github.com/listenupapp/library-server/internal/domain"
	"github.com/listenupapp/library-server/internal/logger"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func testLoan() *domain.Loan {
	return &domain.Loan{
		ID:         "order-1",
		Label:      "order-1718000000000-ABCDEF",
		BorrowedAt: time.Date(2024, 6, 10, 6, 13, 20, 0, time.UTC),
		Status:     domain.LoanActive,
		UserID:     "user-1",
		BookID:     "book-1",
	}
}

func TestNewLoanEnvelope(t *testing.T) {
	at := time.Date(2024, 6, 10, 7, 0, 0, 0, time.UTC)

	env, err := NewLoanEnvelope(LoanBorrowed, testLoan(), "library-server", at)
	require.NoError(t, err)

	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, LoanBorrowed, env.EventType)
	assert.Equal(t, 1, env.EventVersion)
	assert.Equal(t, at, env.OccurredAt)
	assert.Equal(t, "order-1", env.CorrelationID)

	var p LoanPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, "book-1", p.BookID)
	assert.Equal(t, domain.LoanActive, p.Status)
	assert.Nil(t, p.ReturnedAt)
}

func TestKafkaPublisher_WritesKeyedMessages(t *testing.T) {
	w := &fakeWriter{}
	clk := clock.NewManual(time.Date(2024, 6, 10, 7, 0, 0, 0, time.UTC))
	p := newKafkaPublisher(w, "library-server", 8, clk, logger.Discard())

	loan := testLoan()
	require.NoError(t, p.PublishLoan(context.Background(), LoanBorrowed, loan))
	require.NoError(t, loan.Return(clk.Now()))
	require.NoError(t, p.PublishLoan(context.Background(), LoanReturned, loan))

	// Close flushes the queue before returning.
	require.NoError(t, p.Close())
	assert.True(t, w.closed)

	require.Len(t, w.msgs, 2)
	assert.Equal(t, []byte("book-1"), w.msgs[0].Key)
	assert.Equal(t, "loan.borrowed", headerValue(w.msgs[0], headerEventType))
	assert.Equal(t, "1", headerValue(w.msgs[0], headerEventVersion))

	var env Envelope
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &env))
	assert.Equal(t, LoanReturned, env.EventType)
	var p2 LoanPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p2))
	require.NotNil(t, p2.ReturnedAt)
}

func TestKafkaPublisher_WriteErrorsAreLoggedNotReturned(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := newKafkaPublisher(w, "library-server", 1, clock.NewSystem(), logger.Discard())

	assert.NoError(t, p.PublishLoan(context.Background(), LoanBorrowed, testLoan()))
	require.NoError(t, p.Close())
}

func TestKafkaPublisher_PublishAfterClose(t *testing.T) {
	p := newKafkaPublisher(&fakeWriter{}, "library-server", 1, clock.NewSystem(), logger.Discard())
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	err := p.PublishLoan(context.Background(), LoanBorrowed, testLoan())
	assert.ErrorIs(t, err, ErrPublisherClosed)
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	loan := testLoan()

	require.NoError(t, r.PublishLoan(context.Background(), LoanBorrowed, loan))
	loan.Status = domain.LoanCancelled
	require.NoError(t, r.PublishLoan(context.Background(), LoanCancelled, loan))

	assert.Equal(t, []Type{LoanBorrowed, LoanCancelled}, r.Types())
	assert.Equal(t, domain.LoanActive, r.Events()[0].Loan.Status, "recorded loans are snapshots")
}
