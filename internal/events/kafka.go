package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/listenupapp/library-server/internal/clock"
	"github.com/listenupapp/library-server/internal/domain"
)

// ErrPublisherClosed is returned by PublishLoan after Close.
var ErrPublisherClosed = errors.New("event publisher closed")

const (
	headerEventType    = "x-event-type"
	headerEventVersion = "x-event-version"
	writeTimeout       = 10 * time.Second
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher queues loan events and writes them from a single goroutine.
type KafkaPublisher struct {
	w        messageWriter
	producer string
	clock    clock.Clock
	logger   *slog.Logger

	mu     sync.RWMutex
	closed bool
	inbox  chan kafka.Message
	done   chan struct{}
}

// NewKafkaPublisher creates a publisher for topic. buffer bounds queued events;
// PublishLoan fails fast once it is full.
func NewKafkaPublisher(brokers []string, topic, producer string, buffer int, clk clock.Clock, logger *slog.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return newKafkaPublisher(w, producer, buffer, clk, logger)
}

func newKafkaPublisher(w messageWriter, producer string, buffer int, clk clock.Clock, logger *slog.Logger) *KafkaPublisher {
	p := &KafkaPublisher{
		w:        w,
		producer: producer,
		clock:    clk,
		logger:   logger,
		inbox:    make(chan kafka.Message, buffer),
		done:     make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *KafkaPublisher) run() {
	defer close(p.done)
	for m := range p.inbox {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := p.w.WriteMessages(ctx, m)
		cancel()
		if err != nil {
			p.logger.Error("failed to write loan event",
				"error", err,
				"key", string(m.Key),
				"type", headerValue(m, headerEventType))
		}
	}
}

// PublishLoan enqueues an event for loan keyed by its book.
func (p *KafkaPublisher) PublishLoan(_ context.Context, t Type, loan *domain.Loan) error {
	env, err := NewLoanEnvelope(t, loan, p.producer, p.clock.Now())
	if err != nil {
		return err
	}
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		// Keyed by book so one book's events stay ordered on one partition.
		Key:   []byte(loan.BookID),
		Value: value,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(t)},
			{Key: headerEventVersion, Value: []byte(strconv.Itoa(env.EventVersion))},
		},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}
	select {
	case p.inbox <- msg:
		return nil
	default:
		return errors.New("event queue full")
	}
}

// Close stops accepting events, flushes the queue and closes the writer.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.inbox)
	p.mu.Unlock()

	<-p.done
	return p.w.Close()
}

func headerValue(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
