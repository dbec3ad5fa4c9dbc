// Package kv implements the loan ledger on Badger.
//
// Key layout:
//
//	loan:<id>                        JSON loan record
//	loan:idx:active:<bookID>         id of the book's active loan
//	loan:idx:user:<userID>:<id>      membership, empty value
//	loan:idx:book:<bookID>:<id>      membership, empty value
//	loan:seq                         badger sequence feeding Loan.Seq
//
// The active key is read and written inside the same transaction as the loan
// record, so two concurrent creates for one book conflict at commit.
package kv

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dgraph-io/badger/v4"

	"github.com/listenupapp/library-server/internal/domain"
	"github.com/listenupapp/library-server/internal/store"
)

const (
	prefixLoan      = "loan:"
	prefixIdx       = "loan:idx:"
	prefixActiveIdx = "loan:idx:active:"
	prefixUserIdx   = "loan:idx:user:"
	prefixBookIdx   = "loan:idx:book:"
	seqKey          = "loan:seq"

	seqBandwidth = 100
	// maxConflictRetries bounds retries of a transaction that lost an optimistic conflict.
	maxConflictRetries = 5
)

var _ store.LoanLedger = (*Ledger)(nil)

// Ledger is a Badger-backed store.LoanLedger.
type Ledger struct {
	db     *badger.DB
	seq    *badger.Sequence
	logger *slog.Logger
}

// Open opens (or creates) a ledger in the directory at path.
func Open(path string, logger *slog.Logger) (*Ledger, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	return open(opts, logger)
}

// OpenInMemory opens a ledger that lives only as long as the process. Used by tests.
func OpenInMemory(logger *slog.Logger) (*Ledger, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts, logger)
}

func open(opts badger.Options, logger *slog.Logger) (*Ledger, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	seq, err := db.GetSequence([]byte(seqKey), seqBandwidth)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open loan sequence: %w", err)
	}
	if logger != nil {
		logger.Info("Badger loan ledger opened", "in_memory", opts.InMemory, "path", opts.Dir)
	}
	return &Ledger{db: db, seq: seq, logger: logger}, nil
}

// Close releases the sequence lease and closes the database.
func (l *Ledger) Close() error {
	if err := l.seq.Release(); err != nil && l.logger != nil {
		l.logger.Warn("failed to release loan sequence", "error", err)
	}
	return l.db.Close()
}

// Ping reports whether the database is open.
func (l *Ledger) Ping(_ context.Context) error {
	if l.db.IsClosed() {
		return errors.New("badger db is closed")
	}
	return nil
}

func loanKey(id string) []byte           { return []byte(prefixLoan + id) }
func activeKey(bookID string) []byte     { return []byte(prefixActiveIdx + bookID) }
func userIdxKey(userID, id string) []byte { return []byte(prefixUserIdx + userID + ":" + id) }
func bookIdxKey(bookID, id string) []byte { return []byte(prefixBookIdx + bookID + ":" + id) }

// update runs fn in a read-write transaction, retrying when a concurrent
// transaction wins the commit so fn re-reads the state that beat it.
func (l *Ledger) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for range maxConflictRetries {
		if err = ctx.Err(); err != nil {
			return err
		}
		err = l.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// CreateLoan inserts loan, assigning Seq when zero.
func (l *Ledger) CreateLoan(ctx context.Context, loan *domain.Loan) error {
	if loan.Seq == 0 {
		next, err := l.seq.Next()
		if err != nil {
			return fmt.Errorf("next loan seq: %w", err)
		}
		// Badger sequences start at zero; Seq zero means unassigned.
		loan.Seq = int64(next) + 1
	}

	data, err := json.Marshal(loan)
	if err != nil {
		return fmt.Errorf("marshal loan: %w", err)
	}

	return l.update(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(loanKey(loan.ID)); err == nil {
			return store.ErrAlreadyExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if loan.Status == domain.LoanActive {
			if _, err := txn.Get(activeKey(loan.BookID)); err == nil {
				return store.ErrActiveLoanExists
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			if err := txn.Set(activeKey(loan.BookID), []byte(loan.ID)); err != nil {
				return err
			}
		}

		if err := txn.Set(loanKey(loan.ID), data); err != nil {
			return err
		}
		if err := txn.Set(userIdxKey(loan.UserID, loan.ID), nil); err != nil {
			return err
		}
		return txn.Set(bookIdxKey(loan.BookID, loan.ID), nil)
	})
}

// GetLoan returns store.ErrLoanNotFound if no loan has id.
func (l *Ledger) GetLoan(_ context.Context, id string) (*domain.Loan, error) {
	var loan *domain.Loan
	err := l.db.View(func(txn *badger.Txn) error {
		var err error
		loan, err = getLoan(txn, id)
		return err
	})
	return loan, err
}

func getLoan(txn *badger.Txn, id string) (*domain.Loan, error) {
	item, err := txn.Get(loanKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, store.ErrLoanNotFound
	}
	if err != nil {
		return nil, err
	}

	var loan domain.Loan
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &loan)
	}); err != nil {
		return nil, fmt.Errorf("decode loan %s: %w", id, err)
	}
	return &loan, nil
}

// UpdateLoan replaces the stored loan if its status is still expected.
func (l *Ledger) UpdateLoan(ctx context.Context, loan *domain.Loan, expected domain.LoanStatus) error {
	data, err := json.Marshal(loan)
	if err != nil {
		return fmt.Errorf("marshal loan: %w", err)
	}

	return l.update(ctx, func(txn *badger.Txn) error {
		current, err := getLoan(txn, loan.ID)
		if err != nil {
			return err
		}
		if current.Status != expected {
			return store.ErrLoanStateChanged
		}

		wasActive := current.Status == domain.LoanActive
		isActive := loan.Status == domain.LoanActive
		switch {
		case wasActive && !isActive:
			if err := txn.Delete(activeKey(current.BookID)); err != nil {
				return err
			}
		case !wasActive && isActive:
			if _, err := txn.Get(activeKey(loan.BookID)); err == nil {
				return store.ErrActiveLoanExists
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			if err := txn.Set(activeKey(loan.BookID), []byte(loan.ID)); err != nil {
				return err
			}
		}
		return txn.Set(loanKey(loan.ID), data)
	})
}

// DeleteLoan removes a loan in any state along with its index entries.
func (l *Ledger) DeleteLoan(ctx context.Context, id string) error {
	return l.update(ctx, func(txn *badger.Txn) error {
		loan, err := getLoan(txn, id)
		if err != nil {
			return err
		}

		if loan.Status == domain.LoanActive {
			if err := txn.Delete(activeKey(loan.BookID)); err != nil {
				return err
			}
		}
		for _, k := range [][]byte{loanKey(id), userIdxKey(loan.UserID, id), bookIdxKey(loan.BookID, id)} {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListLoans returns every loan, most recent first.
func (l *Ledger) ListLoans(_ context.Context) ([]*domain.Loan, error) {
	out := []*domain.Loan{}
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixLoan)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			// Index keys and the sequence share the "loan:" prefix.
			if isMetaKey(item.Key()) {
				continue
			}
			var loan domain.Loan
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &loan)
			}); err != nil {
				return fmt.Errorf("decode loan %s: %w", item.Key(), err)
			}
			out = append(out, &loan)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortRecentFirst(out)
	return out, nil
}

// ListLoansByUser returns a user's loans, most recent first.
func (l *Ledger) ListLoansByUser(_ context.Context, userID string) ([]*domain.Loan, error) {
	out, err := l.loansByIndex(prefixUserIdx + userID + ":")
	if err != nil {
		return nil, err
	}
	sortRecentFirst(out)
	return out, nil
}

// HasActiveLoan reports whether bookID has an active loan.
func (l *Ledger) HasActiveLoan(_ context.Context, bookID string) (bool, error) {
	var has bool
	err := l.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(activeKey(bookID))
		switch {
		case err == nil:
			has = true
			return nil
		case errors.Is(err, badger.ErrKeyNotFound):
			return nil
		default:
			return err
		}
	})
	return has, err
}

// LatestLoanForBook returns the most recent loan for bookID.
func (l *Ledger) LatestLoanForBook(_ context.Context, bookID string) (*domain.Loan, error) {
	loans, err := l.loansByIndex(prefixBookIdx + bookID + ":")
	if err != nil {
		return nil, err
	}
	if len(loans) == 0 {
		return nil, store.ErrLoanNotFound
	}
	sortRecentFirst(loans)
	return loans[0], nil
}

// loansByIndex loads the loans whose ids follow prefix in membership index keys.
func (l *Ledger) loansByIndex(prefix string) ([]*domain.Loan, error) {
	out := []*domain.Loan{}
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		var ids []string
		for it.Rewind(); it.Valid(); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(prefix):]))
		}

		for _, id := range ids {
			loan, err := getLoan(txn, id)
			if errors.Is(err, store.ErrLoanNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out = append(out, loan)
		}
		return nil
	})
	return out, err
}

func isMetaKey(key []byte) bool {
	return string(key) == seqKey || bytes.HasPrefix(key, []byte(prefixIdx))
}

func sortRecentFirst(loans []*domain.Loan) {
	slices.SortFunc(loans, func(a, b *domain.Loan) int {
		switch {
		case a.NewerThan(b):
			return -1
		case b.NewerThan(a):
			return 1
		default:
			return 0
		}
	})
}
