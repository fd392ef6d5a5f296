package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/ppiankov/realign/internal/model"
)

// ledgerKey is the single key the ledger document lives under
var ledgerKey = []byte("realign:ledger")

// BadgerStore keeps the ledger document in an embedded BadgerDB. Badger
// transactions are optimistic, so mutations are additionally serialized by mu
// to avoid conflict retries.
type BadgerStore struct {
	db     *badger.DB
	mu     sync.Mutex
	logger *zap.Logger
	now    Clock
}

// zapBadgerLogger adapts zap to badger's Logger interface
type zapBadgerLogger struct {
	s *zap.SugaredLogger
}

func (l zapBadgerLogger) Errorf(format string, args ...interface{})   { l.s.Errorf(format, args...) }
func (l zapBadgerLogger) Warningf(format string, args ...interface{}) { l.s.Warnf(format, args...) }
func (l zapBadgerLogger) Infof(format string, args ...interface{})    { l.s.Debugf(format, args...) }
func (l zapBadgerLogger) Debugf(format string, args ...interface{})   { l.s.Debugf(format, args...) }

// OpenBadger opens (or creates) a badger-backed store. With inMemory set the
// path is ignored and nothing touches disk.
func OpenBadger(path string, inMemory bool, logger *zap.Logger) (*BadgerStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !inMemory && path == "" {
		return nil, errors.New("path is required for persistent ledger")
	}

	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0750); err != nil {
			return nil, fmt.Errorf("create ledger directory %s: %w", path, err)
		}
		opts = badger.DefaultOptions(path).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1).
		WithLogger(zapBadgerLogger{s: logger.Named("badger").Sugar()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger ledger: %w", err)
	}

	return &BadgerStore{db: db, logger: logger, now: systemClock}, nil
}

// WithClock overrides the clock used for default initialization
func (s *BadgerStore) WithClock(c Clock) *BadgerStore {
	s.now = c
	return s
}

// Read returns a snapshot of the ledger
func (s *BadgerStore) Read(ctx context.Context) (model.Ledger, error) {
	if err := ctx.Err(); err != nil {
		return model.Ledger{}, err
	}

	var l model.Ledger
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		l, err = s.get(txn)
		return err
	})
	if err == nil {
		return l, nil
	}

	return s.Mutate(ctx, func(*model.Ledger) error { return nil })
}

// Mutate applies fn in a single read-write transaction
func (s *BadgerStore) Mutate(ctx context.Context, fn func(*model.Ledger) error) (model.Ledger, error) {
	if err := ctx.Err(); err != nil {
		return model.Ledger{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out model.Ledger
	err := s.db.Update(func(txn *badger.Txn) error {
		current, err := s.get(txn)
		if err != nil {
			if !errors.Is(err, badger.ErrKeyNotFound) {
				s.logger.Warn("ledger corrupt, reinitializing", zap.Error(err))
			}
			current = model.NewLedger(s.now())
		}

		next := current.Clone()
		if err := fn(&next); err != nil {
			return err
		}

		data, err := encode(next)
		if err != nil {
			return err
		}
		if err := txn.Set(ledgerKey, data); err != nil {
			return fmt.Errorf("store ledger: %w", err)
		}
		out = next
		return nil
	})
	if err != nil {
		return model.Ledger{}, err
	}
	return out.Clone(), nil
}

// Close closes the database
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) get(txn *badger.Txn) (model.Ledger, error) {
	item, err := txn.Get(ledgerKey)
	if err != nil {
		return model.Ledger{}, err
	}

	var l model.Ledger
	err = item.Value(func(val []byte) error {
		var derr error
		l, derr = decode(val)
		return derr
	})
	return l, err
}

// putRaw writes an arbitrary value under the ledger key; used by tests to
// simulate corruption.
func (s *BadgerStore) putRaw(data []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(ledgerKey, data)
	})
}
