package deadletter

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	badger "github.com/dgraph-io/badger/v4"

	"prodcons/internal/queue"
)

var (
	badgerSeqKey     = []byte("dl/seq")
	badgerItemPrefix = []byte("dl/item/")
)

// BadgerSink stores items in an embedded badger database under keys taken
// from a badger Sequence, so iteration order is append order.
type BadgerSink struct {
	db     *badger.DB
	seq    *badger.Sequence
	ownsDB bool

	mu     sync.Mutex
	closed bool
}

// OpenBadger opens a database at dir. An empty dir opens an in-memory one.
func OpenBadger(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("deadletter: open badger: %w", err)
	}
	return db, nil
}

// NewBadgerSink uses db. Close releases the sequence but leaves db open.
func NewBadgerSink(db *badger.DB) (*BadgerSink, error) {
	seq, err := db.GetSequence(badgerSeqKey, 100)
	if err != nil {
		return nil, fmt.Errorf("deadletter: badger sequence: %w", err)
	}
	return &BadgerSink{db: db, seq: seq}, nil
}

func badgerItemKey(n uint64) []byte {
	key := make([]byte, len(badgerItemPrefix)+8)
	copy(key, badgerItemPrefix)
	binary.BigEndian.PutUint64(key[len(badgerItemPrefix):], n)
	return key
}

// Append stores item under the next sequence number.
func (s *BadgerSink) Append(_ context.Context, item queue.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	n, err := s.seq.Next()
	if err != nil {
		return fmt.Errorf("deadletter: next sequence: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerItemKey(n), []byte(item.String()))
	})
}

// Items returns stored items in append order.
func (s *BadgerSink) Items(_ context.Context) ([]string, error) {
	var items []string
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(badgerItemPrefix); it.ValidForPrefix(badgerItemPrefix); it.Next() {
			v, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			items = append(items, string(v))
		}
		return nil
	})
	return items, err
}

// Close releases the sequence and, when Open created it, the database.
func (s *BadgerSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	err := s.seq.Release()
	if s.ownsDB {
		err = errors.Join(err, s.db.Close())
	}
	return err
}
