package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-market/internal/domain/repository"
)

// PebbleLedger встраиваемый леджер на pebble. Каждая транзакция пишет в
// indexed batch и фиксируется одним Commit с fsync.
type PebbleLedger struct {
	mu sync.Mutex
	db *pebble.DB
}

var _ repository.Ledger = (*PebbleLedger)(nil)

func NewPebbleLedger(dir string) (*PebbleLedger, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble: открытие %s: %w", dir, err)
	}
	return &PebbleLedger{db: db}, nil
}

func (l *PebbleLedger) WithinTx(ctx context.Context, fn func(tx repository.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// pebble не проверяет конфликты между батчами, поэтому транзакции идут по одной
	l.mu.Lock()
	defer l.mu.Unlock()

	batch := l.db.NewIndexedBatch()
	if err := fn(&kvTx{store: &pebbleStore{r: batch, batch: batch}}); err != nil {
		_ = batch.Close()
		return err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		_ = batch.Close()
		return fmt.Errorf("pebble: commit: %w", err)
	}
	return batch.Close()
}

func (l *PebbleLedger) ListAutoReleaseCandidates(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	return autoReleaseCandidates(&pebbleStore{r: l.db}, now, limit)
}

func (l *PebbleLedger) Close() error {
	return l.db.Close()
}

type pebbleStore struct {
	r     pebble.Reader
	batch *pebble.Batch
}

func (s *pebbleStore) get(key string) ([]byte, bool, error) {
	v, closer, err := s.r.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()
	return cloneBytes(v), true, nil
}

func (s *pebbleStore) set(key string, value []byte) error {
	if s.batch == nil {
		return errors.New("pebble: запись вне транзакции")
	}
	return s.batch.Set([]byte(key), value, nil)
}

func (s *pebbleStore) scan(prefix string, fn func(key string, value []byte) error) error {
	opts := &pebble.IterOptions{LowerBound: []byte(prefix)}
	if upper := prefixEnd(prefix); upper != "" {
		opts.UpperBound = []byte(upper)
	}
	iter, err := s.r.NewIter(opts)
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(string(iter.Key()), cloneBytes(iter.Value())); err != nil {
			return err
		}
	}
	return iter.Error()
}
