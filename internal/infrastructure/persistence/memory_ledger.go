package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-market/internal/domain/repository"
)

// MemoryLedger леджер в памяти процесса. Транзакции сериализуются
// мьютексом, изменения копятся в overlay и применяются только при успехе.
type MemoryLedger struct {
	mu      sync.Mutex
	records map[string][]byte
}

var _ repository.Ledger = (*MemoryLedger)(nil)

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{records: make(map[string][]byte)}
}

func (l *MemoryLedger) WithinTx(ctx context.Context, fn func(tx repository.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	staged := &memoryOverlay{base: l.records, staged: make(map[string][]byte)}
	if err := fn(&kvTx{store: staged}); err != nil {
		return err
	}
	for k, v := range staged.staged {
		l.records[k] = v
	}
	return nil
}

func (l *MemoryLedger) ListAutoReleaseCandidates(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return autoReleaseCandidates(&memoryOverlay{base: l.records}, now, limit)
}

func (l *MemoryLedger) Close() error { return nil }

type memoryOverlay struct {
	base   map[string][]byte
	staged map[string][]byte
}

func (o *memoryOverlay) get(key string) ([]byte, bool, error) {
	if v, ok := o.staged[key]; ok {
		return cloneBytes(v), true, nil
	}
	v, ok := o.base[key]
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(v), true, nil
}

func (o *memoryOverlay) set(key string, value []byte) error {
	o.staged[key] = cloneBytes(value)
	return nil
}

func (o *memoryOverlay) scan(prefix string, fn func(key string, value []byte) error) error {
	keys := make([]string, 0)
	seen := make(map[string]struct{})
	for _, m := range []map[string][]byte{o.staged, o.base} {
		for k := range m {
			if !hasPrefix(k, prefix) {
				continue
			}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		v, _, _ := o.get(k)
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

func cloneBytes(b []byte) []byte {
	return append([]byte(nil), b...)
}
