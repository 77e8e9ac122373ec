// Package memory provides process-local implementations of the storage
// ports. They back the gateway when no database is configured and in tests.
package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"paygate/internal/core/domain"
	"paygate/internal/core/ports"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/semaphore"
)

// logShards is the number of independently locked partitions of the
// transfer log.
const logShards = 32

// Ledger implements ports.Ledger in memory. Every funding source has its
// own weighted semaphore and the transfer log is partitioned by idempotency
// key, so transactions on disjoint ids and keys never contend.
type Ledger struct {
	mu      sync.RWMutex // guards membership of sources only
	sources map[string]*entry

	log [logShards]*logShard
	seq atomic.Uint64 // global append order across shards
}

type logShard struct {
	mu        sync.RWMutex
	records   []sequenced
	committed map[string]int // idempotency key -> index into records
}

type sequenced struct {
	seq    uint64
	record domain.TransferRecord
}

func (s *logShard) appendLocked(r domain.TransferRecord, seq uint64) error {
	if r.IsCommitted() {
		if _, dup := s.committed[r.IdempotencyKey]; dup {
			return ports.ErrDuplicateKey
		}
		s.committed[r.IdempotencyKey] = len(s.records)
	}
	s.records = append(s.records, sequenced{seq: seq, record: r})
	return nil
}

type entry struct {
	lock *semaphore.Weighted // held by the owning transaction

	mu sync.RWMutex // guards fs
	fs domain.FundingSource
}

func (e *entry) snapshot() domain.FundingSource {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.fs
}

// NewLedger creates an empty in-memory ledger.
func NewLedger() *Ledger {
	l := &Ledger{sources: make(map[string]*entry)}
	for i := range l.log {
		l.log[i] = &logShard{committed: make(map[string]int)}
	}
	return l
}

func shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % logShards)
}

func (l *Ledger) shardOf(key string) *logShard {
	return l.log[shardIndex(key)]
}

func (l *Ledger) lookup(id string) *entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sources[id]
}

// GetFundingSource returns a copy of the funding source or nil.
func (l *Ledger) GetFundingSource(_ context.Context, id string) (*domain.FundingSource, error) {
	e := l.lookup(id)
	if e == nil {
		return nil, nil
	}
	fs := e.snapshot()
	return &fs, nil
}

// CreateFundingSource adds a new funding source.
func (l *Ledger) CreateFundingSource(_ context.Context, fs *domain.FundingSource) error {
	if fs.Balance.IsNegative() {
		return domain.ErrNegativeAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.sources[fs.ID]; ok {
		return ports.ErrAlreadyExists
	}
	l.sources[fs.ID] = newEntry(*fs)
	return nil
}

// EnsureFundingSource creates id with initial unless it exists.
func (l *Ledger) EnsureFundingSource(_ context.Context, id string, initial decimal.Decimal) (bool, error) {
	if initial.IsNegative() {
		return false, domain.ErrNegativeAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.sources[id]; ok {
		return false, nil
	}
	now := time.Now().UTC()
	l.sources[id] = newEntry(domain.FundingSource{ID: id, Balance: initial, CreatedAt: now, UpdatedAt: now})
	return true, nil
}

func newEntry(fs domain.FundingSource) *entry {
	if fs.CreatedAt.IsZero() {
		fs.CreatedAt = time.Now().UTC()
	}
	if fs.UpdatedAt.IsZero() {
		fs.UpdatedAt = fs.CreatedAt
	}
	return &entry{lock: semaphore.NewWeighted(1), fs: fs}
}

// ListFundingSources returns all funding sources ordered by id.
func (l *Ledger) ListFundingSources(_ context.Context) ([]domain.FundingSource, error) {
	l.mu.RLock()
	entries := make([]*entry, 0, len(l.sources))
	for _, e := range l.sources {
		entries = append(entries, e)
	}
	l.mu.RUnlock()

	out := make([]domain.FundingSource, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetCommittedTransfer returns the COMMITTED record for key or nil.
func (l *Ledger) GetCommittedTransfer(_ context.Context, key string) (*domain.TransferRecord, error) {
	shard := l.shardOf(key)
	shard.mu.RLock()
	defer shard.mu.RUnlock()
	idx, ok := shard.committed[key]
	if !ok {
		return nil, nil
	}
	r := shard.records[idx].record
	return &r, nil
}

// AppendTransfer appends a record outside any transaction.
func (l *Ledger) AppendTransfer(_ context.Context, record *domain.TransferRecord) error {
	shard := l.shardOf(record.IdempotencyKey)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	return shard.appendLocked(*record, l.seq.Add(1))
}

// ListTransfers returns records where the funding source is payer or payee,
// newest first.
func (l *Ledger) ListTransfers(_ context.Context, params ports.TransferListParams) ([]domain.TransferRecord, int64, error) {
	var matched []sequenced
	for _, shard := range l.log {
		shard.mu.RLock()
		for _, sr := range shard.records {
			r := sr.record
			if params.FundingSourceID != "" && r.PayerID != params.FundingSourceID && r.PayeeID != params.FundingSourceID {
				continue
			}
			if params.Outcome != nil && r.Outcome != *params.Outcome {
				continue
			}
			matched = append(matched, sr)
		}
		shard.mu.RUnlock()
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq > matched[j].seq })

	total := int64(len(matched))
	if params.Offset >= len(matched) {
		return []domain.TransferRecord{}, total, nil
	}
	matched = matched[params.Offset:]
	if params.Limit > 0 && params.Limit < len(matched) {
		matched = matched[:params.Limit]
	}
	out := make([]domain.TransferRecord, len(matched))
	for i, sr := range matched {
		out[i] = sr.record
	}
	return out, total, nil
}

// Begin starts a transaction.
func (l *Ledger) Begin(_ context.Context) (ports.LedgerTx, error) {
	return &tx{
		ledger: l,
		locked: make(map[string]*entry),
		staged: make(map[string]domain.FundingSource),
	}, nil
}

// tx stages balance updates and records until Commit.
type tx struct {
	ledger  *Ledger
	locked  map[string]*entry
	staged  map[string]domain.FundingSource
	records []domain.TransferRecord
	done    bool
}

func (t *tx) LockFundingSources(ctx context.Context, ids ...string) (map[string]*domain.FundingSource, error) {
	if t.done {
		return nil, fmt.Errorf("transaction already finished")
	}
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	out := make(map[string]*domain.FundingSource, len(sorted))
	for _, id := range sorted {
		if _, seen := out[id]; seen {
			continue
		}
		e := t.ledger.lookup(id)
		if e == nil {
			continue
		}
		if _, held := t.locked[id]; !held {
			if err := e.lock.Acquire(ctx, 1); err != nil {
				return nil, fmt.Errorf("lock funding source %s: %w", id, err)
			}
			t.locked[id] = e
		}
		fs, ok := t.staged[id]
		if !ok {
			fs = e.snapshot()
		}
		out[id] = &fs
	}
	return out, nil
}

func (t *tx) GetCommittedTransfer(ctx context.Context, key string) (*domain.TransferRecord, error) {
	for i := range t.records {
		if t.records[i].IdempotencyKey == key && t.records[i].IsCommitted() {
			r := t.records[i]
			return &r, nil
		}
	}
	return t.ledger.GetCommittedTransfer(ctx, key)
}

func (t *tx) UpdateBalance(_ context.Context, fs *domain.FundingSource) error {
	e, ok := t.locked[fs.ID]
	if !ok {
		return fmt.Errorf("funding source %s is not locked by this transaction", fs.ID)
	}
	current, ok := t.staged[fs.ID]
	if !ok {
		current = e.snapshot()
	}
	if current.Version != fs.Version {
		return ports.ErrVersionConflict
	}
	if fs.Balance.IsNegative() {
		return domain.ErrInsufficientFunds
	}
	fs.Version++
	fs.UpdatedAt = time.Now().UTC()
	t.staged[fs.ID] = *fs
	return nil
}

func (t *tx) AppendTransfer(ctx context.Context, record *domain.TransferRecord) error {
	if record.IsCommitted() {
		existing, err := t.GetCommittedTransfer(ctx, record.IdempotencyKey)
		if err != nil {
			return err
		}
		if existing != nil {
			return ports.ErrDuplicateKey
		}
	}
	t.records = append(t.records, *record)
	return nil
}

// Commit publishes the staged records and balances while holding only the
// log shards of the transaction's own keys, locked in index order.
func (t *tx) Commit(_ context.Context) error {
	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	defer t.release()

	l := t.ledger
	shards := t.shards()
	for _, i := range shards {
		l.log[i].mu.Lock()
	}
	defer func() {
		for _, i := range shards {
			l.log[i].mu.Unlock()
		}
	}()

	for _, r := range t.records {
		if !r.IsCommitted() {
			continue
		}
		if _, dup := l.shardOf(r.IdempotencyKey).committed[r.IdempotencyKey]; dup {
			return ports.ErrDuplicateKey
		}
	}
	for _, r := range t.records {
		_ = l.shardOf(r.IdempotencyKey).appendLocked(r, l.seq.Add(1))
	}
	for id, fs := range t.staged {
		e := t.locked[id]
		e.mu.Lock()
		e.fs = fs
		e.mu.Unlock()
	}
	return nil
}

func (t *tx) shards() []int {
	seen := make(map[int]bool, len(t.records))
	var out []int
	for _, r := range t.records {
		i := shardIndex(r.IdempotencyKey)
		if !seen[i] {
			seen[i] = true
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out
}

func (t *tx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	t.release()
	return nil
}

func (t *tx) release() {
	t.done = true
	for id, e := range t.locked {
		e.lock.Release(1)
		delete(t.locked, id)
	}
}
