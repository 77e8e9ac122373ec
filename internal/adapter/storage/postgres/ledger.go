package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"paygate/internal/core/domain"
	"paygate/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const (
	fundingSourceColumns = `id, balance::text, version, created_at, updated_at`
	transferColumns      = `id, idempotency_key, kind, payer_id, payee_id, operation, arguments_digest, amount::text, outcome, created_at, finalized_at`
)

// Ledger implements ports.Ledger on PostgreSQL. Row locks (SELECT ... FOR
// UPDATE) serialize transfers touching the same funding source.
type Ledger struct {
	pool Pool
}

// NewLedger creates a new Ledger.
func NewLedger(pool Pool) *Ledger {
	return &Ledger{pool: pool}
}

// Begin starts a database transaction.
func (l *Ledger) Begin(ctx context.Context) (ports.LedgerTx, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin ledger transaction: %w", err)
	}
	return &ledgerTx{tx: tx}, nil
}

// GetFundingSource fetches a funding source by id (without locking).
func (l *Ledger) GetFundingSource(ctx context.Context, id string) (*domain.FundingSource, error) {
	query := `SELECT ` + fundingSourceColumns + ` FROM funding_sources WHERE id = $1`

	fs, err := scanFundingSource(l.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get funding source: %w", err)
	}
	return fs, nil
}

// CreateFundingSource inserts a new funding source.
func (l *Ledger) CreateFundingSource(ctx context.Context, fs *domain.FundingSource) error {
	query := `INSERT INTO funding_sources (id, balance, version, created_at, updated_at)
		VALUES ($1, $2::numeric, $3, $4, $5)`

	_, err := l.pool.Exec(ctx, query, fs.ID, fs.Balance.String(), fs.Version, fs.CreatedAt, fs.UpdatedAt)
	if err != nil {
		if isPgError(err, codeUniqueViolation) {
			return ports.ErrAlreadyExists
		}
		if isPgError(err, codeCheckViolation) {
			return domain.ErrNegativeAmount
		}
		return fmt.Errorf("insert funding source: %w", err)
	}
	return nil
}

// EnsureFundingSource inserts id with the initial balance unless it exists.
func (l *Ledger) EnsureFundingSource(ctx context.Context, id string, initial decimal.Decimal) (bool, error) {
	query := `INSERT INTO funding_sources (id, balance) VALUES ($1, $2::numeric)
		ON CONFLICT (id) DO NOTHING`

	tag, err := l.pool.Exec(ctx, query, id, initial.String())
	if err != nil {
		return false, fmt.Errorf("ensure funding source: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListFundingSources returns all funding sources ordered by id.
func (l *Ledger) ListFundingSources(ctx context.Context) ([]domain.FundingSource, error) {
	query := `SELECT ` + fundingSourceColumns + ` FROM funding_sources ORDER BY id`

	rows, err := l.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list funding sources: %w", err)
	}
	defer rows.Close()

	var out []domain.FundingSource
	for rows.Next() {
		fs, err := scanFundingSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan funding source: %w", err)
		}
		out = append(out, *fs)
	}
	return out, rows.Err()
}

// GetCommittedTransfer fetches the COMMITTED record for key.
func (l *Ledger) GetCommittedTransfer(ctx context.Context, key string) (*domain.TransferRecord, error) {
	return getCommittedTransfer(ctx, l.pool, key)
}

// AppendTransfer inserts a record outside any transaction.
func (l *Ledger) AppendTransfer(ctx context.Context, record *domain.TransferRecord) error {
	return insertTransfer(ctx, l.pool, record)
}

// ListTransfers lists records where the funding source is payer or payee,
// newest first, with the total count of matches.
func (l *Ledger) ListTransfers(ctx context.Context, params ports.TransferListParams) ([]domain.TransferRecord, int64, error) {
	var (
		where []string
		args  []any
	)
	if params.FundingSourceID != "" {
		args = append(args, params.FundingSourceID)
		where = append(where, fmt.Sprintf("(payer_id = $%d OR payee_id = $%d)", len(args), len(args)))
	}
	if params.Outcome != nil {
		args = append(args, string(*params.Outcome))
		where = append(where, fmt.Sprintf("outcome = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := l.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transfer_records`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transfers: %w", err)
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, params.Offset)
	query := fmt.Sprintf(`SELECT %s FROM transfer_records%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		transferColumns, clause, len(args)-1, len(args))

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	out := make([]domain.TransferRecord, 0, limit)
	for rows.Next() {
		r, err := scanTransfer(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transfer: %w", err)
		}
		out = append(out, *r)
	}
	return out, total, rows.Err()
}

// ledgerTx implements ports.LedgerTx on a pgx transaction.
type ledgerTx struct {
	tx pgx.Tx
}

// LockFundingSources locks the rows in id order so concurrent transfers
// over the same pair cannot deadlock.
func (t *ledgerTx) LockFundingSources(ctx context.Context, ids ...string) (map[string]*domain.FundingSource, error) {
	sorted := dedupeSorted(ids)
	query := `SELECT ` + fundingSourceColumns + ` FROM funding_sources WHERE id = ANY($1) ORDER BY id FOR UPDATE`

	rows, err := t.tx.Query(ctx, query, sorted)
	if err != nil {
		return nil, fmt.Errorf("lock funding sources: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*domain.FundingSource, len(sorted))
	for rows.Next() {
		fs, err := scanFundingSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan locked funding source: %w", err)
		}
		out[fs.ID] = fs
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lock funding sources: %w", err)
	}
	return out, nil
}

func (t *ledgerTx) GetCommittedTransfer(ctx context.Context, key string) (*domain.TransferRecord, error) {
	return getCommittedTransfer(ctx, t.tx, key)
}

// UpdateBalance writes the balance if the version is unchanged.
func (t *ledgerTx) UpdateBalance(ctx context.Context, fs *domain.FundingSource) error {
	query := `UPDATE funding_sources SET balance = $1::numeric, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`

	now := time.Now().UTC()
	tag, err := t.tx.Exec(ctx, query, fs.Balance.String(), now, fs.ID, fs.Version)
	if err != nil {
		if isPgError(err, codeCheckViolation) {
			return domain.ErrInsufficientFunds
		}
		return fmt.Errorf("update funding source balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrVersionConflict
	}
	fs.Version++
	fs.UpdatedAt = now
	return nil
}

func (t *ledgerTx) AppendTransfer(ctx context.Context, record *domain.TransferRecord) error {
	return insertTransfer(ctx, t.tx, record)
}

func (t *ledgerTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		if isPgError(err, codeUniqueViolation) {
			return ports.ErrDuplicateKey
		}
		return fmt.Errorf("commit ledger transaction: %w", err)
	}
	return nil
}

func (t *ledgerTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback ledger transaction: %w", err)
	}
	return nil
}

// rowQuerier and execer are satisfied by both Pool and pgx.Tx.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func getCommittedTransfer(ctx context.Context, q rowQuerier, key string) (*domain.TransferRecord, error) {
	query := `SELECT ` + transferColumns + ` FROM transfer_records
		WHERE idempotency_key = $1 AND outcome = 'COMMITTED'`

	r, err := scanTransfer(q.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get committed transfer: %w", err)
	}
	return r, nil
}

func insertTransfer(ctx context.Context, e execer, r *domain.TransferRecord) error {
	query := `INSERT INTO transfer_records
		(id, idempotency_key, kind, payer_id, payee_id, operation, arguments_digest, amount, outcome, created_at, finalized_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9, $10, $11)`

	_, err := e.Exec(ctx, query,
		r.ID, r.IdempotencyKey, string(r.Kind), r.PayerID, r.PayeeID, r.Operation,
		r.ArgumentsDigest, r.Amount.String(), string(r.Outcome), r.CreatedAt, r.FinalizedAt,
	)
	if err != nil {
		if isPgError(err, codeUniqueViolation) {
			return ports.ErrDuplicateKey
		}
		return fmt.Errorf("insert transfer record: %w", err)
	}
	return nil
}

func scanFundingSource(row pgx.Row) (*domain.FundingSource, error) {
	var (
		fs      domain.FundingSource
		balance string
	)
	if err := row.Scan(&fs.ID, &balance, &fs.Version, &fs.CreatedAt, &fs.UpdatedAt); err != nil {
		return nil, err
	}
	b, err := decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("parse balance of %s: %w", fs.ID, err)
	}
	fs.Balance = b
	return &fs, nil
}

func scanTransfer(row pgx.Row) (*domain.TransferRecord, error) {
	var (
		r                     domain.TransferRecord
		kind, outcome, amount string
	)
	err := row.Scan(&r.ID, &r.IdempotencyKey, &kind, &r.PayerID, &r.PayeeID, &r.Operation,
		&r.ArgumentsDigest, &amount, &outcome, &r.CreatedAt, &r.FinalizedAt)
	if err != nil {
		return nil, err
	}
	a, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount of transfer %s: %w", r.ID, err)
	}
	r.Amount = a
	r.Kind = domain.TransferKind(kind)
	r.Outcome = domain.TransferOutcome(outcome)
	return &r, nil
}

func dedupeSorted(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	n := 0
	for i, id := range out {
		if i > 0 && id == out[n-1] {
			continue
		}
		out[n] = id
		n++
	}
	return out[:n]
}
