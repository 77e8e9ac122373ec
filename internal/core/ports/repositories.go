package ports

import (
	"context"
	"errors"

	"paygate/internal/core/domain"

	"github.com/shopspring/decimal"
)

var (
	// ErrVersionConflict is returned by LedgerTx.UpdateBalance when the
	// funding source changed since it was locked.
	ErrVersionConflict = errors.New("funding source version conflict")
	// ErrDuplicateKey is returned when a second COMMITTED record is
	// appended for an idempotency key.
	ErrDuplicateKey = errors.New("idempotency key already committed")
	// ErrAlreadyExists is returned when creating a funding source twice.
	ErrAlreadyExists = errors.New("funding source already exists")
)

// Ledger is the durable store of funding sources and transfer records.
// Lookups return (nil, nil) when nothing matches.
type Ledger interface {
	Begin(ctx context.Context) (LedgerTx, error)
	GetFundingSource(ctx context.Context, id string) (*domain.FundingSource, error)
	CreateFundingSource(ctx context.Context, fs *domain.FundingSource) error
	// EnsureFundingSource creates id with the initial balance unless it exists.
	EnsureFundingSource(ctx context.Context, id string, initial decimal.Decimal) (bool, error)
	ListFundingSources(ctx context.Context) ([]domain.FundingSource, error)
	GetCommittedTransfer(ctx context.Context, key string) (*domain.TransferRecord, error)
	// AppendTransfer records a finalized failed attempt outside any transaction.
	AppendTransfer(ctx context.Context, record *domain.TransferRecord) error
	ListTransfers(ctx context.Context, params TransferListParams) ([]domain.TransferRecord, int64, error)
}

// LedgerTx is one atomic unit of ledger work. Nothing it writes is visible
// to others before Commit; Rollback after Commit is a no-op.
type LedgerTx interface {
	// LockFundingSources locks the given ids in sorted order and returns the
	// ones that exist. Locks are held until Commit or Rollback.
	LockFundingSources(ctx context.Context, ids ...string) (map[string]*domain.FundingSource, error)
	GetCommittedTransfer(ctx context.Context, key string) (*domain.TransferRecord, error)
	// UpdateBalance persists fs.Balance if fs.Version is still current and
	// increments fs.Version.
	UpdateBalance(ctx context.Context, fs *domain.FundingSource) error
	AppendTransfer(ctx context.Context, record *domain.TransferRecord) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransferListParams holds filter + pagination for listing transfer records.
type TransferListParams struct {
	FundingSourceID string
	Outcome         *domain.TransferOutcome
	Limit           int
	Offset          int
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}
