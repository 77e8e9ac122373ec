package ports

import (
	"context"
	"net/http"
	"time"

	"paygate/internal/core/domain"

	"github.com/shopspring/decimal"
)

// SecretService derives per funding source HMAC secrets and verifies
// signatures made with them.
type SecretService interface {
	Derive(fundingSourceID string) string
	Verify(fundingSourceID, payload, signature string) bool
}

// HashService handles secret hashing (Argon2id).
type HashService interface {
	Hash(secret string) (string, error)
	Verify(secret string, hash string) (bool, error)
}

// TokenService handles wallet bearer tokens.
type TokenService interface {
	Generate(fundingSourceID string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	FundingSourceID string
	ExpiresAt       time.Time
}

// IdempotencyCache is the fast-path copy of committed transfer records.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached record JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// NonceStore manages nonce uniqueness for replay attack prevention.
type NonceStore interface {
	// CheckAndSet atomically checks if nonce exists, sets it if not.
	// Returns true if nonce is new (valid), false if already used.
	CheckAndSet(ctx context.Context, fundingSourceID string, nonce string, ttl time.Duration) (bool, error)
}

// RateLimitStore counts requests per key in fixed windows.
type RateLimitStore interface {
	// Allow increments the counter for key and reports whether the request
	// is within limit, with the remaining quota.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error)
}

// --- Service Ports (Business Logic) ---

// FundingStore is the read-only balance view of the ledger. Balances change
// only through SettlementService, which debits and credits inside a ledger
// transaction and records every change as a TransferRecord.
type FundingStore interface {
	GetBalance(ctx context.Context, id string) (decimal.Decimal, error)
}

// TransferRequest holds validated input for one settlement.
type TransferRequest struct {
	Kind           domain.TransferKind
	PayerID        string
	PayeeID        string
	Operation      string
	Amount         decimal.Decimal
	IdempotencyKey string
	// ArgumentsDigest is empty for transfers not tied to a call.
	ArgumentsDigest string
}

// SettlementService moves funds between funding sources exactly once per key.
type SettlementService interface {
	Transfer(ctx context.Context, req TransferRequest) (*domain.Settlement, error)
	Deposit(ctx context.Context, fundingSourceID string, amount decimal.Decimal, key string) (*domain.Settlement, error)
}

// PricePolicy answers what an operation costs.
type PricePolicy interface {
	Lookup(operation string) (domain.Price, error)
	Snapshot() *domain.PriceTable
	Replace(table *domain.PriceTable)
}

// WalletResolver turns transport headers into the payer's wallet context.
type WalletResolver interface {
	Resolve(ctx context.Context, header http.Header) (*domain.WalletContext, error)
}

// OperationHandler executes one invocation.
type OperationHandler func(ctx context.Context, inv *domain.Invocation) (*domain.OperationResult, error)

// Middleware decorates an OperationHandler.
type Middleware func(next OperationHandler) OperationHandler

// Chain composes middlewares; the first one is outermost.
func Chain(h OperationHandler, mws ...Middleware) OperationHandler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// FundingService is the administrative view of funding sources.
type FundingService interface {
	Provision(ctx context.Context, req ProvisionRequest) (*ProvisionResponse, error)
	Get(ctx context.Context, id string) (*domain.FundingSource, error)
	Deposit(ctx context.Context, id string, amount decimal.Decimal, reference string) (*domain.FundingSource, error)
	IssueToken(ctx context.Context, id string) (string, time.Time, error)
	ListTransfers(ctx context.Context, params TransferListParams) ([]domain.TransferRecord, int64, error)
	GetTransfer(ctx context.Context, key string) (*domain.TransferRecord, error)
}

// ProvisionRequest holds input for funding source creation.
type ProvisionRequest struct {
	ID             string
	InitialBalance decimal.Decimal
}

// ProvisionResponse holds the credentials shown once at provisioning.
type ProvisionResponse struct {
	FundingSource *domain.FundingSource
	HMACSecret    string
	Token         string
	TokenExpiry   time.Time
}

// AuditService records administrative actions.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// SettlementNotifier publishes committed transfers.
type SettlementNotifier interface {
	Notify(ctx context.Context, record *domain.TransferRecord)
}

// Collector records admission and settlement metrics.
type Collector interface {
	RecordAdmission(operation string, state domain.AdmissionState, code string)
	RecordSettlement(outcome string, duration time.Duration)
	RecordDispatch(operation string, failed bool, duration time.Duration)
}
