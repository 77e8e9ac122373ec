package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferKind distinguishes why money moved.
type TransferKind string

const (
	TransferKindPayment TransferKind = "PAYMENT"
	TransferKindRefund  TransferKind = "REFUND"
	TransferKindDeposit TransferKind = "DEPOSIT"
)

// TransferOutcome is the lifecycle state of a transfer attempt.
type TransferOutcome string

const (
	TransferOutcomePending           TransferOutcome = "PENDING"
	TransferOutcomeCommitted         TransferOutcome = "COMMITTED"
	TransferOutcomeInsufficientFunds TransferOutcome = "INSUFFICIENT_FUNDS"
	TransferOutcomeUnknownParty      TransferOutcome = "UNKNOWN_PARTY"
)

// TransferRecord is the append-only log entry of one settlement attempt.
// At most one COMMITTED record exists per idempotency key.
type TransferRecord struct {
	ID             uuid.UUID    `json:"id"`
	IdempotencyKey string       `json:"idempotency_key"`
	Kind           TransferKind `json:"kind"`
	PayerID        string       `json:"payer_id"`
	PayeeID        string       `json:"payee_id"`
	Operation      string       `json:"operation,omitempty"`
	// ArgumentsDigest binds a payment to the call arguments it paid for.
	ArgumentsDigest string          `json:"arguments_digest,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Outcome         TransferOutcome `json:"outcome"`
	CreatedAt       time.Time       `json:"created_at"`
	FinalizedAt     *time.Time      `json:"finalized_at,omitempty"`
}

// NewTransferRecord starts a PENDING attempt.
func NewTransferRecord(kind TransferKind, key, payer, payee, operation string, amount decimal.Decimal) *TransferRecord {
	return &TransferRecord{
		ID:             uuid.New(),
		IdempotencyKey: key,
		Kind:           kind,
		PayerID:        payer,
		PayeeID:        payee,
		Operation:      operation,
		Amount:         amount,
		Outcome:        TransferOutcomePending,
		CreatedAt:      time.Now().UTC(),
	}
}

// Finalize moves a PENDING record to its terminal outcome. It is a no-op on
// a record that is already terminal.
func (r *TransferRecord) Finalize(outcome TransferOutcome) {
	if r.IsTerminal() {
		return
	}
	now := time.Now().UTC()
	r.Outcome = outcome
	r.FinalizedAt = &now
}

// IsTerminal returns true if the record is in a final state.
func (r *TransferRecord) IsTerminal() bool {
	return r.Outcome != TransferOutcomePending
}

// IsCommitted returns true if funds moved.
func (r *TransferRecord) IsCommitted() bool {
	return r.Outcome == TransferOutcomeCommitted
}

// SameRequest reports whether a replay with these parameters refers to
// the same transfer as r.
func (r *TransferRecord) SameRequest(payer, payee string, amount decimal.Decimal, argumentsDigest string) bool {
	return r.PayerID == payer &&
		r.PayeeID == payee &&
		r.Amount.Equal(amount) &&
		r.ArgumentsDigest == argumentsDigest
}
