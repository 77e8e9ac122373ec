package domain

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AdmissionState tracks one invocation through admission.
type AdmissionState string

const (
	AdmissionReceived        AdmissionState = "RECEIVED"
	AdmissionContextResolved AdmissionState = "CONTEXT_RESOLVED"
	AdmissionPriced          AdmissionState = "PRICED"
	AdmissionSettling        AdmissionState = "SETTLING"
	AdmissionAdmitted        AdmissionState = "ADMITTED"
	AdmissionDispatched      AdmissionState = "DISPATCHED"
	AdmissionCompleted       AdmissionState = "COMPLETED"
	AdmissionRejected        AdmissionState = "REJECTED"
)

// Invocation is one tool call as seen by the gateway.
type Invocation struct {
	Operation string          `json:"operation"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	RequestID string          `json:"request_id"`
	Header    http.Header     `json:"-"`
}

// EnsureRequestID assigns a generated request id when the caller sent none.
func (i *Invocation) EnsureRequestID() {
	if i.RequestID == "" {
		i.RequestID = uuid.NewString()
	}
}

// OperationResult is what an operation returns on success.
type OperationResult struct {
	Text       string   `json:"text"`
	Structured any      `json:"structured,omitempty"`
	Receipt    *Receipt `json:"receipt,omitempty"`
}

// OperationError is a failure of an admitted operation. It is returned to
// the caller unchanged, together with the receipt of the payment taken.
type OperationError struct {
	Operation string
	Err       error
	Receipt   *Receipt
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("operation %s failed: %v", e.Operation, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// Receipt describes the payment that admitted an invocation.
type Receipt struct {
	TransferID     string          `json:"transfer_id,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	PayerID        string          `json:"payer_id"`
	PayeeID        string          `json:"payee_id,omitempty"`
	Operation      string          `json:"operation"`
	Amount         decimal.Decimal `json:"amount"`
	Free           bool            `json:"free,omitempty"`
	Replayed       bool            `json:"replayed,omitempty"`
	Refunded       bool            `json:"refunded,omitempty"`
}

// Settlement is the outcome of a successful transfer call.
type Settlement struct {
	Record   *TransferRecord
	Replayed bool
}

// ReceiptFor builds the receipt of a settled invocation.
func ReceiptFor(s *Settlement) *Receipt {
	r := s.Record
	return &Receipt{
		TransferID:     r.ID.String(),
		IdempotencyKey: r.IdempotencyKey,
		PayerID:        r.PayerID,
		PayeeID:        r.PayeeID,
		Operation:      r.Operation,
		Amount:         r.Amount,
		Replayed:       s.Replayed,
	}
}
