package client

import (
	"errors"
	"fmt"

	"paygate/pkg/protocol"
)

// Sentinels matched by errors.Is against a *PaymentError.
var (
	ErrMissingCredentials   = errors.New("missing wallet credentials")
	ErrInvalidCredentials   = errors.New("invalid wallet credentials")
	ErrUnknownOperation     = errors.New("unknown operation")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrUnknownFundingSource = errors.New("unknown funding source")
	ErrIdempotencyConflict  = errors.New("request id reused for a different call")
	ErrPaymentRefunded      = errors.New("payment for request id was refunded")
	ErrSettlementTimeout    = errors.New("settlement timed out")
	ErrRateLimited          = errors.New("rate limited")
	ErrUnavailable          = errors.New("gateway unavailable")
)

var sentinels = map[string]error{
	protocol.CodeMissingCredentials:   ErrMissingCredentials,
	protocol.CodeInvalidCredentials:   ErrInvalidCredentials,
	protocol.CodeUnknownOperation:     ErrUnknownOperation,
	protocol.CodeInsufficientFunds:    ErrInsufficientFunds,
	protocol.CodeUnknownFundingSource: ErrUnknownFundingSource,
	protocol.CodeIdempotencyConflict:  ErrIdempotencyConflict,
	protocol.CodePaymentRefunded:      ErrPaymentRefunded,
	protocol.CodeSettlementTimeout:    ErrSettlementTimeout,
	protocol.CodeRateLimited:          ErrRateLimited,
	protocol.CodeInfrastructure:       ErrUnavailable,
}

// PaymentError is a call the gateway rejected before dispatch. Nothing was
// executed and, unless the code says otherwise, nothing was charged.
type PaymentError struct {
	Operation string
	Payload   protocol.ErrorPayload
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("%s rejected [%s]: %s", e.Operation, e.Payload.Code, e.Payload.Message)
}

// Is matches the sentinel of the error code.
func (e *PaymentError) Is(target error) bool {
	s, ok := sentinels[e.Payload.Code]
	return ok && s == target
}

// Retryable reports whether the same call may succeed when repeated.
func (e *PaymentError) Retryable() bool {
	return e.Payload.Retryable
}

// OperationError is a failure of a paid operation. Receipt describes the
// payment taken for it.
type OperationError struct {
	Operation string
	Message   string
	Receipt   *Receipt
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Message)
}
