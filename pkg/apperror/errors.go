package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Phase names the stage of an invocation that produced an error.
type Phase string

const (
	PhaseAuthentication Phase = "authentication"
	PhasePolicy         Phase = "policy"
	PhaseSettlement     Phase = "settlement"
	PhaseOperation      Phase = "operation"
	PhaseAdmission      Phase = "admission"
	PhaseRequest        Phase = "request"
	PhaseInfrastructure Phase = "infrastructure"
)

// AppError is a structured error that maps to HTTP responses and to
// the error payload of rejected tool calls.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	Phase      Phase  `json:"phase"`
	HTTPStatus int    `json:"-"`
	Retryable  bool   `json:"retryable"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches two AppErrors by code, so errors.Is(err, ErrInsufficientFunds())
// holds for any insufficient-funds error regardless of message.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Phase:      PhaseRequest,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Phase:      PhaseRequest,
		Err:        err,
	}
}

// In sets the phase of the error and returns it.
func (e *AppError) In(phase Phase) *AppError {
	e.Phase = phase
	return e
}

// AsRetryable marks the error as safe to retry with the same request id.
func (e *AppError) AsRetryable() *AppError {
	e.Retryable = true
	return e
}

// From extracts an *AppError from err, if any.
func From(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// ---- Authentication (AUTH) ----

func ErrMissingCredentials() *AppError {
	return New("AUTH_001", "Missing wallet credentials", http.StatusUnauthorized).In(PhaseAuthentication)
}

func ErrInvalidCredentials(reason string) *AppError {
	msg := "Invalid wallet credentials"
	if reason != "" {
		msg = msg + ": " + reason
	}
	return New("AUTH_002", msg, http.StatusUnauthorized).In(PhaseAuthentication)
}

func ErrInvalidAdminKey() *AppError {
	return New("AUTH_003", "Invalid admin key", http.StatusUnauthorized).In(PhaseAuthentication)
}

// ---- Price Policy (POL) ----

func ErrUnknownOperation(name string) *AppError {
	return New("POL_001", fmt.Sprintf("Unknown operation %q", name), http.StatusNotFound).In(PhasePolicy)
}

// ---- Settlement (PAY) ----

func ErrInsufficientFunds() *AppError {
	return New("PAY_001", "Insufficient balance in funding source", http.StatusPaymentRequired).In(PhaseSettlement)
}

func ErrInvalidAmount() *AppError {
	return New("PAY_002", "Invalid amount", http.StatusBadRequest).In(PhaseSettlement)
}

func ErrIdempotencyConflict() *AppError {
	return New("PAY_003", "Idempotency key already used with different parameters", http.StatusConflict).In(PhaseSettlement)
}

func ErrUnknownFundingSource(id string) *AppError {
	return New("PAY_004", fmt.Sprintf("Funding source %q not found", id), http.StatusNotFound).In(PhaseSettlement)
}

func ErrSelfPayment() *AppError {
	return New("PAY_005", "Payer and payee must differ", http.StatusUnprocessableEntity).In(PhaseSettlement)
}

func ErrFundingSourceExists(id string) *AppError {
	return New("PAY_006", fmt.Sprintf("Funding source %q already exists", id), http.StatusConflict).In(PhaseRequest)
}

func ErrPaymentRefunded() *AppError {
	return New("PAY_007", "Payment for this request was refunded, retry with a new request id", http.StatusConflict).In(PhaseSettlement)
}

func ErrNotFound(entity string) *AppError {
	return New("REQ_404", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Operation (OPS) ----

// ErrOperationFailed reports a failure of an admitted, paid operation.
func ErrOperationFailed(err error) *AppError {
	msg := "Operation failed"
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	return Wrap("OPS_001", msg, http.StatusUnprocessableEntity, err).In(PhaseOperation)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests).In(PhaseAdmission).AsRetryable()
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Ledger unavailable", http.StatusServiceUnavailable, err).In(PhaseInfrastructure).AsRetryable()
}

func ErrSettlementTimeout(err error) *AppError {
	return Wrap("SYS_002", "Settlement did not complete in time", http.StatusGatewayTimeout, err).In(PhaseInfrastructure).AsRetryable()
}

// InternalError wraps an internal error as a SYS_000 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_000", "Internal server error", http.StatusInternalServerError, err).In(PhaseInfrastructure)
}

// Validation returns a request validation error.
func Validation(message string) *AppError {
	return New("REQ_001", message, http.StatusBadRequest)
}
