// Package protocol holds the wire contract shared by the gateway and paying
// callers: credential headers, tool metadata keys, the request signature and
// the error payload of rejected calls.
package protocol

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Credential and correlation headers.
const (
	HeaderAuthorization = "Authorization"
	HeaderFundingSource = "X-Funding-Source"
	HeaderTimestamp     = "X-Wallet-Timestamp"
	HeaderNonce         = "X-Wallet-Nonce"
	HeaderSignature     = "X-Wallet-Signature"
	HeaderRequestID     = "X-Request-Id"
	HeaderAdminKey      = "X-Admin-Key"

	HeaderWebhookSignature = "X-Paygate-Signature"

	BearerPrefix = "Bearer "
)

// Keys of the _meta object on tools, calls and results.
const (
	MetaPrice     = "paygate/price"
	MetaFree      = "paygate/free"
	MetaRequestID = "paygate/request_id"
	MetaError     = "paygate/error"
	MetaReceipt   = "paygate/receipt"
)

// Stable error codes reported to callers.
const (
	CodeMissingCredentials   = "AUTH_001"
	CodeInvalidCredentials   = "AUTH_002"
	CodeUnknownOperation     = "POL_001"
	CodeInsufficientFunds    = "PAY_001"
	CodeInvalidAmount        = "PAY_002"
	CodeIdempotencyConflict  = "PAY_003"
	CodeUnknownFundingSource = "PAY_004"
	CodeSelfPayment          = "PAY_005"
	CodePaymentRefunded      = "PAY_007"
	CodeRateLimited          = "RATE_001"
	CodeInfrastructure       = "SYS_001"
	CodeSettlementTimeout    = "SYS_002"
	CodeOperationFailed      = "OPS_001"
)

// ErrorPayload is the structured content of a rejected or failed call.
type ErrorPayload struct {
	Code      string `json:"error_code"`
	Message   string `json:"message"`
	Phase     string `json:"phase"`
	Status    int    `json:"status,omitempty"`
	Retryable bool   `json:"retryable"`
}

// CanonicalString constructs the payload signed by HMAC credentials.
// Format: FUNDING_SOURCE|TIMESTAMP|NONCE
func CanonicalString(fundingSourceID string, timestamp int64, nonce string) string {
	return fmt.Sprintf("%s|%d|%s", fundingSourceID, timestamp, nonce)
}

// Sign computes HMAC-SHA256 of payload using secret.
// Returns lowercase hex-encoded signature.
func Sign(secret string, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks if signature matches HMAC-SHA256(secret, payload) in
// constant time.
func Verify(secret string, payload string, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, payload)), []byte(signature))
}
