package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// BuildIdempotencyKey constructs the settlement key of one invocation.
// Format: "payer:operation:request_id".
func BuildIdempotencyKey(payerID, operation, requestID string) string {
	return payerID + ":" + operation + ":" + requestID
}

// BuildRefundIdempotencyKey constructs the key of the compensating transfer
// for the settlement identified by key.
func BuildRefundIdempotencyKey(key string) string {
	return key + ":refund"
}

// BuildDepositIdempotencyKey constructs the key of an external deposit.
func BuildDepositIdempotencyKey(fundingSourceID, reference string) string {
	return "deposit:" + fundingSourceID + ":" + reference
}

// DigestArguments returns the hex SHA-256 of the canonical form of raw call
// arguments. Object key order and whitespace do not change the digest, and
// absent, null and empty-object arguments share one digest. Numbers keep
// their literal form.
func DigestArguments(raw json.RawMessage) string {
	canonical := []byte("{}")
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		canonical = trimmed
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err == nil {
			if b, err := json.Marshal(v); err == nil {
				canonical = b
			}
		}
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}
