package service

import (
	"crypto/sha256"
	"encoding/hex"
	"io"

	"paygate/pkg/protocol"

	"golang.org/x/crypto/hkdf"
)

const hmacSecretLen = 32

// HKDFSecretService implements ports.SecretService. Per funding source
// HMAC secrets are derived from one master secret with HKDF-SHA256, so no
// secret is ever stored.
type HKDFSecretService struct {
	master []byte
}

// NewHKDFSecretService creates a secret service over master.
func NewHKDFSecretService(master string) *HKDFSecretService {
	return &HKDFSecretService{master: []byte(master)}
}

// Derive returns the hex-encoded HMAC secret of a funding source.
func (s *HKDFSecretService) Derive(fundingSourceID string) string {
	r := hkdf.New(sha256.New, s.master, nil, []byte("paygate/hmac/"+fundingSourceID))
	key := make([]byte, hmacSecretLen)
	// HKDF-SHA256 can produce up to 255*32 bytes; 32 never fails.
	_, _ = io.ReadFull(r, key)
	return hex.EncodeToString(key)
}

// Verify checks a request signature made with the funding source's secret.
func (s *HKDFSecretService) Verify(fundingSourceID, payload, signature string) bool {
	if len(s.master) == 0 {
		return false
	}
	return protocol.Verify(s.Derive(fundingSourceID), payload, signature)
}
