package domain

import (
	"context"
	"sync/atomic"
)

// CredentialScheme names how a caller proved control of a funding source.
type CredentialScheme string

const (
	CredentialSchemeBearer CredentialScheme = "bearer"
	CredentialSchemeHMAC   CredentialScheme = "hmac"
)

// WalletContext is the per-invocation payer identity. It is created by the
// resolver for a single call and released when that call finishes.
type WalletContext struct {
	FundingSourceID string           `json:"funding_source_id"`
	Scheme          CredentialScheme `json:"scheme"`
	Credential      string           `json:"-"`

	released atomic.Bool
}

// Release ends the context's lifetime. It is safe to call more than once.
func (w *WalletContext) Release() {
	w.released.Store(true)
}

// Released reports whether Release has been called.
func (w *WalletContext) Released() bool {
	return w.released.Load()
}

type walletKey struct{}

// WithWallet scopes w to ctx. The returned func releases w and must be
// called on every exit path of the invocation.
func WithWallet(ctx context.Context, w *WalletContext) (context.Context, func()) {
	return context.WithValue(ctx, walletKey{}, w), w.Release
}

// WalletFromContext returns the live wallet context carried by ctx.
func WalletFromContext(ctx context.Context) (*WalletContext, bool) {
	w, ok := ctx.Value(walletKey{}).(*WalletContext)
	if !ok || w.Released() {
		return nil, false
	}
	return w, true
}
