package service

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"paygate/internal/core/domain"
	"paygate/internal/core/ports"
	"paygate/pkg/apperror"
	"paygate/pkg/protocol"

	"github.com/rs/zerolog"
)

// WalletResolverConfig bounds HMAC request freshness.
type WalletResolverConfig struct {
	MaxClockSkew time.Duration
	NonceTTL     time.Duration
}

// WalletResolverImpl implements ports.WalletResolver. It reads transport
// headers only and accepts either a bearer token or an HMAC signature.
type WalletResolverImpl struct {
	tokens  ports.TokenService
	secrets ports.SecretService
	nonces  ports.NonceStore
	cfg     WalletResolverConfig
	now     func() time.Time
	log     zerolog.Logger
}

// NewWalletResolver creates a wallet context resolver.
func NewWalletResolver(
	tokens ports.TokenService,
	secrets ports.SecretService,
	nonces ports.NonceStore,
	cfg WalletResolverConfig,
	log zerolog.Logger,
) *WalletResolverImpl {
	if cfg.MaxClockSkew <= 0 {
		cfg.MaxClockSkew = time.Minute
	}
	if cfg.NonceTTL < 2*cfg.MaxClockSkew {
		cfg.NonceTTL = 2 * cfg.MaxClockSkew
	}
	return &WalletResolverImpl{
		tokens:  tokens,
		secrets: secrets,
		nonces:  nonces,
		cfg:     cfg,
		now:     time.Now,
		log:     log,
	}
}

// Resolve authenticates the caller of one invocation.
func (r *WalletResolverImpl) Resolve(ctx context.Context, header http.Header) (*domain.WalletContext, error) {
	authz := header.Get(protocol.HeaderAuthorization)
	claimed := header.Get(protocol.HeaderFundingSource)
	signature := header.Get(protocol.HeaderSignature)

	switch {
	case authz != "":
		return r.resolveBearer(authz, claimed)
	case signature != "":
		return r.resolveHMAC(ctx, header, claimed, signature)
	case claimed != "":
		// An identifier without proof is never trusted.
		return nil, apperror.ErrInvalidCredentials("funding source is not signed")
	default:
		return nil, apperror.ErrMissingCredentials()
	}
}

func (r *WalletResolverImpl) resolveBearer(authz, claimed string) (*domain.WalletContext, error) {
	if !strings.HasPrefix(authz, protocol.BearerPrefix) {
		return nil, apperror.ErrInvalidCredentials("unsupported authorization scheme")
	}
	token := strings.TrimSpace(strings.TrimPrefix(authz, protocol.BearerPrefix))
	if token == "" {
		return nil, apperror.ErrInvalidCredentials("empty bearer token")
	}

	claims, err := r.tokens.Validate(token)
	if err != nil {
		r.log.Debug().Err(err).Msg("bearer token rejected")
		return nil, apperror.ErrInvalidCredentials("invalid bearer token")
	}
	if claimed != "" && claimed != claims.FundingSourceID {
		return nil, apperror.ErrInvalidCredentials("funding source does not match token")
	}

	return &domain.WalletContext{
		FundingSourceID: claims.FundingSourceID,
		Scheme:          domain.CredentialSchemeBearer,
		Credential:      token,
	}, nil
}

func (r *WalletResolverImpl) resolveHMAC(ctx context.Context, header http.Header, id, signature string) (*domain.WalletContext, error) {
	tsHeader := header.Get(protocol.HeaderTimestamp)
	nonce := header.Get(protocol.HeaderNonce)
	if id == "" || tsHeader == "" || nonce == "" {
		return nil, apperror.ErrInvalidCredentials("incomplete signature headers")
	}

	ts, err := strconv.ParseInt(tsHeader, 10, 64)
	if err != nil {
		return nil, apperror.ErrInvalidCredentials("malformed timestamp")
	}
	drift := r.now().Sub(time.Unix(ts, 0))
	if drift < 0 {
		drift = -drift
	}
	if drift > r.cfg.MaxClockSkew {
		return nil, apperror.ErrInvalidCredentials("timestamp outside allowed window")
	}

	// Signature before nonce, so unsigned requests cannot burn nonces.
	if !r.secrets.Verify(id, protocol.CanonicalString(id, ts, nonce), signature) {
		return nil, apperror.ErrInvalidCredentials("signature mismatch")
	}

	fresh, err := r.nonces.CheckAndSet(ctx, id, nonce, r.cfg.NonceTTL)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("nonce check: %w", err))
	}
	if !fresh {
		return nil, apperror.ErrInvalidCredentials("nonce already used")
	}

	return &domain.WalletContext{
		FundingSourceID: id,
		Scheme:          domain.CredentialSchemeHMAC,
		Credential:      signature,
	}, nil
}
