package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"paygate/internal/core/domain"
	"paygate/internal/core/ports"
	"paygate/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const maxTransferPageSize = 100

type fundingService struct {
	ledger     ports.Ledger
	settlement ports.SettlementService
	secrets    ports.SecretService
	tokens     ports.TokenService
	log        zerolog.Logger
}

// NewFundingService creates the administrative funding source service.
func NewFundingService(
	ledger ports.Ledger,
	settlement ports.SettlementService,
	secrets ports.SecretService,
	tokens ports.TokenService,
	log zerolog.Logger,
) ports.FundingService {
	return &fundingService{
		ledger:     ledger,
		settlement: settlement,
		secrets:    secrets,
		tokens:     tokens,
		log:        log,
	}
}

// Provision creates a funding source and returns its credentials. The HMAC
// secret is derived, not stored, and shown only here.
func (s *fundingService) Provision(ctx context.Context, req ports.ProvisionRequest) (*ports.ProvisionResponse, error) {
	if req.ID == "" || req.ID == domain.ExternalPayer {
		return nil, apperror.Validation("invalid funding source id")
	}
	if req.InitialBalance.IsNegative() {
		return nil, apperror.ErrInvalidAmount()
	}

	now := time.Now().UTC()
	fs := &domain.FundingSource{
		ID:        req.ID,
		Balance:   req.InitialBalance,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.ledger.CreateFundingSource(ctx, fs); err != nil {
		if errors.Is(err, ports.ErrAlreadyExists) {
			return nil, apperror.ErrFundingSourceExists(req.ID)
		}
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create funding source: %w", err))
	}

	token, expiry, err := s.tokens.Generate(req.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("issue token: %w", err))
	}

	s.log.Info().
		Str("funding_source", req.ID).
		Str("balance", req.InitialBalance.String()).
		Msg("funding source provisioned")

	return &ports.ProvisionResponse{
		FundingSource: fs,
		HMACSecret:    s.secrets.Derive(req.ID),
		Token:         token,
		TokenExpiry:   expiry,
	}, nil
}

// Get returns a funding source.
func (s *fundingService) Get(ctx context.Context, id string) (*domain.FundingSource, error) {
	fs, err := s.ledger.GetFundingSource(ctx, id)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get funding source: %w", err))
	}
	if fs == nil {
		return nil, apperror.ErrUnknownFundingSource(id)
	}
	return fs, nil
}

// Deposit tops up a funding source. Repeating a reference is a no-op.
func (s *fundingService) Deposit(ctx context.Context, id string, amount decimal.Decimal, reference string) (*domain.FundingSource, error) {
	if reference == "" {
		reference = uuid.NewString()
	}
	if _, err := s.settlement.Deposit(ctx, id, amount, domain.BuildDepositIdempotencyKey(id, reference)); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// IssueToken issues a fresh bearer token for an existing funding source.
func (s *fundingService) IssueToken(ctx context.Context, id string) (string, time.Time, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return "", time.Time{}, err
	}
	token, expiry, err := s.tokens.Generate(id)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("issue token: %w", err))
	}
	return token, expiry, nil
}

// ListTransfers returns a page of transfer records.
func (s *fundingService) ListTransfers(ctx context.Context, params ports.TransferListParams) ([]domain.TransferRecord, int64, error) {
	if params.Limit <= 0 || params.Limit > maxTransferPageSize {
		params.Limit = maxTransferPageSize
	}
	if params.Offset < 0 {
		params.Offset = 0
	}
	records, total, err := s.ledger.ListTransfers(ctx, params)
	if err != nil {
		return nil, 0, apperror.ErrDatabaseError(fmt.Errorf("list transfers: %w", err))
	}
	return records, total, nil
}

// GetTransfer returns the committed transfer of an idempotency key.
func (s *fundingService) GetTransfer(ctx context.Context, key string) (*domain.TransferRecord, error) {
	record, err := s.ledger.GetCommittedTransfer(ctx, key)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get transfer: %w", err))
	}
	if record == nil {
		return nil, apperror.ErrNotFound("transfer")
	}
	return record, nil
}
