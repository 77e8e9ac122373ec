package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"paygate/internal/core/domain"
	"paygate/internal/core/ports"
	"paygate/internal/metrics"
	"paygate/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SettlementConfig tunes the settlement engine.
type SettlementConfig struct {
	Timeout    time.Duration // bound of one Transfer call, lock waits included
	MaxRetries int           // retries after version conflicts or duplicate commits
	CacheTTL   time.Duration

	// AutoProvision creates unknown payers with InitialBalance and unknown
	// payees empty instead of rejecting the transfer.
	AutoProvision  bool
	InitialBalance decimal.Decimal
}

// SettlementServiceImpl implements ports.SettlementService on a ports.Ledger.
type SettlementServiceImpl struct {
	ledger   ports.Ledger
	cache    ports.IdempotencyCache
	notifier ports.SettlementNotifier
	metrics  ports.Collector
	cfg      SettlementConfig
	log      zerolog.Logger
}

// NewSettlementService creates a settlement engine. cache and notifier are
// optional.
func NewSettlementService(
	ledger ports.Ledger,
	cache ports.IdempotencyCache,
	notifier ports.SettlementNotifier,
	collector ports.Collector,
	cfg SettlementConfig,
	log zerolog.Logger,
) *SettlementServiceImpl {
	if collector == nil {
		collector = metrics.NoOp{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	return &SettlementServiceImpl{
		ledger:   ledger,
		cache:    cache,
		notifier: notifier,
		metrics:  collector,
		cfg:      cfg,
		log:      log,
	}
}

// attemptFailure is a settlement attempt that was rolled back for a
// business reason. The record is logged after the rollback.
type attemptFailure struct {
	record *domain.TransferRecord
	err    *apperror.AppError
}

func (f *attemptFailure) Error() string { return f.err.Error() }

// Transfer moves req.Amount from payer to payee exactly once per
// idempotency key.
func (s *SettlementServiceImpl) Transfer(ctx context.Context, req ports.TransferRequest) (*domain.Settlement, error) {
	if req.Kind == "" {
		req.Kind = domain.TransferKindPayment
	}
	start := time.Now()
	st, err := s.settle(ctx, req)
	s.observe(st, err, time.Since(start))
	return st, err
}

// Deposit credits a funding source from outside the system.
func (s *SettlementServiceImpl) Deposit(ctx context.Context, fundingSourceID string, amount decimal.Decimal, key string) (*domain.Settlement, error) {
	if !amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	return s.Transfer(ctx, ports.TransferRequest{
		Kind:           domain.TransferKindDeposit,
		PayerID:        domain.ExternalPayer,
		PayeeID:        fundingSourceID,
		Amount:         amount,
		IdempotencyKey: key,
	})
}

func (s *SettlementServiceImpl) settle(ctx context.Context, req ports.TransferRequest) (*domain.Settlement, error) {
	if err := validateTransfer(req); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	// Layer 1 + 2: cache, then the committed-transfer log.
	st, err := s.lookupCommitted(ctx, req)
	if err != nil {
		return nil, s.classify(ctx, err)
	}
	if st != nil {
		if err := s.unlessRefunded(ctx, st); err != nil {
			return nil, err
		}
		return st, nil
	}

	if s.cfg.AutoProvision {
		if err := s.provisionParties(ctx, req); err != nil {
			return nil, s.classify(ctx, err)
		}
	}

	for attempt := 0; ; attempt++ {
		st, err := s.attempt(ctx, req)
		if err == nil {
			if err := s.unlessRefunded(ctx, st); err != nil {
				return nil, err
			}
			return st, nil
		}

		var failure *attemptFailure
		if errors.As(err, &failure) {
			s.recordFailure(ctx, failure.record)
			return nil, failure.err
		}

		if errors.Is(err, ports.ErrVersionConflict) || errors.Is(err, ports.ErrDuplicateKey) {
			if attempt < s.cfg.MaxRetries && ctx.Err() == nil {
				s.log.Debug().Err(err).
					Str("key", req.IdempotencyKey).
					Int("attempt", attempt+1).
					Msg("settlement conflict, retrying")
				continue
			}
		}
		return nil, s.classify(ctx, err)
	}
}

// attempt runs one locked read-modify-write of both balances.
func (s *SettlementServiceImpl) attempt(ctx context.Context, req ports.TransferRequest) (*domain.Settlement, error) {
	tx, err := s.ledger.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(context.WithoutCancel(ctx)) //nolint:errcheck

	external := req.Kind == domain.TransferKindDeposit
	ids := []string{req.PayeeID}
	if !external {
		ids = append(ids, req.PayerID)
	}

	locked, err := tx.LockFundingSources(ctx, ids...)
	if err != nil {
		return nil, err
	}

	// A concurrent attempt may have committed this key while we waited.
	existing, err := tx.GetCommittedTransfer(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return replay(existing, req)
	}

	record := domain.NewTransferRecord(req.Kind, req.IdempotencyKey, req.PayerID, req.PayeeID, req.Operation, req.Amount)
	record.ArgumentsDigest = req.ArgumentsDigest

	payer := locked[req.PayerID]
	if !external && payer == nil {
		record.Finalize(domain.TransferOutcomeUnknownParty)
		return nil, &attemptFailure{record: record, err: apperror.ErrUnknownFundingSource(req.PayerID)}
	}
	payee := locked[req.PayeeID]
	if payee == nil {
		record.Finalize(domain.TransferOutcomeUnknownParty)
		return nil, &attemptFailure{record: record, err: apperror.ErrUnknownFundingSource(req.PayeeID)}
	}

	if !external {
		if err := payer.Debit(req.Amount); err != nil {
			if errors.Is(err, domain.ErrInsufficientFunds) {
				record.Finalize(domain.TransferOutcomeInsufficientFunds)
				return nil, &attemptFailure{record: record, err: apperror.ErrInsufficientFunds()}
			}
			return nil, apperror.ErrInvalidAmount()
		}
		if err := tx.UpdateBalance(ctx, payer); err != nil {
			return nil, err
		}
	}
	if err := payee.Credit(req.Amount); err != nil {
		return nil, apperror.ErrInvalidAmount()
	}
	if err := tx.UpdateBalance(ctx, payee); err != nil {
		return nil, err
	}

	record.Finalize(domain.TransferOutcomeCommitted)
	if err := tx.AppendTransfer(ctx, record); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.afterCommit(ctx, record)
	return &domain.Settlement{Record: record}, nil
}

// lookupCommitted answers replays without taking any lock.
func (s *SettlementServiceImpl) lookupCommitted(ctx context.Context, req ports.TransferRequest) (*domain.Settlement, error) {
	record, err := s.findCommitted(ctx, req.IdempotencyKey)
	if err != nil || record == nil {
		return nil, err
	}
	return replay(record, req)
}

// findCommitted reads the committed record of key from the cache, then
// from the transfer log.
func (s *SettlementServiceImpl) findCommitted(ctx context.Context, key string) (*domain.TransferRecord, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("settlement cache lookup failed, falling through to ledger")
		}
		if cached != nil {
			var record domain.TransferRecord
			if err := json.Unmarshal(cached, &record); err == nil {
				return &record, nil
			}
			s.log.Warn().Str("key", key).Msg("discarding unreadable cached settlement")
		}
	}

	record, err := s.ledger.GetCommittedTransfer(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("committed transfer lookup: %w", err)
	}
	return record, nil
}

// unlessRefunded rejects the replay of a payment whose refund has
// committed. Only a fresh idempotency key can admit the call again.
func (s *SettlementServiceImpl) unlessRefunded(ctx context.Context, st *domain.Settlement) error {
	if !st.Replayed || st.Record.Kind != domain.TransferKindPayment {
		return nil
	}
	refund, err := s.findCommitted(ctx, domain.BuildRefundIdempotencyKey(st.Record.IdempotencyKey))
	if err != nil {
		return s.classify(ctx, err)
	}
	if refund != nil {
		return apperror.ErrPaymentRefunded()
	}
	return nil
}

func (s *SettlementServiceImpl) provisionParties(ctx context.Context, req ports.TransferRequest) error {
	if req.Kind != domain.TransferKindDeposit {
		created, err := s.ledger.EnsureFundingSource(ctx, req.PayerID, s.cfg.InitialBalance)
		if err != nil {
			return fmt.Errorf("provision payer: %w", err)
		}
		if created {
			s.log.Info().Str("funding_source", req.PayerID).Str("balance", s.cfg.InitialBalance.String()).Msg("funding source auto-provisioned")
		}
	}
	if _, err := s.ledger.EnsureFundingSource(ctx, req.PayeeID, decimal.Zero); err != nil {
		return fmt.Errorf("provision payee: %w", err)
	}
	return nil
}

func (s *SettlementServiceImpl) afterCommit(ctx context.Context, record *domain.TransferRecord) {
	if s.cache != nil {
		if data, err := json.Marshal(record); err == nil {
			if err := s.cache.Set(ctx, record.IdempotencyKey, data, s.cfg.CacheTTL); err != nil {
				s.log.Warn().Err(err).Str("key", record.IdempotencyKey).Msg("failed to cache settlement")
			}
		}
	}

	s.log.Info().
		Str("transfer_id", record.ID.String()).
		Str("kind", string(record.Kind)).
		Str("payer", record.PayerID).
		Str("payee", record.PayeeID).
		Str("operation", record.Operation).
		Str("amount", record.Amount.String()).
		Msg("transfer committed")

	if s.notifier != nil {
		s.notifier.Notify(context.WithoutCancel(ctx), record)
	}
}

// recordFailure appends a failed attempt to the transfer log. Losing it
// does not change any balance, so errors are only logged.
func (s *SettlementServiceImpl) recordFailure(ctx context.Context, record *domain.TransferRecord) {
	if err := s.ledger.AppendTransfer(context.WithoutCancel(ctx), record); err != nil {
		s.log.Warn().Err(err).Str("key", record.IdempotencyKey).Msg("failed to log failed transfer attempt")
	}
	s.log.Info().
		Str("key", record.IdempotencyKey).
		Str("payer", record.PayerID).
		Str("outcome", string(record.Outcome)).
		Str("amount", record.Amount.String()).
		Msg("transfer rejected")
}

// classify maps a low-level failure to its client-facing error. A deadline
// fails closed: nothing was committed.
func (s *SettlementServiceImpl) classify(ctx context.Context, err error) error {
	if _, ok := apperror.From(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return apperror.ErrSettlementTimeout(err)
	}
	s.log.Error().Err(err).Msg("settlement failed")
	return apperror.ErrDatabaseError(err)
}

func (s *SettlementServiceImpl) observe(st *domain.Settlement, err error, d time.Duration) {
	outcome := string(domain.TransferOutcomeCommitted)
	switch {
	case err != nil:
		outcome = "ERROR"
		if appErr, ok := apperror.From(err); ok {
			outcome = appErr.Code
		}
	case st.Replayed:
		outcome = "REPLAYED"
	}
	s.metrics.RecordSettlement(outcome, d)
}

func replay(record *domain.TransferRecord, req ports.TransferRequest) (*domain.Settlement, error) {
	if !record.SameRequest(req.PayerID, req.PayeeID, req.Amount, req.ArgumentsDigest) {
		return nil, apperror.ErrIdempotencyConflict()
	}
	return &domain.Settlement{Record: record, Replayed: true}, nil
}

func validateTransfer(req ports.TransferRequest) error {
	switch {
	case req.IdempotencyKey == "":
		return apperror.Validation("idempotency key is required")
	case req.PayerID == "" || req.PayeeID == "":
		return apperror.Validation("payer and payee are required")
	case req.Amount.IsNegative():
		return apperror.ErrInvalidAmount()
	case req.PayerID == req.PayeeID:
		return apperror.ErrSelfPayment()
	}
	return nil
}
