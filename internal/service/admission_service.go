package service

import (
	"context"
	"fmt"
	"time"

	"paygate/internal/core/domain"
	"paygate/internal/core/ports"
	"paygate/internal/metrics"
	"paygate/pkg/apperror"
	"paygate/pkg/protocol"

	"github.com/rs/zerolog"
)

// AdmissionConfig configures the pay-before-execute gate.
type AdmissionConfig struct {
	PayeeID          string        // funding source credited by every paid call
	OperationTimeout time.Duration // zero means no bound
	RefundOnFailure  bool
}

// AdmissionService gates operation handlers behind wallet resolution,
// pricing and settlement.
type AdmissionService struct {
	resolver   ports.WalletResolver
	prices     ports.PricePolicy
	settlement ports.SettlementService
	metrics    ports.Collector
	cfg        AdmissionConfig
	log        zerolog.Logger
}

// NewAdmissionService creates the admission gate.
func NewAdmissionService(
	resolver ports.WalletResolver,
	prices ports.PricePolicy,
	settlement ports.SettlementService,
	collector ports.Collector,
	cfg AdmissionConfig,
	log zerolog.Logger,
) *AdmissionService {
	if collector == nil {
		collector = metrics.NoOp{}
	}
	return &AdmissionService{
		resolver:   resolver,
		prices:     prices,
		settlement: settlement,
		metrics:    collector,
		cfg:        cfg,
		log:        log,
	}
}

// Middleware returns the gate as an operation middleware.
func (s *AdmissionService) Middleware() ports.Middleware {
	return func(next ports.OperationHandler) ports.OperationHandler {
		return func(ctx context.Context, inv *domain.Invocation) (*domain.OperationResult, error) {
			return s.admit(ctx, inv, next)
		}
	}
}

func (s *AdmissionService) admit(ctx context.Context, inv *domain.Invocation, next ports.OperationHandler) (*domain.OperationResult, error) {
	inv.EnsureRequestID()
	log := s.log.With().
		Str("operation", inv.Operation).
		Str("request_id", inv.RequestID).
		Logger()
	s.enter(log, domain.AdmissionReceived)

	wallet, err := s.resolver.Resolve(ctx, inv.Header)
	if err != nil {
		return nil, s.reject(log, inv, err)
	}
	ctx, release := domain.WithWallet(ctx, wallet)
	defer release()
	log = log.With().Str("funding_source", wallet.FundingSourceID).Logger()
	s.enter(log, domain.AdmissionContextResolved)

	price, err := s.prices.Lookup(inv.Operation)
	if err != nil {
		return nil, s.reject(log, inv, err)
	}
	s.enter(log, domain.AdmissionPriced)

	receipt := &domain.Receipt{
		PayerID:   wallet.FundingSourceID,
		Operation: inv.Operation,
		Free:      true,
	}
	if !price.Free {
		s.enter(log, domain.AdmissionSettling)
		st, err := s.settlement.Transfer(ctx, ports.TransferRequest{
			Kind:            domain.TransferKindPayment,
			PayerID:         wallet.FundingSourceID,
			PayeeID:         s.cfg.PayeeID,
			Operation:       inv.Operation,
			Amount:          price.Amount,
			IdempotencyKey:  domain.BuildIdempotencyKey(wallet.FundingSourceID, inv.Operation, inv.RequestID),
			ArgumentsDigest: domain.DigestArguments(inv.Arguments),
		})
		if err != nil {
			return nil, s.reject(log, inv, err)
		}
		receipt = domain.ReceiptFor(st)
	}
	s.enter(log, domain.AdmissionAdmitted)

	result, err := s.dispatch(ctx, log, inv, next)
	if err != nil {
		if s.cfg.RefundOnFailure && !receipt.Free {
			receipt.Refunded = s.refund(ctx, log, receipt)
		}
		s.metrics.RecordAdmission(inv.Operation, domain.AdmissionCompleted, protocol.CodeOperationFailed)
		log.Info().Err(err).Bool("refunded", receipt.Refunded).Msg("operation failed after payment")
		return nil, &domain.OperationError{Operation: inv.Operation, Err: err, Receipt: receipt}
	}

	if result == nil {
		result = &domain.OperationResult{}
	}
	result.Receipt = receipt
	s.metrics.RecordAdmission(inv.Operation, domain.AdmissionCompleted, "")
	s.enter(log, domain.AdmissionCompleted)
	return result, nil
}

// dispatch runs the admitted operation. A client disconnect no longer
// cancels it; only the operation timeout does.
func (s *AdmissionService) dispatch(ctx context.Context, log zerolog.Logger, inv *domain.Invocation, next ports.OperationHandler) (*domain.OperationResult, error) {
	ctx = context.WithoutCancel(ctx)
	if s.cfg.OperationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.OperationTimeout)
		defer cancel()
	}

	type outcome struct {
		result *domain.OperationResult
		err    error
	}
	done := make(chan outcome, 1)
	start := time.Now()
	s.enter(log, domain.AdmissionDispatched)

	go func() {
		result, err := next(ctx, inv)
		done <- outcome{result, err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out.err = fmt.Errorf("operation timed out after %s: %w", s.cfg.OperationTimeout, ctx.Err())
	}
	s.metrics.RecordDispatch(inv.Operation, out.err != nil, time.Since(start))
	return out.result, out.err
}

// refund sends the payment back to the payer. Failures are logged and
// leave the original payment in place.
func (s *AdmissionService) refund(ctx context.Context, log zerolog.Logger, receipt *domain.Receipt) bool {
	if receipt.Amount.IsZero() {
		return false
	}
	_, err := s.settlement.Transfer(context.WithoutCancel(ctx), ports.TransferRequest{
		Kind:           domain.TransferKindRefund,
		PayerID:        receipt.PayeeID,
		PayeeID:        receipt.PayerID,
		Operation:      receipt.Operation,
		Amount:         receipt.Amount,
		IdempotencyKey: domain.BuildRefundIdempotencyKey(receipt.IdempotencyKey),
	})
	if err != nil {
		log.Error().Err(err).Str("key", receipt.IdempotencyKey).Msg("refund failed")
		return false
	}
	return true
}

func (s *AdmissionService) reject(log zerolog.Logger, inv *domain.Invocation, err error) error {
	appErr, ok := apperror.From(err)
	if !ok {
		appErr = apperror.InternalError(err)
	}
	s.metrics.RecordAdmission(inv.Operation, domain.AdmissionRejected, appErr.Code)
	log.Info().
		Str("state", string(domain.AdmissionRejected)).
		Str("code", appErr.Code).
		Str("phase", string(appErr.Phase)).
		Msg("invocation rejected")
	return appErr
}

func (s *AdmissionService) enter(log zerolog.Logger, state domain.AdmissionState) {
	log.Debug().Str("state", string(state)).Msg("admission")
}
