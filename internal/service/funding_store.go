package service

import (
	"context"
	"fmt"

	"paygate/internal/core/ports"
	"paygate/pkg/apperror"

	"github.com/shopspring/decimal"
)

// LedgerFundingStore implements ports.FundingStore over a ledger.
type LedgerFundingStore struct {
	ledger ports.Ledger
}

// NewLedgerFundingStore creates a funding store over ledger.
func NewLedgerFundingStore(ledger ports.Ledger) *LedgerFundingStore {
	return &LedgerFundingStore{ledger: ledger}
}

// GetBalance returns the balance of a funding source.
func (s *LedgerFundingStore) GetBalance(ctx context.Context, id string) (decimal.Decimal, error) {
	fs, err := s.ledger.GetFundingSource(ctx, id)
	if err != nil {
		return decimal.Zero, apperror.ErrDatabaseError(fmt.Errorf("get funding source: %w", err))
	}
	if fs == nil {
		return decimal.Zero, apperror.ErrUnknownFundingSource(id)
	}
	return fs.Balance, nil
}
