package service

import (
	"fmt"
	"sync/atomic"

	"paygate/config"
	"paygate/internal/core/domain"
	"paygate/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PricingService implements ports.PricePolicy. Readers load the current
// table with a single atomic read, so a reload is never seen half applied.
type PricingService struct {
	table atomic.Pointer[domain.PriceTable]
	log   zerolog.Logger
}

// NewPricingService creates a price policy serving table.
func NewPricingService(table *domain.PriceTable, log zerolog.Logger) *PricingService {
	s := &PricingService{log: log}
	s.table.Store(table)
	return s
}

// Lookup returns the price of an operation.
func (s *PricingService) Lookup(operation string) (domain.Price, error) {
	p, ok := s.table.Load().Lookup(operation)
	if !ok {
		return domain.Price{}, apperror.ErrUnknownOperation(operation)
	}
	return p, nil
}

// Snapshot returns the table currently in force.
func (s *PricingService) Snapshot() *domain.PriceTable {
	return s.table.Load()
}

// Replace swaps in a new table.
func (s *PricingService) Replace(table *domain.PriceTable) {
	old := s.table.Swap(table)
	s.log.Info().
		Int("operations", table.Len()).
		Int("previous", old.Len()).
		Msg("price table replaced")
}

// PriceTableFromConfig builds a price table from the pricing section.
// An empty price means zero.
func PriceTableFromConfig(entries []config.PriceEntry) (*domain.PriceTable, error) {
	prices := make([]domain.Price, 0, len(entries))
	for _, e := range entries {
		amount := decimal.Zero
		if e.Price != "" {
			a, err := decimal.NewFromString(e.Price)
			if err != nil {
				return nil, fmt.Errorf("operation %q: invalid price %q: %w", e.Name, e.Price, err)
			}
			amount = a
		}
		prices = append(prices, domain.Price{
			Operation:   e.Name,
			Description: e.Description,
			Amount:      amount,
			Free:        e.Free,
		})
	}
	return domain.NewPriceTable(prices)
}
