package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ExternalPayer is the payer recorded on deposits that enter the system
// from outside any funding source.
const ExternalPayer = "external"

var (
	ErrNegativeAmount    = errors.New("amount must not be negative")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// FundingSource is a named balance that can pay for or receive payment
// for operations. Balance never goes below zero.
type FundingSource struct {
	ID        string          `json:"id"`
	Balance   decimal.Decimal `json:"balance"`
	Version   int64           `json:"version"` // optimistic concurrency token
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CanCover reports whether the balance covers amount.
func (f *FundingSource) CanCover(amount decimal.Decimal) bool {
	return f.Balance.GreaterThanOrEqual(amount)
}

// Debit removes amount from the balance. The balance is left untouched
// when the amount is negative or not covered.
func (f *FundingSource) Debit(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	if !f.CanCover(amount) {
		return ErrInsufficientFunds
	}
	f.Balance = f.Balance.Sub(amount)
	return nil
}

// Credit adds amount to the balance.
func (f *FundingSource) Credit(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	f.Balance = f.Balance.Add(amount)
	return nil
}
