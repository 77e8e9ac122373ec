package dto

import (
	"time"

	"paygate/internal/core/domain"

	"github.com/shopspring/decimal"
)

// ProvisionRequest is the request body for funding source creation.
type ProvisionRequest struct {
	ID             string          `json:"id" binding:"required,funding_id"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

// DepositRequest is the request body for a top-up. Reference makes the
// deposit idempotent.
type DepositRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference" binding:"required,max=100"`
}

// ProvisionResponse carries the credentials of a new funding source. The
// HMAC secret is not retrievable later.
type ProvisionResponse struct {
	FundingSource FundingSourceResponse `json:"funding_source"`
	HMACSecret    string                `json:"hmac_secret"`
	Token         string                `json:"token"`
	TokenExpiry   int64                 `json:"token_expiry"` // Unix timestamp
}

// FundingSourceResponse is the public view of a funding source.
type FundingSourceResponse struct {
	ID        string          `json:"id"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

// BalanceResponse is the response for balance query.
type BalanceResponse struct {
	ID      string          `json:"id"`
	Balance decimal.Decimal `json:"balance"`
}

// TokenResponse is the response body for token issuance.
type TokenResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"`
}

// TransferResponse is one transfer log record.
type TransferResponse struct {
	ID              string          `json:"id"`
	Kind            string          `json:"kind"`
	IdempotencyKey  string          `json:"idempotency_key"`
	PayerID         string          `json:"payer_id"`
	PayeeID         string          `json:"payee_id"`
	Operation       string          `json:"operation,omitempty"`
	ArgumentsDigest string          `json:"arguments_digest,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Outcome         string          `json:"outcome"`
	CreatedAt       string          `json:"created_at"`
	FinalizedAt     *string         `json:"finalized_at,omitempty"`
}

// TransferListResponse wraps a page of transfer records.
type TransferListResponse struct {
	Items      []TransferResponse `json:"items"`
	Total      int64              `json:"total"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
	TotalPages int                `json:"total_pages"`
}

// OperationResponse is one entry of the public price list.
type OperationResponse struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Free        bool             `json:"free"`
	Priced      bool             `json:"priced"`
}

func ToFundingSourceResponse(fs *domain.FundingSource) FundingSourceResponse {
	return FundingSourceResponse{
		ID:        fs.ID,
		Balance:   fs.Balance,
		CreatedAt: fs.CreatedAt.Format(time.RFC3339),
		UpdatedAt: fs.UpdatedAt.Format(time.RFC3339),
	}
}

func ToTransferResponse(r *domain.TransferRecord) TransferResponse {
	out := TransferResponse{
		ID:              r.ID.String(),
		Kind:            string(r.Kind),
		IdempotencyKey:  r.IdempotencyKey,
		PayerID:         r.PayerID,
		PayeeID:         r.PayeeID,
		Operation:       r.Operation,
		ArgumentsDigest: r.ArgumentsDigest,
		Amount:          r.Amount,
		Outcome:         string(r.Outcome),
		CreatedAt:       r.CreatedAt.Format(time.RFC3339),
	}
	if r.FinalizedAt != nil {
		s := r.FinalizedAt.Format(time.RFC3339)
		out.FinalizedAt = &s
	}
	return out
}
