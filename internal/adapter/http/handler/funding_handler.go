package handler

import (
	"math"
	"strconv"

	"paygate/internal/adapter/http/dto"
	"paygate/internal/adapter/http/middleware"
	"paygate/internal/core/domain"
	"paygate/internal/core/ports"
	"paygate/pkg/apperror"
	"paygate/pkg/response"

	"github.com/gin-gonic/gin"
)

// FundingHandler handles the administrative funding source endpoints.
type FundingHandler struct {
	fundingSvc ports.FundingService
	store      ports.FundingStore
}

// NewFundingHandler creates a new FundingHandler.
func NewFundingHandler(fundingSvc ports.FundingService, store ports.FundingStore) *FundingHandler {
	return &FundingHandler{fundingSvc: fundingSvc, store: store}
}

// Provision handles POST /api/v1/admin/funding-sources.
func (h *FundingHandler) Provision(c *gin.Context) {
	var req dto.ProvisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.fundingSvc.Provision(c.Request.Context(), ports.ProvisionRequest{
		ID:             req.ID,
		InitialBalance: req.InitialBalance,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, result.FundingSource.ID)
	response.Created(c, dto.ProvisionResponse{
		FundingSource: dto.ToFundingSourceResponse(result.FundingSource),
		HMACSecret:    result.HMACSecret,
		Token:         result.Token,
		TokenExpiry:   result.TokenExpiry.Unix(),
	})
}

// Get handles GET /api/v1/admin/funding-sources/:id.
func (h *FundingHandler) Get(c *gin.Context) {
	fs, err := h.fundingSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToFundingSourceResponse(fs))
}

// GetBalance handles GET /api/v1/admin/funding-sources/:id/balance.
func (h *FundingHandler) GetBalance(c *gin.Context) {
	id := c.Param("id")
	balance, err := h.store.GetBalance(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.BalanceResponse{ID: id, Balance: balance})
}

// Deposit handles POST /api/v1/admin/funding-sources/:id/deposits.
func (h *FundingHandler) Deposit(c *gin.Context) {
	var req dto.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)
	if !req.Amount.IsPositive() {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	fs, err := h.fundingSvc.Deposit(c.Request.Context(), c.Param("id"), req.Amount, req.Reference)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToFundingSourceResponse(fs))
}

// IssueToken handles POST /api/v1/admin/funding-sources/:id/tokens.
func (h *FundingHandler) IssueToken(c *gin.Context) {
	token, expiry, err := h.fundingSvc.IssueToken(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.TokenResponse{Token: token, Expiry: expiry.Unix()})
}

// ListTransfers handles GET /api/v1/admin/funding-sources/:id/transfers.
func (h *FundingHandler) ListTransfers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	params := ports.TransferListParams{
		FundingSourceID: c.Param("id"),
		Limit:           pageSize,
		Offset:          (page - 1) * pageSize,
	}
	if o := c.Query("outcome"); o != "" {
		outcome := domain.TransferOutcome(o)
		params.Outcome = &outcome
	}

	records, total, err := h.fundingSvc.ListTransfers(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransferResponse, 0, len(records))
	for i := range records {
		items = append(items, dto.ToTransferResponse(&records[i]))
	}

	response.OK(c, dto.TransferListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	})
}

// GetTransfer handles GET /api/v1/admin/transfers?key=<idempotency key>.
func (h *FundingHandler) GetTransfer(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		response.Error(c, apperror.Validation("query parameter key is required"))
		return
	}
	record, err := h.fundingSvc.GetTransfer(c.Request.Context(), key)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToTransferResponse(record))
}
