package handler

import (
	"paygate/internal/adapter/http/dto"
	"paygate/internal/core/ports"
	"paygate/internal/tools"
	"paygate/pkg/response"

	"github.com/gin-gonic/gin"
)

// OperationHandler serves the public price list.
type OperationHandler struct {
	catalog *tools.Catalog
	prices  ports.PricePolicy
}

// NewOperationHandler creates a new OperationHandler.
func NewOperationHandler(catalog *tools.Catalog, prices ports.PricePolicy) *OperationHandler {
	return &OperationHandler{catalog: catalog, prices: prices}
}

// List handles GET /api/v1/operations. Every catalog operation is listed;
// unpriced ones cannot be invoked.
func (h *OperationHandler) List(c *gin.Context) {
	table := h.prices.Snapshot()
	all := h.catalog.All()

	items := make([]dto.OperationResponse, 0, len(all))
	for _, tool := range all {
		item := dto.OperationResponse{Name: tool.Name, Description: tool.Description}
		if p, ok := table.Lookup(tool.Name); ok {
			amount := p.Amount
			item.Price = &amount
			item.Free = p.Free
			item.Priced = true
		}
		items = append(items, item)
	}
	response.OK(c, items)
}
