package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"opalpixel/invoicing/internal/services"
)

// RestReceiptHandler handles REST requests related to receipts.
type RestReceiptHandler struct {
	receiptService services.IReceiptService
	logger         *zap.Logger
}

func NewRestReceiptHandler(receiptService services.IReceiptService, logger *zap.Logger) *RestReceiptHandler {
	return &RestReceiptHandler{receiptService: receiptService, logger: logger}
}

// ListReceipts handles GET /v1/receipts
func (h *RestReceiptHandler) ListReceipts(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	params, err := parseListParams(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	page, err := h.receiptService.List(c.Request.Context(), caller, services.ReceiptFilter{
		UserID:   params.UserID,
		DateFrom: params.DateFrom,
		DateTo:   params.DateTo,
		Page:     params.Page,
		PerPage:  params.PerPage,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetReceipt handles GET /v1/receipts/:id
func (h *RestReceiptHandler) GetReceipt(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	receipt, err := h.receiptService.Get(c.Request.Context(), caller, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}
