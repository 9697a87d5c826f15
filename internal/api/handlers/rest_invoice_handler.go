package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"opalpixel/invoicing/internal/models"
	"opalpixel/invoicing/internal/services"
)

// RestInvoiceHandler handles REST requests related to invoices.
type RestInvoiceHandler struct {
	invoiceService services.IInvoiceService
	receiptService services.IReceiptService
	logger         *zap.Logger
}

func NewRestInvoiceHandler(invoiceService services.IInvoiceService, receiptService services.IReceiptService, logger *zap.Logger) *RestInvoiceHandler {
	return &RestInvoiceHandler{
		invoiceService: invoiceService,
		receiptService: receiptService,
		logger:         logger,
	}
}

// PayResponse is returned by a successful payment.
type PayResponse struct {
	Invoice *models.Invoice `json:"invoice"`
	Receipt *models.Receipt `json:"receipt"`
}

// ListInvoices handles GET /v1/invoices
func (h *RestInvoiceHandler) ListInvoices(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	params, err := parseListParams(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	page, err := h.invoiceService.List(c.Request.Context(), caller, services.InvoiceFilter{
		UserID:     params.UserID,
		Status:     models.InvoiceStatus(strings.TrimSpace(c.Query("status"))),
		ClientName: c.Query("client_name"),
		DateFrom:   params.DateFrom,
		DateTo:     params.DateTo,
		Page:       params.Page,
		PerPage:    params.PerPage,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// CreateInvoice handles POST /v1/invoices
func (h *RestInvoiceHandler) CreateInvoice(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	var in services.CreateInvoiceInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	invoice, err := h.invoiceService.Create(c.Request.Context(), caller, in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, invoice)
}

// NextNumber handles GET /v1/invoices/next-number. The optional due_date
// selects the year; the number is a preview and is not reserved.
func (h *RestInvoiceHandler) NextNumber(c *gin.Context) {
	if _, ok := identity(c); !ok {
		return
	}
	at := time.Now()
	due, err := queryDate(c, "due_date")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	if due != nil {
		at = *due
	}

	number, err := h.invoiceService.PreviewNumber(c.Request.Context(), at)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoice_number": number})
}

// GetInvoice handles GET /v1/invoices/:id
func (h *RestInvoiceHandler) GetInvoice(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	invoice, err := h.invoiceService.Get(c.Request.Context(), caller, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

// UpdateInvoice handles PUT and PATCH /v1/invoices/:id. Absent fields are left unchanged.
func (h *RestInvoiceHandler) UpdateInvoice(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var patch services.InvoicePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	invoice, err := h.invoiceService.Edit(c.Request.Context(), caller, id, patch)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

// DeleteInvoice handles DELETE /v1/invoices/:id
func (h *RestInvoiceHandler) DeleteInvoice(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.invoiceService.Delete(c.Request.Context(), caller, id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PayInvoice handles POST /v1/invoices/:id/pay
func (h *RestInvoiceHandler) PayInvoice(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	invoice, receipt, err := h.invoiceService.Pay(c.Request.Context(), caller, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, PayResponse{Invoice: invoice, Receipt: receipt})
}

// GetInvoiceReceipt handles GET /v1/invoices/:id/receipt
func (h *RestInvoiceHandler) GetInvoiceReceipt(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	receipt, err := h.receiptService.GetByInvoice(c.Request.Context(), caller, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}
