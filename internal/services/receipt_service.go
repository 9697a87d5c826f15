package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"opalpixel/invoicing/internal/db"
	"opalpixel/invoicing/internal/models"
	"opalpixel/invoicing/internal/repository"
)

// ErrReceiptExists is returned when an invoice already has its receipt.
var ErrReceiptExists = fmt.Errorf("%w: receipt already issued for this invoice", ErrConflict)

// ReceiptFilter narrows a receipt listing. UserID is honoured for admins only.
type ReceiptFilter struct {
	UserID   *primitive.ObjectID
	DateFrom *time.Time
	DateTo   *time.Time
	Page     int
	PerPage  int
}

// IReceiptService issues and reads proof-of-payment records.
type IReceiptService interface {
	Issue(ctx context.Context, invoice *models.Invoice) (*models.Receipt, error)
	Get(ctx context.Context, identity models.Identity, receiptID primitive.ObjectID) (*models.Receipt, error)
	GetByInvoice(ctx context.Context, identity models.Identity, invoiceID primitive.ObjectID) (*models.Receipt, error)
	List(ctx context.Context, identity models.Identity, filter ReceiptFilter) (models.Page[models.Receipt], error)
}

type receiptService struct {
	receipts  repository.ReceiptRepository
	invoices  repository.InvoiceRepository
	paging    Paging
	logger    *zap.Logger
	newNumber func() string
	now       func() time.Time
}

func NewReceiptService(receipts repository.ReceiptRepository, invoices repository.InvoiceRepository, prefix string, paging Paging, logger *zap.Logger) IReceiptService {
	return &receiptService{
		receipts:  receipts,
		invoices:  invoices,
		paging:    paging,
		logger:    logger,
		newNumber: func() string { return NewReceiptNumber(prefix) },
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// NewReceiptNumber returns prefix followed by 8 random upper-case hex characters.
func NewReceiptNumber(prefix string) string {
	u := uuid.New()
	return fmt.Sprintf("%s-%X", prefix, u[:4])
}

// Issue creates the receipt for an invoice that has just been marked Paid.
// The amount is a snapshot of the invoice amount at this moment.
func (s *receiptService) Issue(ctx context.Context, invoice *models.Invoice) (*models.Receipt, error) {
	if invoice == nil || invoice.ID.IsZero() {
		return nil, validationError("invoice is required")
	}
	if !invoice.IsPaid() {
		return nil, validationError("invoice must be paid before a receipt is issued")
	}

	var receipt *models.Receipt
	operation := func() error {
		receipt = &models.Receipt{
			ID:            primitive.NewObjectID(),
			InvoiceID:     invoice.ID,
			ReceiptNumber: s.newNumber(),
			AmountPaid:    invoice.Amount,
			PaymentDate:   s.now(),
		}
		return s.receipts.Insert(ctx, receipt)
	}

	err := db.WithRetries(operation, db.DefaultMaxRetries, db.DuplicateKeyOn(db.IndexReceiptNumber))
	if err != nil {
		if db.DuplicateKeyOn(db.IndexReceiptInvoice)(err) {
			return nil, ErrReceiptExists
		}
		if db.DuplicateKeyOn(db.IndexReceiptNumber)(err) {
			return nil, fmt.Errorf("%w: could not allocate a unique receipt number", ErrConflict)
		}
		return nil, fmt.Errorf("error inserting receipt for invoice %s: %w", invoice.ID.Hex(), err)
	}

	s.logger.Info("receipt issued",
		zap.String("receipt_number", receipt.ReceiptNumber),
		zap.String("invoice_id", invoice.ID.Hex()),
		zap.Float64("amount_paid", receipt.AmountPaid))
	return receipt, nil
}

func (s *receiptService) authorizeReceipt(ctx context.Context, identity models.Identity, receipt *models.Receipt) error {
	if identity.IsAdmin() {
		return nil
	}
	invoice, err := s.invoices.FindByID(ctx, receipt.InvoiceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrForbidden
		}
		return fmt.Errorf("error loading invoice %s: %w", receipt.InvoiceID.Hex(), err)
	}
	return authorize(identity, invoice.UserID)
}

func (s *receiptService) Get(ctx context.Context, identity models.Identity, receiptID primitive.ObjectID) (*models.Receipt, error) {
	if identity.IsZero() {
		return nil, ErrForbidden
	}
	receipt, err := s.receipts.FindByID(ctx, receiptID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error loading receipt %s: %w", receiptID.Hex(), err)
	}
	if err := s.authorizeReceipt(ctx, identity, receipt); err != nil {
		return nil, err
	}
	return receipt, nil
}

func (s *receiptService) GetByInvoice(ctx context.Context, identity models.Identity, invoiceID primitive.ObjectID) (*models.Receipt, error) {
	if identity.IsZero() {
		return nil, ErrForbidden
	}
	invoice, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error loading invoice %s: %w", invoiceID.Hex(), err)
	}
	if err := authorize(identity, invoice.UserID); err != nil {
		return nil, err
	}
	receipt, err := s.receipts.FindByInvoiceID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error loading receipt for invoice %s: %w", invoiceID.Hex(), err)
	}
	return receipt, nil
}

func (s *receiptService) List(ctx context.Context, identity models.Identity, filter ReceiptFilter) (models.Page[models.Receipt], error) {
	if identity.IsZero() {
		return models.Page[models.Receipt]{}, ErrForbidden
	}
	page, perPage, skip := s.paging.bounds(filter.Page, filter.PerPage)
	q := repository.ReceiptQuery{
		DateFrom: filter.DateFrom,
		DateTo:   filter.DateTo,
		Skip:     skip,
		Limit:    int64(perPage),
	}

	// Workers only ever see receipts of invoices they own.
	var owner *primitive.ObjectID
	if !identity.IsAdmin() {
		owner = &identity.UserID
	} else if filter.UserID != nil {
		owner = filter.UserID
	}
	if owner != nil {
		ids, err := s.invoices.IDsByUser(ctx, *owner)
		if err != nil {
			return models.Page[models.Receipt]{}, fmt.Errorf("error loading invoices of %s: %w", owner.Hex(), err)
		}
		q.ByInvoices = true
		q.InvoiceIDs = ids
	}

	items, total, err := s.receipts.List(ctx, q)
	if err != nil {
		return models.Page[models.Receipt]{}, fmt.Errorf("error listing receipts: %w", err)
	}
	return models.NewPage(items, total, page, perPage), nil
}
