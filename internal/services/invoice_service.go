package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"opalpixel/invoicing/internal/db"
	"opalpixel/invoicing/internal/models"
	"opalpixel/invoicing/internal/repository"
)

const dateLayout = "2006-01-02"

// CreateInvoiceInput is the caller supplied data for a new invoice.
type CreateInvoiceInput struct {
	ClientName    string    `json:"client_name"`
	ClientEmail   string    `json:"client_email"`
	ClientPhone   string    `json:"client_phone"`
	ClientAddress string    `json:"client_address"`
	DueDate       string    `json:"due_date"` // YYYY-MM-DD, today when blank
	TaxRate       float64   `json:"tax_rate"`
	Items         []RawItem `json:"items"`
}

// InvoicePatch carries only the fields an edit changes; nil means keep.
// Items, when present, replace the stored items wholesale.
type InvoicePatch struct {
	ClientName    *string    `json:"client_name"`
	ClientEmail   *string    `json:"client_email"`
	ClientPhone   *string    `json:"client_phone"`
	ClientAddress *string    `json:"client_address"`
	DueDate       *string    `json:"due_date"`
	TaxRate       *float64   `json:"tax_rate"`
	Items         *[]RawItem `json:"items"`
}

// InvoiceFilter narrows an invoice listing. UserID is honoured for admins only.
type InvoiceFilter struct {
	UserID     *primitive.ObjectID
	Status     models.InvoiceStatus
	ClientName string
	DateFrom   *time.Time
	DateTo     *time.Time
	Page       int
	PerPage    int
}

// ReceiptPublisher is told about every receipt once payment is complete.
type ReceiptPublisher interface {
	ReceiptIssued(ctx context.Context, invoice *models.Invoice, receipt *models.Receipt) error
}

// IInvoiceService owns the invoice lifecycle.
type IInvoiceService interface {
	Create(ctx context.Context, identity models.Identity, in CreateInvoiceInput) (*models.Invoice, error)
	Edit(ctx context.Context, identity models.Identity, invoiceID primitive.ObjectID, patch InvoicePatch) (*models.Invoice, error)
	Delete(ctx context.Context, identity models.Identity, invoiceID primitive.ObjectID) error
	Pay(ctx context.Context, identity models.Identity, invoiceID primitive.ObjectID) (*models.Invoice, *models.Receipt, error)
	Get(ctx context.Context, identity models.Identity, invoiceID primitive.ObjectID) (*models.Invoice, error)
	List(ctx context.Context, identity models.Identity, filter InvoiceFilter) (models.Page[models.Invoice], error)
	PreviewNumber(ctx context.Context, t time.Time) (string, error)
}

type InvoiceServiceDeps struct {
	Invoices   repository.InvoiceRepository
	Receipts   repository.ReceiptRepository
	Numbering  INumberingService
	Issuer     IReceiptService
	Publisher  ReceiptPublisher // optional
	Paging     Paging
	MaxRetries int
	Logger     *zap.Logger
}

type invoiceService struct {
	invoices   repository.InvoiceRepository
	receipts   repository.ReceiptRepository
	numbering  INumberingService
	issuer     IReceiptService
	publisher  ReceiptPublisher
	paging     Paging
	maxRetries int
	logger     *zap.Logger
	now        func() time.Time
}

func NewInvoiceService(deps InvoiceServiceDeps) IInvoiceService {
	return &invoiceService{
		invoices:   deps.Invoices,
		receipts:   deps.Receipts,
		numbering:  deps.Numbering,
		issuer:     deps.Issuer,
		publisher:  deps.Publisher,
		paging:     deps.Paging,
		maxRetries: deps.MaxRetries,
		logger:     deps.Logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func parseDate(value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// optional turns blank contact fields into nil.
func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func (s *invoiceService) Create(ctx context.Context, identity models.Identity, in CreateInvoiceInput) (*models.Invoice, error) {
	if identity.IsZero() {
		return nil, ErrForbidden
	}

	clientName := strings.TrimSpace(in.ClientName)
	if clientName == "" {
		return nil, validationError("client name is required")
	}
	if in.TaxRate < 0 {
		return nil, validationError("tax rate cannot be negative")
	}

	now := s.now()
	dueDate := now
	if strings.TrimSpace(in.DueDate) != "" {
		var err error
		if dueDate, err = parseDate(in.DueDate); err != nil {
			return nil, err
		}
	}

	computed := Compute(in.Items, in.TaxRate)
	if len(computed.Items) == 0 {
		return nil, validationError("at least one item required")
	}

	invoice := &models.Invoice{
		ID:            primitive.NewObjectID(),
		ClientName:    clientName,
		ClientEmail:   optional(in.ClientEmail),
		ClientPhone:   optional(in.ClientPhone),
		ClientAddress: optional(in.ClientAddress),
		Items:         computed.Items,
		TaxRate:       in.TaxRate,
		TaxAmount:     computed.TaxAmount,
		Amount:        computed.Total,
		Status:        models.InvoiceStatusPending,
		DateCreated:   now,
		DueDate:       dueDate,
		UserID:        identity.UserID,
	}

	// A collision on the number means another writer got there first; reserve a fresh one.
	operation := func() error {
		number, err := s.numbering.Next(ctx, dueDate)
		if err != nil {
			return err
		}
		invoice.InvoiceNumber = &number
		return s.invoices.Insert(ctx, invoice)
	}

	err := db.WithRetries(operation, s.maxRetries, db.DuplicateKeyOn(db.IndexInvoiceNumber))
	if err != nil {
		if db.DuplicateKeyOn(db.IndexInvoiceNumber)(err) {
			return nil, fmt.Errorf("%w: invoice number %s already taken after %d retries", ErrConflict, invoice.Number(), s.maxRetries)
		}
		return nil, fmt.Errorf("error creating invoice: %w", err)
	}

	s.logger.Info("invoice created",
		zap.String("invoice_number", invoice.Number()),
		zap.String("user_id", identity.UserID.Hex()),
		zap.Float64("amount", invoice.Amount))
	return invoice, nil
}

// load fetches an invoice and applies the ownership rule.
func (s *invoiceService) load(ctx context.Context, identity models.Identity, invoiceID primitive.ObjectID) (*models.Invoice, error) {
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
	return invoice, nil
}

// lostRace explains why a conditional write on an unpaid invoice matched
// nothing: it was either deleted or paid in the meantime.
func (s *invoiceService) lostRace(ctx context.Context, invoiceID primitive.ObjectID, msg string) error {
	if _, err := s.invoices.FindByID(ctx, invoiceID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("error loading invoice %s: %w", invoiceID.Hex(), err)
	}
	return immutableError(msg)
}

func (s *invoiceService) Get(ctx context.Context, identity models.Identity, invoiceID primitive.ObjectID) (*models.Invoice, error) {
	return s.load(ctx, identity, invoiceID)
}

func (s *invoiceService) Edit(ctx context.Context, identity models.Identity, invoiceID primitive.ObjectID, patch InvoicePatch) (*models.Invoice, error) {
	invoice, err := s.load(ctx, identity, invoiceID)
	if err != nil {
		return nil, err
	}
	if !canModify(invoice.Status) {
		return nil, immutableError("cannot edit a paid invoice")
	}

	if patch.ClientName != nil {
		// A blank name keeps the current one.
		if name := strings.TrimSpace(*patch.ClientName); name != "" {
			invoice.ClientName = name
		}
	}
	if patch.ClientEmail != nil {
		invoice.ClientEmail = optional(*patch.ClientEmail)
	}
	if patch.ClientPhone != nil {
		invoice.ClientPhone = optional(*patch.ClientPhone)
	}
	if patch.ClientAddress != nil {
		invoice.ClientAddress = optional(*patch.ClientAddress)
	}
	if patch.DueDate != nil {
		if invoice.DueDate, err = parseDate(*patch.DueDate); err != nil {
			return nil, err
		}
	}

	taxRate := invoice.TaxRate
	if patch.TaxRate != nil {
		if *patch.TaxRate < 0 {
			return nil, validationError("tax rate cannot be negative")
		}
		taxRate = *patch.TaxRate
	}

	switch {
	case patch.Items != nil:
		computed := Compute(*patch.Items, taxRate)
		if len(computed.Items) == 0 {
			return nil, validationError("at least one item required")
		}
		applyComputation(invoice, computed, taxRate)
	case patch.TaxRate != nil:
		applyComputation(invoice, RecomputeTax(invoice.Items, taxRate), taxRate)
	}

	updated, err := s.invoices.UpdateUnpaid(ctx, invoice)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, s.lostRace(ctx, invoiceID, "cannot edit a paid invoice")
		}
		return nil, fmt.Errorf("error updating invoice %s: %w", invoiceID.Hex(), err)
	}
	return updated, nil
}

func applyComputation(invoice *models.Invoice, c Computation, taxRate float64) {
	invoice.Items = c.Items
	invoice.TaxRate = taxRate
	invoice.TaxAmount = c.TaxAmount
	invoice.Amount = c.Total
}

func (s *invoiceService) Delete(ctx context.Context, identity models.Identity, invoiceID primitive.ObjectID) error {
	invoice, err := s.load(ctx, identity, invoiceID)
	if err != nil {
		return err
	}
	if !canModify(invoice.Status) {
		return immutableError("cannot delete a paid invoice")
	}

	if err := s.invoices.DeleteUnpaid(ctx, invoiceID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return s.lostRace(ctx, invoiceID, "cannot delete a paid invoice")
		}
		return fmt.Errorf("error deleting invoice %s: %w", invoiceID.Hex(), err)
	}

	// Unpaid invoices have no receipt; clear any stray one.
	n, err := s.receipts.DeleteByInvoiceID(ctx, invoiceID)
	if err != nil {
		return fmt.Errorf("error deleting receipts of invoice %s: %w", invoiceID.Hex(), err)
	}
	if n > 0 {
		s.logger.Warn("deleted receipts of unpaid invoice", zap.String("invoice_id", invoiceID.Hex()), zap.Int64("count", n))
	}

	s.logger.Info("invoice deleted", zap.String("invoice_number", invoice.Number()), zap.String("user_id", identity.UserID.Hex()))
	return nil
}

func (s *invoiceService) Pay(ctx context.Context, identity models.Identity, invoiceID primitive.ObjectID) (*models.Invoice, *models.Receipt, error) {
	invoice, err := s.load(ctx, identity, invoiceID)
	if err != nil {
		return nil, nil, err
	}
	if !canPay(invoice.Status) {
		return nil, nil, immutableError("invoice is already paid")
	}
	previous := invoice.Status

	paid, err := s.invoices.MarkPaid(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, s.lostRace(ctx, invoiceID, "invoice is already paid")
		}
		return nil, nil, fmt.Errorf("error marking invoice %s paid: %w", invoiceID.Hex(), err)
	}

	receipt, err := s.issuer.Issue(ctx, paid)
	if err != nil {
		// An existing receipt means the invoice is rightly Paid.
		if !errors.Is(err, ErrReceiptExists) {
			if revertErr := s.invoices.RevertPaid(ctx, invoiceID, previous); revertErr != nil {
				s.logger.Error("failed to revert invoice after receipt failure",
					zap.String("invoice_id", invoiceID.Hex()), zap.Error(revertErr))
			}
		}
		return nil, nil, fmt.Errorf("error issuing receipt for invoice %s: %w", invoiceID.Hex(), err)
	}

	s.logger.Info("invoice paid",
		zap.String("invoice_number", paid.Number()),
		zap.String("receipt_number", receipt.ReceiptNumber),
		zap.String("user_id", identity.UserID.Hex()))

	if s.publisher != nil {
		if err := s.publisher.ReceiptIssued(ctx, paid, receipt); err != nil {
			s.logger.Warn("failed to publish receipt", zap.String("receipt_number", receipt.ReceiptNumber), zap.Error(err))
		}
	}
	return paid, receipt, nil
}

func (s *invoiceService) List(ctx context.Context, identity models.Identity, filter InvoiceFilter) (models.Page[models.Invoice], error) {
	if identity.IsZero() {
		return models.Page[models.Invoice]{}, ErrForbidden
	}
	switch filter.Status {
	case "", models.InvoiceStatusPending, models.InvoiceStatusPaid, models.InvoiceStatusOverdue:
	default:
		return models.Page[models.Invoice]{}, validationError(fmt.Sprintf("unknown status %q", filter.Status))
	}

	page, perPage, skip := s.paging.bounds(filter.Page, filter.PerPage)
	q := repository.InvoiceQuery{
		Status:     filter.Status,
		ClientName: strings.TrimSpace(filter.ClientName),
		DateFrom:   filter.DateFrom,
		DateTo:     filter.DateTo,
		Skip:       skip,
		Limit:      int64(perPage),
	}
	if !identity.IsAdmin() {
		q.UserID = &identity.UserID
	} else {
		q.UserID = filter.UserID
	}

	items, total, err := s.invoices.List(ctx, q)
	if err != nil {
		return models.Page[models.Invoice]{}, fmt.Errorf("error listing invoices: %w", err)
	}
	return models.NewPage(items, total, page, perPage), nil
}

func (s *invoiceService) PreviewNumber(ctx context.Context, t time.Time) (string, error) {
	return s.numbering.Preview(ctx, t)
}
