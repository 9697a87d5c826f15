package handlers_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"opalpixel/invoicing/internal/models"
	"opalpixel/invoicing/internal/services"
)

// --- Mocks ---

// MockUserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Create(ctx context.Context, actor models.Identity, in services.CreateUserInput) (*models.User, error) {
	args := m.Called(ctx, actor, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *MockUserService) FindByID(ctx context.Context, actor models.Identity, userID primitive.ObjectID) (*models.User, error) {
	args := m.Called(ctx, actor, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *MockUserService) FindByWorkerID(ctx context.Context, workerID string) (*models.User, error) {
	args := m.Called(ctx, workerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *MockUserService) List(ctx context.Context, actor models.Identity, role models.Role) ([]models.User, error) {
	args := m.Called(ctx, actor, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}
func (m *MockUserService) Update(ctx context.Context, actor models.Identity, userID primitive.ObjectID, in services.UpdateUserInput) (*models.User, error) {
	args := m.Called(ctx, actor, userID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *MockUserService) SetPassword(ctx context.Context, actor models.Identity, userID primitive.ObjectID, password string) error {
	args := m.Called(ctx, actor, userID, password)
	return args.Error(0)
}
func (m *MockUserService) Delete(ctx context.Context, actor models.Identity, userID primitive.ObjectID) error {
	args := m.Called(ctx, actor, userID)
	return args.Error(0)
}
func (m *MockUserService) Authenticate(ctx context.Context, fullName, workerID, password string) (*models.User, error) {
	args := m.Called(ctx, fullName, workerID, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *MockUserService) EnsureAdmin(ctx context.Context, fullName, password string) (*models.User, error) {
	args := m.Called(ctx, fullName, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// MockInvoiceService
type MockInvoiceService struct {
	mock.Mock
}

func (m *MockInvoiceService) Create(ctx context.Context, identity models.Identity, in services.CreateInvoiceInput) (*models.Invoice, error) {
	args := m.Called(ctx, identity, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}
func (m *MockInvoiceService) Edit(ctx context.Context, identity models.Identity, invoiceID primitive.ObjectID, patch services.InvoicePatch) (*models.Invoice, error) {
	args := m.Called(ctx, identity, invoiceID, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}
func (m *MockInvoiceService) Delete(ctx context.Context, identity models.Identity, invoiceID primitive.ObjectID) error {
	args := m.Called(ctx, identity, invoiceID)
	return args.Error(0)
}
func (m *MockInvoiceService) Pay(ctx context.Context, identity models.Identity, invoiceID primitive.ObjectID) (*models.Invoice, *models.Receipt, error) {
	args := m.Called(ctx, identity, invoiceID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*models.Invoice), args.Get(1).(*models.Receipt), args.Error(2)
}
func (m *MockInvoiceService) Get(ctx context.Context, identity models.Identity, invoiceID primitive.ObjectID) (*models.Invoice, error) {
	args := m.Called(ctx, identity, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}
func (m *MockInvoiceService) List(ctx context.Context, identity models.Identity, filter services.InvoiceFilter) (models.Page[models.Invoice], error) {
	args := m.Called(ctx, identity, filter)
	return args.Get(0).(models.Page[models.Invoice]), args.Error(1)
}
func (m *MockInvoiceService) PreviewNumber(ctx context.Context, t time.Time) (string, error) {
	args := m.Called(ctx, t)
	return args.String(0), args.Error(1)
}

// MockReceiptService
type MockReceiptService struct {
	mock.Mock
}

func (m *MockReceiptService) Issue(ctx context.Context, invoice *models.Invoice) (*models.Receipt, error) {
	args := m.Called(ctx, invoice)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Receipt), args.Error(1)
}
func (m *MockReceiptService) Get(ctx context.Context, identity models.Identity, receiptID primitive.ObjectID) (*models.Receipt, error) {
	args := m.Called(ctx, identity, receiptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Receipt), args.Error(1)
}
func (m *MockReceiptService) GetByInvoice(ctx context.Context, identity models.Identity, invoiceID primitive.ObjectID) (*models.Receipt, error) {
	args := m.Called(ctx, identity, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Receipt), args.Error(1)
}
func (m *MockReceiptService) List(ctx context.Context, identity models.Identity, filter services.ReceiptFilter) (models.Page[models.Receipt], error) {
	args := m.Called(ctx, identity, filter)
	return args.Get(0).(models.Page[models.Receipt]), args.Error(1)
}
