package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"opalpixel/invoicing/internal/models"
)

func newTestReceiptService(invoices *fakeInvoiceRepo, receipts *fakeReceiptRepo) *receiptService {
	return NewReceiptService(receipts, invoices, "REC", Paging{Default: 25, Max: 100}, zap.NewNop()).(*receiptService)
}

func paidInvoice(t *testing.T, repo *fakeInvoiceRepo, owner primitive.ObjectID, amount float64) *models.Invoice {
	t.Helper()
	inv := &models.Invoice{Status: models.InvoiceStatusPaid, Amount: amount, UserID: owner}
	require.NoError(t, repo.Insert(context.Background(), inv))
	return inv
}

func TestNewReceiptNumber(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		n := NewReceiptNumber("REC")
		assert.Regexp(t, receiptNumberPattern, n)
		seen[n] = true
	}
	assert.Greater(t, len(seen), 95)
}

func TestIssue_SnapshotsAmount(t *testing.T) {
	invoices, receipts := newFakeInvoiceRepo(), newFakeReceiptRepo()
	s := newTestReceiptService(invoices, receipts)
	inv := paidInvoice(t, invoices, primitive.NewObjectID(), 123.45)

	rec, err := s.Issue(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, 123.45, rec.AmountPaid)
	assert.Equal(t, inv.ID, rec.InvoiceID)
	assert.WithinDuration(t, time.Now().UTC(), rec.PaymentDate, time.Minute)
}

func TestIssue_RegeneratesOnNumberCollision(t *testing.T) {
	invoices, receipts := newFakeInvoiceRepo(), newFakeReceiptRepo()
	s := newTestReceiptService(invoices, receipts)
	ctx := context.Background()

	numbers := []string{"REC-AAAAAAAA", "REC-AAAAAAAA", "REC-BBBBBBBB"}
	s.newNumber = func() string {
		n := numbers[0]
		numbers = numbers[1:]
		return n
	}

	_, err := s.Issue(ctx, paidInvoice(t, invoices, primitive.NewObjectID(), 10))
	require.NoError(t, err)

	rec, err := s.Issue(ctx, paidInvoice(t, invoices, primitive.NewObjectID(), 20))
	require.NoError(t, err)
	assert.Equal(t, "REC-BBBBBBBB", rec.ReceiptNumber)
	assert.Equal(t, 3, receipts.inserts)
}

func TestIssue_SecondReceiptForInvoiceIsConflict(t *testing.T) {
	invoices, receipts := newFakeInvoiceRepo(), newFakeReceiptRepo()
	s := newTestReceiptService(invoices, receipts)
	ctx := context.Background()
	inv := paidInvoice(t, invoices, primitive.NewObjectID(), 10)

	_, err := s.Issue(ctx, inv)
	require.NoError(t, err)

	_, err = s.Issue(ctx, inv)
	assert.ErrorIs(t, err, ErrReceiptExists)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 2, receipts.inserts, "not retried")
	assert.Equal(t, 1, receipts.count())
}

func TestIssue_RequiresPaidInvoice(t *testing.T) {
	invoices, receipts := newFakeInvoiceRepo(), newFakeReceiptRepo()
	s := newTestReceiptService(invoices, receipts)
	inv := &models.Invoice{ID: primitive.NewObjectID(), Status: models.InvoiceStatusPending}

	_, err := s.Issue(context.Background(), inv)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = s.Issue(context.Background(), nil)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, receipts.inserts)
}

func TestReceiptReads_Authorization(t *testing.T) {
	invoices, receipts := newFakeInvoiceRepo(), newFakeReceiptRepo()
	s := newTestReceiptService(invoices, receipts)
	ctx := context.Background()
	owner, other, boss := worker(), worker(), admin()

	inv := paidInvoice(t, invoices, owner.UserID, 10)
	rec, err := s.Issue(ctx, inv)
	require.NoError(t, err)

	got, err := s.Get(ctx, owner, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ReceiptNumber, got.ReceiptNumber)
	_, err = s.Get(ctx, other, rec.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = s.Get(ctx, boss, rec.ID)
	assert.NoError(t, err)
	_, err = s.Get(ctx, boss, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrNotFound)

	got, err = s.GetByInvoice(ctx, owner, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	_, err = s.GetByInvoice(ctx, other, inv.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	unpaid := &models.Invoice{Status: models.InvoiceStatusPending, UserID: owner.UserID}
	require.NoError(t, invoices.Insert(ctx, unpaid))
	_, err = s.GetByInvoice(ctx, owner, unpaid.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReceiptList_ScopedToOwner(t *testing.T) {
	invoices, receipts := newFakeInvoiceRepo(), newFakeReceiptRepo()
	s := newTestReceiptService(invoices, receipts)
	ctx := context.Background()
	alice, bob, carol, boss := worker(), worker(), worker(), admin()

	for _, owner := range []models.Identity{alice, alice, bob} {
		_, err := s.Issue(ctx, paidInvoice(t, invoices, owner.UserID, 10))
		require.NoError(t, err)
	}

	page, err := s.List(ctx, alice, ReceiptFilter{UserID: &bob.UserID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)

	page, err = s.List(ctx, carol, ReceiptFilter{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Empty(t, page.Items)

	page, err = s.List(ctx, boss, ReceiptFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)

	page, err = s.List(ctx, boss, ReceiptFilter{UserID: &bob.UserID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	future := time.Now().Add(time.Hour)
	page, err = s.List(ctx, boss, ReceiptFilter{DateFrom: &future})
	require.NoError(t, err)
	assert.Zero(t, page.Total)

	_, err = s.List(ctx, models.Identity{}, ReceiptFilter{})
	assert.ErrorIs(t, err, ErrForbidden)
}
