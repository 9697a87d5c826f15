package services

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"opalpixel/invoicing/internal/db"
	"opalpixel/invoicing/internal/models"
	"opalpixel/invoicing/internal/repository"
)

// duplicateKey builds the error the driver returns for a unique index violation.
func duplicateKey(index, key string) error {
	return mongo.WriteException{WriteErrors: []mongo.WriteError{{
		Code:    11000,
		Message: fmt.Sprintf("E11000 duplicate key error collection: opalpixel index: %s dup key: { : %q }", index, key),
	}}}
}

type fakeInvoiceRepo struct {
	mu       sync.Mutex
	invoices map[primitive.ObjectID]models.Invoice
	// beforeInsert can fail an insert before the uniqueness check.
	beforeInsert func(inv *models.Invoice) error
	inserts      int
}

func newFakeInvoiceRepo() *fakeInvoiceRepo {
	return &fakeInvoiceRepo{invoices: map[primitive.ObjectID]models.Invoice{}}
}

func (r *fakeInvoiceRepo) Insert(_ context.Context, inv *models.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserts++
	if r.beforeInsert != nil {
		if err := r.beforeInsert(inv); err != nil {
			return err
		}
	}
	if inv.ID.IsZero() {
		inv.ID = primitive.NewObjectID()
	}
	if inv.InvoiceNumber != nil {
		for _, other := range r.invoices {
			if other.InvoiceNumber != nil && *other.InvoiceNumber == *inv.InvoiceNumber {
				return duplicateKey(db.IndexInvoiceNumber, *inv.InvoiceNumber)
			}
		}
	}
	r.invoices[inv.ID] = cloneInvoice(*inv)
	return nil
}

func cloneInvoice(inv models.Invoice) models.Invoice {
	inv.Items = append([]models.InvoiceItem(nil), inv.Items...)
	return inv
}

func (r *fakeInvoiceRepo) FindByID(_ context.Context, id primitive.ObjectID) (*models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	inv = cloneInvoice(inv)
	return &inv, nil
}

func (r *fakeInvoiceRepo) UpdateUnpaid(_ context.Context, inv *models.Invoice) (*models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.invoices[inv.ID]
	if !ok || stored.Status == models.InvoiceStatusPaid {
		return nil, repository.ErrNotFound
	}
	stored.ClientName = inv.ClientName
	stored.ClientEmail = inv.ClientEmail
	stored.ClientPhone = inv.ClientPhone
	stored.ClientAddress = inv.ClientAddress
	stored.Items = append([]models.InvoiceItem(nil), inv.Items...)
	stored.TaxRate = inv.TaxRate
	stored.TaxAmount = inv.TaxAmount
	stored.Amount = inv.Amount
	stored.DueDate = inv.DueDate
	r.invoices[inv.ID] = stored
	out := cloneInvoice(stored)
	return &out, nil
}

func (r *fakeInvoiceRepo) DeleteUnpaid(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.invoices[id]
	if !ok || stored.Status == models.InvoiceStatusPaid {
		return repository.ErrNotFound
	}
	delete(r.invoices, id)
	return nil
}

func (r *fakeInvoiceRepo) MarkPaid(_ context.Context, id primitive.ObjectID) (*models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.invoices[id]
	if !ok || stored.Status == models.InvoiceStatusPaid {
		return nil, repository.ErrNotFound
	}
	stored.Status = models.InvoiceStatusPaid
	r.invoices[id] = stored
	out := cloneInvoice(stored)
	return &out, nil
}

func (r *fakeInvoiceRepo) RevertPaid(_ context.Context, id primitive.ObjectID, status models.InvoiceStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.invoices[id]
	if !ok || stored.Status != models.InvoiceStatusPaid {
		return repository.ErrNotFound
	}
	stored.Status = status
	r.invoices[id] = stored
	return nil
}

func (r *fakeInvoiceRepo) CountNumbered(_ context.Context, prefix, yearSuffix string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	re := regexp.MustCompile("^" + regexp.QuoteMeta(prefix) + "-.*-" + regexp.QuoteMeta(yearSuffix) + "$")
	var n int64
	for _, inv := range r.invoices {
		if inv.InvoiceNumber != nil && re.MatchString(*inv.InvoiceNumber) {
			n++
		}
	}
	return n, nil
}

func (r *fakeInvoiceRepo) CountByUser(_ context.Context, userID primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, inv := range r.invoices {
		if inv.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *fakeInvoiceRepo) IDsByUser(_ context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := []primitive.ObjectID{}
	for id, inv := range r.invoices {
		if inv.UserID == userID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *fakeInvoiceRepo) List(_ context.Context, q repository.InvoiceQuery) ([]models.Invoice, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []models.Invoice
	for _, inv := range r.invoices {
		if q.UserID != nil && inv.UserID != *q.UserID {
			continue
		}
		if q.Status != "" && inv.Status != q.Status {
			continue
		}
		if q.ClientName != "" && !strings.Contains(strings.ToLower(inv.ClientName), strings.ToLower(q.ClientName)) {
			continue
		}
		if q.DateFrom != nil && inv.DateCreated.Before(*q.DateFrom) {
			continue
		}
		if q.DateTo != nil && inv.DateCreated.After(*q.DateTo) {
			continue
		}
		matched = append(matched, cloneInvoice(inv))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].DateCreated.After(matched[j].DateCreated) })
	return window(matched, q.Skip, q.Limit), int64(len(matched)), nil
}

func window[T any](items []T, skip, limit int64) []T {
	if skip >= int64(len(items)) {
		return []T{}
	}
	items = items[skip:]
	if limit > 0 && limit < int64(len(items)) {
		items = items[:limit]
	}
	return items
}

type fakeReceiptRepo struct {
	mu       sync.Mutex
	receipts map[primitive.ObjectID]models.Receipt
	inserts  int
	// insertErr, when set, fails every insert.
	insertErr error
}

func newFakeReceiptRepo() *fakeReceiptRepo {
	return &fakeReceiptRepo{receipts: map[primitive.ObjectID]models.Receipt{}}
}

func (r *fakeReceiptRepo) Insert(_ context.Context, rec *models.Receipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserts++
	if r.insertErr != nil {
		return r.insertErr
	}
	for _, other := range r.receipts {
		if other.ReceiptNumber == rec.ReceiptNumber {
			return duplicateKey(db.IndexReceiptNumber, rec.ReceiptNumber)
		}
		if other.InvoiceID == rec.InvoiceID {
			return duplicateKey(db.IndexReceiptInvoice, rec.InvoiceID.Hex())
		}
	}
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	r.receipts[rec.ID] = *rec
	return nil
}

func (r *fakeReceiptRepo) FindByID(_ context.Context, id primitive.ObjectID) (*models.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.receipts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rec, nil
}

func (r *fakeReceiptRepo) FindByInvoiceID(_ context.Context, invoiceID primitive.ObjectID) (*models.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.receipts {
		if rec.InvoiceID == invoiceID {
			rec := rec
			return &rec, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeReceiptRepo) DeleteByInvoiceID(_ context.Context, invoiceID primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, rec := range r.receipts {
		if rec.InvoiceID == invoiceID {
			delete(r.receipts, id)
			n++
		}
	}
	return n, nil
}

func (r *fakeReceiptRepo) List(_ context.Context, q repository.ReceiptQuery) ([]models.Receipt, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	allowed := map[primitive.ObjectID]bool{}
	for _, id := range q.InvoiceIDs {
		allowed[id] = true
	}
	var matched []models.Receipt
	for _, rec := range r.receipts {
		if q.ByInvoices && !allowed[rec.InvoiceID] {
			continue
		}
		if q.DateFrom != nil && rec.PaymentDate.Before(*q.DateFrom) {
			continue
		}
		if q.DateTo != nil && rec.PaymentDate.After(*q.DateTo) {
			continue
		}
		matched = append(matched, rec)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].PaymentDate.After(matched[j].PaymentDate) })
	return window(matched, q.Skip, q.Limit), int64(len(matched)), nil
}

func (r *fakeReceiptRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.receipts)
}

type fakeCounterRepo struct {
	mu       sync.Mutex
	counters map[string]int
}

func newFakeCounterRepo() *fakeCounterRepo {
	return &fakeCounterRepo{counters: map[string]int{}}
}

func (r *fakeCounterRepo) Increment(_ context.Context, name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seq, ok := r.counters[name]
	if !ok {
		return 0, repository.ErrNotFound
	}
	r.counters[name] = seq + 1
	return seq + 1, nil
}

func (r *fakeCounterRepo) Seed(_ context.Context, name string, seq int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.counters[name]; ok {
		return duplicateKey("_id_", name)
	}
	r.counters[name] = seq
	return nil
}

func (r *fakeCounterRepo) Get(_ context.Context, name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seq, ok := r.counters[name]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return seq, nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[primitive.ObjectID]models.User{}}
}

func (r *fakeUserRepo) Insert(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, other := range r.users {
		if other.WorkerID == u.WorkerID {
			return duplicateKey(db.IndexWorkerID, u.WorkerID)
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	r.users[u.ID] = *u
	return nil
}

func (r *fakeUserRepo) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *fakeUserRepo) FindByWorkerID(_ context.Context, workerID string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.WorkerID == workerID {
			u := u
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) List(_ context.Context, role models.Role) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := []models.User{}
	for _, u := range r.users {
		if role == "" || u.Role == role {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].FullName < users[j].FullName })
	return users, nil
}

func (r *fakeUserRepo) Update(_ context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; !ok {
		return nil, repository.ErrNotFound
	}
	r.users[u.ID] = *u
	out := *u
	return &out, nil
}

func (r *fakeUserRepo) SetPasswordHash(_ context.Context, id primitive.ObjectID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	r.users[id] = u
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	receipts []models.Receipt
	err      error
}

func (p *recordingPublisher) ReceiptIssued(_ context.Context, _ *models.Invoice, rec *models.Receipt) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.receipts = append(p.receipts, *rec)
	return p.err
}
