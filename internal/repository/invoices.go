package repository

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"opalpixel/invoicing/internal/db"
	"opalpixel/invoicing/internal/models"
)

// InvoiceQuery narrows an invoice listing. Zero values mean "no filter".
type InvoiceQuery struct {
	UserID     *primitive.ObjectID
	Status     models.InvoiceStatus
	ClientName string // case-insensitive substring
	DateFrom   *time.Time
	DateTo     *time.Time
	Skip       int64
	Limit      int64
}

type InvoiceRepository interface {
	Insert(ctx context.Context, inv *models.Invoice) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Invoice, error)
	// UpdateUnpaid writes the mutable fields of inv unless the stored invoice is Paid.
	UpdateUnpaid(ctx context.Context, inv *models.Invoice) (*models.Invoice, error)
	DeleteUnpaid(ctx context.Context, id primitive.ObjectID) error
	// MarkPaid flips the status to Paid unless it already is.
	MarkPaid(ctx context.Context, id primitive.ObjectID) (*models.Invoice, error)
	// RevertPaid sets a Paid invoice back to status.
	RevertPaid(ctx context.Context, id primitive.ObjectID, status models.InvoiceStatus) error
	CountNumbered(ctx context.Context, prefix, yearSuffix string) (int64, error)
	CountByUser(ctx context.Context, userID primitive.ObjectID) (int64, error)
	IDsByUser(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error)
	List(ctx context.Context, q InvoiceQuery) ([]models.Invoice, int64, error)
}

type invoiceRepository struct {
	coll   *mongo.Collection
	logger *zap.Logger
}

func NewInvoiceRepository(database *mongo.Database, logger *zap.Logger) InvoiceRepository {
	return &invoiceRepository{coll: database.Collection(db.InvoicesCollection), logger: logger}
}

func (r *invoiceRepository) Insert(ctx context.Context, inv *models.Invoice) error {
	if inv.ID.IsZero() {
		inv.ID = primitive.NewObjectID()
	}
	if _, err := r.coll.InsertOne(ctx, inv); err != nil {
		r.logger.Debug("invoice insert failed", zap.String("invoice_number", inv.Number()), zap.Error(err))
		return err
	}
	return nil
}

func (r *invoiceRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Invoice, error) {
	var inv models.Invoice
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&inv); err != nil {
		return nil, translate(err)
	}
	return &inv, nil
}

func (r *invoiceRepository) UpdateUnpaid(ctx context.Context, inv *models.Invoice) (*models.Invoice, error) {
	filter := bson.M{"_id": inv.ID, "status": bson.M{"$ne": models.InvoiceStatusPaid}}
	update := bson.M{
		"$set": bson.M{
			"client_name":    inv.ClientName,
			"client_email":   inv.ClientEmail,
			"client_phone":   inv.ClientPhone,
			"client_address": inv.ClientAddress,
			"items":          inv.Items,
			"tax_rate":       inv.TaxRate,
			"tax_amount":     inv.TaxAmount,
			"amount":         inv.Amount,
			"due_date":       inv.DueDate,
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Invoice
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated); err != nil {
		return nil, translate(err)
	}
	return &updated, nil
}

func (r *invoiceRepository) DeleteUnpaid(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id, "status": bson.M{"$ne": models.InvoiceStatusPaid}})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *invoiceRepository) MarkPaid(ctx context.Context, id primitive.ObjectID) (*models.Invoice, error) {
	filter := bson.M{"_id": id, "status": bson.M{"$ne": models.InvoiceStatusPaid}}
	update := bson.M{"$set": bson.M{"status": models.InvoiceStatusPaid}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Invoice
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated); err != nil {
		return nil, translate(err)
	}
	return &updated, nil
}

func (r *invoiceRepository) RevertPaid(ctx context.Context, id primitive.ObjectID, status models.InvoiceStatus) error {
	filter := bson.M{"_id": id, "status": models.InvoiceStatusPaid}
	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"status": status}})
	if err != nil {
		r.logger.Error("failed to revert paid invoice", zap.String("invoice_id", id.Hex()), zap.Error(err))
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *invoiceRepository) CountNumbered(ctx context.Context, prefix, yearSuffix string) (int64, error) {
	pattern := fmt.Sprintf("^%s-.*-%s$", regexp.QuoteMeta(prefix), regexp.QuoteMeta(yearSuffix))
	return r.coll.CountDocuments(ctx, bson.M{"invoice_number": primitive.Regex{Pattern: pattern}})
}

func (r *invoiceRepository) CountByUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{"user_id": userID})
}

func (r *invoiceRepository) IDsByUser(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := r.coll.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	ids := []primitive.ObjectID{}
	for cursor.Next(ctx) {
		var doc struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		ids = append(ids, doc.ID)
	}
	return ids, cursor.Err()
}

func (r *invoiceRepository) List(ctx context.Context, q InvoiceQuery) ([]models.Invoice, int64, error) {
	filter := bson.M{}
	if q.UserID != nil {
		filter["user_id"] = *q.UserID
	}
	if q.Status != "" {
		filter["status"] = q.Status
	}
	if q.ClientName != "" {
		filter["client_name"] = primitive.Regex{Pattern: regexp.QuoteMeta(q.ClientName), Options: "i"}
	}
	if dates := dateRange(q.DateFrom, q.DateTo); dates != nil {
		filter["date_created"] = dates
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "date_created", Value: -1}}).
		SetSkip(q.Skip)
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	invoices := []models.Invoice{}
	if err := cursor.All(ctx, &invoices); err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

func dateRange(from, to *time.Time) bson.M {
	if from == nil && to == nil {
		return nil
	}
	cond := bson.M{}
	if from != nil {
		cond["$gte"] = *from
	}
	if to != nil {
		cond["$lte"] = *to
	}
	return cond
}
