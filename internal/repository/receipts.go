package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"opalpixel/invoicing/internal/db"
	"opalpixel/invoicing/internal/models"
)

// ReceiptQuery narrows a receipt listing. When ByInvoices is set only receipts
// for InvoiceIDs are returned, an empty list matching nothing.
type ReceiptQuery struct {
	ByInvoices bool
	InvoiceIDs []primitive.ObjectID
	DateFrom   *time.Time
	DateTo     *time.Time
	Skip       int64
	Limit      int64
}

type ReceiptRepository interface {
	Insert(ctx context.Context, rec *models.Receipt) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Receipt, error)
	FindByInvoiceID(ctx context.Context, invoiceID primitive.ObjectID) (*models.Receipt, error)
	DeleteByInvoiceID(ctx context.Context, invoiceID primitive.ObjectID) (int64, error)
	List(ctx context.Context, q ReceiptQuery) ([]models.Receipt, int64, error)
}

type receiptRepository struct {
	coll   *mongo.Collection
	logger *zap.Logger
}

func NewReceiptRepository(database *mongo.Database, logger *zap.Logger) ReceiptRepository {
	return &receiptRepository{coll: database.Collection(db.ReceiptsCollection), logger: logger}
}

func (r *receiptRepository) Insert(ctx context.Context, rec *models.Receipt) error {
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	if _, err := r.coll.InsertOne(ctx, rec); err != nil {
		r.logger.Debug("receipt insert failed", zap.String("receipt_number", rec.ReceiptNumber), zap.Error(err))
		return err
	}
	return nil
}

func (r *receiptRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Receipt, error) {
	var rec models.Receipt
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&rec); err != nil {
		return nil, translate(err)
	}
	return &rec, nil
}

func (r *receiptRepository) FindByInvoiceID(ctx context.Context, invoiceID primitive.ObjectID) (*models.Receipt, error) {
	var rec models.Receipt
	if err := r.coll.FindOne(ctx, bson.M{"invoice_id": invoiceID}).Decode(&rec); err != nil {
		return nil, translate(err)
	}
	return &rec, nil
}

func (r *receiptRepository) DeleteByInvoiceID(ctx context.Context, invoiceID primitive.ObjectID) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"invoice_id": invoiceID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *receiptRepository) List(ctx context.Context, q ReceiptQuery) ([]models.Receipt, int64, error) {
	filter := bson.M{}
	if q.ByInvoices {
		ids := q.InvoiceIDs
		if ids == nil {
			ids = []primitive.ObjectID{}
		}
		filter["invoice_id"] = bson.M{"$in": ids}
	}
	if dates := dateRange(q.DateFrom, q.DateTo); dates != nil {
		filter["payment_date"] = dates
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "payment_date", Value: -1}}).
		SetSkip(q.Skip)
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	receipts := []models.Receipt{}
	if err := cursor.All(ctx, &receipts); err != nil {
		return nil, 0, err
	}
	return receipts, total, nil
}
