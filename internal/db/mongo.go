package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Collection names.
const (
	UsersCollection    = "users"
	InvoicesCollection = "invoices"
	ReceiptsCollection = "receipts"
	CountersCollection = "counters"
)

// Unique index names. Duplicate-key errors are told apart by these.
const (
	IndexWorkerID       = "worker_id_unique"
	IndexInvoiceNumber  = "invoice_number_unique"
	IndexReceiptNumber  = "receipt_number_unique"
	IndexReceiptInvoice = "receipt_invoice_unique"
)

// ConnectDB initializes and returns a MongoDB client and database instance.
func ConnectDB(uri, dbName string, log *zap.Logger) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	ctxPing, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := client.Ping(ctxPing, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	log.Info("connected to MongoDB", zap.String("database", dbName))
	return client, client.Database(dbName), nil
}

// DisconnectDB closes the MongoDB client connection.
func DisconnectDB(client *mongo.Client) error {
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect MongoDB: %w", err)
	}
	return nil
}

// EnsureIndexes creates the indexes the invoicing core relies on. The unique
// ones are the authoritative guard for worker ids, invoice numbers, receipt
// numbers and the one-receipt-per-invoice rule.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		UsersCollection: {
			{Keys: bson.D{{Key: "worker_id", Value: 1}}, Options: options.Index().SetName(IndexWorkerID).SetUnique(true)},
			{Keys: bson.D{{Key: "full_name", Value: 1}}},
		},
		InvoicesCollection: {
			// Sparse: the number is nullable until assigned.
			{Keys: bson.D{{Key: "invoice_number", Value: 1}}, Options: options.Index().SetName(IndexInvoiceNumber).SetUnique(true).SetSparse(true)},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "date_created", Value: -1}}},
			{Keys: bson.D{{Key: "date_created", Value: -1}}},
		},
		ReceiptsCollection: {
			{Keys: bson.D{{Key: "receipt_number", Value: 1}}, Options: options.Index().SetName(IndexReceiptNumber).SetUnique(true)},
			{Keys: bson.D{{Key: "invoice_id", Value: 1}}, Options: options.Index().SetName(IndexReceiptInvoice).SetUnique(true)},
			{Keys: bson.D{{Key: "payment_date", Value: -1}}},
		},
	}

	for collection, models := range specs {
		if _, err := database.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", collection, err)
		}
	}
	return nil
}
