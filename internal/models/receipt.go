package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Receipt is the proof of payment for exactly one invoice.
type Receipt struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	InvoiceID     primitive.ObjectID `bson:"invoice_id" json:"invoice_id"`
	ReceiptNumber string             `bson:"receipt_number" json:"receipt_number"`
	AmountPaid    float64            `bson:"amount_paid" json:"amount_paid"` // Snapshot of the invoice amount at pay time
	PaymentDate   time.Time          `bson:"payment_date" json:"payment_date"`
}
