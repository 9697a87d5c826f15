package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "Pending"
	InvoiceStatusPaid    InvoiceStatus = "Paid"
	InvoiceStatusOverdue InvoiceStatus = "Overdue" // Reserved, nothing assigns it
)

// InvoiceItem is a single line embedded in an invoice. Total is always
// Quantity * UnitPrice at save time.
type InvoiceItem struct {
	Description string  `bson:"description" json:"description"`
	Quantity    int     `bson:"quantity" json:"quantity"`
	UnitPrice   float64 `bson:"unit_price" json:"unit_price"`
	Total       float64 `bson:"total" json:"total"`
}

// Invoice represents a bill issued to a client.
type Invoice struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	InvoiceNumber *string            `bson:"invoice_number,omitempty" json:"invoice_number"` // Null until assigned
	ClientName    string             `bson:"client_name" json:"client_name"`
	ClientEmail   *string            `bson:"client_email,omitempty" json:"client_email"`
	ClientPhone   *string            `bson:"client_phone,omitempty" json:"client_phone"`
	ClientAddress *string            `bson:"client_address,omitempty" json:"client_address"`
	Items         []InvoiceItem      `bson:"items" json:"items"`
	TaxRate       float64            `bson:"tax_rate" json:"tax_rate"`
	TaxAmount     float64            `bson:"tax_amount" json:"tax_amount"`
	Amount        float64            `bson:"amount" json:"amount"`
	Status        InvoiceStatus      `bson:"status" json:"status"`
	DateCreated   time.Time          `bson:"date_created" json:"date_created"`
	DueDate       time.Time          `bson:"due_date" json:"due_date"`
	UserID        primitive.ObjectID `bson:"user_id" json:"user_id"`
}

// Number returns the invoice number or an empty string when unassigned.
func (inv *Invoice) Number() string {
	if inv.InvoiceNumber == nil {
		return ""
	}
	return *inv.InvoiceNumber
}

func (inv *Invoice) IsPaid() bool {
	return inv.Status == InvoiceStatusPaid
}
