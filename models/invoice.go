package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// InvoiceStatus is the stored settlement state of an invoice.
// "Overdue" is a view-time qualifier derived from due_date, never stored.
type InvoiceStatus string

const (
	InvoiceUnpaid        InvoiceStatus = "Unpaid"
	InvoicePartiallyPaid InvoiceStatus = "PartiallyPaid"
	InvoicePaid          InvoiceStatus = "Paid"
	InvoiceVoid          InvoiceStatus = "Void"
)

// Invoice is the current/live state of one student's bill for a term.
// TotalAmount is frozen at generation; AmountPaid is maintained only by
// the payment ledger and never exceeds TotalAmount.
type Invoice struct {
	ID            uint    `json:"id" gorm:"primaryKey"`
	InvoiceNumber string  `json:"invoice_number" gorm:"unique;not null"`
	StudentID     string  `json:"-" gorm:"not null;index"`
	Student       Student `json:"student" gorm:"foreignKey:StudentID;references:Id"`
	TermID        string  `json:"term_id" gorm:"not null;index"`

	// Frozen line items (snapshot of the catalog at generation time)
	Items []InvoiceLineItem `json:"line_items" gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`

	TotalAmount decimal.Decimal `json:"total_amount" gorm:"type:numeric(12,2);not null"`
	AmountPaid  decimal.Decimal `json:"amount_paid" gorm:"type:numeric(12,2);not null"`
	Status      InvoiceStatus   `json:"status" gorm:"type:varchar(20);not null;default:'Unpaid'"`
	DueDate     time.Time       `json:"due_date"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Outstanding is the unpaid remainder.
func (inv *Invoice) Outstanding() decimal.Decimal {
	return inv.TotalAmount.Sub(inv.AmountPaid)
}

// IsOverdue is computed at read time so it can never drift from the
// stored settlement status.
func (inv *Invoice) IsOverdue(now time.Time) bool {
	return inv.Status != InvoicePaid && inv.Status != InvoiceVoid && inv.DueDate.Before(now)
}

// InvoiceLineItem is a frozen snapshot of one fee item on an invoice.
// Description and Amount are copied from the catalog at generation time
// and never mutated afterwards; deleting the fee item does not touch them.
type InvoiceLineItem struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	InvoiceID   uint            `json:"-" gorm:"index;not null"`
	FeeItemID   string          `json:"fee_item_id" gorm:"index"`
	Description string          `json:"description" gorm:"not null"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
}

// PaymentKind distinguishes money in from an offsetting correction.
type PaymentKind string

const (
	PaymentKindPayment  PaymentKind = "payment"
	PaymentKindReversal PaymentKind = "reversal"
)

// Payment is an append-only ledger event against an invoice. Corrections
// are recorded as reversal events referencing the original; rows are
// never edited or deleted.
type Payment struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	InvoiceID uint            `json:"invoice_id" gorm:"not null;index:idx_payments_invoice_recorded_at,priority:1"`
	Kind      PaymentKind     `json:"kind" gorm:"type:varchar(10);not null;default:'payment'"`
	Amount    decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	Method    string          `json:"method" gorm:"not null"`
	Reference string          `json:"reference"`
	// ReversesID links a reversal to the payment it offsets.
	ReversesID *uint     `json:"reverses_id" gorm:"index"`
	RecordedBy string    `json:"recorded_by" gorm:"not null"`
	RecordedAt time.Time `json:"recorded_at" gorm:"not null;index:idx_payments_invoice_recorded_at,priority:2"`
	CreatedAt  time.Time `json:"created_at"`
}

// Immutable snapshot taken when an invoice is voided.
type InvoiceVersion struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	InvoiceID uint           `json:"invoice_id" gorm:"index:idx_invoice_versions_invoice_id_version_no,unique,priority:1"`
	VersionNo int            `json:"version_no" gorm:"not null;index:idx_invoice_versions_invoice_id_version_no,unique,priority:2"`
	Reason    string         `json:"reason" gorm:"type:VARCHAR(255)"`
	Snapshot  datatypes.JSON `json:"snapshot" gorm:"type:jsonb"`
	CreatedBy string         `json:"created_by"`
	CreatedAt time.Time      `json:"created_at"`
}
