package services

import (
	"feeledger-backend/models"

	"github.com/shopspring/decimal"
)

// settlementStatus derives the stored invoice status from the paid/total
// pair. Void is terminal and never produced here.
func settlementStatus(paid, total decimal.Decimal) models.InvoiceStatus {
	switch {
	case paid.IsZero():
		return models.InvoiceUnpaid
	case paid.Cmp(total) < 0:
		return models.InvoicePartiallyPaid
	default:
		return models.InvoicePaid
	}
}
