package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"feeledger-backend/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RecordPaymentInput struct {
	InvoiceID  uint            `json:"invoice_id"`
	Amount     decimal.Decimal `json:"amount" validate:"required"`
	Method     string          `json:"method" validate:"required,min=1"`
	Reference  string          `json:"reference"`
	RecordedBy string          `json:"recorded_by"`
}

// lockForUpdate adds a FOR UPDATE row lock on dialects that support it.
// Sqlite serializes writers on its own; postgres needs the explicit lock.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// lockInvoice loads an invoice for update. Concurrent payments on the same
// invoice serialize on this row lock, so amount_paid and status are always
// recomputed from the final, not an intermediate, value.
func lockInvoice(tx *gorm.DB, invoiceID uint) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := lockForUpdate(tx).First(&invoice, "id = ?", invoiceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "invoice", ID: fmt.Sprint(invoiceID)}
		}
		return nil, err
	}
	return &invoice, nil
}

// RecordPayment appends a ledger event and rolls the invoice's amount_paid
// and settlement status forward. Overpayment is rejected, never capped: the
// caller must adjust the tendered amount.
func RecordPayment(db *gorm.DB, in RecordPaymentInput) (*models.Payment, error) {
	if in.Amount.Cmp(decimal.Zero) <= 0 {
		return nil, validationf("amount", "payment amount must be positive, got %s", in.Amount)
	}

	var payment models.Payment
	err := db.Transaction(func(tx *gorm.DB) error {
		invoice, err := lockInvoice(tx, in.InvoiceID)
		if err != nil {
			return err
		}
		if invoice.Status == models.InvoiceVoid {
			return validationf("invoice_id", "invoice %s is void", invoice.InvoiceNumber)
		}

		newPaid := invoice.AmountPaid.Add(in.Amount)
		if newPaid.Cmp(invoice.TotalAmount) > 0 {
			return validationf("amount",
				"payment of %s exceeds outstanding balance %s on invoice %s",
				in.Amount, invoice.Outstanding(), invoice.InvoiceNumber)
		}

		payment = models.Payment{
			InvoiceID:  invoice.ID,
			Kind:       models.PaymentKindPayment,
			Amount:     in.Amount,
			Method:     in.Method,
			Reference:  in.Reference,
			RecordedBy: in.RecordedBy,
			RecordedAt: time.Now().UTC(),
		}
		if err := tx.Create(&payment).Error; err != nil {
			return &IntegrityError{Op: "append payment", Err: err}
		}

		return applyPaid(tx, invoice.ID, newPaid, invoice.TotalAmount)
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// ReversePayment appends an offsetting event for a previously recorded
// payment. History is never mutated; the original row stays untouched and a
// payment can be reversed at most once.
func ReversePayment(db *gorm.DB, paymentID uint, reference, recordedBy string) (*models.Payment, error) {
	var reversal models.Payment
	err := db.Transaction(func(tx *gorm.DB) error {
		var original models.Payment
		if err := tx.First(&original, "id = ?", paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "payment", ID: fmt.Sprint(paymentID)}
			}
			return err
		}
		if original.Kind != models.PaymentKindPayment {
			return validationf("payment_id", "only payments can be reversed, %d is a %s", paymentID, original.Kind)
		}

		var prior int64
		if err := tx.Model(&models.Payment{}).
			Where("kind = ? AND reverses_id = ?", models.PaymentKindReversal, original.ID).
			Count(&prior).Error; err != nil {
			return err
		}
		if prior > 0 {
			return validationf("payment_id", "payment %d is already reversed", paymentID)
		}

		invoice, err := lockInvoice(tx, original.InvoiceID)
		if err != nil {
			return err
		}
		if invoice.Status == models.InvoiceVoid {
			return validationf("payment_id", "invoice %s is void", invoice.InvoiceNumber)
		}

		newPaid := invoice.AmountPaid.Sub(original.Amount)
		if newPaid.Cmp(decimal.Zero) < 0 {
			return &IntegrityError{Op: "reverse payment",
				Err: fmt.Errorf("reversal of %s would drive amount_paid below zero", original.Amount)}
		}

		reversal = models.Payment{
			InvoiceID:  invoice.ID,
			Kind:       models.PaymentKindReversal,
			Amount:     original.Amount,
			Method:     original.Method,
			Reference:  reference,
			ReversesID: &original.ID,
			RecordedBy: recordedBy,
			RecordedAt: time.Now().UTC(),
		}
		if err := tx.Create(&reversal).Error; err != nil {
			return &IntegrityError{Op: "append reversal", Err: err}
		}

		return applyPaid(tx, invoice.ID, newPaid, invoice.TotalAmount)
	})
	if err != nil {
		return nil, err
	}
	return &reversal, nil
}

// applyPaid persists the rolled-forward paid amount and the status derived
// from it, in the same transaction as the ledger append.
func applyPaid(tx *gorm.DB, invoiceID uint, paid, total decimal.Decimal) error {
	updates := map[string]any{
		"amount_paid": paid,
		"status":      settlementStatus(paid, total),
	}
	if err := tx.Model(&models.Invoice{}).Where("id = ?", invoiceID).Updates(updates).Error; err != nil {
		return &IntegrityError{Op: "update invoice rollup", Err: err}
	}
	return nil
}

// VoidInvoice is the only path into the terminal Void status. The live row
// is snapshotted into invoice_versions first, so the pre-void state stays
// auditable. Settled money must be reversed before voiding.
func VoidInvoice(db *gorm.DB, invoiceID uint, reason, voidedBy string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := db.Transaction(func(tx *gorm.DB) error {
		locked, err := lockInvoice(tx, invoiceID)
		if err != nil {
			return err
		}
		if locked.Status == models.InvoiceVoid {
			return validationf("invoice_id", "invoice %s is already void", locked.InvoiceNumber)
		}
		if !locked.AmountPaid.IsZero() {
			return validationf("invoice_id",
				"invoice %s has %s recorded against it; reverse payments before voiding",
				locked.InvoiceNumber, locked.AmountPaid)
		}

		if err := tx.Preload("Items").Preload("Student").First(locked, "id = ?", locked.ID).Error; err != nil {
			return err
		}
		snapshot, err := json.Marshal(locked)
		if err != nil {
			return &IntegrityError{Op: "snapshot invoice", Err: err}
		}

		var lastVersion int
		row := tx.Model(&models.InvoiceVersion{}).
			Where("invoice_id = ?", locked.ID).
			Select("COALESCE(MAX(version_no), 0)").Row()
		if err := row.Scan(&lastVersion); err != nil {
			return err
		}

		version := models.InvoiceVersion{
			InvoiceID: locked.ID,
			VersionNo: lastVersion + 1,
			Reason:    reason,
			Snapshot:  snapshot,
			CreatedBy: voidedBy,
		}
		if err := tx.Create(&version).Error; err != nil {
			return &IntegrityError{Op: "create invoice version", Err: err}
		}

		if err := tx.Model(&models.Invoice{}).Where("id = ?", locked.ID).
			Update("status", models.InvoiceVoid).Error; err != nil {
			return &IntegrityError{Op: "void invoice", Err: err}
		}

		locked.Status = models.InvoiceVoid
		invoice = *locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// ListPayments returns the ledger for one invoice, newest first.
func ListPayments(db *gorm.DB, invoiceID uint) ([]models.Payment, error) {
	var exists int64
	if err := db.Model(&models.Invoice{}).Where("id = ?", invoiceID).Count(&exists).Error; err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, &NotFoundError{Resource: "invoice", ID: fmt.Sprint(invoiceID)}
	}

	var payments []models.Payment
	err := db.Where("invoice_id = ?", invoiceID).
		Order("recorded_at DESC").Order("id DESC").
		Find(&payments).Error
	return payments, err
}
