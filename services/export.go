package services

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"feeledger-backend/models"

	"gorm.io/gorm"
)

type InvoiceFilter struct {
	// Status filters on the stored settlement status; "Overdue" is accepted
	// and resolved as a view-time filter (unpaid/partial past due date).
	Status string
	// Search matches invoice number or student name, case-insensitively.
	Search string
	// Limit of 0 means no paging.
	Limit  int
	Offset int
}

// InvoiceView is an invoice annotated with the view-time overdue qualifier.
type InvoiceView struct {
	models.Invoice
	Overdue bool `json:"overdue"`
}

// ListInvoices returns invoices (newest first) with students and line items
// loaded, filtered by settlement status and/or search text.
func ListInvoices(db *gorm.DB, filter InvoiceFilter) ([]InvoiceView, error) {
	now := time.Now().UTC()

	q := db.Model(&models.Invoice{}).
		Select("invoices.*").
		Joins("JOIN students ON students.id = invoices.student_id").
		Preload("Student").
		Preload("Items").
		Order("invoices.created_at DESC").Order("invoices.id DESC")

	status := strings.TrimSpace(filter.Status)
	overdueOnly := strings.EqualFold(status, "Overdue")
	if status != "" && !overdueOnly {
		q = q.Where("invoices.status = ?", status)
	}
	if overdueOnly {
		q = q.Where("invoices.status NOT IN ?", []models.InvoiceStatus{models.InvoicePaid, models.InvoiceVoid}).
			Where("invoices.due_date < ?", now)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		q = q.Where(
			"LOWER(invoices.invoice_number) LIKE ? OR LOWER(students.first_name || ' ' || students.last_name) LIKE ?",
			pattern, pattern)
	}

	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}

	var invoices []models.Invoice
	if err := q.Find(&invoices).Error; err != nil {
		return nil, err
	}

	views := make([]InvoiceView, 0, len(invoices))
	for _, inv := range invoices {
		views = append(views, InvoiceView{Invoice: inv, Overdue: inv.IsOverdue(now)})
	}
	return views, nil
}

// GetInvoice loads one invoice with student and line items, annotated with
// the overdue qualifier.
func GetInvoice(db *gorm.DB, id uint) (*InvoiceView, error) {
	var invoice models.Invoice
	err := db.Preload("Student").Preload("Items").First(&invoice, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "invoice", ID: strconv.FormatUint(uint64(id), 10)}
		}
		return nil, err
	}
	return &InvoiceView{Invoice: invoice, Overdue: invoice.IsOverdue(time.Now().UTC())}, nil
}

// WriteInvoicesCSV serializes an invoice listing to the flat collections
// format: invoice number, student name, total, paid, status, due date.
// Overdue shows as a qualifier on the status column, not a separate state.
func WriteInvoicesCSV(w io.Writer, views []InvoiceView) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"invoice_number", "student_name", "total", "paid", "status", "due_date"}); err != nil {
		return err
	}
	for _, v := range views {
		status := string(v.Status)
		if v.Overdue {
			status += " (Overdue)"
		}
		dueDate := ""
		if !v.DueDate.IsZero() {
			dueDate = v.DueDate.Format("2006-01-02")
		}
		record := []string{
			v.InvoiceNumber,
			v.Student.FullName(),
			v.TotalAmount.StringFixed(2),
			v.AmountPaid.StringFixed(2),
			status,
			dueDate,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
