package services

import (
	"strings"

	"feeledger-backend/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Debtor is one row of the collections report: a student whose non-void
// invoices leave money outstanding. It is derived, never stored.
type Debtor struct {
	StudentID     string          `json:"student_id"`
	StudentName   string          `json:"student_name"`
	AdmissionNo   string          `json:"admission_no"`
	TotalInvoiced decimal.Decimal `json:"total_invoiced"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
	Outstanding   decimal.Decimal `json:"outstanding"`
}

// ListDebtors aggregates invoiced-vs-paid per student across non-void
// invoices. Students who owe nothing are excluded; the result is sorted by
// outstanding descending with student id as a deterministic tiebreak.
// Pass an empty studentID for the full report.
func ListDebtors(db *gorm.DB, studentID string) ([]Debtor, error) {
	type row struct {
		StudentID     string
		FirstName     string
		LastName      string
		AdmissionNo   string
		TotalInvoiced decimal.Decimal
		TotalPaid     decimal.Decimal
	}

	q := db.Model(&models.Invoice{}).
		Select(`students.id AS student_id,
			students.first_name AS first_name,
			students.last_name AS last_name,
			students.admission_no AS admission_no,
			SUM(invoices.total_amount) AS total_invoiced,
			SUM(invoices.amount_paid) AS total_paid`).
		Joins("JOIN students ON students.id = invoices.student_id").
		Where("invoices.status <> ?", models.InvoiceVoid).
		Group("students.id, students.first_name, students.last_name, students.admission_no").
		Having("SUM(invoices.total_amount) > SUM(invoices.amount_paid)").
		Order("SUM(invoices.total_amount) - SUM(invoices.amount_paid) DESC").
		Order("students.id ASC")
	if studentID != "" {
		q = q.Where("students.id = ?", studentID)
	}

	var rows []row
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}

	debtors := make([]Debtor, 0, len(rows))
	for _, r := range rows {
		debtors = append(debtors, Debtor{
			StudentID:     r.StudentID,
			StudentName:   strings.TrimSpace(r.FirstName + " " + r.LastName),
			AdmissionNo:   r.AdmissionNo,
			TotalInvoiced: r.TotalInvoiced,
			TotalPaid:     r.TotalPaid,
			Outstanding:   r.TotalInvoiced.Sub(r.TotalPaid),
		})
	}
	return debtors, nil
}
