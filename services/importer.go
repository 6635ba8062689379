package services

import (
	"errors"
	"strings"
	"time"

	"feeledger-backend/logger"
	"feeledger-backend/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Import rows arrive loosely typed (spreadsheet exports, legacy systems);
// amounts and dates are strings and validated per row. A bad row is skipped
// and reported, never fatal to the batch.

type FeeItemRow struct {
	Name         string `json:"name"`
	Amount       string `json:"amount"`
	IsCompulsory bool   `json:"is_compulsory"`
	Priority     int    `json:"priority"`
}

type InvoiceRow struct {
	InvoiceNumber string `json:"invoice_number"`
	AdmissionNo   string `json:"admission_no"`
	StudentName   string `json:"student_name"`
	TermID        string `json:"term_id"`
	TotalAmount   string `json:"total_amount"`
	AmountPaid    string `json:"amount_paid"`
	DueDate       string `json:"due_date"`
	Description   string `json:"description"`
}

const (
	RowCreated = "created"
	RowUpdated = "updated"
	RowSkipped = "skipped"
)

type RowResult struct {
	Row    int    `json:"row"`
	Action string `json:"action"`
	Error  string `json:"error,omitempty"`
}

type ImportResult struct {
	Created int         `json:"created"`
	Updated int         `json:"updated"`
	Skipped int         `json:"skipped"`
	Rows    []RowResult `json:"rows"`
}

func (r *ImportResult) record(idx int, action, errMsg string) {
	switch action {
	case RowCreated:
		r.Created++
	case RowUpdated:
		r.Updated++
	default:
		r.Skipped++
	}
	r.Rows = append(r.Rows, RowResult{Row: idx + 1, Action: action, Error: errMsg})
}

// ImportFeeItems merges externally supplied fee items into the catalog.
// Matching is by case-insensitive name, via the same SaveFeeItem path as
// direct creation, so imported rows obey identical validation rules. An
// existing installment schedule survives the merge while the amount is
// unchanged; a new amount invalidates it, and the wipe is reported on the
// row result.
func ImportFeeItems(db *gorm.DB, rows []FeeItemRow) *ImportResult {
	res := &ImportResult{}
	for i, row := range rows {
		amount, err := parseAmount(row.Amount, "amount")
		if err != nil {
			res.record(i, RowSkipped, err.Error())
			continue
		}

		existing, err := findFeeItemByName(db, row.Name)
		if err != nil {
			res.record(i, RowSkipped, err.Error())
			continue
		}

		in := FeeItemInput{
			Name:         row.Name,
			Amount:       amount,
			IsCompulsory: row.IsCompulsory,
			Priority:     row.Priority,
		}
		note := ""
		if existing != nil && existing.AllowInstallments && len(existing.Installments) > 0 {
			if amount.Equal(existing.Amount) {
				in.AllowInstallments = true
				for _, inst := range existing.Installments {
					in.Installments = append(in.Installments, InstallmentInput{
						Name:    inst.Name,
						Amount:  inst.Amount,
						DueDate: inst.DueDate,
					})
				}
			} else {
				note = "installment schedule cleared; imported amount differs from the scheduled total"
			}
		}

		if _, err := SaveFeeItem(db, in); err != nil {
			logger.L.Warn("fee item import row skipped", zap.Int("row", i+1), zap.Error(err))
			res.record(i, RowSkipped, err.Error())
			continue
		}

		if existing != nil {
			res.record(i, RowUpdated, note)
		} else {
			res.record(i, RowCreated, "")
		}
	}
	return res
}

func findFeeItemByName(db *gorm.DB, name string) (*models.FeeItem, error) {
	var item models.FeeItem
	err := db.Preload("Installments", sortInstallments).
		Where("LOWER(name) = LOWER(?)", strings.TrimSpace(name)).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ImportInvoices merges externally supplied invoices by invoice number:
// update-if-exists, insert-otherwise. Rows whose student cannot be resolved
// (or resolves ambiguously) are skipped. At least one term must exist so
// rows without a term id can fall back to the default term.
func ImportInvoices(db *gorm.DB, rows []InvoiceRow) (*ImportResult, error) {
	var defaultTerm models.Term
	if err := db.Order("starts_on DESC").First(&defaultTerm).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, validationf("term", "no term exists; create a term before importing invoices")
		}
		return nil, err
	}

	res := &ImportResult{}
	for i, row := range rows {
		action, err := importInvoiceRow(db, row, defaultTerm.Id)
		if err != nil {
			logger.L.Warn("invoice import row skipped", zap.Int("row", i+1), zap.Error(err))
			res.record(i, RowSkipped, err.Error())
			continue
		}
		res.record(i, action, "")
	}
	return res, nil
}

// importInvoiceRow applies one row in its own (save-pointed) transaction so
// a failed row cannot poison the surrounding batch transaction.
func importInvoiceRow(db *gorm.DB, row InvoiceRow, defaultTermID string) (string, error) {
	number := strings.TrimSpace(row.InvoiceNumber)
	if number == "" {
		return "", validationf("invoice_number", "invoice number is required")
	}

	total, err := parseAmount(row.TotalAmount, "total_amount")
	if err != nil {
		return "", err
	}
	paid := decimal.Zero
	if strings.TrimSpace(row.AmountPaid) != "" {
		paid, err = parseNonNegative(row.AmountPaid, "amount_paid")
		if err != nil {
			return "", err
		}
	}
	if paid.Cmp(total) > 0 {
		return "", validationf("amount_paid", "amount_paid %s exceeds total_amount %s", paid, total)
	}

	var dueDate time.Time
	if strings.TrimSpace(row.DueDate) != "" {
		dueDate, err = time.Parse("2006-01-02", strings.TrimSpace(row.DueDate))
		if err != nil {
			return "", validationf("due_date", "due date %q is not in YYYY-MM-DD form", row.DueDate)
		}
	}

	action := RowSkipped
	err = db.Transaction(func(tx *gorm.DB) error {
		termID := strings.TrimSpace(row.TermID)
		if termID == "" {
			termID = defaultTermID
		} else {
			var n int64
			if err := tx.Model(&models.Term{}).Where("id = ?", termID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return &NotFoundError{Resource: "term", ID: termID}
			}
		}

		student, err := resolveStudent(tx, row.AdmissionNo, row.StudentName)
		if err != nil {
			return err
		}

		var existing models.Invoice
		lookup := tx.Where("invoice_number = ?", number).First(&existing)
		if lookup.Error != nil && !errors.Is(lookup.Error, gorm.ErrRecordNotFound) {
			return lookup.Error
		}

		if lookup.Error == nil {
			var lines []models.InvoiceLineItem
			if err := tx.Where("invoice_id = ?", existing.ID).Find(&lines).Error; err != nil {
				return err
			}
			// Generator-created invoices carry frozen catalog snapshots; their
			// totals are immutable and no import row may overwrite them.
			for _, li := range lines {
				if li.FeeItemID != "" {
					return validationf("invoice_number",
						"invoice %s was generated from the catalog and cannot be overwritten by import", number)
				}
			}

			updates := map[string]any{
				"student_id":   student.Id,
				"term_id":      termID,
				"total_amount": total,
				"amount_paid":  paid,
				"status":       settlementStatus(paid, total),
			}
			if !dueDate.IsZero() {
				updates["due_date"] = dueDate
			}
			if err := tx.Model(&models.Invoice{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
				return err
			}

			// Re-sync the imported-balance line so line items still sum to
			// the total.
			if err := tx.Where("invoice_id = ?", existing.ID).Delete(&models.InvoiceLineItem{}).Error; err != nil {
				return err
			}
			line := models.InvoiceLineItem{
				InvoiceID:   existing.ID,
				Description: importDescription(row),
				Amount:      total,
			}
			if err := tx.Create(&line).Error; err != nil {
				return err
			}
			action = RowUpdated
			return nil
		}

		invoice := models.Invoice{
			InvoiceNumber: number,
			StudentID:     student.Id,
			TermID:        termID,
			Items: []models.InvoiceLineItem{
				{Description: importDescription(row), Amount: total},
			},
			TotalAmount: total,
			AmountPaid:  paid,
			Status:      settlementStatus(paid, total),
			DueDate:     dueDate,
		}
		if err := tx.Create(&invoice).Error; err != nil {
			return err
		}
		action = RowCreated
		return nil
	})
	if err != nil {
		return "", err
	}
	return action, nil
}

func importDescription(row InvoiceRow) string {
	if d := strings.TrimSpace(row.Description); d != "" {
		return d
	}
	return "Imported balance"
}

// resolveStudent finds the billed student by admission number first, falling
// back to an exact full-name match only when no admission number was given.
// Two students sharing the name is reported, not guessed at.
func resolveStudent(tx *gorm.DB, admissionNo, name string) (*models.Student, error) {
	admissionNo = strings.TrimSpace(admissionNo)
	if admissionNo != "" {
		var student models.Student
		if err := tx.First(&student, "admission_no = ?", admissionNo).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, &NotFoundError{Resource: "student with admission no", ID: admissionNo}
			}
			return nil, err
		}
		return &student, nil
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationf("student", "row has neither admission_no nor student_name")
	}

	var matches []models.Student
	err := tx.Where("LOWER(first_name || ' ' || last_name) = LOWER(?)", name).
		Limit(2).Find(&matches).Error
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, &NotFoundError{Resource: "student named", ID: name}
	case 1:
		return &matches[0], nil
	default:
		return nil, validationf("student_name",
			"student name %q is ambiguous; supply an admission number", name)
	}
}

func parseAmount(raw, field string) (decimal.Decimal, error) {
	amount, err := parseNonNegative(raw, field)
	if err != nil {
		return decimal.Zero, err
	}
	if amount.IsZero() {
		return decimal.Zero, validationf(field, "%s must be positive", field)
	}
	return amount, nil
}

func parseNonNegative(raw, field string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	if raw == "" {
		return decimal.Zero, validationf(field, "%s is required", field)
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, validationf(field, "%q is not a valid amount", raw)
	}
	if amount.Cmp(decimal.Zero) < 0 {
		return decimal.Zero, validationf(field, "%s cannot be negative", field)
	}
	return amount, nil
}
