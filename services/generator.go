package services

import (
	"errors"
	"strings"
	"time"

	"feeledger-backend/logger"
	"feeledger-backend/models"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type GenerateInput struct {
	StudentIDs []string  `json:"student_ids" validate:"required,min=1,dive,required"`
	TermID     string    `json:"term_id" validate:"required"`
	FeeItemIDs []string  `json:"fee_item_ids" validate:"required,min=1,dive,required"`
	DueDate    time.Time `json:"due_date" validate:"required"`
}

// StudentFailure reports one student whose invoice unit rolled back.
type StudentFailure struct {
	StudentID string `json:"student_id"`
	Reason    string `json:"reason"`
}

type GenerateResult struct {
	Invoices []models.Invoice `json:"invoices"`
	Failed   []StudentFailure `json:"failed"`
}

// NewInvoiceNumber returns a collision-free invoice number. ULIDs are
// monotonic enough to sort by issue time and unique across retries, unlike
// the timestamp+student compositions they replace.
func NewInvoiceNumber() string {
	return "INV-" + ulid.Make().String()
}

// Stubbed in tests to force number collisions.
var newInvoiceNumber = NewInvoiceNumber

// GenerateInvoices creates one invoice per student for the selected fee
// items, freezing each item's name and amount into line items. Each
// student's invoice plus line items is written as one unit; a failure rolls
// back only that student and is reported in the result.
func GenerateInvoices(db *gorm.DB, in GenerateInput) (*GenerateResult, error) {
	res := &GenerateResult{}

	// Explicit no-op guards: nothing selected means nothing generated.
	if len(in.StudentIDs) == 0 || len(in.FeeItemIDs) == 0 {
		return res, nil
	}

	var term models.Term
	if err := db.First(&term, "id = ?", in.TermID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "term", ID: in.TermID}
		}
		return nil, err
	}

	var feeItems []models.FeeItem
	if err := db.Where("id IN ?", in.FeeItemIDs).Order("priority ASC").Find(&feeItems).Error; err != nil {
		return nil, err
	}
	if len(feeItems) != len(dedupe(in.FeeItemIDs)) {
		return nil, &NotFoundError{Resource: "fee item", ID: missingID(in.FeeItemIDs, feeItems)}
	}

	total := decimal.Zero
	for _, item := range feeItems {
		total = total.Add(item.Amount)
	}

	for _, studentID := range in.StudentIDs {
		invoice, err := generateOne(db, studentID, term.Id, in.DueDate, total, feeItems)
		if err != nil {
			logger.L.Warn("invoice generation failed for student",
				zap.String("student_id", studentID), zap.Error(err))
			res.Failed = append(res.Failed, StudentFailure{StudentID: studentID, Reason: err.Error()})
			continue
		}
		res.Invoices = append(res.Invoices, *invoice)
	}
	return res, nil
}

// generateOne writes one student's invoice and its line items atomically.
// When called inside a request transaction GORM demotes this to a savepoint,
// so a failure here cannot poison the rest of the batch.
func generateOne(db *gorm.DB, studentID, termID string, dueDate time.Time, total decimal.Decimal, feeItems []models.FeeItem) (*models.Invoice, error) {
	var invoice models.Invoice
	err := db.Transaction(func(tx *gorm.DB) error {
		var student models.Student
		if err := tx.First(&student, "id = ?", studentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "student", ID: studentID}
			}
			return err
		}

		items := make([]models.InvoiceLineItem, 0, len(feeItems))
		for _, fi := range feeItems {
			items = append(items, models.InvoiceLineItem{
				FeeItemID:   fi.Id,
				Description: fi.Name,
				Amount:      fi.Amount,
			})
		}

		invoice = models.Invoice{
			InvoiceNumber: newInvoiceNumber(),
			StudentID:     student.Id,
			TermID:        termID,
			Items:         items,
			TotalAmount:   total,
			AmountPaid:    decimal.Zero,
			Status:        models.InvoiceUnpaid,
			DueDate:       dueDate,
		}

		// The first attempt runs in its own savepoint: on postgres a failed
		// INSERT aborts the enclosing transaction scope, so a conflict must
		// be rolled back before the retry can proceed.
		createErr := tx.Transaction(func(tx *gorm.DB) error {
			return tx.Create(&invoice).Error
		})
		if createErr != nil {
			if !isUniqueViolation(createErr) {
				return &IntegrityError{Op: "create invoice", Err: createErr}
			}
			// Number collided; one retry with a fresh ULID.
			invoice.ID = 0
			invoice.InvoiceNumber = newInvoiceNumber()
			for i := range invoice.Items {
				invoice.Items[i].ID = 0
			}
			if err := tx.Create(&invoice).Error; err != nil {
				return &IntegrityError{Op: "create invoice", Err: err}
			}
		}

		invoice.Student = student
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func missingID(requested []string, found []models.FeeItem) string {
	have := make(map[string]struct{}, len(found))
	for _, f := range found {
		have[f.Id] = struct{}{}
	}
	for _, id := range requested {
		if _, ok := have[id]; !ok {
			return id
		}
	}
	return ""
}
