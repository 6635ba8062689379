package services

import (
	"testing"
	"time"

	"feeledger-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func generateFor(t *testing.T, db *gorm.DB, studentID, termID string, feeItemIDs []string) models.Invoice {
	t.Helper()
	res, err := GenerateInvoices(db, GenerateInput{
		StudentIDs: []string{studentID},
		TermID:     termID,
		FeeItemIDs: feeItemIDs,
		DueDate:    time.Date(2024, 9, 30, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, res.Invoices, 1)
	return res.Invoices[0]
}

func pay(t *testing.T, db *gorm.DB, invoiceID uint, amount string) {
	t.Helper()
	_, err := RecordPayment(db, RecordPaymentInput{
		InvoiceID: invoiceID, Amount: dec(amount), Method: "Cash", RecordedBy: "bursar-1",
	})
	require.NoError(t, err)
}

func TestListDebtorsAggregatesAcrossInvoices(t *testing.T) {
	db := setupDB(t)
	ada := seedStudent(t, db, "Ada", "Obi", "ADM-001")
	term := seedTerm(t, db, "2024 First Term", time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC))
	tuition := seedFeeItem(t, db, "Tuition", "60000", 1)
	transport := seedFeeItem(t, db, "Transport", "30000", 2)

	// Invoice A: 60,000 total, 20,000 paid. Invoice B: 30,000 total, settled.
	invA := generateFor(t, db, ada.Id, term.Id, []string{tuition.Id})
	invB := generateFor(t, db, ada.Id, term.Id, []string{transport.Id})
	pay(t, db, invA.ID, "20000")
	pay(t, db, invB.ID, "30000")

	debtors, err := ListDebtors(db, "")
	require.NoError(t, err)
	require.Len(t, debtors, 1, "the student appears once, not per invoice")

	d := debtors[0]
	assert.Equal(t, ada.Id, d.StudentID)
	assert.Equal(t, "Ada Obi", d.StudentName)
	assertAmount(t, "90000", d.TotalInvoiced)
	assertAmount(t, "50000", d.TotalPaid)
	assertAmount(t, "40000", d.Outstanding)
}

func TestListDebtorsExcludesSettledStudents(t *testing.T) {
	db := setupDB(t)
	ada := seedStudent(t, db, "Ada", "Obi", "ADM-001")
	bola := seedStudent(t, db, "Bola", "Ade", "ADM-002")
	term := seedTerm(t, db, "2024 First Term", time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC))
	tuition := seedFeeItem(t, db, "Tuition", "50000", 1)

	invA := generateFor(t, db, ada.Id, term.Id, []string{tuition.Id})
	invB := generateFor(t, db, bola.Id, term.Id, []string{tuition.Id})
	pay(t, db, invA.ID, "50000")
	pay(t, db, invB.ID, "10000")

	debtors, err := ListDebtors(db, "")
	require.NoError(t, err)
	require.Len(t, debtors, 1)
	assert.Equal(t, bola.Id, debtors[0].StudentID)
}

func TestListDebtorsExcludesVoidInvoices(t *testing.T) {
	db := setupDB(t)
	ada := seedStudent(t, db, "Ada", "Obi", "ADM-001")
	term := seedTerm(t, db, "2024 First Term", time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC))
	tuition := seedFeeItem(t, db, "Tuition", "50000", 1)

	inv := generateFor(t, db, ada.Id, term.Id, []string{tuition.Id})
	_, err := VoidInvoice(db, inv.ID, "billed in error", "admin-1")
	require.NoError(t, err)

	debtors, err := ListDebtors(db, "")
	require.NoError(t, err)
	assert.Empty(t, debtors, "void invoices contribute nothing to outstanding")
}

func TestListDebtorsOrderAndScope(t *testing.T) {
	db := setupDB(t)
	ada := seedStudent(t, db, "Ada", "Obi", "ADM-001")
	bola := seedStudent(t, db, "Bola", "Ade", "ADM-002")
	chi := seedStudent(t, db, "Chi", "Eze", "ADM-003")
	term := seedTerm(t, db, "2024 First Term", time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC))
	tuition := seedFeeItem(t, db, "Tuition", "50000", 1)
	books := seedFeeItem(t, db, "Books", "10000", 2)

	generateFor(t, db, ada.Id, term.Id, []string{books.Id})            // owes 10,000
	generateFor(t, db, bola.Id, term.Id, []string{tuition.Id})         // owes 50,000
	invC := generateFor(t, db, chi.Id, term.Id, []string{tuition.Id})  // owes 30,000 after payment
	pay(t, db, invC.ID, "20000")

	debtors, err := ListDebtors(db, "")
	require.NoError(t, err)
	require.Len(t, debtors, 3)
	assertAmount(t, "50000", debtors[0].Outstanding)
	assertAmount(t, "30000", debtors[1].Outstanding)
	assertAmount(t, "10000", debtors[2].Outstanding)

	// Scoped to a single student.
	scoped, err := ListDebtors(db, chi.Id)
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, chi.Id, scoped[0].StudentID)
}
