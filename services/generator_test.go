package services

import (
	"strings"
	"testing"
	"time"

	"feeledger-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateInvoicesBatch(t *testing.T) {
	db := setupDB(t)
	ada := seedStudent(t, db, "Ada", "Obi", "ADM-001")
	bola := seedStudent(t, db, "Bola", "Ade", "ADM-002")
	term := seedTerm(t, db, "2024 First Term", time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC))
	tuition := seedFeeItem(t, db, "Tuition", "50000", 1)
	books := seedFeeItem(t, db, "Books", "10000", 2)
	due := time.Date(2024, 9, 30, 0, 0, 0, 0, time.UTC)

	res, err := GenerateInvoices(db, GenerateInput{
		StudentIDs: []string{ada.Id, bola.Id},
		TermID:     term.Id,
		FeeItemIDs: []string{tuition.Id, books.Id},
		DueDate:    due,
	})
	require.NoError(t, err)
	require.Len(t, res.Invoices, 2)
	assert.Empty(t, res.Failed)

	for _, inv := range res.Invoices {
		assertAmount(t, "60000", inv.TotalAmount)
		assertAmount(t, "0", inv.AmountPaid)
		assert.Equal(t, models.InvoiceUnpaid, inv.Status)
		assert.True(t, inv.DueDate.Equal(due))
		require.Len(t, inv.Items, 2)

		// Line items carry the catalog snapshot and sum to the total.
		sum := dec("0")
		for _, li := range inv.Items {
			sum = sum.Add(li.Amount)
		}
		assert.True(t, sum.Equal(inv.TotalAmount), "line items must sum to total")
		assert.True(t, strings.HasPrefix(inv.InvoiceNumber, "INV-"))
	}
	assert.NotEqual(t, res.Invoices[0].InvoiceNumber, res.Invoices[1].InvoiceNumber)

	// Batch order follows the input order.
	assert.Equal(t, ada.Id, res.Invoices[0].StudentID)
	assert.Equal(t, bola.Id, res.Invoices[1].StudentID)
}

func TestGenerateInvoicesEmptySelectionIsNoop(t *testing.T) {
	db := setupDB(t)
	student := seedStudent(t, db, "Ada", "Obi", "ADM-001")
	term := seedTerm(t, db, "2024 First Term", time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC))
	item := seedFeeItem(t, db, "Tuition", "50000", 1)

	res, err := GenerateInvoices(db, GenerateInput{
		StudentIDs: nil,
		TermID:     term.Id,
		FeeItemIDs: []string{item.Id},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Invoices)

	res, err = GenerateInvoices(db, GenerateInput{
		StudentIDs: []string{student.Id},
		TermID:     term.Id,
		FeeItemIDs: nil,
	})
	require.NoError(t, err)
	assert.Empty(t, res.Invoices)

	var count int64
	require.NoError(t, db.Model(&models.Invoice{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGenerateInvoicesUnknownReferences(t *testing.T) {
	db := setupDB(t)
	student := seedStudent(t, db, "Ada", "Obi", "ADM-001")
	term := seedTerm(t, db, "2024 First Term", time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC))
	item := seedFeeItem(t, db, "Tuition", "50000", 1)

	_, err := GenerateInvoices(db, GenerateInput{
		StudentIDs: []string{student.Id},
		TermID:     "no-such-term",
		FeeItemIDs: []string{item.Id},
	})
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "term", nf.Resource)

	_, err = GenerateInvoices(db, GenerateInput{
		StudentIDs: []string{student.Id},
		TermID:     term.Id,
		FeeItemIDs: []string{item.Id, "no-such-item"},
	})
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "fee item", nf.Resource)
	assert.Equal(t, "no-such-item", nf.ID)
}

func TestGenerateInvoicesIsolatesStudentFailures(t *testing.T) {
	db := setupDB(t)
	ada := seedStudent(t, db, "Ada", "Obi", "ADM-001")
	bola := seedStudent(t, db, "Bola", "Ade", "ADM-002")
	term := seedTerm(t, db, "2024 First Term", time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC))
	item := seedFeeItem(t, db, "Tuition", "50000", 1)

	res, err := GenerateInvoices(db, GenerateInput{
		StudentIDs: []string{ada.Id, "missing-student", bola.Id},
		TermID:     term.Id,
		FeeItemIDs: []string{item.Id},
		DueDate:    time.Date(2024, 9, 30, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	// The unknown student fails alone; the rest of the batch lands.
	require.Len(t, res.Invoices, 2)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "missing-student", res.Failed[0].StudentID)

	var invoiceCount, lineCount int64
	require.NoError(t, db.Model(&models.Invoice{}).Count(&invoiceCount).Error)
	require.NoError(t, db.Model(&models.InvoiceLineItem{}).Count(&lineCount).Error)
	assert.EqualValues(t, 2, invoiceCount)
	assert.EqualValues(t, 2, lineCount, "no orphaned line items from the failed unit")
}

func TestGenerateInvoicesRetriesOnNumberCollision(t *testing.T) {
	db := setupDB(t)
	student := seedStudent(t, db, "Ada", "Obi", "ADM-001")
	term := seedTerm(t, db, "2024 First Term", time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC))
	item := seedFeeItem(t, db, "Tuition", "50000", 1)

	taken := models.Invoice{
		InvoiceNumber: "INV-TAKEN",
		StudentID:     student.Id,
		TermID:        term.Id,
		TotalAmount:   dec("1"),
		AmountPaid:    dec("0"),
		Status:        models.InvoiceUnpaid,
	}
	require.NoError(t, db.Create(&taken).Error)

	// First issued number collides with the existing invoice; the failed
	// insert rolls back to its savepoint and the retry lands.
	calls := 0
	orig := newInvoiceNumber
	newInvoiceNumber = func() string {
		calls++
		if calls == 1 {
			return "INV-TAKEN"
		}
		return NewInvoiceNumber()
	}
	defer func() { newInvoiceNumber = orig }()

	res, err := GenerateInvoices(db, GenerateInput{
		StudentIDs: []string{student.Id},
		TermID:     term.Id,
		FeeItemIDs: []string{item.Id},
		DueDate:    time.Date(2024, 9, 30, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, res.Invoices, 1)
	assert.Empty(t, res.Failed)
	assert.Equal(t, 2, calls)
	assert.NotEqual(t, "INV-TAKEN", res.Invoices[0].InvoiceNumber)

	// The retried invoice still carries its line items.
	var lineCount int64
	require.NoError(t, db.Model(&models.InvoiceLineItem{}).
		Where("invoice_id = ?", res.Invoices[0].ID).Count(&lineCount).Error)
	assert.EqualValues(t, 1, lineCount)
}

func TestNewInvoiceNumberUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		n := NewInvoiceNumber()
		require.True(t, strings.HasPrefix(n, "INV-"))
		_, dup := seen[n]
		require.False(t, dup, "invoice number %s repeated", n)
		seen[n] = struct{}{}
	}
}
