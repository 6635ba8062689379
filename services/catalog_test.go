package services

import (
	"testing"
	"time"

	"feeledger-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveFeeItemValidation(t *testing.T) {
	db := setupDB(t)

	tests := []struct {
		name  string
		input FeeItemInput
		field string
	}{
		{"missing name", FeeItemInput{Name: "  ", Amount: dec("100")}, "name"},
		{"zero amount", FeeItemInput{Name: "Tuition", Amount: dec("0")}, "amount"},
		{"negative amount", FeeItemInput{Name: "Tuition", Amount: dec("-5")}, "amount"},
		{"installments flag without schedule", FeeItemInput{
			Name: "Uniform", Amount: dec("30000"), AllowInstallments: true,
		}, "installments"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := SaveFeeItem(db, tc.input)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
		})
	}
}

func TestSaveFeeItemInstallmentSumMismatch(t *testing.T) {
	db := setupDB(t)

	// 10,000 + 10,000 + 15,000 = 35,000 against an amount of 30,000.
	_, err := SaveFeeItem(db, FeeItemInput{
		Name:              "Uniform",
		Amount:            dec("30000"),
		AllowInstallments: true,
		Installments: []InstallmentInput{
			{Name: "First", Amount: dec("10000")},
			{Name: "Second", Amount: dec("10000")},
			{Name: "Third", Amount: dec("15000")},
		},
	})

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Message, "difference 5000")

	var count int64
	require.NoError(t, db.Model(&models.FeeItem{}).Count(&count).Error)
	assert.Zero(t, count, "rejected item must not be persisted")
}

func TestSaveFeeItemInstallmentsExactSum(t *testing.T) {
	db := setupDB(t)
	due := time.Date(2024, 9, 30, 0, 0, 0, 0, time.UTC)

	item, err := SaveFeeItem(db, FeeItemInput{
		Name:              "Tuition",
		Amount:            dec("50000"),
		IsCompulsory:      true,
		AllowInstallments: true,
		Priority:          1,
		Installments: []InstallmentInput{
			{Name: "First half", Amount: dec("25000"), DueDate: due},
			{Name: "Second half", Amount: dec("25000"), DueDate: due.AddDate(0, 2, 0)},
		},
	})
	require.NoError(t, err)
	require.Len(t, item.Installments, 2)
	assert.Equal(t, 1, item.Installments[0].Position)
	assertAmount(t, "25000", item.Installments[0].Amount)

	// A fractional mismatch, however small, is still rejected.
	_, err = SaveFeeItem(db, FeeItemInput{
		Name:              "Books",
		Amount:            dec("100.00"),
		AllowInstallments: true,
		Installments: []InstallmentInput{
			{Name: "A", Amount: dec("50.00")},
			{Name: "B", Amount: dec("49.99")},
		},
	})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Message, "0.01")
}

func TestSaveFeeItemUpdatesOnNameCollision(t *testing.T) {
	db := setupDB(t)

	first, err := SaveFeeItem(db, FeeItemInput{Name: "Tuition", Amount: dec("50000"), Priority: 1})
	require.NoError(t, err)

	// Same name, different case: update in place, not a duplicate.
	second, err := SaveFeeItem(db, FeeItemInput{Name: "tuition", Amount: dec("55000"), Priority: 2})
	require.NoError(t, err)
	assert.Equal(t, first.Id, second.Id)
	assertAmount(t, "55000", second.Amount)

	var count int64
	require.NoError(t, db.Model(&models.FeeItem{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestSaveFeeItemClearsScheduleWhenDisallowed(t *testing.T) {
	db := setupDB(t)

	_, err := SaveFeeItem(db, FeeItemInput{
		Name:              "Uniform",
		Amount:            dec("30000"),
		AllowInstallments: true,
		Installments: []InstallmentInput{
			{Name: "First", Amount: dec("15000")},
			{Name: "Second", Amount: dec("15000")},
		},
	})
	require.NoError(t, err)

	// Re-save without installments: schedule is dropped, not kept stale.
	item, err := SaveFeeItem(db, FeeItemInput{
		Name:   "Uniform",
		Amount: dec("30000"),
		Installments: []InstallmentInput{
			{Name: "Ghost", Amount: dec("30000")},
		},
	})
	require.NoError(t, err)
	assert.Empty(t, item.Installments)

	var count int64
	require.NoError(t, db.Model(&models.FeeInstallment{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestDeleteFeeItemKeepsLineItemSnapshots(t *testing.T) {
	db := setupDB(t)
	student := seedStudent(t, db, "Ada", "Obi", "ADM-001")
	term := seedTerm(t, db, "2024 First Term", time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC))
	item := seedFeeItem(t, db, "Books", "10000", 2)

	res, err := GenerateInvoices(db, GenerateInput{
		StudentIDs: []string{student.Id},
		TermID:     term.Id,
		FeeItemIDs: []string{item.Id},
		DueDate:    time.Date(2024, 9, 30, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, res.Invoices, 1)

	require.NoError(t, DeleteFeeItem(db, item.Id))

	var lines []models.InvoiceLineItem
	require.NoError(t, db.Find(&lines).Error)
	require.Len(t, lines, 1)
	assert.Equal(t, "Books", lines[0].Description)
	assertAmount(t, "10000", lines[0].Amount)
}

func TestDeleteFeeItemNotFound(t *testing.T) {
	db := setupDB(t)

	err := DeleteFeeItem(db, "no-such-id")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestListFeeItemsPriorityOrder(t *testing.T) {
	db := setupDB(t)
	seedFeeItem(t, db, "Books", "10000", 3)
	seedFeeItem(t, db, "Tuition", "50000", 1)
	seedFeeItem(t, db, "Transport", "20000", 2)

	items, err := ListFeeItems(db)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "Tuition", items[0].Name)
	assert.Equal(t, "Transport", items[1].Name)
	assert.Equal(t, "Books", items[2].Name)
}
