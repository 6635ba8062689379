package services

import (
	"fmt"
	"testing"
	"time"

	"feeledger-backend/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Student{},
		&models.Term{},
		&models.FeeItem{},
		&models.FeeInstallment{},
		&models.Invoice{},
		&models.InvoiceLineItem{},
		&models.InvoiceVersion{},
		&models.Payment{},
	))
	return db
}

func seedStudent(t *testing.T, db *gorm.DB, first, last, admissionNo string) models.Student {
	t.Helper()
	student := models.Student{FirstName: first, LastName: last, AdmissionNo: admissionNo, Active: true}
	require.NoError(t, db.Create(&student).Error)
	return student
}

func seedTerm(t *testing.T, db *gorm.DB, name string, starts time.Time) models.Term {
	t.Helper()
	term := models.Term{Name: name, StartsOn: starts, EndsOn: starts.AddDate(0, 3, 0)}
	require.NoError(t, db.Create(&term).Error)
	return term
}

func seedFeeItem(t *testing.T, db *gorm.DB, name, amount string, priority int) models.FeeItem {
	t.Helper()
	item, err := SaveFeeItem(db, FeeItemInput{
		Name:     name,
		Amount:   dec(amount),
		Priority: priority,
	})
	require.NoError(t, err)
	return *item
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, dec(want).Equal(got), "want %s, got %s", want, got)
}
