package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FeeItem is a billable catalog entry (tuition, books, uniform, ...).
// Name is unique per school; matching on import is case-insensitive.
type FeeItem struct {
	Id                string          `json:"id" gorm:"primaryKey"`
	Name              string          `json:"name" gorm:"not null"`
	Amount            decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	IsCompulsory      bool            `json:"is_compulsory"`
	AllowInstallments bool            `json:"allow_installments"`
	// Lower priority is collected first.
	Priority     int              `json:"priority" gorm:"not null;default:1"`
	Installments []FeeInstallment `json:"installments" gorm:"foreignKey:FeeItemID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

func (item *FeeItem) BeforeCreate(tx *gorm.DB) (err error) {
	// UUID version 4
	if item.Id == "" {
		item.Id = uuid.NewString()
	}
	return
}

// FeeInstallment is one named part of a fee item's total.
// The installment amounts of an item must sum exactly to the item amount.
type FeeInstallment struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	FeeItemID string          `json:"-" gorm:"not null;index"`
	Position  int             `json:"position" gorm:"not null"`
	Name      string          `json:"name" gorm:"not null"`
	Amount    decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	DueDate   time.Time       `json:"due_date"`
}
