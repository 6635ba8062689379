package services

import (
	"errors"
	"strings"
	"time"

	"feeledger-backend/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type InstallmentInput struct {
	Name    string          `json:"name" validate:"required,min=1"`
	Amount  decimal.Decimal `json:"amount" validate:"required"`
	DueDate time.Time       `json:"due_date"`
}

type FeeItemInput struct {
	Name              string             `json:"name" validate:"required,min=1"`
	Amount            decimal.Decimal    `json:"amount" validate:"required"`
	IsCompulsory      bool               `json:"is_compulsory"`
	AllowInstallments bool               `json:"allow_installments"`
	Priority          int                `json:"priority" validate:"omitempty,min=1"`
	Installments      []InstallmentInput `json:"installments" validate:"dive"`
}

// SaveFeeItem validates and persists a catalog entry. A name collision with
// an existing item (case-insensitive) updates that item in place instead of
// creating a duplicate; its installment list is replaced wholesale.
func SaveFeeItem(db *gorm.DB, in FeeItemInput) (*models.FeeItem, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationf("name", "fee item name is required")
	}
	if in.Amount.Cmp(decimal.Zero) <= 0 {
		return nil, validationf("amount", "fee item amount must be positive, got %s", in.Amount)
	}

	installments, err := buildInstallments(in)
	if err != nil {
		return nil, err
	}

	priority := in.Priority
	if priority <= 0 {
		priority = 1
	}

	var item models.FeeItem
	err = db.Transaction(func(tx *gorm.DB) error {
		existing := models.FeeItem{}
		lookup := tx.Where("LOWER(name) = LOWER(?)", name).First(&existing)
		if lookup.Error != nil && !errors.Is(lookup.Error, gorm.ErrRecordNotFound) {
			return lookup.Error
		}

		if lookup.Error == nil {
			// Update in place, replacing the installment schedule.
			if err := tx.Where("fee_item_id = ?", existing.Id).Delete(&models.FeeInstallment{}).Error; err != nil {
				return err
			}
			updates := map[string]any{
				"name":               name,
				"amount":             in.Amount,
				"is_compulsory":      in.IsCompulsory,
				"allow_installments": in.AllowInstallments,
				"priority":           priority,
			}
			if err := tx.Model(&models.FeeItem{}).Where("id = ?", existing.Id).Updates(updates).Error; err != nil {
				return err
			}
			for i := range installments {
				installments[i].FeeItemID = existing.Id
			}
			if len(installments) > 0 {
				if err := tx.Create(&installments).Error; err != nil {
					return err
				}
			}
			return tx.Preload("Installments", sortInstallments).First(&item, "id = ?", existing.Id).Error
		}

		item = models.FeeItem{
			Name:              name,
			Amount:            in.Amount,
			IsCompulsory:      in.IsCompulsory,
			AllowInstallments: in.AllowInstallments,
			Priority:          priority,
			Installments:      installments,
		}
		return tx.Create(&item).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// buildInstallments enforces the installment invariant: a schedule is only
// allowed when allow_installments is set, must be non-empty, and must sum
// exactly to the item amount. Any discrepancy is reported back verbatim.
func buildInstallments(in FeeItemInput) ([]models.FeeInstallment, error) {
	if !in.AllowInstallments {
		// The item always saves with an empty schedule.
		return nil, nil
	}
	if len(in.Installments) == 0 {
		return nil, validationf("installments", "installment schedule is required when allow_installments is set")
	}

	sum := decimal.Zero
	out := make([]models.FeeInstallment, 0, len(in.Installments))
	for i, inst := range in.Installments {
		instName := strings.TrimSpace(inst.Name)
		if instName == "" {
			return nil, validationf("installments", "installment %d has no name", i+1)
		}
		if inst.Amount.Cmp(decimal.Zero) <= 0 {
			return nil, validationf("installments", "installment %q amount must be positive, got %s", instName, inst.Amount)
		}
		sum = sum.Add(inst.Amount)
		out = append(out, models.FeeInstallment{
			Position: i + 1,
			Name:     instName,
			Amount:   inst.Amount,
			DueDate:  inst.DueDate,
		})
	}

	if !sum.Equal(in.Amount) {
		diff := sum.Sub(in.Amount)
		return nil, validationf("installments",
			"installment sum %s does not equal amount %s (difference %s)",
			sum, in.Amount, diff.Abs())
	}
	return out, nil
}

func sortInstallments(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// DeleteFeeItem removes a catalog entry and its schedule. Existing invoice
// line items keep their frozen snapshot of the deleted item.
func DeleteFeeItem(db *gorm.DB, id string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var item models.FeeItem
		if err := tx.First(&item, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "fee item", ID: id}
			}
			return err
		}
		if err := tx.Where("fee_item_id = ?", id).Delete(&models.FeeInstallment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&item).Error
	})
}

// GetFeeItem loads one catalog entry with its schedule.
func GetFeeItem(db *gorm.DB, id string) (*models.FeeItem, error) {
	var item models.FeeItem
	if err := db.Preload("Installments", sortInstallments).First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "fee item", ID: id}
		}
		return nil, err
	}
	return &item, nil
}

// ListFeeItems returns the catalog in collection order (priority, then name).
func ListFeeItems(db *gorm.DB) ([]models.FeeItem, error) {
	var items []models.FeeItem
	err := db.Preload("Installments", sortInstallments).
		Order("priority ASC").Order("name ASC").
		Find(&items).Error
	return items, err
}
