package controllers

import (
	"feeledger-backend/database"
	"feeledger-backend/middlewares"
	"feeledger-backend/services"

	"github.com/gofiber/fiber/v2"
)

type ImportFeeItemsDTO struct {
	Rows []services.FeeItemRow `json:"rows" validate:"required,min=1"`
}

// POST /api/import/fee-items
// Row-level merge: update on case-insensitive name match, insert otherwise.
// Invalid rows are skipped and reported, not fatal.
func ImportFeeItems(c *fiber.Ctx) error {
	var in ImportFeeItemsDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	return c.JSON(services.ImportFeeItems(db, in.Rows))
}

type ImportInvoicesDTO struct {
	Rows []services.InvoiceRow `json:"rows" validate:"required,min=1"`
}

// POST /api/import/invoices
// Matches by invoice number; students resolve by admission number, then
// exact name. Fails outright only when no term exists to default to.
func ImportInvoices(c *fiber.Ctx) error {
	var in ImportInvoicesDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	result, err := services.ImportInvoices(db, in.Rows)
	if err != nil {
		return err
	}
	return c.JSON(result)
}
