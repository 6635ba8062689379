package controllers

import (
	"feeledger-backend/database"
	"feeledger-backend/middlewares"
	"feeledger-backend/services"

	"github.com/gofiber/fiber/v2"
)

// POST /api/fee-item
// Create-or-update: a case-insensitive name collision updates the existing
// catalog entry instead of duplicating it.
func SaveFeeItem(c *fiber.Ctx) error {
	var in services.FeeItemInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	item, err := services.SaveFeeItem(db, in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

// GET /api/fee-items
func GetFeeItems(c *fiber.Ctx) error {
	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	items, err := services.ListFeeItems(db)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"fee_items": items})
}

// GET /api/fee-item/:id
func GetFeeItem(c *fiber.Ctx) error {
	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	item, err := services.GetFeeItem(db, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(item)
}

// DELETE /api/fee-item/:id
// Existing invoices keep their frozen line item snapshots.
func DeleteFeeItem(c *fiber.Ctx) error {
	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	if err := services.DeleteFeeItem(db, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "fee item deleted"})
}
