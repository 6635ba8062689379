package controllers

import (
	"feeledger-backend/database"
	"feeledger-backend/services"

	"github.com/gofiber/fiber/v2"
)

// GET /api/debtors?student_id=
// Collections report: students with money outstanding across non-void
// invoices, largest balance first.
func GetDebtors(c *fiber.Ctx) error {
	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	debtors, err := services.ListDebtors(db, c.Query("student_id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"debtors": debtors})
}
