package controllers

import (
	"strconv"

	"feeledger-backend/database"
	"feeledger-backend/middlewares"
	"feeledger-backend/services"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type RecordPaymentDTO struct {
	Amount    decimal.Decimal `json:"amount" validate:"required"`
	Method    string          `json:"method" validate:"required,oneof=Cash 'Bank Transfer' POS Cheque Online"`
	Reference string          `json:"reference"`
}

// POST /api/invoices/:id/payments
// Appends to the ledger and rolls amount_paid/status forward atomically.
func CreatePayment(c *fiber.Ctx) error {
	id, err := invoiceIDParam(c)
	if err != nil {
		return err
	}

	var in RecordPaymentDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	userID, _ := c.Locals("userID").(string)
	payment, err := services.RecordPayment(db, services.RecordPaymentInput{
		InvoiceID:  id,
		Amount:     in.Amount,
		Method:     in.Method,
		Reference:  in.Reference,
		RecordedBy: userID,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(payment)
}

// GET /api/invoices/:id/payments
func ListPayments(c *fiber.Ctx) error {
	id, err := invoiceIDParam(c)
	if err != nil {
		return err
	}

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	payments, err := services.ListPayments(db, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"payments": payments})
}

type ReversePaymentDTO struct {
	Reference string `json:"reference" validate:"required,min=3"`
}

// POST /api/payments/:id/reverse
// Corrections append an offsetting event; the original row is untouched.
func ReversePayment(c *fiber.Ctx) error {
	paymentID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payment id")
	}

	var in ReversePaymentDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	userID, _ := c.Locals("userID").(string)
	reversal, err := services.ReversePayment(db, uint(paymentID), in.Reference, userID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(reversal)
}
