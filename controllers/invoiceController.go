package controllers

import (
	"strconv"

	"feeledger-backend/database"
	"feeledger-backend/middlewares"
	"feeledger-backend/services"
	"feeledger-backend/utils"

	"github.com/gofiber/fiber/v2"
)

func invoiceIDParam(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid invoice id")
	}
	return uint(id), nil
}

// POST /api/invoices/generate
// One invoice per student, line items frozen from the catalog. Failures are
// per-student; the response reports them alongside the created invoices.
func GenerateInvoices(c *fiber.Ctx) error {
	var in services.GenerateInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	result, err := services.GenerateInvoices(db, in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// GET /api/invoices?status=&search=
func GetInvoices(c *fiber.Ctx) error {
	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	views, err := services.ListInvoices(db, services.InvoiceFilter{
		Status: c.Query("status"),
		Search: c.Query("search"),
		Limit:  utils.ParseIntDefault(c.Query("limit"), 0),
		Offset: utils.ParseIntDefault(c.Query("offset"), 0),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"invoices": views})
}

// GET /api/invoice/:id
func GetInvoice(c *fiber.Ctx) error {
	id, err := invoiceIDParam(c)
	if err != nil {
		return err
	}

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	view, err := services.GetInvoice(db, id)
	if err != nil {
		return err
	}
	return c.JSON(view)
}

type VoidInvoiceDTO struct {
	Reason string `json:"reason" validate:"required,min=3"`
}

// PUT /api/invoices/:id/void
// Terminal; the pre-void state is snapshotted into invoice_versions.
func VoidInvoice(c *fiber.Ctx) error {
	id, err := invoiceIDParam(c)
	if err != nil {
		return err
	}

	var in VoidInvoiceDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	userID, _ := c.Locals("userID").(string)
	invoice, err := services.VoidInvoice(db, id, in.Reason, userID)
	if err != nil {
		return err
	}
	return c.JSON(invoice)
}

// GET /api/invoices/export.csv?status=&search=
// Flat collections projection: number, student, total, paid, status, due date.
func ExportInvoicesCSV(c *fiber.Ctx) error {
	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	views, err := services.ListInvoices(db, services.InvoiceFilter{
		Status: c.Query("status"),
		Search: c.Query("search"),
	})
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="invoices.csv"`)
	return services.WriteInvoicesCSV(c.Response().BodyWriter(), views)
}
