package routes

import (
	"github.com/gofiber/fiber/v2"

	"feeledger-backend/controllers"
	"feeledger-backend/middlewares"
)

// Register wires all HTTP routes.
func Register(app *fiber.App) {
	api := app.Group("/api")

	// Public auth endpoints
	api.Post("/registration", controllers.Register)
	api.Post("/login", controllers.Login)
	api.Post("/logout", controllers.Logout)

	// Protected endpoints (JWT auth)
	protected := api.Group("")
	protected.Use(middlewares.IsAuthenticatedHeader())

	// Idempotency guard FIRST (not tied to request TX)
	protected.Use(middlewares.Idempotency())

	// Then per-request tenant transaction (pins search_path and commits/rolls back)
	protected.Use(middlewares.TenantTx())

	// Students (directory)
	protected.Post("/student", controllers.CreateStudent)
	protected.Get("/students", controllers.GetStudents)
	protected.Get("/student/:id", controllers.GetStudent)

	// Terms (calendar)
	protected.Post("/term", controllers.CreateTerm)
	protected.Get("/terms", controllers.GetTerms)

	// Fee catalog
	protected.Post("/fee-item", controllers.SaveFeeItem)
	protected.Get("/fee-items", controllers.GetFeeItems)
	protected.Get("/fee-item/:id", controllers.GetFeeItem)
	protected.Delete("/fee-item/:id", controllers.DeleteFeeItem)

	// Invoices (generation, listing, void, export)
	protected.Post("/invoices/generate", controllers.GenerateInvoices)
	protected.Get("/invoices", controllers.GetInvoices)
	protected.Get("/invoices/export.csv", controllers.ExportInvoicesCSV)
	protected.Get("/invoice/:id", controllers.GetInvoice)
	protected.Put("/invoices/:id/void", controllers.VoidInvoice)

	// Payment ledger (append-only; corrections via reversal)
	protected.Post("/invoices/:id/payments", controllers.CreatePayment)
	protected.Get("/invoices/:id/payments", controllers.ListPayments)
	protected.Post("/payments/:id/reverse", controllers.ReversePayment)

	// Collections
	protected.Get("/debtors", controllers.GetDebtors)

	// Import reconciliation
	protected.Post("/import/fee-items", controllers.ImportFeeItems)
	protected.Post("/import/invoices", controllers.ImportInvoices)
}
