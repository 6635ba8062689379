package database

import (
	"fmt"

	"feeledger-backend/models"

	"gorm.io/gorm"
)

// MigrateTenantSchema applies (idempotent) schema migrations for a single school schema.
// It pins search_path to the tenant and performs:
// - AutoMigrate (tables/columns)
// - Money column types (NUMERIC(12,2))
// - Indexes (invoice number, payments, line items, fee item names)
// - CHECK constraints backing the ledger invariants
func MigrateTenantSchema(schema string) error {
	if schema == "" {
		return fmt.Errorf("schema name is empty")
	}

	return DB.Transaction(func(tx *gorm.DB) error {
		// Pin the tenant schema for this transaction
		if err := tx.Exec(`SET search_path = "` + schema + `", public`).Error; err != nil {
			return fmt.Errorf("set search_path failed: %w", err)
		}

		// --- AutoMigrate tables/columns/index tags (non-destructive) ---
		if err := tx.AutoMigrate(
			&models.Student{},
			&models.Term{},
			&models.FeeItem{},
			&models.FeeInstallment{},
			&models.Invoice{},
			&models.InvoiceLineItem{},
			&models.InvoiceVersion{},
			&models.Payment{},
			&models.IdempotencyKey{},
		); err != nil {
			return fmt.Errorf("tenant automigrate failed: %w", err)
		}

		// --- Enforce money columns as NUMERIC(12,2) (idempotent ALTERs) ---
		alters := []string{
			`ALTER TABLE fee_items          ALTER COLUMN amount       TYPE numeric(12,2)`,
			`ALTER TABLE fee_installments   ALTER COLUMN amount       TYPE numeric(12,2)`,
			`ALTER TABLE invoices           ALTER COLUMN total_amount TYPE numeric(12,2)`,
			`ALTER TABLE invoices           ALTER COLUMN amount_paid  TYPE numeric(12,2)`,
			`ALTER TABLE invoice_line_items ALTER COLUMN amount       TYPE numeric(12,2)`,
			`ALTER TABLE payments           ALTER COLUMN amount       TYPE numeric(12,2)`,
		}
		for _, stmt := range alters {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("money type migration failed on: %s - %w", stmt, err)
			}
		}

		// --- Composite / helpful indexes (idempotent) ---
		indexes := []string{
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_invoices_invoice_number ON invoices (invoice_number)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_fee_items_name_ci ON fee_items (lower(name))`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_invoice_versions_invoice_id_version_no ON invoice_versions (invoice_id, version_no)`,
			`CREATE INDEX IF NOT EXISTS idx_payments_invoice_recorded_at ON payments (invoice_id, recorded_at)`,
			`CREATE INDEX IF NOT EXISTS idx_invoice_line_items_invoice ON invoice_line_items (invoice_id)`,
			`CREATE INDEX IF NOT EXISTS idx_fee_installments_fee_item ON fee_installments (fee_item_id)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_idempotency_keys_key ON idempotency_keys (key)`,
		}
		for _, stmt := range indexes {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("index migration failed on: %s - %w", stmt, err)
			}
		}

		// --- CHECK constraints backing the engine invariants (idempotent) ---
		checks := []string{
			// Fee item amounts are strictly positive
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'fee_items'::regclass
					  AND conname  = 'chk_fee_items_amount_positive'
				) THEN
					ALTER TABLE fee_items
					ADD CONSTRAINT chk_fee_items_amount_positive
					CHECK (amount > 0);
				END IF;
			END $$;`,
			// 0 <= amount_paid <= total_amount, for all time
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'invoices'::regclass
					  AND conname  = 'chk_invoices_paid_bounds'
				) THEN
					ALTER TABLE invoices
					ADD CONSTRAINT chk_invoices_paid_bounds
					CHECK (amount_paid >= 0 AND amount_paid <= total_amount);
				END IF;
			END $$;`,
			// Ledger events carry a positive amount; direction comes from kind
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'payments'::regclass
					  AND conname  = 'chk_payments_amount_positive'
				) THEN
					ALTER TABLE payments
					ADD CONSTRAINT chk_payments_amount_positive
					CHECK (amount > 0);
				END IF;
			END $$;`,
			// Line item snapshots are non-negative
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'invoice_line_items'::regclass
					  AND conname  = 'chk_invoice_line_items_amount_nonneg'
				) THEN
					ALTER TABLE invoice_line_items
					ADD CONSTRAINT chk_invoice_line_items_amount_nonneg
					CHECK (amount >= 0);
				END IF;
			END $$;`,
		}
		for _, stmt := range checks {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("check constraint migration failed: %w", err)
			}
		}

		return nil
	})
}
