package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// GetTenantDB returns a *gorm.DB bound to the request's school schema.
// Prefer an existing per-request TX (middlewares.TenantTx), else fall back to a
// session where we set the search_path for the connection.
func GetTenantDB(c *fiber.Ctx) (*gorm.DB, error) {
	// If a per-request transaction exists, use it.
	if v := c.Locals("tx"); v != nil {
		if tx, ok := v.(*gorm.DB); ok && tx != nil {
			return tx, nil
		}
	}

	schema, _ := c.Locals("schema").(string)
	if strings.TrimSpace(schema) == "" {
		return nil, errors.New("tenant schema missing")
	}
	if DB == nil {
		return nil, errors.New("database not initialized")
	}

	// Use a dedicated session; pin search_path for this connection.
	sess := DB.Session(&gorm.Session{NewDB: true})
	if err := sess.Exec(`SET search_path = "` + schema + `", public`).Error; err != nil {
		return nil, fmt.Errorf("set search_path failed: %w", err)
	}
	return sess, nil
}
