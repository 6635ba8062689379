package middlewares

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"feeledger-backend/database"
	"feeledger-backend/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Idempotency replays the stored response for a repeated Idempotency-Key,
// so a retried payment posting cannot double-write. It runs its own short
// transactions with SET LOCAL search_path, independent of the handler TX.
func Idempotency() fiber.Handler {
	return func(c *fiber.Ctx) error {
		method := strings.ToUpper(c.Method())
		if method != fiber.MethodPost && method != fiber.MethodPut && method != fiber.MethodPatch && method != fiber.MethodDelete {
			return c.Next()
		}

		key := strings.TrimSpace(c.Get("Idempotency-Key"))
		if key == "" {
			return c.Next()
		}
		if len(key) > 128 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Idempotency-Key too long"})
		}

		schema, _ := c.Locals("schema").(string)
		userID, _ := c.Locals("userID").(string)
		if schema == "" || userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "auth context missing"})
		}

		path := c.OriginalURL() // includes query string
		reqHash := requestHash(method, path, c.Body(), schema, userID)

		// ---- Phase 1: read/create the record under a short TX with SET LOCAL search_path
		var stored models.IdempotencyKey
		replay := false
		err := database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(`SET LOCAL search_path = "` + schema + `", public`).Error; err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "idempotency schema pin failed")
			}
			rec, done, err := idempotencyBegin(tx, key, reqHash, method, path, schema, userID)
			if err != nil {
				return err
			}
			if done {
				stored = *rec
				replay = true
			}
			return nil
		})
		if err != nil {
			return err
		}
		if replay {
			// Completed response stored: replay it, the handler must not run again.
			c.Status(stored.ResponseStatus)
			return c.Send(stored.ResponseBody)
		}

		// First time through for this key: run the handler once.
		if err := c.Next(); err != nil {
			return err
		}

		// ---- Phase 2: store the response under another short TX
		_ = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(`SET LOCAL search_path = "` + schema + `", public`).Error; err != nil {
				return nil // best-effort: don't break the successful response
			}
			now := time.Now().UTC()
			status := c.Response().StatusCode()
			resp := c.Response().Body()
			blob := make([]byte, len(resp))
			copy(blob, resp)

			return tx.Model(&models.IdempotencyKey{}).
				Where("key = ?", key).
				Updates(map[string]any{
					"response_status": status,
					"response_body":   blob,
					"completed_at":    &now,
				}).Error
		})

		return nil
	}
}

// requestHash fingerprints a request as method|path|body|schema|user so a
// key cannot be reused for a different request.
func requestHash(method, path string, body []byte, schema, userID string) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{'\n'})
	h.Write([]byte(path))
	h.Write([]byte{'\n'})
	h.Write(body)
	h.Write([]byte{'\n'})
	h.Write([]byte(schema))
	h.Write([]byte{'\n'})
	h.Write([]byte(userID))
	return hex.EncodeToString(h.Sum(nil))
}

// idempotencyBegin finds or creates the record for key inside tx. It reports
// replay=true when a completed response is stored for the same request
// fingerprint; the caller sends that response and skips the handler.
func idempotencyBegin(tx *gorm.DB, key, reqHash, method, path, schema, userID string) (*models.IdempotencyKey, bool, error) {
	var existing models.IdempotencyKey
	if err := tx.Where("key = ?", key).First(&existing).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, fiber.NewError(fiber.StatusInternalServerError, "idempotency lookup failed")
		}
		rec := models.IdempotencyKey{
			Key:            key,
			RequestHash:    reqHash,
			Method:         method,
			Path:           path,
			TenantSchema:   schema,
			UserID:         userID,
			ResponseStatus: 0,
		}
		if e2 := tx.Create(&rec).Error; e2 != nil {
			// Unique race: another request created the key first; read it.
			if e3 := tx.Where("key = ?", key).First(&existing).Error; e3 != nil {
				return nil, false, fiber.NewError(fiber.StatusInternalServerError, "idempotency create failed")
			}
		} else {
			existing = rec
		}
	}

	if existing.RequestHash != reqHash {
		return nil, false, fiber.NewError(fiber.StatusConflict, "Idempotency-Key reuse with different request")
	}
	if existing.ResponseStatus != 0 && existing.ResponseBody != nil {
		return &existing, true, nil
	}
	// Pending/in-progress: let this request run the handler.
	return &existing, false, nil
}
