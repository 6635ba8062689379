package controllers

import (
	"errors"
	"strings"
	"time"

	"feeledger-backend/database"
	"feeledger-backend/middlewares"
	"feeledger-backend/models"
	"feeledger-backend/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type TermCreateDTO struct {
	Name     string    `json:"name" validate:"required,min=1"`
	StartsOn time.Time `json:"starts_on" validate:"required"`
	EndsOn   time.Time `json:"ends_on" validate:"required,gtfield=StartsOn"`
}

// POST /api/term
func CreateTerm(c *fiber.Ctx) error {
	var in TermCreateDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	term := models.Term{
		Name:     strings.TrimSpace(in.Name),
		StartsOn: in.StartsOn,
		EndsOn:   in.EndsOn,
	}
	if err := db.Create(&term).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(strings.ToLower(err.Error()), "unique") {
			return &services.ConflictError{Resource: "term", Key: term.Name}
		}
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(term)
}

// GET /api/terms
// Newest first; the first row is the default term used by invoice import.
func GetTerms(c *fiber.Ctx) error {
	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	var terms []models.Term
	if err := db.Order("starts_on DESC").Find(&terms).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"terms": terms})
}
