package controllers

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"feeledger-backend/database"
	"feeledger-backend/middlewares"
	"feeledger-backend/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type RegisterDTO struct {
	FirstName       string `json:"first_name" validate:"required,min=1"`
	LastName        string `json:"last_name" validate:"required,min=1"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	SchoolName      string `json:"school_name" validate:"required,min=2"`
	Address         string `json:"address"`
	City            string `json:"city"`
	Country         string `json:"country"`
	Phone           string `json:"phone"`
	Currency        string `json:"currency" validate:"omitempty,len=3"`
}

// Register provisions a school: owner account, school profile, and the
// school's own Postgres schema with the ledger tables migrated into it.
func Register(c *fiber.Ctx) error {
	var in RegisterDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}

	var mailExist models.User
	database.DB.Where("email = ?", in.Email).First(&mailExist)
	if mailExist.Email != "" {
		return fiber.NewError(fiber.StatusBadRequest, "email already exists")
	}

	schemaName, err := createSchema(in.SchoolName)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "school name cannot be used as a schema")
	}

	tx := database.DB.Begin()

	user := models.User{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     strings.TrimSpace(in.Email),
	}
	user.SetPassword(in.Password)
	user.SchemaName = schemaName
	if err := tx.Create(&user).Error; err != nil {
		tx.Rollback()
		return fiber.NewError(fiber.StatusBadRequest, "could not create user")
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "NGN"
	}
	school := models.School{
		Name:       strings.TrimSpace(in.SchoolName),
		Address:    strings.TrimSpace(in.Address),
		City:       strings.TrimSpace(in.City),
		Country:    strings.TrimSpace(in.Country),
		Phone:      strings.TrimSpace(in.Phone),
		Email:      user.Email,
		Currency:   currency,
		UserId:     user.Id,
		SchemaName: schemaName,
	}
	if err := tx.Create(&school).Error; err != nil {
		tx.Rollback()
		return fiber.NewError(fiber.StatusBadRequest, "could not create school")
	}

	if err := database.MigrateTenantSchema(schemaName); err != nil {
		tx.Rollback()
		return fiber.NewError(fiber.StatusInternalServerError, "could not migrate school schema")
	}

	tx.Commit()

	database.DB.Preload("User").First(&school, "id = ?", school.Id)
	return c.Status(fiber.StatusCreated).JSON(school)
}

func createSchema(school string) (string, error) {
	safeName := strings.ToLower(strings.TrimSpace(school))
	safeName = strings.ReplaceAll(safeName, " ", "_")
	// Only letters, numbers, underscores; must start with letter/underscore
	valid := regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
	if !valid.MatchString(safeName) {
		return "", fmt.Errorf("invalid schema name after sanitization: %s", safeName)
	}

	if err := database.DB.Exec("CREATE SCHEMA IF NOT EXISTS " + safeName).Error; err != nil {
		return "", err
	}
	return safeName, nil
}

type LoginDTO struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func Login(c *fiber.Ctx) error {
	var in LoginDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}

	if _, err := mail.ParseAddress(in.Email); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid email format")
	}

	var user models.User
	database.DB.Table("public.users").Where("email = ?", in.Email).First(&user)

	if _, err := uuid.Parse(user.Id); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid credentials")
	}
	if err := user.ComparePassword(in.Password); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid credentials")
	}

	token, err := middlewares.GenerateJWT(user.Id, user.SchemaName)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "could not issue token")
	}

	// Keep the school's tables current with the model set.
	if err := database.MigrateTenantSchema(user.SchemaName); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "could not migrate school schema")
	}

	return c.JSON(fiber.Map{
		"token":  token,
		"schema": user.SchemaName,
		"user": fiber.Map{
			"id":    user.Id,
			"name":  user.DisplayName(),
			"email": user.Email,
		},
	})
}

func Logout(c *fiber.Ctx) error {
	cookie := fiber.Cookie{
		Name:     "jwt",
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
	}
	c.Cookie(&cookie)
	return c.JSON(fiber.Map{
		"message": "success",
	})
}
