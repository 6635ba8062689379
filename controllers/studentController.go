package controllers

import (
	"errors"
	"strings"

	"feeledger-backend/database"
	"feeledger-backend/middlewares"
	"feeledger-backend/models"
	"feeledger-backend/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type StudentCreateDTO struct {
	FirstName   string `json:"first_name" validate:"required,min=1"`
	LastName    string `json:"last_name" validate:"required,min=1"`
	AdmissionNo string `json:"admission_no" validate:"required,min=1"`
}

// POST /api/student
func CreateStudent(c *fiber.Ctx) error {
	var in StudentCreateDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	student := models.Student{
		FirstName:   strings.TrimSpace(in.FirstName),
		LastName:    strings.TrimSpace(in.LastName),
		AdmissionNo: strings.TrimSpace(in.AdmissionNo),
		Active:      true,
	}
	if err := db.Create(&student).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(strings.ToLower(err.Error()), "unique") {
			return &services.ConflictError{Resource: "student with admission no", Key: student.AdmissionNo}
		}
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(student)
}

// GET /api/students?search=
func GetStudents(c *fiber.Ctx) error {
	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	q := db.Model(&models.Student{}).Order("last_name ASC").Order("first_name ASC")
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		q = q.Where(
			"LOWER(first_name || ' ' || last_name) LIKE ? OR LOWER(admission_no) LIKE ?",
			pattern, pattern)
	}

	var students []models.Student
	if err := q.Find(&students).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"students": students})
}

// GET /api/student/:id
func GetStudent(c *fiber.Ctx) error {
	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	var student models.Student
	if err := db.First(&student, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &services.NotFoundError{Resource: "student", ID: c.Params("id")}
		}
		return err
	}
	return c.JSON(student)
}
