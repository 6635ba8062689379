package models

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Student is the directory record invoices are raised against.
// The ledger engine only reads it; enrollment lives elsewhere.
type Student struct {
	Id          string `json:"id" gorm:"primaryKey"`
	FirstName   string `json:"first_name" gorm:"not null"`
	LastName    string `json:"last_name" gorm:"not null"`
	AdmissionNo string `json:"admission_no" gorm:"uniqueIndex"`
	Active      bool   `json:"-" gorm:"default:true"`
}

func (student *Student) BeforeCreate(tx *gorm.DB) (err error) {
	// UUID version 4
	if student.Id == "" {
		student.Id = uuid.NewString()
	}
	return
}

func (student *Student) FullName() string {
	return strings.TrimSpace(student.FirstName + " " + student.LastName)
}
