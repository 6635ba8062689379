package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Term is one billing period from the school calendar.
// Import picks the latest-starting term as a default when a row omits one.
type Term struct {
	Id       string    `json:"id" gorm:"primaryKey"`
	Name     string    `json:"name" gorm:"not null;unique"`
	StartsOn time.Time `json:"starts_on" gorm:"not null"`
	EndsOn   time.Time `json:"ends_on" gorm:"not null"`
}

func (term *Term) BeforeCreate(tx *gorm.DB) (err error) {
	// UUID version 4
	if term.Id == "" {
		term.Id = uuid.NewString()
	}
	return
}
