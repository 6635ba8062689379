package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// School is the tenant profile created at registration. Each school gets
// its own Postgres schema; SchemaName ties the profile to it.
type School struct {
	Id         string `json:"id" gorm:"primaryKey"`
	Name       string `json:"name" gorm:"not null;unique"`
	Address    string `json:"address"`
	City       string `json:"city"`
	Country    string `json:"country"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	Currency   string `json:"currency" gorm:"size:3;not null;default:'NGN'"`
	UserId     string `json:"-"`
	User       User   `json:"owner" gorm:"foreignKey:UserId;references:Id"`
	SchemaName string `json:"-"`
}

func (school *School) BeforeCreate(tx *gorm.DB) (err error) {
	// UUID version 4
	school.Id = uuid.NewString()
	return
}
